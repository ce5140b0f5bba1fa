// Package model defines the listing, amenity and score types shared across homescore.
package model

import "github.com/sells-group/homescore/internal/geo"

// Listing is one ingested real-estate listing. Numeric fields are nil when
// the source row left them empty.
type Listing struct {
	Address       string         `json:"street_address"`
	Locality      string         `json:"address_locality"`
	Region        string         `json:"address_region"`
	PostalCode    string         `json:"postal_code"`
	Coordinate    geo.Coordinate `json:"coordinate"`
	Price         *float64       `json:"price,omitempty"`
	Beds          *float64       `json:"beds,omitempty"`
	Baths         *float64       `json:"baths,omitempty"`
	Sqft          *float64       `json:"sqft,omitempty"`
	Garage        string         `json:"garage,omitempty"`
	PropertyType  string         `json:"property_type,omitempty"`
	SquareFootage string         `json:"square_footage,omitempty"`
}

// SummaryStatus records how an amenity summary was produced.
type SummaryStatus string

// Summary statuses.
const (
	SummaryOK          SummaryStatus = "ok"
	SummaryFetchFailed SummaryStatus = "fetch_failed"
)

// AmenitySummary holds mean distances (km) per proximity bucket for one
// coordinate. A nil distance means no amenity of that bucket was found,
// which is not the same as a zero distance.
type AmenitySummary struct {
	Coordinate    geo.Coordinate `json:"coordinate"`
	ConvenienceKM *float64       `json:"avg_convenience_dist"`
	TransitKM     *float64       `json:"avg_transit_distance"`
	SchoolKM      *float64       `json:"avg_school_distance"`
	Status        SummaryStatus  `json:"status"`
}

// ScoredListing is a listing joined with its amenity summary, its
// normalized feature vector and final score.
type ScoredListing struct {
	Listing       Listing            `json:"listing"`
	Amenities     AmenitySummary     `json:"amenities"`
	PriceToIncome *float64           `json:"price_to_income,omitempty"`
	Features      map[string]float64 `json:"features,omitempty"`
	Score         float64            `json:"score"`
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }
