package model

import "github.com/sells-group/homescore/internal/geo"

// NotAvailable marks a tag the source element did not carry.
const NotAvailable = "N/A"

// Category classifies an amenity by the tag that matched the query.
type Category string

// Amenity categories requested from the amenity index.
const (
	CategorySchool      Category = "school"
	CategoryUniversity  Category = "university"
	CategoryBusStation  Category = "bus_station"
	CategoryConvenience Category = "convenience"
	CategoryGrocery     Category = "grocery"
	CategoryOther       Category = "other"
)

// Amenity is one tagged point returned by the amenity index.
type Amenity struct {
	SourceType string   `json:"type"`
	SourceID   int64    `json:"id"`
	Name       string   `json:"name"`
	AmenityTag string   `json:"amenity"`
	ShopTag    string   `json:"shop"`
	Category   Category `json:"category"`
	Lat        float64  `json:"latitude"`
	Lon        float64  `json:"longitude"`
}

// Coordinate returns the amenity location.
func (a Amenity) Coordinate() geo.Coordinate {
	return geo.Coordinate{Lat: a.Lat, Lon: a.Lon}
}

// Classify derives the category from raw amenity/shop tag values.
// Shop tags win over amenity tags, matching the aggregation buckets.
func Classify(amenityTag, shopTag string) Category {
	switch shopTag {
	case "convenience":
		return CategoryConvenience
	case "grocery":
		return CategoryGrocery
	}
	switch amenityTag {
	case "school":
		return CategorySchool
	case "university":
		return CategoryUniversity
	case "bus_station":
		return CategoryBusStation
	}
	return CategoryOther
}
