package listing

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/homescore/internal/geo"
	"github.com/sells-group/homescore/internal/model"
)

// Merge left-joins amenity summaries onto listings by exact coordinate.
// The output has one row per listing, in input order. When several
// summaries share a coordinate the first one wins. Listings without a
// summary keep nil distances.
func Merge(listings []model.Listing, summaries []model.AmenitySummary) []model.ScoredListing {
	byCoord := make(map[geo.Coordinate]model.AmenitySummary, len(summaries))
	for _, s := range summaries {
		if _, dup := byCoord[s.Coordinate]; !dup {
			byCoord[s.Coordinate] = s
		}
	}

	out := make([]model.ScoredListing, len(listings))
	for i, l := range listings {
		s, ok := byCoord[l.Coordinate]
		if !ok {
			s = model.AmenitySummary{Coordinate: l.Coordinate, Status: model.SummaryOK}
		}
		out[i] = model.ScoredListing{Listing: l, Amenities: s}
	}
	return out
}

// Coordinates returns each listing's coordinate in order.
func Coordinates(listings []model.Listing) []geo.Coordinate {
	out := make([]geo.Coordinate, len(listings))
	for i, l := range listings {
		out[i] = l.Coordinate
	}
	return out
}

// ApplyPriceToIncome sets PriceToIncome to price / medianIncome on every
// row with a price.
func ApplyPriceToIncome(rows []model.ScoredListing, medianIncome float64) error {
	if !(medianIncome > 0) {
		return eris.Errorf("listing: median income must be positive, got %g", medianIncome)
	}
	for i := range rows {
		if p := rows[i].Listing.Price; p != nil {
			rows[i].PriceToIncome = model.Float(*p / medianIncome)
		} else {
			rows[i].PriceToIncome = nil
		}
	}
	return nil
}
