// Package feature turns scored-listing rows into feature vectors in [0,1].
//
// Steps run in a fixed order: distance imputation, categorical encoding,
// polarity inversion, min-max scaling, then dropping rows that still have
// a missing feature.
package feature

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"

	"github.com/sells-group/homescore/internal/model"
)

// Feature names.
const (
	Price           = "price"
	Beds            = "beds"
	Baths           = "baths"
	Sqft            = "sqft"
	Garage          = "garage"
	PropertyType    = "property_type"
	ConvenienceDist = "avg_convenience_dist"
	TransitDist     = "avg_transit_dist"
	SchoolDist      = "avg_school_dist"
	PriceToIncome   = "price_to_income"
)

// All lists every supported feature in the default scoring order.
var All = []string{
	Price, Beds, Baths, Sqft, Garage, PropertyType,
	ConvenienceDist, TransitDist, SchoolDist, PriceToIncome,
}

// ImputeFactor scales the worst observed distance to fill a missing one.
const ImputeFactor = 1.1

type definition struct {
	extract     func(r model.ScoredListing) *float64
	lowerBetter bool
	imputed     bool
}

var definitions = map[string]definition{
	Price: {extract: func(r model.ScoredListing) *float64 { return r.Listing.Price }, lowerBetter: true},
	Beds:  {extract: func(r model.ScoredListing) *float64 { return r.Listing.Beds }},
	Baths: {extract: func(r model.ScoredListing) *float64 { return r.Listing.Baths }},
	Sqft:  {extract: func(r model.ScoredListing) *float64 { return r.Listing.Sqft }},
	Garage: {extract: func(r model.ScoredListing) *float64 {
		return model.Float(GarageValue(r.Listing.Garage))
	}},
	PropertyType: {extract: func(r model.ScoredListing) *float64 {
		v, ok := PropertyTypeRank(r.Listing.PropertyType)
		if !ok {
			return nil
		}
		return model.Float(v)
	}},
	ConvenienceDist: {extract: func(r model.ScoredListing) *float64 { return r.Amenities.ConvenienceKM }, lowerBetter: true, imputed: true},
	TransitDist:     {extract: func(r model.ScoredListing) *float64 { return r.Amenities.TransitKM }, lowerBetter: true, imputed: true},
	SchoolDist:      {extract: func(r model.ScoredListing) *float64 { return r.Amenities.SchoolKM }, lowerBetter: true, imputed: true},
	PriceToIncome:   {extract: func(r model.ScoredListing) *float64 { return r.PriceToIncome }, lowerBetter: true},
}

// propertyTypeRanks is the fixed ordinal scale for property types, keyed by
// case-folded name.
var propertyTypeRanks = map[string]float64{
	"condo":         0.25,
	"townhome":      0.5,
	"single family": 0.75,
	"multifamily":   1,
}

// fold case-folds s. Casers carry state, so each call gets its own.
func fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// PropertyTypeRank maps a property type onto its ordinal rank. Matching
// ignores case and surrounding whitespace.
func PropertyTypeRank(propertyType string) (float64, bool) {
	v, ok := propertyTypeRanks[fold(propertyType)]
	return v, ok
}

// GarageValue is 1 for "Yes" in any case and 0 for anything else.
func GarageValue(garage string) float64 {
	if fold(garage) == "yes" {
		return 1
	}
	return 0
}

// Validate checks that every name is a known feature and none repeats.
func Validate(features []string) error {
	if len(features) == 0 {
		return eris.New("feature: no features selected")
	}
	seen := make(map[string]bool, len(features))
	var errs []string
	for _, f := range features {
		if _, ok := definitions[f]; !ok {
			errs = append(errs, fmt.Sprintf("unknown feature %q", f))
			continue
		}
		if seen[f] {
			errs = append(errs, fmt.Sprintf("duplicate feature %q", f))
		}
		seen[f] = true
	}
	if len(errs) > 0 {
		return eris.Errorf("feature: %s", strings.Join(errs, "; "))
	}
	return nil
}
