package listing

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/homescore/internal/model"
)

// DefaultRegion is the province listings are restricted to by default.
const DefaultRegion = "BC"

// DefaultPropertyTypes are the property types kept by default.
var DefaultPropertyTypes = []string{"Single Family", "Condo", "Townhome", "MultiFamily"}

// DefaultLocalities are the Metro Vancouver municipalities kept by default.
var DefaultLocalities = []string{
	"Vancouver", "Burnaby", "Richmond", "Surrey", "Coquitlam", "North Vancouver",
	"West Vancouver", "New Westminster", "Delta", "Port Coquitlam", "Port Moody", "Langley",
}

// Filter restricts a listing table. Empty fields impose no restriction.
// Matching ignores case and surrounding whitespace.
type Filter struct {
	Region        string   `yaml:"region" mapstructure:"region"`
	PropertyTypes []string `yaml:"property_types" mapstructure:"property_types"`
	Localities    []string `yaml:"localities" mapstructure:"localities"`
}

// DefaultFilter returns the Metro Vancouver filter.
func DefaultFilter() Filter {
	return Filter{
		Region:        DefaultRegion,
		PropertyTypes: append([]string(nil), DefaultPropertyTypes...),
		Localities:    append([]string(nil), DefaultLocalities...),
	}
}

// Apply returns the matching listings sorted by locality. Listings within
// a locality keep their input order.
func (f Filter) Apply(rows []model.Listing) []model.Listing {
	types := foldSet(f.PropertyTypes)
	localities := foldSet(f.Localities)
	region := fold(strings.TrimSpace(f.Region))

	out := make([]model.Listing, 0, len(rows))
	for _, l := range rows {
		if region != "" && fold(strings.TrimSpace(l.Region)) != region {
			continue
		}
		if types != nil && !types[fold(strings.TrimSpace(l.PropertyType))] {
			continue
		}
		if localities != nil && !localities[fold(strings.TrimSpace(l.Locality))] {
			continue
		}
		out = append(out, l)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.TrimSpace(out[i].Locality) < strings.TrimSpace(out[j].Locality)
	})

	zap.L().Info("listing: filtered",
		zap.Int("input", len(rows)),
		zap.Int("kept", len(out)),
		zap.String("region", f.Region),
	)
	return out
}

func foldSet(values []string) map[string]bool {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[fold(strings.TrimSpace(v))] = true
	}
	return set
}
