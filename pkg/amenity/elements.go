package amenity

import (
	"sort"
	"strings"

	"github.com/sells-group/homescore/internal/model"
)

// element is one entry of the interpreter's JSON "elements" array.
type element struct {
	Type string            `json:"type"`
	ID   int64             `json:"id"`
	Lat  *float64          `json:"lat"`
	Lon  *float64          `json:"lon"`
	Tags map[string]string `json:"tags"`
}

// interpreterResponse is the interpreter's JSON body. A query that runs out
// of time or memory still answers 200, with a truncated element list and a
// "runtime error" remark.
type interpreterResponse struct {
	Elements []element `json:"elements"`
	Remark   string    `json:"remark"`
}

func (r interpreterResponse) incomplete() bool {
	return strings.HasPrefix(strings.TrimSpace(r.Remark), "runtime error")
}

// toAmenities maps raw elements to amenities. Untagged elements and
// elements without a coordinate are dropped.
func toAmenities(elems []element) []model.Amenity {
	out := make([]model.Amenity, 0, len(elems))
	for _, e := range elems {
		if e.Tags == nil || e.Lat == nil || e.Lon == nil {
			continue
		}
		out = append(out, newAmenity(e.Type, e.ID, *e.Lat, *e.Lon, e.Tags))
	}
	sortAmenities(out)
	return out
}

func newAmenity(typ string, id int64, lat, lon float64, tags map[string]string) model.Amenity {
	amenityTag := tagOrNA(tags, "amenity")
	shopTag := tagOrNA(tags, "shop")
	return model.Amenity{
		SourceType: typ,
		SourceID:   id,
		Name:       tagOrNA(tags, "name"),
		AmenityTag: amenityTag,
		ShopTag:    shopTag,
		Category:   model.Classify(amenityTag, shopTag),
		Lat:        lat,
		Lon:        lon,
	}
}

func tagOrNA(tags map[string]string, key string) string {
	if v, ok := tags[key]; ok && v != "" {
		return v
	}
	return model.NotAvailable
}

func sortAmenities(a []model.Amenity) {
	sort.SliceStable(a, func(i, j int) bool {
		if a[i].SourceType != a[j].SourceType {
			return a[i].SourceType < a[j].SourceType
		}
		return a[i].SourceID < a[j].SourceID
	})
}
