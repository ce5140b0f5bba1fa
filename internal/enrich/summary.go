package enrich

import (
	"github.com/sells-group/homescore/internal/geo"
	"github.com/sells-group/homescore/internal/model"
)

// Bucket groups amenities for proximity averaging.
type Bucket int

// Proximity buckets. Amenities outside all three are ignored.
const (
	BucketNone Bucket = iota
	BucketConvenience
	BucketTransit
	BucketSchool
)

// BucketOf places an amenity in its proximity bucket. Shop tags are checked
// first, then transit amenity tags, then schools.
func BucketOf(a model.Amenity) Bucket {
	switch a.ShopTag {
	case "convenience", "grocery":
		return BucketConvenience
	}
	switch a.AmenityTag {
	case "bus_station", "subway_station", "railway_station":
		return BucketTransit
	case "school", "university":
		return BucketSchool
	}

	// Entries without raw tags fall back to the stored category.
	switch a.Category {
	case model.CategoryConvenience, model.CategoryGrocery:
		return BucketConvenience
	case model.CategoryBusStation:
		return BucketTransit
	case model.CategorySchool, model.CategoryUniversity:
		return BucketSchool
	}
	return BucketNone
}

// Summarize computes mean distances in km from the unrounded coord to each
// bucket's amenities. Empty buckets stay nil.
func Summarize(coord geo.Coordinate, amenities []model.Amenity) model.AmenitySummary {
	var sums [4]float64
	var counts [4]int
	for _, a := range amenities {
		b := BucketOf(a)
		if b == BucketNone {
			continue
		}
		sums[b] += coord.DistanceKM(a.Coordinate())
		counts[b]++
	}

	mean := func(b Bucket) *float64 {
		if counts[b] == 0 {
			return nil
		}
		return model.Float(sums[b] / float64(counts[b]))
	}
	return model.AmenitySummary{
		Coordinate:    coord,
		ConvenienceKM: mean(BucketConvenience),
		TransitKM:     mean(BucketTransit),
		SchoolKM:      mean(BucketSchool),
		Status:        model.SummaryOK,
	}
}
