package scorer

import (
	"sort"
	"strings"

	"github.com/sells-group/homescore/internal/model"
)

// LocalityStats summarizes the score distribution within one locality.
type LocalityStats struct {
	Locality string  `json:"locality"`
	Count    int     `json:"count"`
	Min      float64 `json:"min"`
	Median   float64 `json:"median"`
	Max      float64 `json:"max"`
}

// ByLocality groups ranked rows by locality, ordered by median score
// descending and then by name.
func ByLocality(rows []model.ScoredListing) []LocalityStats {
	groups := make(map[string][]float64)
	for _, r := range rows {
		name := strings.TrimSpace(r.Listing.Locality)
		if name == "" {
			name = "(unknown)"
		}
		groups[name] = append(groups[name], r.Score)
	}

	out := make([]LocalityStats, 0, len(groups))
	for name, scores := range groups {
		sort.Float64s(scores)
		out = append(out, LocalityStats{
			Locality: name,
			Count:    len(scores),
			Min:      scores[0],
			Median:   median(scores),
			Max:      scores[len(scores)-1],
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Median != out[j].Median {
			return out[i].Median > out[j].Median
		}
		return out[i].Locality < out[j].Locality
	})
	return out
}

// median expects sorted input.
func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
