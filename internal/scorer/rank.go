package scorer

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/homescore/internal/model"
)

// Rank scores each row as the dot product of its features and weights and
// returns the rows sorted by score, highest first. Ties keep input order.
// A nil weights slice means UniformWeights.
func Rank(rows []model.ScoredListing, features []string, weights []float64) ([]model.ScoredListing, error) {
	if len(features) == 0 {
		return nil, eris.New("scorer: no features selected")
	}
	if weights == nil {
		weights = UniformWeights(len(features))
	}
	if err := ValidateWeights(features, weights); err != nil {
		return nil, err
	}

	out := make([]model.ScoredListing, len(rows))
	for i, r := range rows {
		score := 0.0
		for j, f := range features {
			v, ok := r.Features[f]
			if !ok {
				return nil, eris.Errorf("scorer: row %d is missing feature %q", i, f)
			}
			if v < 0 || v > 1 || math.IsNaN(v) {
				return nil, eris.Errorf("scorer: row %d feature %q = %g outside [0,1]", i, f, v)
			}
			score += v * weights[j]
		}
		r.Score = math.Min(1, math.Max(0, score))
		out[i] = r
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}
