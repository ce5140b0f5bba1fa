// Package scorer combines normalized feature vectors into a single score
// and ranks listings by it.
package scorer

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// WeightTolerance is how far the weight sum may drift from 1.
const WeightTolerance = 1e-6

// UniformWeights returns n equal weights summing to 1.
func UniformWeights(n int) []float64 {
	if n <= 0 {
		return nil
	}
	w := make([]float64, n)
	for i := range w {
		w[i] = 1 / float64(n)
	}
	return w
}

// WeightsFromMap orders configured weights to match features. Features
// without an entry get 0; entries naming no selected feature are an error.
func WeightsFromMap(features []string, weights map[string]float64) ([]float64, error) {
	selected := make(map[string]bool, len(features))
	for _, f := range features {
		selected[f] = true
	}
	var unknown []string
	for name := range weights {
		if !selected[name] {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, eris.Errorf("scorer: weights for unselected features: %s", strings.Join(unknown, ", "))
	}

	out := make([]float64, len(features))
	for i, f := range features {
		out[i] = weights[f]
	}
	if err := ValidateWeights(features, out); err != nil {
		return nil, err
	}
	return out, nil
}

// ValidateWeights checks there is one finite, non-negative weight per
// feature and that the weights sum to 1 within WeightTolerance.
func ValidateWeights(features []string, weights []float64) error {
	if len(weights) != len(features) {
		return eris.Errorf("scorer: %d weights for %d features", len(weights), len(features))
	}

	var errs []string
	sum := 0.0
	for i, w := range weights {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			errs = append(errs, fmt.Sprintf("%s weight must be finite", features[i]))
			continue
		}
		if w < 0 {
			errs = append(errs, fmt.Sprintf("%s weight must be >= 0", features[i]))
		}
		sum += w
	}
	if len(errs) == 0 && math.Abs(sum-1) > WeightTolerance {
		errs = append(errs, fmt.Sprintf("weights should sum to 1, got %g", sum))
	}

	if len(errs) > 0 {
		return eris.Errorf("scorer: weight validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
