package feature

import (
	"math"

	"go.uber.org/zap"

	"github.com/sells-group/homescore/internal/model"
)

// Normalize returns a copy of the rows that have every selected feature,
// each carrying a Features map with values in [0,1]. Input order is kept.
// A nil features slice selects All.
func Normalize(rows []model.ScoredListing, features []string) ([]model.ScoredListing, error) {
	if features == nil {
		features = All
	}
	if err := Validate(features); err != nil {
		return nil, err
	}

	columns := make(map[string][]*float64, len(features))
	for _, f := range features {
		s := definitions[f]
		col := make([]*float64, len(rows))
		for i, r := range rows {
			col[i] = s.extract(r)
		}
		if s.imputed {
			col = Impute(col)
		}
		if s.lowerBetter {
			col = negate(col)
		}
		columns[f] = Scale(col)
	}

	out := make([]model.ScoredListing, 0, len(rows))
	for i, r := range rows {
		vec := make(map[string]float64, len(features))
		complete := true
		for _, f := range features {
			v := columns[f][i]
			if v == nil {
				complete = false
				break
			}
			vec[f] = *v
		}
		if !complete {
			continue
		}
		r.Features = vec
		out = append(out, r)
	}

	if dropped := len(rows) - len(out); dropped > 0 {
		zap.L().Info("feature: dropped rows with missing features",
			zap.Int("rows", len(rows)),
			zap.Int("dropped", dropped),
		)
	}
	return out, nil
}

// Impute fills missing entries with the column maximum times ImputeFactor.
// A column with no values at all becomes all zeros.
func Impute(col []*float64) []*float64 {
	maxVal := math.Inf(-1)
	for _, v := range col {
		if v != nil && *v > maxVal {
			maxVal = *v
		}
	}
	fill := 0.0
	if !math.IsInf(maxVal, -1) {
		fill = maxVal * ImputeFactor
	}

	out := make([]*float64, len(col))
	for i, v := range col {
		if v == nil {
			out[i] = model.Float(fill)
			continue
		}
		out[i] = v
	}
	return out
}

// Scale min-max scales the present values of col into [0,1]. A column with
// zero variance scales to 0. Missing entries stay nil.
func Scale(col []*float64) []*float64 {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range col {
		if v == nil {
			continue
		}
		lo = math.Min(lo, *v)
		hi = math.Max(hi, *v)
	}

	out := make([]*float64, len(col))
	span := hi - lo
	for i, v := range col {
		if v == nil {
			continue
		}
		if span <= 0 {
			out[i] = model.Float(0)
			continue
		}
		// Clamp against rounding at the ends of the range.
		out[i] = model.Float(math.Min(1, math.Max(0, (*v-lo)/span)))
	}
	return out
}

func negate(col []*float64) []*float64 {
	out := make([]*float64, len(col))
	for i, v := range col {
		if v != nil {
			out[i] = model.Float(-*v)
		}
	}
	return out
}
