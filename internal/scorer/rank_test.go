package scorer

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/homescore/internal/model"
)

func scored(address string, features map[string]float64) model.ScoredListing {
	return model.ScoredListing{Listing: model.Listing{Address: address}, Features: features}
}

func nan() float64 { return math.NaN() }

func TestUniformWeights(t *testing.T) {
	w := UniformWeights(4)
	assert.Equal(t, []float64{0.25, 0.25, 0.25, 0.25}, w)
	assert.Nil(t, UniformWeights(0))

	sum := 0.0
	for _, v := range UniformWeights(10) {
		sum += v
	}
	assert.InDelta(t, 1.0, sum, WeightTolerance)
}

func TestValidateWeights(t *testing.T) {
	features := []string{"a", "b"}
	tests := []struct {
		name    string
		weights []float64
		wantErr string
	}{
		{"valid", []float64{0.3, 0.7}, ""},
		{"within tolerance", []float64{0.5, 0.5000001}, ""},
		{"wrong length", []float64{1}, "1 weights for 2 features"},
		{"negative", []float64{-0.5, 1.5}, "a weight must be >= 0"},
		{"sum too low", []float64{0.2, 0.2}, "should sum to 1"},
		{"nan", []float64{0.5, nan()}, "b weight must be finite"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateWeights(features, tt.weights)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestWeightsFromMap(t *testing.T) {
	features := []string{"price", "beds", "garage"}

	w, err := WeightsFromMap(features, map[string]float64{"price": 0.6, "beds": 0.4})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.6, 0.4, 0}, w)

	_, err = WeightsFromMap(features, map[string]float64{"price": 0.5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "should sum to 1")

	_, err = WeightsFromMap(features, map[string]float64{"price": 0.5, "pool": 0.5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pool")
}

func TestWeightsFromMap_UnknownNamesAreSorted(t *testing.T) {
	weights := map[string]float64{"price": 0.2, "view": 0.2, "pool": 0.2, "elevator": 0.2, "gym": 0.2}
	for range 20 {
		_, err := WeightsFromMap([]string{"price"}, weights)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "scorer: weights for unselected features: elevator, gym, pool, view")
	}
}

func TestRank_SortsDescending(t *testing.T) {
	features := []string{"x", "y"}
	rows := []model.ScoredListing{
		scored("low", map[string]float64{"x": 0, "y": 0.2}),
		scored("high", map[string]float64{"x": 1, "y": 1}),
		scored("mid", map[string]float64{"x": 0.5, "y": 0.5}),
	}

	out, err := Rank(rows, features, nil)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, "high", out[0].Listing.Address)
	assert.Equal(t, "mid", out[1].Listing.Address)
	assert.Equal(t, "low", out[2].Listing.Address)
	assert.InDelta(t, 1.0, out[0].Score, 1e-12)
	assert.InDelta(t, 0.5, out[1].Score, 1e-12)
	assert.InDelta(t, 0.1, out[2].Score, 1e-12)
}

func TestRank_WeightedDotProduct(t *testing.T) {
	out, err := Rank([]model.ScoredListing{scored("a", map[string]float64{"x": 1, "y": 0.5})},
		[]string{"x", "y"}, []float64{0.2, 0.8})
	require.NoError(t, err)
	assert.InDelta(t, 0.6, out[0].Score, 1e-12)
}

func TestRank_StableTies(t *testing.T) {
	same := map[string]float64{"x": 0.5}
	rows := []model.ScoredListing{scored("first", same), scored("second", same), scored("third", same)}

	out, err := Rank(rows, []string{"x"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "first", out[0].Listing.Address)
	assert.Equal(t, "second", out[1].Listing.Address)
	assert.Equal(t, "third", out[2].Listing.Address)
}

func TestRank_ScoreBound(t *testing.T) {
	features := []string{"a", "b", "c", "d", "e"}
	rng := rand.New(rand.NewPCG(7, 11))
	for trial := 0; trial < 200; trial++ {
		raw := make([]float64, len(features))
		total := 0.0
		for i := range raw {
			raw[i] = rng.Float64()
			total += raw[i]
		}
		for i := range raw {
			raw[i] /= total
		}

		rows := make([]model.ScoredListing, 5)
		for i := range rows {
			vec := make(map[string]float64, len(features))
			for _, f := range features {
				vec[f] = rng.Float64()
			}
			if i == 0 {
				for _, f := range features {
					vec[f] = 1
				}
			}
			rows[i] = scored("", vec)
		}

		out, err := Rank(rows, features, raw)
		require.NoError(t, err)
		for _, r := range out {
			assert.GreaterOrEqual(t, r.Score, 0.0)
			assert.LessOrEqual(t, r.Score, 1.0)
		}
	}
}

func TestRank_Errors(t *testing.T) {
	_, err := Rank(nil, nil, nil)
	require.Error(t, err)

	_, err = Rank([]model.ScoredListing{scored("a", map[string]float64{"x": 1})}, []string{"x", "y"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `missing feature "y"`)

	_, err = Rank([]model.ScoredListing{scored("a", map[string]float64{"x": 1.5})}, []string{"x"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outside [0,1]")

	_, err = Rank([]model.ScoredListing{scored("a", map[string]float64{"x": 1})}, []string{"x"}, []float64{0.5})
	require.Error(t, err)
}

func TestRank_DoesNotMutateInput(t *testing.T) {
	rows := []model.ScoredListing{scored("a", map[string]float64{"x": 0.2}), scored("b", map[string]float64{"x": 0.9})}
	_, err := Rank(rows, []string{"x"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "a", rows[0].Listing.Address)
	assert.Zero(t, rows[0].Score)
}

func TestByLocality(t *testing.T) {
	rows := []model.ScoredListing{
		{Listing: model.Listing{Locality: "Burnaby"}, Score: 0.4},
		{Listing: model.Listing{Locality: "Vancouver"}, Score: 0.9},
		{Listing: model.Listing{Locality: "Burnaby"}, Score: 0.6},
		{Listing: model.Listing{Locality: "Vancouver"}, Score: 0.5},
		{Listing: model.Listing{Locality: "Vancouver"}, Score: 0.7},
		{Listing: model.Listing{Locality: ""}, Score: 0.1},
	}

	got := ByLocality(rows)
	require.Len(t, got, 3)
	assert.Equal(t, LocalityStats{Locality: "Vancouver", Count: 3, Min: 0.5, Median: 0.7, Max: 0.9}, got[0])
	assert.Equal(t, "Burnaby", got[1].Locality)
	assert.InDelta(t, 0.5, got[1].Median, 1e-12)
	assert.Equal(t, "(unknown)", got[2].Locality)
}
