package main

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/homescore/internal/config"
	"github.com/sells-group/homescore/internal/feature"
)

const listingsCSV = `streetAddress,addressLocality,addressRegion,postalCode,latitude,longitude,price,property-beds,property-baths,property-sqft,Garage,Property Type
1 Main St,Vancouver,BC,V6B 1A1,49.2827,-123.1207,850000,2,2,"1,150",Yes,Condo
2 Oak Ave,Burnaby,BC,V5H 2B2,49.2488,-122.9805,990000,3,2,1400,No,Townhome
3 Bay Rd,Calgary,AB,T2P 1J9,51.0447,-114.0719,600000,3,2,1600,Yes,Single Family
`

func writeListings(t *testing.T) {
	t.Helper()
	require.NoError(t, os.WriteFile("listings.csv", []byte(listingsCSV), 0o644))
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck
	recs, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return recs
}

func TestScore_EndToEnd(t *testing.T) {
	calls := workspace(t)
	writeListings(t)

	out, err := execute(t, "score", "listings.csv", "summary.csv", "--by-locality")
	require.NoError(t, err)

	assert.Contains(t, out, "RANK")
	assert.Contains(t, out, "1 Main St")
	assert.Contains(t, out, "2 Oak Ave")
	assert.NotContains(t, out, "3 Bay Rd", "outside the configured region")
	assert.Contains(t, out, "LOCALITY")
	assert.Contains(t, out, "Burnaby")
	assert.Equal(t, int32(2), calls.Load())

	recs := readCSV(t, "summary.csv")
	require.Len(t, recs, 3)
	assert.Equal(t, []string{"latitude", "longitude", "avg_convenience_dist", "avg_transit_distance", "avg_school_distance"}, recs[0])

	_, err = os.Stat("amenity_cache.json")
	require.NoError(t, err, "cache is saved after the run")

	// A second run is served from the saved cache.
	_, err = execute(t, "score", "listings.csv", "summary.csv")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestScore_NoFilterAndOutputFile(t *testing.T) {
	workspace(t)
	writeListings(t)

	out, err := execute(t, "score", "listings.csv", "summary.json", "--no-filter", "--output", "ranked.json")
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote 3 scored listings to ranked.json")

	data, err := os.ReadFile("ranked.json")
	require.NoError(t, err)
	var ranked []map[string]any
	require.NoError(t, json.Unmarshal(data, &ranked))
	assert.Len(t, ranked, 3)

	data, err = os.ReadFile("summary.json")
	require.NoError(t, err)
	var summaries []map[string]any
	require.NoError(t, json.Unmarshal(data, &summaries))
	assert.Len(t, summaries, 3)
}

func TestScore_WeightsFile(t *testing.T) {
	workspace(t)
	writeListings(t)
	require.NoError(t, os.WriteFile("weights.yaml", []byte("price: 0.5\navg_transit_dist: 0.5\n"), 0o644))

	_, err := execute(t, "score", "listings.csv", "summary.csv", "--weights", "weights.yaml")
	require.NoError(t, err)
}

func TestScore_MissingListingsFile(t *testing.T) {
	workspace(t)
	_, err := execute(t, "score", "missing.csv", "summary.csv")
	require.Error(t, err)
	assert.Equal(t, 1, exitCode(err))
}

func TestPipelineOptions(t *testing.T) {
	c := &config.Config{
		Listings: config.ListingsConfig{Region: "BC", Localities: []string{"Vancouver"}},
		Scoring:  config.ScoringConfig{MedianIncome: 70000},
	}

	opts, err := pipelineOptions(c, nil, "", true)
	require.NoError(t, err)
	assert.True(t, opts.Filtered)
	assert.Equal(t, "BC", opts.Filter.Region)
	assert.Equal(t, feature.All, opts.Features)
	assert.Nil(t, opts.Weights, "no weights means uniform")
	assert.InDelta(t, 70000, opts.MedianIncome, 0.001)

	c.Scoring.Weights = map[string]float64{"price": 0.25, "beds": 0.75}
	opts, err = pipelineOptions(c, []string{"price", "beds"}, "", false)
	require.NoError(t, err)
	assert.False(t, opts.Filtered)
	assert.Equal(t, []float64{0.25, 0.75}, opts.Weights)

	c.Scoring.Weights = map[string]float64{"price": 1}
	_, err = pipelineOptions(c, []string{"beds"}, "", true)
	require.Error(t, err, "weights for unselected features")
}

func TestLoadWeights(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "good.yaml")
	require.NoError(t, os.WriteFile(good, []byte("price: 0.4\nbeds: 0.6\n"), 0o644))
	w, err := loadWeights(good)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"price": 0.4, "beds": 0.6}, w)

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	_, err = loadWeights(empty)
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("price: lots\n"), 0o644))
	_, err = loadWeights(bad)
	assert.Error(t, err)

	_, err = loadWeights(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
