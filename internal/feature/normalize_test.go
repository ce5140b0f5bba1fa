package feature

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/homescore/internal/model"
)

func f(v float64) *float64 { return model.Float(v) }

func row(price float64, transit *float64) model.ScoredListing {
	return model.ScoredListing{
		Listing: model.Listing{
			Price: f(price), Beds: f(2), Baths: f(1), Sqft: f(900),
			Garage: "No", PropertyType: "Condo",
		},
		Amenities: model.AmenitySummary{
			ConvenienceKM: f(0.5),
			TransitKM:     transit,
			SchoolKM:      f(1.0),
		},
		PriceToIncome: f(price / 65000),
	}
}

func TestImpute(t *testing.T) {
	out := Impute([]*float64{f(1), nil, f(4), nil})
	require.Len(t, out, 4)
	assert.Equal(t, 1.0, *out[0])
	assert.InDelta(t, 4.4, *out[1], 1e-12)
	assert.Equal(t, 4.0, *out[2])
	assert.InDelta(t, 4.4, *out[3], 1e-12)
}

func TestImpute_AllMissingBecomesZero(t *testing.T) {
	out := Impute([]*float64{nil, nil})
	assert.Equal(t, 0.0, *out[0])
	assert.Equal(t, 0.0, *out[1])
}

func TestImpute_NoMissingUnchanged(t *testing.T) {
	in := []*float64{f(3), f(2)}
	out := Impute(in)
	assert.Equal(t, 3.0, *out[0])
	assert.Equal(t, 2.0, *out[1])
}

func TestScale(t *testing.T) {
	out := Scale([]*float64{f(10), f(20), nil, f(15)})
	assert.Equal(t, 0.0, *out[0])
	assert.Equal(t, 1.0, *out[1])
	assert.Nil(t, out[2])
	assert.InDelta(t, 0.5, *out[3], 1e-12)
}

func TestScale_ZeroVarianceIsZero(t *testing.T) {
	out := Scale([]*float64{f(7), f(7), f(7)})
	for _, v := range out {
		require.NotNil(t, v)
		assert.Equal(t, 0.0, *v)
	}
}

func TestNormalize_ImputationThenInversion(t *testing.T) {
	rows := []model.ScoredListing{
		row(500_000, f(1.0)),
		row(600_000, f(2.0)),
		row(700_000, nil),
	}

	out, err := Normalize(rows, []string{TransitDist})
	require.NoError(t, err)
	require.Len(t, out, 3)

	// Missing transit is imputed to 2.2 (2.0 x 1.1) and then inverted:
	// [-1, -2, -2.2] scales to [1, 1/6, 0].
	assert.InDelta(t, 1.0, out[0].Features[TransitDist], 1e-12)
	assert.InDelta(t, 0.2/1.2, out[1].Features[TransitDist], 1e-12)
	assert.InDelta(t, 0.0, out[2].Features[TransitDist], 1e-12)
}

func TestNormalize_LowerIsBetter(t *testing.T) {
	rows := []model.ScoredListing{row(400_000, f(1)), row(800_000, f(1))}
	out, err := Normalize(rows, []string{Price, PriceToIncome, Beds})
	require.NoError(t, err)

	assert.Equal(t, 1.0, out[0].Features[Price], "cheaper listing scores higher")
	assert.Equal(t, 0.0, out[1].Features[Price])
	assert.Equal(t, 1.0, out[0].Features[PriceToIncome])
	assert.Equal(t, 0.0, out[0].Features[Beds], "identical beds have zero variance")
}

func TestNormalize_AllMissingDistanceColumn(t *testing.T) {
	rows := []model.ScoredListing{row(1, nil), row(2, nil)}
	out, err := Normalize(rows, []string{TransitDist})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, 0.0, out[0].Features[TransitDist])
	assert.Equal(t, 0.0, out[1].Features[TransitDist])
}

func TestNormalize_PropertyTypeAndGarage(t *testing.T) {
	types := []string{"Condo", "Townhome", "single family", " MultiFamily "}
	rows := make([]model.ScoredListing, len(types))
	for i, pt := range types {
		rows[i] = row(1, f(1))
		rows[i].Listing.PropertyType = pt
	}
	rows[0].Listing.Garage = "Yes"
	rows[1].Listing.Garage = " yes "

	out, err := Normalize(rows, []string{PropertyType, Garage})
	require.NoError(t, err)
	require.Len(t, out, 4)

	// Ranks 0.25, 0.5, 0.75, 1 scale to 0, 1/3, 2/3, 1.
	assert.InDelta(t, 0.0, out[0].Features[PropertyType], 1e-12)
	assert.InDelta(t, 1.0/3, out[1].Features[PropertyType], 1e-12)
	assert.InDelta(t, 2.0/3, out[2].Features[PropertyType], 1e-12)
	assert.InDelta(t, 1.0, out[3].Features[PropertyType], 1e-12)

	assert.Equal(t, 1.0, out[0].Features[Garage])
	assert.Equal(t, 1.0, out[1].Features[Garage])
	assert.Equal(t, 0.0, out[2].Features[Garage])
}

func TestNormalize_DropsRowsWithMissingFeatures(t *testing.T) {
	rows := []model.ScoredListing{row(1, f(1)), row(2, f(1)), row(3, f(1))}
	rows[1].Listing.Beds = nil
	rows[2].Listing.PropertyType = "Houseboat"

	out, err := Normalize(rows, nil)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 1.0, *out[0].Listing.Price)
	assert.Len(t, out[0].Features, len(All))
}

func TestNormalize_MissingDistanceNeverDropsRow(t *testing.T) {
	rows := []model.ScoredListing{row(1, nil)}
	rows[0].Amenities = model.AmenitySummary{Status: model.SummaryFetchFailed}
	out, err := Normalize(rows, nil)
	require.NoError(t, err)
	require.Len(t, out, 1, "fetch failures are penalized through imputation, not excluded")
}

func TestNormalize_AllValuesInUnitRange(t *testing.T) {
	rows := []model.ScoredListing{
		row(350_000, f(0.3)), row(1_250_000, nil), row(780_000, f(2.7)), row(99_000, f(0.01)),
	}
	rows[2].Listing.Beds = f(5)
	rows[3].Amenities.SchoolKM = nil

	out, err := Normalize(rows, All)
	require.NoError(t, err)
	for _, r := range out {
		for name, v := range r.Features {
			assert.GreaterOrEqual(t, v, 0.0, name)
			assert.LessOrEqual(t, v, 1.0, name)
		}
	}
}

func TestNormalize_DoesNotMutateInput(t *testing.T) {
	rows := []model.ScoredListing{row(1, nil), row(2, f(3))}
	_, err := Normalize(rows, All)
	require.NoError(t, err)
	assert.Nil(t, rows[0].Amenities.TransitKM)
	assert.Nil(t, rows[0].Features)
}

func TestNormalize_UnknownFeature(t *testing.T) {
	_, err := Normalize([]model.ScoredListing{row(1, nil)}, []string{Price, "walk_score"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown feature "walk_score"`)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(All))
	assert.Error(t, Validate([]string{}))
	err := Validate([]string{Price, Price})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestPropertyTypeRank(t *testing.T) {
	v, ok := PropertyTypeRank("SINGLE FAMILY")
	assert.True(t, ok)
	assert.Equal(t, 0.75, v)

	_, ok = PropertyTypeRank("Land")
	assert.False(t, ok)
}
