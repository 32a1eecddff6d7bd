package tax

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func localInput(city, state string, resident bool, gross float64) LocalInput {
	return LocalInput{
		City:       city,
		State:      state,
		IsResident: resident,
		Wages:      biweekly(gross),
	}
}

func TestPhiladelphiaWageTax(t *testing.T) {
	engine := testEngine(t)

	t.Run("resident", func(t *testing.T) {
		result, err := engine.Local(localInput("Philadelphia", "PA", true, 5000))
		require.NoError(t, err)
		assert.Equal(t, "187.50", result.CityTax.StringFixed(2))
	})

	t.Run("non-resident working in city", func(t *testing.T) {
		in := localInput("Philadelphia", "PA", false, 5000)
		in.WorkCity = "Philadelphia"
		in.WorkState = "PA"
		result, err := engine.Local(in)
		require.NoError(t, err)
		assert.Equal(t, "172.00", result.CityTax.StringFixed(2))
	})

	t.Run("non-resident working elsewhere", func(t *testing.T) {
		in := localInput("Philadelphia", "PA", false, 5000)
		in.WorkCity = "King of Prussia"
		result, err := engine.Local(in)
		require.NoError(t, err)
		assert.True(t, result.CityTax.IsZero())
		assert.True(t, result.Total.IsZero())
	})

	t.Run("unset work city defaults to works in city", func(t *testing.T) {
		result, err := engine.Local(localInput("Philadelphia", "PA", false, 5000))
		require.NoError(t, err)
		assert.Equal(t, "172.00", result.CityTax.StringFixed(2))
	})
}

func TestResidentOnlyCityTax(t *testing.T) {
	engine := testEngine(t)

	resident, err := engine.Local(localInput("New York City", "NY", true, 5000))
	require.NoError(t, err)
	assert.Equal(t, "153.90", resident.CityTax.StringFixed(2))

	commuter := localInput("New York City", "NY", false, 5000)
	commuter.WorkCity = "New York City"
	result, err := engine.Local(commuter)
	require.NoError(t, err)
	assert.True(t, result.CityTax.IsZero())
}

func TestMarylandCountyTax(t *testing.T) {
	engine := testEngine(t)

	t.Run("county rate", func(t *testing.T) {
		in := localInput("Rockville", "MD", true, 5000)
		in.County = "Montgomery"
		result, err := engine.Local(in)
		require.NoError(t, err)
		assert.Equal(t, "160.00", result.CountyTax.StringFixed(2))
	})

	t.Run("city name fallback", func(t *testing.T) {
		result, err := engine.Local(localInput("Baltimore", "MD", true, 5000))
		require.NoError(t, err)
		assert.Equal(t, "160.00", result.CountyTax.StringFixed(2))
	})

	t.Run("default rate", func(t *testing.T) {
		result, err := engine.Local(localInput("Smallville", "MD", true, 5000))
		require.NoError(t, err)
		assert.Equal(t, "160.00", result.CountyTax.StringFixed(2))
	})

	t.Run("residency based, not work based", func(t *testing.T) {
		in := localInput("Rockville", "MD", false, 5000)
		in.County = "Montgomery"
		in.WorkCity = "Rockville"
		result, err := engine.Local(in)
		require.NoError(t, err)
		assert.True(t, result.CountyTax.IsZero())
	})
}

func TestPittsburghSchoolDistrictAndServiceTax(t *testing.T) {
	engine := testEngine(t)

	result, err := engine.Local(localInput("Pittsburgh", "PA", true, 5000))
	require.NoError(t, err)
	assert.Equal(t, "50.00", result.CityTax.StringFixed(2))
	assert.Equal(t, "100.00", result.SchoolDistrictTax.StringFixed(2))
	// 52/year prorated over 26 periods.
	assert.Equal(t, "2.00", result.OtherLocalTax.StringFixed(2))
	assert.Equal(t, "152.00", result.Total.StringFixed(2))
}

func TestServiceTaxEarningsFloor(t *testing.T) {
	engine := testEngine(t)

	// Projected annual earnings of 10400 stay below the 12000 floor.
	result, err := engine.Local(localInput("Pittsburgh", "PA", true, 400))
	require.NoError(t, err)
	assert.True(t, result.OtherLocalTax.IsZero())
}

func TestUnknownLocalityIsZeroNotError(t *testing.T) {
	engine := testEngine(t)

	result, err := engine.Local(localInput("Springfield", "IL", true, 5000))
	require.NoError(t, err)
	assert.Equal(t, "None", result.TaxType)
	assert.True(t, result.Total.IsZero())
}

func TestLocalLookupNormalizesStrings(t *testing.T) {
	engine := testEngine(t)

	result, err := engine.Local(localInput("  philadelphia ", "pa", true, 5000))
	require.NoError(t, err)
	assert.Equal(t, "187.50", result.CityTax.StringFixed(2))
}
