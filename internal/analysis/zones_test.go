package analysis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"muscat-water/internal/model"
)

func TestClassifyLoss(t *testing.T) {
	cases := []struct {
		pct  float64
		want LossStatus
	}{
		{25, StatusHigh},
		{20.01, StatusHigh},
		{20, StatusMedium},
		{10.5, StatusMedium},
		{10, StatusGood},
		{0, StatusGood},
		{-3, StatusGain},
		{math.NaN(), StatusUnknown},
		{math.Inf(1), StatusUnknown},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, ClassifyLoss(c.pct), "pct=%v", c.pct)
	}
}

func TestEfficiency(t *testing.T) {
	assert.Zero(t, Efficiency(0, 100))
	assert.InDelta(t, 80.0, Efficiency(800, 200), 1e-9)
	assert.InDelta(t, 100.0, Efficiency(500, 0), 1e-9)
}

func TestTopLosingZones(t *testing.T) {
	agg := &model.PeriodAggregate{ZoneData: map[string]model.ZoneMetrics{
		"Zone_05":     {Zone: "Zone_05", LossPercentage: 40},
		"Zone_08":     {Zone: "Zone_08", LossPercentage: 12},
		"Zone_03_(A)": {Zone: "Zone_03_(A)", LossPercentage: 12},
		"Zone_VS":     {Zone: "Zone_VS", LossPercentage: -8},
		"Zone_SC":     {Zone: "Zone_SC", LossPercentage: 3},
	}}

	top := TopLosingZones(agg, 3)
	require.Len(t, top, 3)
	assert.Equal(t, "Zone_05", top[0].Zone)
	assert.Equal(t, "Zone_03_(A)", top[1].Zone)
	assert.Equal(t, "Zone_08", top[2].Zone)

	all := TopLosingZones(agg, 0)
	assert.Len(t, all, 4)

	sorted := SortedZones(agg)
	require.Len(t, sorted, 5)
	assert.Equal(t, "Zone_VS", sorted[4].Zone)

	assert.Empty(t, TopLosingZones(nil, 5))
}

func TestComputeRangeAndCumulative(t *testing.T) {
	meters := []model.MeterRecord{
		{Label: "Main", Level: model.LevelL1, Consumption: map[string]float64{"Jan-25": 100, "Feb-25": 200, "Mar-25": -5}},
		{Label: "Bulk", Level: model.LevelL2, Zone: "Zone 8", ParentMeter: "Main", Consumption: map[string]float64{"Jan-25": 90, "Feb-25": 150, "Mar-25": 60}},
		{Label: "Villa", Level: model.LevelL3, Zone: "Zone 8", ParentMeter: "Bulk", Consumption: map[string]float64{"Jan-25": 80, "Feb-25": 140}},
	}
	e := New(Options{})

	aggs, err := e.ComputeRange(meters, "Jan-25", "Mar-25")
	require.NoError(t, err)
	require.Len(t, aggs, 3)
	assert.Equal(t, "Jan-25", aggs[0].Period)
	assert.Equal(t, "Mar-25", aggs[2].Period)
	assert.Equal(t, 50.0, aggs[1].Stage1Loss)
	assert.Equal(t, 0.0, aggs[2].L1Supply)

	cum, err := e.ComputeCumulative(meters, "Jan-25", "Mar-25")
	require.NoError(t, err)
	assert.Equal(t, "Jan-25..Mar-25", cum.Period)
	assert.Equal(t, 300.0, cum.L1Supply)
	assert.Equal(t, 300.0, cum.L2Volume)
	assert.Equal(t, 220.0, cum.L3Volume)
	assert.Equal(t, 1, cum.Diagnostics.NegativeReadings)

	sum := 0.0
	for _, a := range aggs {
		sum += a.TotalLoss
	}
	assert.InDelta(t, sum, cum.TotalLoss, 1e-9)

	_, err = e.ComputeRange(meters, "Mar-25", "Jan-25")
	assert.Error(t, err)
	_, err = e.ComputeCumulative(meters, "nonsense", "Jan-25")
	assert.Error(t, err)
}

func TestCumulativeLabel(t *testing.T) {
	assert.Equal(t, "Feb-25", CumulativeLabel("Feb-25", "Feb-25"))
	assert.Equal(t, "Jan-25..Feb-25", CumulativeLabel("Jan-25", "Feb-25"))
}
