package period

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"muscat-water/internal/model"
)

func TestToPeriodKey(t *testing.T) {
	tests := []struct {
		year  int
		month string
		want  string
	}{
		{2025, "March", "Mar-25"},
		{25, "Mar", "Mar-25"},
		{2024, "december", "Dec-24"},
		{24, "SEP", "Sep-24"},
		{2025, "Sept", "Sep-25"},
		{2025, "1", "Jan-25"},
		{5, "Jun", "Jun-05"},
	}
	for _, tt := range tests {
		got, err := ToPeriodKey(tt.year, tt.month)
		require.NoError(t, err, "%d %s", tt.year, tt.month)
		assert.Equal(t, tt.want, got)
	}
}

func TestToPeriodKeyRejectsGarbage(t *testing.T) {
	for _, tc := range []struct {
		year  int
		month string
	}{
		{2025, ""},
		{2025, "Ma"},
		{2025, "13"},
		{2025, "Smarch"},
		{150, "Jan"},
	} {
		_, err := ToPeriodKey(tc.year, tc.month)
		assert.True(t, errors.Is(err, ErrInvalidPeriod), "%d %q", tc.year, tc.month)
	}
}

func TestKeyFromStrings(t *testing.T) {
	got, err := KeyFromStrings("2025", "February")
	require.NoError(t, err)
	assert.Equal(t, "Feb-25", got)

	_, err = KeyFromStrings("twenty", "Feb")
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestParseAcceptsSourceSpellings(t *testing.T) {
	for _, in := range []string{"Mar-25", "mar_25", "Mar 2025", "March-25", "2025-03", " MAR-25 "} {
		p, err := Parse(in)
		require.NoError(t, err, in)
		assert.Equal(t, Period{Year: 2025, Month: time.March}, p, in)
	}
	p, _ := Parse("Mar-25")
	assert.Equal(t, "mar_25", p.Column())
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), p.Start())
}

func TestIsPeriodKey(t *testing.T) {
	for _, s := range []string{"Jan-24", "jan_24", "Dec 2024"} {
		assert.True(t, IsPeriodKey(s), s)
	}
	for _, s := range []string{"Meter Label", "Acct #", "Zone", "Zone 05", "Total", "2024", "2025-03", ""} {
		assert.False(t, IsPeriodKey(s), s)
	}
}

func TestAvailablePeriodsChronological(t *testing.T) {
	meters := []model.MeterRecord{
		{Label: "a", Consumption: map[string]float64{"Mar-25": 1, "Feb-25": 2, "Dec-24": 0}},
		{Label: "b", Consumption: map[string]float64{"Jan-25": 3, "Nov-24": 4}},
		{Label: "c", Consumption: map[string]float64{"Oct-24": -1}},
	}
	got := AvailablePeriods(meters)
	assert.Equal(t, []string{"Oct-24", "Nov-24", "Dec-24", "Jan-25", "Feb-25", "Mar-25"}, got)
}

func TestPeriodsWithReadingsSkipsEmptyMonths(t *testing.T) {
	meters := []model.MeterRecord{
		{Label: "a", Consumption: map[string]float64{"Mar-25": 0, "Feb-25": 2, "Dec-24": -5}},
	}
	assert.Equal(t, []string{"Feb-25"}, PeriodsWithReadings(meters))
}

func TestSortPutsUnparsableLast(t *testing.T) {
	keys := []string{"total", "Feb-25", "Jan-25", "Dec-24", "all"}
	Sort(keys)
	assert.Equal(t, []string{"Dec-24", "Jan-25", "Feb-25", "all", "total"}, keys)
}

func TestRange(t *testing.T) {
	got, err := Range("Nov-24", "Feb-25")
	require.NoError(t, err)
	assert.Equal(t, []string{"Nov-24", "Dec-24", "Jan-25", "Feb-25"}, got)

	got, err = Range("Mar-25", "Mar-25")
	require.NoError(t, err)
	assert.Equal(t, []string{"Mar-25"}, got)

	_, err = Range("Mar-25", "Jan-25")
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestLatest(t *testing.T) {
	assert.Equal(t, "Jan-25", Latest([]string{"Jan-25", "Dec-24", "Mar-24"}))
	assert.Equal(t, "", Latest(nil))
}
