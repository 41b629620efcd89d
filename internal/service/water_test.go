package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"muscat-water/internal/analysis"
	"muscat-water/internal/data"
	"muscat-water/internal/model"
	"muscat-water/internal/period"
)

func registry() []model.MeterRecord {
	return []model.MeterRecord{
		{Label: "Main", Level: model.LevelL1, Consumption: map[string]float64{"Jan-25": 1000, "Feb-25": 1100, "Mar-25": 1200, "Apr-25": 0}},
		{Label: "Zone 5 Bulk", Level: model.LevelL2, Zone: "Zone_05", ParentMeter: "Main", Consumption: map[string]float64{"Jan-25": 900, "Feb-25": 950, "Mar-25": 1000}},
		{Label: "Z5-1", Level: model.LevelL3, Zone: "Zone_05", ParentMeter: "Zone 5 Bulk", Consumption: map[string]float64{"Jan-25": 800, "Feb-25": 870, "Mar-25": 910}},
		{Label: "Z5-2", Level: model.LevelL3, Zone: "Zone_05", ParentMeter: "Zone 5 Bulk (old)", Consumption: map[string]float64{"Jan-25": 10}},
	}
}

type countingLoader struct {
	calls atomic.Int32
	err   error
}

func (l *countingLoader) Load(context.Context) ([]model.MeterRecord, error) {
	l.calls.Add(1)
	if l.err != nil {
		return nil, l.err
	}
	return registry(), nil
}

func newService(loader data.Loader) *WaterService {
	return New(loader, analysis.Options{},
		data.NewMemoryCache[[]model.MeterRecord](0),
		data.NewMemoryCache[*model.PeriodAggregate](0),
		5*time.Minute)
}

func TestAggregateCachesByCanonicalKey(t *testing.T) {
	loader := &countingLoader{}
	svc := newService(loader)
	ctx := context.Background()

	a, err := svc.Aggregate(ctx, "Mar-25")
	require.NoError(t, err)
	assert.Equal(t, "Mar-25", a.Period)
	assert.Equal(t, 200.0, a.Stage1Loss)
	assert.Equal(t, 90.0, a.Stage2Loss)

	b, err := svc.Aggregate(ctx, "mar_25")
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, int32(1), loader.calls.Load())

	_, err = svc.Aggregate(ctx, "Smarch-25")
	assert.ErrorIs(t, err, period.ErrInvalidPeriod)
}

func TestRefreshReloadsRegistryButKeepsAggregates(t *testing.T) {
	loader := &countingLoader{}
	svc := newService(loader)
	ctx := context.Background()

	first, err := svc.Aggregate(ctx, "Jan-25")
	require.NoError(t, err)

	n, err := svc.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, int32(2), loader.calls.Load())

	again, err := svc.Aggregate(ctx, "Jan-25")
	require.NoError(t, err)
	assert.Same(t, first, again)
}

func TestLoaderErrorsPropagate(t *testing.T) {
	boom := errors.New("upstream down")
	svc := newService(&countingLoader{err: boom})
	_, err := svc.Aggregate(context.Background(), "Jan-25")
	assert.ErrorIs(t, err, boom)
	_, err = svc.Periods(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestTrendsAreChronological(t *testing.T) {
	svc := New(&countingLoader{}, analysis.Options{}, nil, nil, 0)
	tr, err := svc.Trends(context.Background(), "Jan-25", "Mar-25")
	require.NoError(t, err)
	require.Len(t, tr.Periods, 3)
	for i, want := range []string{"Jan-25", "Feb-25", "Mar-25"} {
		assert.Equal(t, want, tr.Periods[i].Period)
	}
	assert.Equal(t, "Jan-25..Mar-25", tr.Cumulative.Period)
	assert.Equal(t, 3300.0, tr.Cumulative.L1Supply)

	sum := 0.0
	for _, p := range tr.Periods {
		sum += p.TotalLoss
	}
	assert.InDelta(t, sum, tr.Cumulative.TotalLoss, 1e-9)

	_, err = svc.Trends(context.Background(), "Mar-25", "Jan-25")
	assert.Error(t, err)
}

func TestPeriodsAndLatest(t *testing.T) {
	svc := newService(&countingLoader{})
	pl, err := svc.Periods(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Jan-25", "Feb-25", "Mar-25", "Apr-25"}, pl.Periods)
	assert.Equal(t, []string{"Jan-25", "Feb-25", "Mar-25"}, pl.WithReadings)
	assert.Equal(t, "Mar-25", pl.Latest)

	agg, err := svc.Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Mar-25", agg.Period)

	empty := New(data.StaticLoader{}, analysis.Options{}, nil, nil, 0)
	_, err = empty.Latest(context.Background())
	assert.ErrorIs(t, err, ErrNoReadings)
}

type recordingPublisher struct {
	got []string
}

func (p *recordingPublisher) Publish(_ context.Context, agg *model.PeriodAggregate) error {
	p.got = append(p.got, agg.Period)
	return nil
}

func TestSchedulerRunOnce(t *testing.T) {
	loader := &countingLoader{}
	svc := newService(loader)
	pub := &recordingPublisher{}

	s, err := NewScheduler(svc, "@every 1h", pub)
	require.NoError(t, err)
	require.NoError(t, s.RunOnce(context.Background()))
	assert.Equal(t, []string{"Mar-25"}, pub.got)
	assert.Equal(t, int32(1), loader.calls.Load())

	_, err = NewScheduler(svc, "whenever", nil)
	assert.Error(t, err)

	failing, err := NewScheduler(newService(&countingLoader{err: errors.New("down")}), "@hourly", nil)
	require.NoError(t, err)
	assert.Error(t, failing.RunOnce(context.Background()))
}
