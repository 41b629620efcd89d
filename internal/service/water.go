package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"muscat-water/internal/analysis"
	"muscat-water/internal/data"
	"muscat-water/internal/model"
	"muscat-water/internal/period"
)

const metersKey = "meters"

// ErrNoReadings is returned when the registry has no positive reading in any
// month.
var ErrNoReadings = errors.New("registry has no readings")

// maxTrendWorkers caps concurrent per-period computations in Trends.
const maxTrendWorkers = 8

// PeriodList is the set of periods a registry covers.
type PeriodList struct {
	// Periods holds every month column present, oldest first.
	Periods []string `json:"periods"`
	// WithReadings holds months where at least one meter read above zero.
	WithReadings []string `json:"with_readings"`
	Latest       string   `json:"latest"`
}

// Trend is a per-period series plus the aggregate over the whole range.
type Trend struct {
	From       string                   `json:"from"`
	To         string                   `json:"to"`
	Periods    []*model.PeriodAggregate `json:"periods"`
	Cumulative *model.PeriodAggregate   `json:"cumulative"`
}

// WaterService loads the meter registry through a Loader and serves loss
// analyses. Both the registry and computed aggregates are cached with a fixed
// TTL; a refresh replaces the registry but leaves cached aggregates to expire
// on their own.
type WaterService struct {
	loader data.Loader
	engine *analysis.Engine
	meters data.Cache[[]model.MeterRecord]
	aggs   data.Cache[*model.PeriodAggregate]
	ttl    time.Duration

	loadMu sync.Mutex
}

// New creates a service. Nil caches are replaced with no-op caches.
func New(loader data.Loader, opts analysis.Options, meters data.Cache[[]model.MeterRecord], aggs data.Cache[*model.PeriodAggregate], ttl time.Duration) *WaterService {
	if meters == nil {
		meters = data.NoopCache[[]model.MeterRecord]{}
	}
	if aggs == nil {
		aggs = data.NoopCache[*model.PeriodAggregate]{}
	}
	return &WaterService{
		loader: loader,
		engine: analysis.New(opts),
		meters: meters,
		aggs:   aggs,
		ttl:    ttl,
	}
}

// Meters returns the registry, loading it when the cache is cold.
func (s *WaterService) Meters(ctx context.Context) ([]model.MeterRecord, error) {
	if m, ok := s.meters.Get(metersKey); ok {
		return m, nil
	}
	s.loadMu.Lock()
	defer s.loadMu.Unlock()
	if m, ok := s.meters.Get(metersKey); ok {
		return m, nil
	}
	return s.load(ctx)
}

// Refresh reloads the registry regardless of the cache.
func (s *WaterService) Refresh(ctx context.Context) (int, error) {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()
	m, err := s.load(ctx)
	if err != nil {
		return 0, err
	}
	return len(m), nil
}

func (s *WaterService) load(ctx context.Context) ([]model.MeterRecord, error) {
	start := time.Now()
	m, err := s.loader.Load(ctx)
	if err != nil {
		log.Printf("[WaterService] Registry load failed: %v (duration: %v)", err, time.Since(start))
		return nil, fmt.Errorf("failed to load meter registry: %w", err)
	}
	s.meters.Set(metersKey, m, s.ttl)
	log.Printf("[WaterService] Loaded %d meters (duration: %v)", len(m), time.Since(start))
	return m, nil
}

// Aggregate returns the analysis for one period. The key may be in any
// accepted spelling; it is canonicalized before the cache lookup.
func (s *WaterService) Aggregate(ctx context.Context, periodKey string) (*model.PeriodAggregate, error) {
	key, err := period.Normalize(periodKey)
	if err != nil {
		return nil, err
	}
	if agg, ok := s.aggs.Get(key); ok {
		return agg, nil
	}
	meters, err := s.Meters(ctx)
	if err != nil {
		return nil, err
	}
	return s.compute(meters, key), nil
}

// compute runs the engine for a canonical key and caches the result.
func (s *WaterService) compute(meters []model.MeterRecord, key string) *model.PeriodAggregate {
	if agg, ok := s.aggs.Get(key); ok {
		return agg
	}
	agg := s.engine.Compute(meters, key)
	logDiagnostics(agg)
	s.aggs.Set(key, agg, s.ttl)
	return agg
}

// Latest returns the aggregate of the most recent month with readings.
func (s *WaterService) Latest(ctx context.Context) (*model.PeriodAggregate, error) {
	pl, err := s.Periods(ctx)
	if err != nil {
		return nil, err
	}
	if pl.Latest == "" {
		return nil, ErrNoReadings
	}
	return s.Aggregate(ctx, pl.Latest)
}

// Trends computes every month from..to concurrently plus the cumulative
// aggregate over the range.
func (s *WaterService) Trends(ctx context.Context, from, to string) (*Trend, error) {
	keys, err := period.Range(from, to)
	if err != nil {
		return nil, err
	}
	meters, err := s.Meters(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*model.PeriodAggregate, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxTrendWorkers)
	for i, k := range keys {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = s.compute(meters, k)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	cum, err := s.Cumulative(ctx, keys[0], keys[len(keys)-1])
	if err != nil {
		return nil, err
	}
	return &Trend{From: keys[0], To: keys[len(keys)-1], Periods: out, Cumulative: cum}, nil
}

// Cumulative aggregates the summed readings of from..to as one period.
func (s *WaterService) Cumulative(ctx context.Context, from, to string) (*model.PeriodAggregate, error) {
	keys, err := period.Range(from, to)
	if err != nil {
		return nil, err
	}
	label := analysis.CumulativeLabel(keys[0], keys[len(keys)-1])
	if agg, ok := s.aggs.Get(label); ok {
		return agg, nil
	}
	meters, err := s.Meters(ctx)
	if err != nil {
		return nil, err
	}
	agg, err := s.engine.ComputeCumulative(meters, keys[0], keys[len(keys)-1])
	if err != nil {
		return nil, err
	}
	s.aggs.Set(label, agg, s.ttl)
	return agg, nil
}

// Periods lists the months the registry covers.
func (s *WaterService) Periods(ctx context.Context) (*PeriodList, error) {
	meters, err := s.Meters(ctx)
	if err != nil {
		return nil, err
	}
	with := period.PeriodsWithReadings(meters)
	return &PeriodList{
		Periods:      period.AvailablePeriods(meters),
		WithReadings: with,
		Latest:       period.Latest(with),
	}, nil
}

// logDiagnostics reports data-quality findings for a freshly computed
// aggregate.
func logDiagnostics(agg *model.PeriodAggregate) {
	d := agg.Diagnostics
	if d.UnresolvedCount > 0 {
		labels := make([]string, 0, len(d.UnresolvedLinks))
		for _, u := range d.UnresolvedLinks {
			labels = append(labels, fmt.Sprintf("%s->%q", u.Label, u.ParentMeter))
		}
		log.Printf("[WaterService] %s: %d meters with unresolved parent: %s",
			agg.Period, d.UnresolvedCount, truncateList(labels, 10))
	}
	if len(d.UnknownZones) > 0 {
		log.Printf("[WaterService] %s: unknown zones: %s", agg.Period, truncateList(d.UnknownZones, 10))
	}
	if len(d.DCWithChildren) > 0 {
		log.Printf("[WaterService] %s: direct connections with child meters (%d L3 affected): %s",
			agg.Period, d.L3UnderDC, truncateList(d.DCWithChildren, 10))
	}
	if len(d.AmbiguousLabels) > 0 {
		log.Printf("[WaterService] %s: duplicate meter labels: %s", agg.Period, truncateList(d.AmbiguousLabels, 10))
	}
	if d.NegativeReadings > 0 || d.NonFiniteReadings > 0 {
		log.Printf("[WaterService] %s: clamped %d negative and %d non-finite readings",
			agg.Period, d.NegativeReadings, d.NonFiniteReadings)
	}
}

func truncateList(items []string, n int) string {
	if len(items) <= n {
		return strings.Join(items, ", ")
	}
	return fmt.Sprintf("%s (+%d more)", strings.Join(items[:n], ", "), len(items)-n)
}
