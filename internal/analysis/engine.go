package analysis

import (
	"math"
	"sort"
	"strings"

	"muscat-water/internal/hierarchy"
	"muscat-water/internal/model"
)

// Engine computes period aggregates over a meter list. It holds only
// configuration, so one Engine can serve concurrent calls.
type Engine struct {
	opts     Options
	excluded map[string]bool
}

func New(opts Options) *Engine {
	opts = opts.withDefaults()
	ex := make(map[string]bool, len(opts.ExcludedAccounts))
	for _, a := range opts.ExcludedAccounts {
		if a = strings.TrimSpace(a); a != "" {
			ex[a] = true
		}
	}
	return &Engine{opts: opts, excluded: ex}
}

// Options returns the effective options.
func (e *Engine) Options() Options { return e.opts }

// ComputePeriodAggregate runs a default Engine for one period.
func ComputePeriodAggregate(meters []model.MeterRecord, period string) *model.PeriodAggregate {
	return New(Options{}).Compute(meters, period)
}

// Compute builds the loss analysis for one period key. It never fails: missing
// readings count as 0, negative or non-finite readings are clamped to 0, and
// an empty list gives an all-zero aggregate.
func (e *Engine) Compute(meters []model.MeterRecord, period string) *model.PeriodAggregate {
	return e.compute(meters, period, periodReader(period))
}

// reader yields the clamped value a meter contributes and records any
// clamping in diag.
type reader func(m model.MeterRecord, diag *model.Diagnostics) float64

func periodReader(keys ...string) reader {
	return func(m model.MeterRecord, diag *model.Diagnostics) float64 {
		sum := 0.0
		for _, k := range keys {
			v, ok := m.Reading(k)
			if !ok {
				continue
			}
			switch {
			case math.IsNaN(v) || math.IsInf(v, 0):
				diag.NonFiniteReadings++
			case v < 0:
				diag.NegativeReadings++
			}
			sum += model.ClampReading(v)
		}
		return sum
	}
}

func (e *Engine) compute(all []model.MeterRecord, label string, read reader) *model.PeriodAggregate {
	agg := &model.PeriodAggregate{
		Period:            label,
		ZoneData:          map[string]model.ZoneMetrics{},
		TypeData:          map[string]float64{},
		ConsumptionByType: []model.TypeConsumption{},
	}
	diag := &agg.Diagnostics
	diag.LevelCounts = map[model.Level]int{}

	meters := make([]model.MeterRecord, 0, len(all))
	for _, m := range all {
		if e.excluded[strings.TrimSpace(m.AccountNumber)] {
			diag.ExcludedMeters++
			continue
		}
		meters = append(meters, m)
	}
	diag.MeterCount = len(meters)

	res := hierarchy.NewResolver(meters)
	n := len(meters)
	values := make([]float64, n)
	levels := make([]model.Level, n)
	zones := make([]string, n)
	unknownZones := map[string]bool{}
	for i, m := range meters {
		values[i] = read(m, diag)
		levels[i] = hierarchy.LevelOf(m)
		diag.LevelCounts[levels[i]]++
		z, known := e.opts.Zones.Lookup(m.Zone)
		zones[i] = z
		if !known && strings.TrimSpace(m.Zone) != "" {
			unknownZones[z] = true
		}
	}

	// Stage 1: main source against zone bulk plus direct connections.
	for i := range meters {
		switch levels[i] {
		case model.LevelL1:
			agg.L1Supply += values[i]
		case model.LevelL2:
			agg.L2Volume += values[i]
		case model.LevelDC:
			agg.DCVolume += values[i]
			if len(res.ChildrenOf(i)) > 0 {
				diag.DCWithChildren = append(diag.DCWithChildren, strings.TrimSpace(meters[i].Label))
			}
		}
	}

	// Stage 2: only L3 meters on a zone-bulk supply path count, so nothing is
	// compared against a bulk meter it is not downstream of.
	stage2Base := agg.L2Volume
	passThrough := e.opts.DCChildPolicy == DCChildrenPassThrough
	dcCounted := map[int]bool{}
	for i := range meters {
		if levels[i] != model.LevelL3 {
			continue
		}
		p := res.ParentOf(i)
		switch {
		case p < 0:
			diag.OrphanL3++
		case levels[p] == model.LevelL2:
			agg.L3Volume += values[i]
		case levels[p] == model.LevelDC:
			diag.L3UnderDC++
			if passThrough {
				agg.L3Volume += values[i]
				if !dcCounted[p] {
					dcCounted[p] = true
					stage2Base += values[p]
				}
			}
		}
	}

	agg.Stage1Loss = agg.L1Supply - (agg.L2Volume + agg.DCVolume)
	agg.Stage2Loss = stage2Base - agg.L3Volume
	agg.TotalLoss = agg.Stage1Loss + agg.Stage2Loss
	agg.Stage1LossPercent = percent(agg.Stage1Loss, agg.L1Supply)
	agg.Stage2LossPercent = percent(agg.Stage2Loss, stage2Base)
	agg.TotalLossPercent = percent(agg.TotalLoss, agg.L1Supply)
	agg.Efficiency = Efficiency(agg.L1Supply-agg.TotalLoss, agg.TotalLoss)
	agg.Flags = model.LossFlags{
		Stage1Gain: agg.Stage1Loss < 0,
		Stage2Gain: agg.Stage2Loss < 0,
		TotalGain:  agg.TotalLoss < 0,
	}

	e.zoneBreakdown(agg, meters, res, levels, zones, values)
	e.typeBreakdown(agg, meters, values)

	for _, i := range res.Unresolved() {
		m := meters[i]
		diag.UnresolvedLinks = append(diag.UnresolvedLinks, model.UnresolvedLink{
			Label:         m.Label,
			AccountNumber: m.AccountNumber,
			Level:         levels[i],
			ParentMeter:   m.ParentMeter,
		})
	}
	diag.UnresolvedCount = len(diag.UnresolvedLinks)
	diag.AmbiguousLabels = res.AmbiguousLabels()
	for z := range unknownZones {
		diag.UnknownZones = append(diag.UnknownZones, z)
	}
	sort.Strings(diag.UnknownZones)
	sort.Strings(diag.DCWithChildren)
	return agg
}

// zoneBreakdown balances each zone's bulk meters against its L3 meters. An L3
// meter fed by a zone bulk meter belongs to that bulk meter's zone; any other
// L3 meter (orphaned, under a DC or a building meter) counts in its own zone.
func (e *Engine) zoneBreakdown(agg *model.PeriodAggregate, meters []model.MeterRecord, res *hierarchy.Resolver, levels []model.Level, zones []string, values []float64) {
	acc := map[string]*model.ZoneMetrics{}
	get := func(z string) *model.ZoneMetrics {
		zm, ok := acc[z]
		if !ok {
			zm = &model.ZoneMetrics{Zone: z}
			acc[z] = zm
		}
		return zm
	}
	for i := range meters {
		switch levels[i] {
		case model.LevelL2:
			zm := get(zones[i])
			zm.BulkSupply += values[i]
			zm.BulkMeters++
		case model.LevelL3:
			z := zones[i]
			if p := res.ParentOf(i); p >= 0 && levels[p] == model.LevelL2 {
				if zones[p] != z {
					agg.Diagnostics.ZoneMismatches++
				}
				z = zones[p]
			}
			zm := get(z)
			zm.IndividualSum += values[i]
			zm.IndividualMeters++
		}
	}
	for z, zm := range acc {
		zm.Loss = zm.BulkSupply - zm.IndividualSum
		zm.LossPercentage = percent(zm.Loss, zm.BulkSupply)
		agg.ZoneData[z] = *zm
	}
}

// typeBreakdown sums every meter, at any level, by canonical type.
func (e *Engine) typeBreakdown(agg *model.PeriodAggregate, meters []model.MeterRecord, values []float64) {
	total := 0.0
	for i, m := range meters {
		t := e.opts.Types.Normalize(m.Type)
		agg.TypeData[t] += values[i]
		total += values[i]
	}
	for t, v := range agg.TypeData {
		agg.ConsumptionByType = append(agg.ConsumptionByType, model.TypeConsumption{
			Type:        t,
			Consumption: v,
			Percentage:  percent(v, total),
		})
	}
	sort.Slice(agg.ConsumptionByType, func(i, j int) bool {
		a, b := agg.ConsumptionByType[i], agg.ConsumptionByType[j]
		if a.Consumption != b.Consumption {
			return a.Consumption > b.Consumption
		}
		return a.Type < b.Type
	})
}

// percent is part/base*100, or 0 when base is 0 or the result is not finite.
func percent(part, base float64) float64 {
	if base == 0 {
		return 0
	}
	p := part / base * 100
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return 0
	}
	return p
}
