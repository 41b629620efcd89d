package analysis

import (
	"muscat-water/internal/model"
	"muscat-water/internal/period"
)

// ComputeRange returns one aggregate per month from..to, oldest first.
func (e *Engine) ComputeRange(meters []model.MeterRecord, from, to string) ([]*model.PeriodAggregate, error) {
	keys, err := period.Range(from, to)
	if err != nil {
		return nil, err
	}
	out := make([]*model.PeriodAggregate, 0, len(keys))
	for _, k := range keys {
		out = append(out, e.Compute(meters, k))
	}
	return out, nil
}

// ComputeCumulative aggregates from..to as a single virtual period: each meter
// contributes the sum of its clamped monthly readings.
func (e *Engine) ComputeCumulative(meters []model.MeterRecord, from, to string) (*model.PeriodAggregate, error) {
	keys, err := period.Range(from, to)
	if err != nil {
		return nil, err
	}
	return e.compute(meters, CumulativeLabel(keys[0], keys[len(keys)-1]), periodReader(keys...)), nil
}

// CumulativeLabel names a range aggregate, e.g. "Jan-25..Mar-25".
func CumulativeLabel(from, to string) string {
	if from == to {
		return from
	}
	return from + ".." + to
}
