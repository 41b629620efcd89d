package analysis

import (
	"math"
	"sort"

	"muscat-water/internal/model"
)

// LossStatus buckets a loss percentage for dashboards.
type LossStatus string

const (
	StatusHigh    LossStatus = "High Loss"
	StatusMedium  LossStatus = "Medium Loss"
	StatusGood    LossStatus = "Good"
	StatusGain    LossStatus = "Gain"
	StatusUnknown LossStatus = "Unknown"
)

// ClassifyLoss: above 20% is high, above 10% medium, non-negative good, and
// negative a gain.
func ClassifyLoss(pct float64) LossStatus {
	switch {
	case math.IsNaN(pct) || math.IsInf(pct, 0):
		return StatusUnknown
	case pct > 20:
		return StatusHigh
	case pct > 10:
		return StatusMedium
	case pct >= 0:
		return StatusGood
	default:
		return StatusGain
	}
}

// Efficiency is delivered/(delivered+loss) in percent, 0 when nothing was
// delivered.
func Efficiency(delivered, loss float64) float64 {
	if delivered == 0 {
		return 0
	}
	return percent(delivered, delivered+loss)
}

// SortedZones lists zones by loss percentage descending, ties by name.
func SortedZones(agg *model.PeriodAggregate) []model.ZoneMetrics {
	if agg == nil {
		return nil
	}
	out := make([]model.ZoneMetrics, 0, len(agg.ZoneData))
	for _, zm := range agg.ZoneData {
		out = append(out, zm)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LossPercentage != out[j].LossPercentage {
			return out[i].LossPercentage > out[j].LossPercentage
		}
		return out[i].Zone < out[j].Zone
	})
	return out
}

// TopLosingZones returns up to n zones with a finite, non-negative loss
// percentage, worst first. n <= 0 means 5.
func TopLosingZones(agg *model.PeriodAggregate, n int) []model.ZoneMetrics {
	if n <= 0 {
		n = 5
	}
	var out []model.ZoneMetrics
	for _, zm := range SortedZones(agg) {
		if zm.LossPercentage < 0 || math.IsNaN(zm.LossPercentage) || math.IsInf(zm.LossPercentage, 0) {
			continue
		}
		out = append(out, zm)
		if len(out) == n {
			break
		}
	}
	return out
}
