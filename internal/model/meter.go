package model

import (
	"math"
	"strings"
)

// Level is the hierarchy tier of a water meter.
type Level string

const (
	LevelL1 Level = "L1" // main bulk source
	LevelL2 Level = "L2" // zone bulk
	LevelL3 Level = "L3" // individual / building bulk
	LevelL4 Level = "L4" // sub-meter (apartment)
	LevelDC Level = "DC" // direct connection off L1
	LevelNA Level = "N/A"
)

// Levels lists every tier in hierarchy order.
var Levels = []Level{LevelL1, LevelL2, LevelL3, LevelL4, LevelDC, LevelNA}

// ParseLevel maps the free-text level column onto a Level.
// Anything unrecognized is N/A.
func ParseLevel(raw string) Level {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.TrimPrefix(s, "LEVEL")
	s = strings.TrimSpace(s)
	switch s {
	case "L1", "1":
		return LevelL1
	case "L2", "2":
		return LevelL2
	case "L3", "3":
		return LevelL3
	case "L4", "4":
		return LevelL4
	case "DC", "DIRECT CONNECTION":
		return LevelDC
	default:
		return LevelNA
	}
}

// MeterRecord is one physical or virtual water meter with its monthly readings.
//
// Consumption is keyed by period ("Mon-YY"). A missing key means no reading for
// that month; it aggregates as 0.
type MeterRecord struct {
	Label         string             `json:"label"`
	AccountNumber string             `json:"account_number"`
	Level         Level              `json:"level"`
	Zone          string             `json:"zone"`
	ParentMeter   string             `json:"parent_meter"`
	Type          string             `json:"type"`
	Consumption   map[string]float64 `json:"consumption"`
}

// Reading returns the raw value recorded for period and whether one exists.
func (m MeterRecord) Reading(period string) (float64, bool) {
	if m.Consumption == nil {
		return 0, false
	}
	v, ok := m.Consumption[period]
	return v, ok
}

// ClampReading applies the reading policy: meter read errors are never negative
// consumption, and NaN/Inf never reach an aggregate.
func ClampReading(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

// HasParent reports whether the record names a parent meter.
func (m MeterRecord) HasParent() bool {
	return strings.TrimSpace(m.ParentMeter) != ""
}
