package model

// ZoneMetrics is the bulk-vs-individual balance of one zone in one period.
type ZoneMetrics struct {
	Zone           string  `json:"zone"`
	BulkSupply     float64 `json:"bulk_supply"`
	IndividualSum  float64 `json:"individual_sum"`
	Loss           float64 `json:"loss"`
	LossPercentage float64 `json:"loss_percentage"`

	BulkMeters       int `json:"bulk_meters"`
	IndividualMeters int `json:"individual_meters"`
}

// TypeConsumption is one row of the consumption-by-type breakdown.
type TypeConsumption struct {
	Type        string  `json:"type"`
	Consumption float64 `json:"consumption"`
	Percentage  float64 `json:"percentage"`
}

// PeriodAggregate is the loss analysis for one period (or one cumulative range).
// All numbers are full precision; rounding is a presentation concern.
type PeriodAggregate struct {
	Period string `json:"period"`

	L1Supply float64 `json:"l1_supply"`
	L2Volume float64 `json:"l2_volume"`
	DCVolume float64 `json:"dc_volume"`
	L3Volume float64 `json:"l3_volume"`

	Stage1Loss float64 `json:"stage1_loss"`
	Stage2Loss float64 `json:"stage2_loss"`
	TotalLoss  float64 `json:"total_loss"`

	Stage1LossPercent float64 `json:"stage1_loss_percent"`
	Stage2LossPercent float64 `json:"stage2_loss_percent"`
	TotalLossPercent  float64 `json:"total_loss_percent"`

	// Efficiency is delivered volume over delivered-plus-lost, in percent.
	Efficiency float64 `json:"efficiency"`

	ZoneData          map[string]ZoneMetrics `json:"zone_data"`
	TypeData          map[string]float64     `json:"type_data"`
	ConsumptionByType []TypeConsumption      `json:"consumption_by_type"`

	Flags       LossFlags   `json:"flags"`
	Diagnostics Diagnostics `json:"diagnostics"`
}

// LossFlags marks stages where downstream meters read more than upstream ones.
type LossFlags struct {
	Stage1Gain bool `json:"stage1_gain"`
	Stage2Gain bool `json:"stage2_gain"`
	TotalGain  bool `json:"total_gain"`
}

// UnresolvedLink is a meter whose parent reference matched no known label.
type UnresolvedLink struct {
	Label         string `json:"label"`
	AccountNumber string `json:"account_number"`
	Level         Level  `json:"level"`
	ParentMeter   string `json:"parent_meter"`
}

// Diagnostics carries data-quality counters for the caller to monitor.
type Diagnostics struct {
	MeterCount      int           `json:"meter_count"`
	LevelCounts     map[Level]int `json:"level_counts"`
	ExcludedMeters  int           `json:"excluded_meters"`
	UnresolvedCount int           `json:"unresolved_count"`

	UnresolvedLinks []UnresolvedLink `json:"unresolved_links,omitempty"`

	OrphanL3        int      `json:"orphan_l3"`
	L3UnderDC       int      `json:"l3_under_dc"`
	ZoneMismatches  int      `json:"zone_mismatches"`
	DCWithChildren  []string `json:"dc_with_children,omitempty"`
	UnknownZones    []string `json:"unknown_zones,omitempty"`
	AmbiguousLabels []string `json:"ambiguous_labels,omitempty"`

	NegativeReadings  int `json:"negative_readings"`
	NonFiniteReadings int `json:"non_finite_readings"`
}
