package models

import (
	"github.com/shopspring/decimal"

	"muscat-water/internal/analysis"
	"muscat-water/internal/hierarchy"
	"muscat-water/internal/model"
)

// Round1 rounds half away from zero to one decimal place.
func Round1(x float64) float64 {
	f, _ := decimal.NewFromFloat(x).Round(1).Float64()
	return f
}

// Round2 rounds half away from zero to two decimal places.
func Round2(x float64) float64 {
	f, _ := decimal.NewFromFloat(x).Round(2).Float64()
	return f
}

// AggregateResponse is the dashboard view of a period aggregate. Volumes are
// rounded to two decimals and percentages to one.
type AggregateResponse struct {
	Period  string           `json:"period"`
	Summary AggregateSummary `json:"summary"`
	Zones   []ZoneRow        `json:"zones"`
	Types   []TypeRow        `json:"types"`
	Flags   model.LossFlags  `json:"flags"`
	// Diagnostics is passed through unrounded.
	Diagnostics model.Diagnostics `json:"diagnostics"`
}

// AggregateSummary holds the headline numbers.
type AggregateSummary struct {
	L1Supply          float64 `json:"l1_supply"`
	L2Volume          float64 `json:"l2_volume"`
	DCVolume          float64 `json:"dc_volume"`
	L3Volume          float64 `json:"l3_volume"`
	Stage1Loss        float64 `json:"stage1_loss"`
	Stage2Loss        float64 `json:"stage2_loss"`
	TotalLoss         float64 `json:"total_loss"`
	Stage1LossPercent float64 `json:"stage1_loss_percent"`
	Stage2LossPercent float64 `json:"stage2_loss_percent"`
	TotalLossPercent  float64 `json:"total_loss_percent"`
	Efficiency        float64 `json:"efficiency"`
	Status            string  `json:"status"`
}

// ZoneRow is one zone in the loss ranking.
type ZoneRow struct {
	Zone             string  `json:"zone"`
	DisplayName      string  `json:"display_name"`
	BulkSupply       float64 `json:"bulk_supply"`
	IndividualSum    float64 `json:"individual_sum"`
	Loss             float64 `json:"loss"`
	LossPercentage   float64 `json:"loss_percentage"`
	Status           string  `json:"status"`
	BulkMeters       int     `json:"bulk_meters"`
	IndividualMeters int     `json:"individual_meters"`
}

// TypeRow is one line of the consumption-by-type breakdown.
type TypeRow struct {
	Type        string  `json:"type"`
	Consumption float64 `json:"consumption"`
	Percentage  float64 `json:"percentage"`
}

// ZonesResponse lists zones worst first.
type ZonesResponse struct {
	Period string    `json:"period"`
	Zones  []ZoneRow `json:"zones"`
}

// TypesResponse lists the type breakdown.
type TypesResponse struct {
	Period string    `json:"period"`
	Types  []TypeRow `json:"types"`
}

// DiagnosticsResponse carries the data-quality block of a period.
type DiagnosticsResponse struct {
	Period      string            `json:"period"`
	Diagnostics model.Diagnostics `json:"diagnostics"`
}

// TrendResponse is a per-period series plus the range total.
type TrendResponse struct {
	From       string            `json:"from"`
	To         string            `json:"to"`
	Periods    []TrendPoint      `json:"periods"`
	Cumulative AggregateResponse `json:"cumulative"`
}

// TrendPoint is the headline numbers of one period.
type TrendPoint struct {
	Period string `json:"period"`
	AggregateSummary
}

// RefreshResponse reports a registry reload.
type RefreshResponse struct {
	Status string `json:"status"`
	Meters int    `json:"meters"`
}

// NewAggregateResponse renders agg for the dashboard.
func NewAggregateResponse(agg *model.PeriodAggregate) AggregateResponse {
	return AggregateResponse{
		Period:      agg.Period,
		Summary:     NewSummary(agg),
		Zones:       NewZoneRows(agg, 0),
		Types:       NewTypeRows(agg),
		Flags:       agg.Flags,
		Diagnostics: agg.Diagnostics,
	}
}

// NewSummary rounds the headline numbers of agg.
func NewSummary(agg *model.PeriodAggregate) AggregateSummary {
	return AggregateSummary{
		L1Supply:          Round2(agg.L1Supply),
		L2Volume:          Round2(agg.L2Volume),
		DCVolume:          Round2(agg.DCVolume),
		L3Volume:          Round2(agg.L3Volume),
		Stage1Loss:        Round2(agg.Stage1Loss),
		Stage2Loss:        Round2(agg.Stage2Loss),
		TotalLoss:         Round2(agg.TotalLoss),
		Stage1LossPercent: Round1(agg.Stage1LossPercent),
		Stage2LossPercent: Round1(agg.Stage2LossPercent),
		TotalLossPercent:  Round1(agg.TotalLossPercent),
		Efficiency:        Round1(agg.Efficiency),
		Status:            string(analysis.ClassifyLoss(agg.TotalLossPercent)),
	}
}

// NewZoneRows ranks zones by loss percentage. limit > 0 keeps only the top
// losing zones (non-negative loss).
func NewZoneRows(agg *model.PeriodAggregate, limit int) []ZoneRow {
	var zones []model.ZoneMetrics
	if limit > 0 {
		zones = analysis.TopLosingZones(agg, limit)
	} else {
		zones = analysis.SortedZones(agg)
	}
	out := make([]ZoneRow, 0, len(zones))
	for _, z := range zones {
		out = append(out, ZoneRow{
			Zone:             z.Zone,
			DisplayName:      hierarchy.DisplayZoneName(z.Zone),
			BulkSupply:       Round2(z.BulkSupply),
			IndividualSum:    Round2(z.IndividualSum),
			Loss:             Round2(z.Loss),
			LossPercentage:   Round1(z.LossPercentage),
			Status:           string(analysis.ClassifyLoss(z.LossPercentage)),
			BulkMeters:       z.BulkMeters,
			IndividualMeters: z.IndividualMeters,
		})
	}
	return out
}

// NewTypeRows renders the type breakdown in engine order.
func NewTypeRows(agg *model.PeriodAggregate) []TypeRow {
	out := make([]TypeRow, 0, len(agg.ConsumptionByType))
	for _, tc := range agg.ConsumptionByType {
		out = append(out, TypeRow{
			Type:        tc.Type,
			Consumption: Round2(tc.Consumption),
			Percentage:  Round1(tc.Percentage),
		})
	}
	return out
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}
