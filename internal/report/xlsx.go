package report

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"muscat-water/internal/analysis"
	"muscat-water/internal/hierarchy"
	"muscat-water/internal/model"
)

// Sheet names in the workbook report.
const (
	SheetSummary     = "Summary"
	SheetZones       = "Zones"
	SheetTypes       = "Types"
	SheetDiagnostics = "Diagnostics"
)

// WriteAggregateXLSX writes an aggregate as a workbook with summary, zone,
// type and diagnostics sheets.
func WriteAggregateXLSX(path string, agg *model.PeriodAggregate) error {
	f, err := BuildAggregateXLSX(agg)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

// BuildAggregateXLSX builds the workbook in memory.
func BuildAggregateXLSX(agg *model.PeriodAggregate) (*excelize.File, error) {
	if agg == nil {
		return nil, fmt.Errorf("nil aggregate")
	}
	f := excelize.NewFile()

	index, err := f.NewSheet(SheetSummary)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		f.Close()
		return nil, err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
	})
	if err != nil {
		f.Close()
		return nil, err
	}

	steps := []func() error{
		func() error { return writeSummary(f, agg, headerStyle) },
		func() error { return writeZones(f, agg, headerStyle) },
		func() error { return writeTypes(f, agg, headerStyle) },
		func() error { return writeDiagnostics(f, agg, headerStyle) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}

func writeSummary(f *excelize.File, agg *model.PeriodAggregate, style int) error {
	rows := [][]any{
		{"Metric", "Value"},
		{"Period", agg.Period},
		{"L1 supply", agg.L1Supply},
		{"L2 volume", agg.L2Volume},
		{"DC volume", agg.DCVolume},
		{"L3 volume", agg.L3Volume},
		{"Stage 1 loss", agg.Stage1Loss},
		{"Stage 2 loss", agg.Stage2Loss},
		{"Total loss", agg.TotalLoss},
		{"Stage 1 loss %", agg.Stage1LossPercent},
		{"Stage 2 loss %", agg.Stage2LossPercent},
		{"Total loss %", agg.TotalLossPercent},
		{"Efficiency %", agg.Efficiency},
		{"Total loss status", string(analysis.ClassifyLoss(agg.TotalLossPercent))},
	}
	return writeTable(f, SheetSummary, rows, style)
}

func writeZones(f *excelize.File, agg *model.PeriodAggregate, style int) error {
	rows := [][]any{{"Zone", "Display name", "Bulk supply", "Individual sum", "Loss", "Loss %", "Status", "Bulk meters", "Individual meters"}}
	for _, z := range analysis.SortedZones(agg) {
		rows = append(rows, []any{
			z.Zone,
			hierarchy.DisplayZoneName(z.Zone),
			z.BulkSupply,
			z.IndividualSum,
			z.Loss,
			z.LossPercentage,
			string(analysis.ClassifyLoss(z.LossPercentage)),
			z.BulkMeters,
			z.IndividualMeters,
		})
	}
	return writeTable(f, SheetZones, rows, style)
}

func writeTypes(f *excelize.File, agg *model.PeriodAggregate, style int) error {
	rows := [][]any{{"Type", "Consumption", "Share %"}}
	for _, tc := range agg.ConsumptionByType {
		rows = append(rows, []any{tc.Type, tc.Consumption, tc.Percentage})
	}
	return writeTable(f, SheetTypes, rows, style)
}

func writeDiagnostics(f *excelize.File, agg *model.PeriodAggregate, style int) error {
	d := agg.Diagnostics
	rows := [][]any{
		{"Check", "Count", "Detail"},
		{"Meters", d.MeterCount, ""},
		{"Excluded meters", d.ExcludedMeters, ""},
		{"Unresolved parent links", d.UnresolvedCount, ""},
		{"Orphaned L3", d.OrphanL3, ""},
		{"L3 under direct connection", d.L3UnderDC, joinList(d.DCWithChildren)},
		{"Zone mismatches", d.ZoneMismatches, ""},
		{"Unknown zones", len(d.UnknownZones), joinList(d.UnknownZones)},
		{"Duplicate labels", len(d.AmbiguousLabels), joinList(d.AmbiguousLabels)},
		{"Negative readings", d.NegativeReadings, ""},
		{"Non-finite readings", d.NonFiniteReadings, ""},
	}
	rows = append(rows, []any{})
	rows = append(rows, []any{"Unresolved meter", "Level", "Parent reference"})
	for _, u := range d.UnresolvedLinks {
		rows = append(rows, []any{u.Label, string(u.Level), u.ParentMeter})
	}
	return writeTable(f, SheetDiagnostics, rows, style)
}

func writeTable(f *excelize.File, sheet string, rows [][]any, headerStyle int) error {
	idx, err := f.GetSheetIndex(sheet)
	if err != nil {
		return err
	}
	if idx < 0 {
		if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", sheet, err)
		}
	}
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	if len(rows) > 0 {
		end, err := excelize.CoordinatesToCellName(len(rows[0]), 1)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, "A1", end, headerStyle); err != nil {
			return err
		}
	}
	return f.SetColWidth(sheet, "A", "C", 28)
}

func joinList(items []string) string {
	return strings.Join(items, ", ")
}
