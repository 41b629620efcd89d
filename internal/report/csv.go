package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"muscat-water/internal/analysis"
	"muscat-water/internal/hierarchy"
	"muscat-water/internal/model"
)

// WriteAggregateCSV writes one aggregate to path as a sectioned CSV: summary
// metrics, the zone table and the type table.
func WriteAggregateCSV(path string, agg *model.PeriodAggregate) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := EncodeAggregateCSV(f, agg); err != nil {
		return err
	}
	return f.Close()
}

// EncodeAggregateCSV writes the sectioned CSV to w.
func EncodeAggregateCSV(out io.Writer, agg *model.PeriodAggregate) error {
	if agg == nil {
		return fmt.Errorf("nil aggregate")
	}
	w := csv.NewWriter(out)

	rows := [][]string{{"metric", "value"}}
	for _, m := range SummaryRows(agg) {
		rows = append(rows, []string{m.Name, m.Value})
	}
	rows = append(rows, nil)

	rows = append(rows, zoneHeader)
	rows = append(rows, ZoneRows(agg)...)
	rows = append(rows, nil)

	rows = append(rows, []string{"type", "consumption", "percentage"})
	for _, tc := range agg.ConsumptionByType {
		rows = append(rows, []string{tc.Type, fmtFloat(tc.Consumption), fmtFloat(tc.Percentage)})
	}

	for _, r := range rows {
		if r == nil {
			r = []string{}
		}
		if err := w.Write(r); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// WriteTrendCSV writes one row per period with the headline numbers.
func WriteTrendCSV(out io.Writer, aggs []*model.PeriodAggregate) error {
	w := csv.NewWriter(out)
	header := []string{
		"period",
		"l1_supply",
		"l2_volume",
		"dc_volume",
		"l3_volume",
		"stage1_loss",
		"stage2_loss",
		"total_loss",
		"stage1_loss_percent",
		"stage2_loss_percent",
		"total_loss_percent",
		"efficiency",
	}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, a := range aggs {
		row := []string{
			a.Period,
			fmtFloat(a.L1Supply),
			fmtFloat(a.L2Volume),
			fmtFloat(a.DCVolume),
			fmtFloat(a.L3Volume),
			fmtFloat(a.Stage1Loss),
			fmtFloat(a.Stage2Loss),
			fmtFloat(a.TotalLoss),
			fmtFloat(a.Stage1LossPercent),
			fmtFloat(a.Stage2LossPercent),
			fmtFloat(a.TotalLossPercent),
			fmtFloat(a.Efficiency),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// Metric is one labelled summary value.
type Metric struct {
	Name  string
	Value string
}

// SummaryRows lists the headline numbers of an aggregate.
func SummaryRows(agg *model.PeriodAggregate) []Metric {
	d := agg.Diagnostics
	return []Metric{
		{"period", agg.Period},
		{"l1_supply", fmtFloat(agg.L1Supply)},
		{"l2_volume", fmtFloat(agg.L2Volume)},
		{"dc_volume", fmtFloat(agg.DCVolume)},
		{"l3_volume", fmtFloat(agg.L3Volume)},
		{"stage1_loss", fmtFloat(agg.Stage1Loss)},
		{"stage2_loss", fmtFloat(agg.Stage2Loss)},
		{"total_loss", fmtFloat(agg.TotalLoss)},
		{"stage1_loss_percent", fmtFloat(agg.Stage1LossPercent)},
		{"stage2_loss_percent", fmtFloat(agg.Stage2LossPercent)},
		{"total_loss_percent", fmtFloat(agg.TotalLossPercent)},
		{"efficiency", fmtFloat(agg.Efficiency)},
		{"meter_count", strconv.Itoa(d.MeterCount)},
		{"excluded_meters", strconv.Itoa(d.ExcludedMeters)},
		{"unresolved_links", strconv.Itoa(d.UnresolvedCount)},
		{"orphan_l3", strconv.Itoa(d.OrphanL3)},
		{"l3_under_dc", strconv.Itoa(d.L3UnderDC)},
		{"unknown_zones", strings.Join(d.UnknownZones, "; ")},
	}
}

var zoneHeader = []string{"zone", "display_name", "bulk_supply", "individual_sum", "loss", "loss_percentage", "status"}

// ZoneRows renders the zone table, worst loss first.
func ZoneRows(agg *model.PeriodAggregate) [][]string {
	zones := analysis.SortedZones(agg)
	rows := make([][]string, 0, len(zones))
	for _, z := range zones {
		rows = append(rows, []string{
			z.Zone,
			hierarchy.DisplayZoneName(z.Zone),
			fmtFloat(z.BulkSupply),
			fmtFloat(z.IndividualSum),
			fmtFloat(z.Loss),
			fmtFloat(z.LossPercentage),
			string(analysis.ClassifyLoss(z.LossPercentage)),
		})
	}
	return rows
}

func fmtFloat(x float64) string {
	return strconv.FormatFloat(x, 'f', 2, 64)
}
