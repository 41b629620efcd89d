package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"muscat-water/internal/analysis"
	"muscat-water/internal/config"
	"muscat-water/internal/hierarchy"
	"muscat-water/internal/model"
	"muscat-water/internal/report"
	"muscat-water/internal/service"
	"muscat-water/internal/sink"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "analyze":
		cmdAnalyze(os.Args[2:])
	case "periods":
		cmdPeriods(os.Args[2:])
	case "trends":
		cmdTrends(os.Args[2:])
	case "export":
		cmdExport(os.Args[2:])
	case "publish":
		cmdPublish(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Println("usage:")
	fmt.Println("  cli analyze --data data/water_meters.csv [--period Mar-25] [--out report.xlsx]")
	fmt.Println("  cli periods --data data/water_meters.xlsx")
	fmt.Println("  cli trends  --data data/water_meters.csv --from Jan-25 --to Jun-25")
	fmt.Println("  cli export  --data data/water_meters.csv --period Mar-25 --out results/mar-25.xlsx")
	fmt.Println("  cli publish --config water.yaml [--period Mar-25]")
	fmt.Println("")
	fmt.Println("notes:")
	fmt.Println("  - --data picks the source by extension (.csv/.tsv, .xlsx, .json); --config reads a YAML file")
	fmt.Println("  - without --period the most recent month with readings is used")
	fmt.Println("  - export writes CSV or XLSX depending on the --out extension")
}

// sourceFlags are shared by every subcommand.
type sourceFlags struct {
	config *string
	data   *string
	sheet  *string
}

func addSourceFlags(fs *flag.FlagSet) sourceFlags {
	return sourceFlags{
		config: fs.String("config", "", "Path to YAML config"),
		data:   fs.String("data", "", "Registry file (overrides the configured source)"),
		sheet:  fs.String("sheet", "", "Worksheet name for .xlsx data"),
	}
}

func (f sourceFlags) load() (*config.Config, *service.WaterService) {
	if err := config.LoadEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}
	cfg, err := config.LoadUnchecked(*f.config)
	if err != nil {
		fail(err)
	}
	if *f.data != "" {
		cfg.Source = config.SourceConfig{Kind: kindFromPath(*f.data), Path: *f.data, Sheet: *f.sheet}
	}
	if err := cfg.Validate(); err != nil {
		fail(err)
	}
	loader, _, err := cfg.NewLoader()
	if err != nil {
		fail(err)
	}
	return cfg, service.New(loader, cfg.EngineOptions(), nil, nil, 0)
}

func kindFromPath(p string) string {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".xlsx", ".xlsm":
		return config.SourceXLSX
	case ".json":
		return config.SourceJSON
	default:
		return config.SourceCSV
	}
}

func cmdAnalyze(args []string) {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	src := addSourceFlags(fs)
	periodKey := fs.String("period", "", "Period key, e.g. Mar-25 (default: latest with readings)")
	top := fs.Int("top", 10, "Number of zones to list")
	outPath := fs.String("out", "", "Optional report path (.csv or .xlsx)")
	_ = fs.Parse(args)

	_, svc := src.load()
	agg := aggregate(svc, *periodKey)
	printAggregate(agg, *top)
	if *outPath != "" {
		writeReport(*outPath, agg)
	}
}

func cmdPeriods(args []string) {
	fs := flag.NewFlagSet("periods", flag.ExitOnError)
	src := addSourceFlags(fs)
	_ = fs.Parse(args)

	_, svc := src.load()
	pl, err := svc.Periods(context.Background())
	if err != nil {
		fail(err)
	}
	with := map[string]bool{}
	for _, k := range pl.WithReadings {
		with[k] = true
	}
	for _, k := range pl.Periods {
		mark := ""
		if !with[k] {
			mark = "  (no readings)"
		}
		if k == pl.Latest {
			mark = "  <- latest"
		}
		fmt.Printf("%s%s\n", k, mark)
	}
}

func cmdTrends(args []string) {
	fs := flag.NewFlagSet("trends", flag.ExitOnError)
	src := addSourceFlags(fs)
	from := fs.String("from", "", "First period, e.g. Jan-25")
	to := fs.String("to", "", "Last period, e.g. Jun-25")
	outPath := fs.String("out", "", "Optional CSV output path")
	_ = fs.Parse(args)

	if *from == "" || *to == "" {
		fmt.Println("--from and --to are required")
		os.Exit(2)
	}

	_, svc := src.load()
	tr, err := svc.Trends(context.Background(), *from, *to)
	if err != nil {
		fail(err)
	}

	fmt.Printf("%-16s %12s %12s %12s %8s %8s %8s\n", "period", "l1_supply", "l2_volume", "l3_volume", "stage1%", "stage2%", "total%")
	rows := make([]*model.PeriodAggregate, 0, len(tr.Periods)+1)
	rows = append(rows, tr.Periods...)
	rows = append(rows, tr.Cumulative)
	for _, a := range rows {
		fmt.Printf("%-16s %12.2f %12.2f %12.2f %8.1f %8.1f %8.1f\n",
			a.Period, a.L1Supply, a.L2Volume, a.L3Volume,
			a.Stage1LossPercent, a.Stage2LossPercent, a.TotalLossPercent)
	}

	if *outPath != "" {
		if err := os.MkdirAll(filepath.Dir(*outPath), 0o755); err != nil {
			fail(err)
		}
		f, err := os.Create(*outPath)
		if err != nil {
			fail(err)
		}
		defer f.Close()
		if err := report.WriteTrendCSV(f, rows); err != nil {
			fail(err)
		}
		fmt.Printf("Wrote %d rows to %s\n", len(rows), *outPath)
	}
}

func cmdExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	src := addSourceFlags(fs)
	periodKey := fs.String("period", "", "Period key (default: latest with readings)")
	from := fs.String("from", "", "Export the cumulative aggregate from this period")
	to := fs.String("to", "", "Export the cumulative aggregate up to this period")
	outPath := fs.String("out", "results/water_loss.csv", "Output path (.csv or .xlsx)")
	_ = fs.Parse(args)

	_, svc := src.load()
	var agg *model.PeriodAggregate
	if *from != "" || *to != "" {
		if *from == "" || *to == "" {
			fmt.Println("--from and --to must be given together")
			os.Exit(2)
		}
		var err error
		agg, err = svc.Cumulative(context.Background(), *from, *to)
		if err != nil {
			fail(err)
		}
	} else {
		agg = aggregate(svc, *periodKey)
	}

	writeReport(*outPath, agg)
}

func writeReport(path string, agg *model.PeriodAggregate) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		fail(err)
	}
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		err = report.WriteAggregateXLSX(path, agg)
	default:
		err = report.WriteAggregateCSV(path, agg)
	}
	if err != nil {
		fail(err)
	}
	fmt.Printf("Wrote %s report to %s\n", agg.Period, path)
}

func cmdPublish(args []string) {
	fs := flag.NewFlagSet("publish", flag.ExitOnError)
	src := addSourceFlags(fs)
	periodKey := fs.String("period", "", "Period key (default: latest with readings)")
	_ = fs.Parse(args)

	cfg, svc := src.load()
	if !cfg.Influx.Enabled() {
		fmt.Println("influx url and bucket must be configured (INFLUXDB_URL, INFLUXDB_BUCKET)")
		os.Exit(2)
	}
	agg := aggregate(svc, *periodKey)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	pub, err := sink.NewInfluxPublisher(ctx, cfg.InfluxSink())
	if err != nil {
		fail(err)
	}
	defer pub.Close()
	if err := pub.Publish(ctx, agg); err != nil {
		fail(err)
	}
	fmt.Printf("Published %s to %s/%s\n", agg.Period, cfg.Influx.URL, cfg.Influx.Bucket)
}

func aggregate(svc *service.WaterService, key string) *model.PeriodAggregate {
	var (
		agg *model.PeriodAggregate
		err error
	)
	if key == "" {
		agg, err = svc.Latest(context.Background())
	} else {
		agg, err = svc.Aggregate(context.Background(), key)
	}
	if err != nil {
		fail(err)
	}
	return agg
}

func printAggregate(agg *model.PeriodAggregate, top int) {
	fmt.Printf("Period %s\n", agg.Period)
	fmt.Printf("  L1 supply      %12.2f m3\n", agg.L1Supply)
	fmt.Printf("  L2 zone bulk   %12.2f m3\n", agg.L2Volume)
	fmt.Printf("  DC direct      %12.2f m3\n", agg.DCVolume)
	fmt.Printf("  L3 individual  %12.2f m3\n", agg.L3Volume)
	fmt.Printf("  Stage 1 loss   %12.2f m3 (%5.1f%%)\n", agg.Stage1Loss, agg.Stage1LossPercent)
	fmt.Printf("  Stage 2 loss   %12.2f m3 (%5.1f%%)\n", agg.Stage2Loss, agg.Stage2LossPercent)
	fmt.Printf("  Total loss     %12.2f m3 (%5.1f%%) %s\n", agg.TotalLoss, agg.TotalLossPercent,
		analysis.ClassifyLoss(agg.TotalLossPercent))
	fmt.Printf("  Efficiency     %12.1f%%\n", agg.Efficiency)

	if agg.Flags.Stage1Gain || agg.Flags.Stage2Gain || agg.Flags.TotalGain {
		fmt.Println("  note: meters downstream read more than their supply (negative loss)")
	}

	fmt.Println()
	fmt.Printf("%-4s %-24s %12s %12s %10s %8s %s\n", "rank", "zone", "bulk", "individual", "loss", "loss%", "status")
	for i, z := range analysis.SortedZones(agg) {
		if top > 0 && i >= top {
			break
		}
		fmt.Printf("%-4d %-24s %12.2f %12.2f %10.2f %8.1f %s\n",
			i+1, hierarchy.DisplayZoneName(z.Zone), z.BulkSupply, z.IndividualSum, z.Loss, z.LossPercentage,
			analysis.ClassifyLoss(z.LossPercentage))
	}

	fmt.Println()
	fmt.Printf("%-28s %12s %8s\n", "type", "m3", "share%")
	for _, tc := range agg.ConsumptionByType {
		fmt.Printf("%-28s %12.2f %8.1f\n", tc.Type, tc.Consumption, tc.Percentage)
	}

	d := agg.Diagnostics
	fmt.Println()
	fmt.Printf("meters=%d excluded=%d unresolved=%d orphan_l3=%d l3_under_dc=%d negative=%d non_finite=%d\n",
		d.MeterCount, d.ExcludedMeters, d.UnresolvedCount, d.OrphanL3, d.L3UnderDC, d.NegativeReadings, d.NonFiniteReadings)
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
