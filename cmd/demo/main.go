package main

import (
	"flag"
	"fmt"
	"math/rand/v2"
	"time"

	"muscat-water/internal/analysis"
	"muscat-water/internal/config"
	"muscat-water/internal/data"
	"muscat-water/internal/hierarchy"
	"muscat-water/internal/model"
	"muscat-water/internal/period"
	"muscat-water/internal/report"
)

// Demo:
// - Build a synthetic Muscat Bay style network (main bulk, zone bulks,
//   villas, a building with apartment sub-meters, direct connections)
// - Run the loss engine for each generated month
// - Optionally save the registry as a snapshot the API can serve
func main() {
	cfgPath := flag.String("config", "", "Path to YAML config (optional, engine section only)")
	months := flag.Int("months", 6, "Number of months to generate, ending at --to")
	to := flag.String("to", "Jun-25", "Last generated month")
	seed := flag.Uint64("seed", 42, "Random seed")
	outCSV := flag.String("out", "", "Optional path to write the latest month's report CSV")
	snapshot := flag.String("snapshot", "", "Optional path to save the generated registry as JSON")
	flag.Parse()

	opts := analysis.Options{ExcludedAccounts: []string{"4300322"}}
	if *cfgPath != "" {
		cfg, err := config.Load(*cfgPath)
		if err != nil {
			panic(err)
		}
		opts = cfg.EngineOptions()
	}

	end, err := period.Parse(*to)
	if err != nil {
		panic(err)
	}
	start := end
	for i := 1; i < *months; i++ {
		start = prev(start)
	}
	keys, err := period.Range(start.Key(), end.Key())
	if err != nil {
		panic(err)
	}

	meters := generate(rand.New(rand.NewPCG(*seed, *seed)), keys)
	fmt.Printf("Generated %d meters over %d months (%s..%s)\n\n", len(meters), len(keys), keys[0], keys[len(keys)-1])

	engine := analysis.New(opts)
	var latest *model.PeriodAggregate
	for _, k := range keys {
		agg := engine.Compute(meters, k)
		fmt.Printf(
			"%s  l1=%9.1f  l2=%9.1f  dc=%8.1f  l3=%9.1f  stage1=%5.1f%%  stage2=%5.1f%%  total=%5.1f%%  %s\n",
			agg.Period, agg.L1Supply, agg.L2Volume, agg.DCVolume, agg.L3Volume,
			agg.Stage1LossPercent, agg.Stage2LossPercent, agg.TotalLossPercent,
			analysis.ClassifyLoss(agg.TotalLossPercent),
		)
		latest = agg
	}

	fmt.Printf("\nZones in %s, worst first:\n", latest.Period)
	for _, z := range analysis.SortedZones(latest) {
		fmt.Printf("  %-18s bulk=%8.1f  individual=%8.1f  loss=%7.1f (%5.1f%%)  %s\n",
			hierarchy.DisplayZoneName(z.Zone), z.BulkSupply, z.IndividualSum, z.Loss, z.LossPercentage,
			analysis.ClassifyLoss(z.LossPercentage))
	}

	cum, err := engine.ComputeCumulative(meters, keys[0], keys[len(keys)-1])
	if err != nil {
		panic(err)
	}
	fmt.Printf("\nCumulative %s: total loss %.1f m3 (%.1f%%), efficiency %.1f%%\n",
		cum.Period, cum.TotalLoss, cum.TotalLossPercent, cum.Efficiency)

	if *outCSV != "" {
		if err := report.WriteAggregateCSV(*outCSV, latest); err != nil {
			panic(err)
		}
		fmt.Printf("\nWrote CSV: %s\n", *outCSV)
	}
	if *snapshot != "" {
		snap := &data.Snapshot{Source: "demo", UpdatedAt: time.Now().UTC().Format(time.RFC3339), Meters: meters}
		if err := data.SaveSnapshot(snap, *snapshot); err != nil {
			panic(err)
		}
		fmt.Printf("Wrote snapshot: %s\n", *snapshot)
	}
}

func prev(p period.Period) period.Period {
	t := p.Start().AddDate(0, -1, 0)
	q, err := period.Parse(t.Format("Jan-06"))
	if err != nil {
		panic(err)
	}
	return q
}

type zoneSpec struct {
	zone   string
	bulk   string
	villas int
	leak   float64 // share of bulk supply lost inside the zone
}

var zones = []zoneSpec{
	{zone: "Zone_03_(A)", bulk: "ZONE 3A (Bulk Zone 3A)", villas: 12, leak: 0.18},
	{zone: "Zone_05", bulk: "ZONE 5 (Bulk Zone 5)", villas: 10, leak: 0.32},
	{zone: "Zone_08", bulk: "BULK ZONE 8", villas: 8, leak: 0.06},
	{zone: "Zone_VS", bulk: "Village Square (Zone Bulk)", villas: 0, leak: 0.04},
}

// generate builds a registry whose readings balance up to the configured
// leak rates plus noise. One villa reads negative in one month and one meter
// points at a retired parent, so diagnostics have something to show.
func generate(r *rand.Rand, keys []string) []model.MeterRecord {
	reading := func(base float64) float64 { return base * (0.85 + 0.3*r.Float64()) }
	series := func(base float64) map[string]float64 {
		out := make(map[string]float64, len(keys))
		for _, k := range keys {
			out[k] = reading(base)
		}
		return out
	}

	source := model.MeterRecord{Label: "Main Bulk (NAMA)", AccountNumber: "C43659", Level: model.LevelL1,
		Zone: "Main Bulk", Type: "Main BULK", Consumption: map[string]float64{}}
	meters := []model.MeterRecord{}
	acct := 4300000

	nextAcct := func() string {
		acct++
		return fmt.Sprintf("%d", acct)
	}

	for _, zs := range zones {
		bulk := model.MeterRecord{Label: zs.bulk, AccountNumber: nextAcct(), Level: model.LevelL2,
			Zone: zs.zone, ParentMeter: source.Label, Type: "Zone Bulk", Consumption: map[string]float64{}}
		var children []model.MeterRecord
		for i := 1; i <= zs.villas; i++ {
			children = append(children, model.MeterRecord{
				Label: fmt.Sprintf("%s-%02d (Villa)", hierarchy.DisplayZoneName(zs.zone), i), AccountNumber: nextAcct(),
				Level: model.LevelL3, Zone: zs.zone, ParentMeter: zs.bulk, Type: "Residential (Villa)",
				Consumption: series(45),
			})
		}
		if zs.zone == "Zone_03_(A)" {
			building := model.MeterRecord{Label: "D-44 Building Bulk Meter", AccountNumber: nextAcct(),
				Level: model.LevelL3, Zone: zs.zone, ParentMeter: zs.bulk, Type: "D_Building_Bulk",
				Consumption: map[string]float64{}}
			for i := 1; i <= 6; i++ {
				apt := model.MeterRecord{Label: fmt.Sprintf("Z3-44(%d)", i), AccountNumber: nextAcct(),
					Level: model.LevelL4, Zone: zs.zone, ParentMeter: building.Label, Type: "Residential (Apart)",
					Consumption: series(12)}
				for k, v := range apt.Consumption {
					building.Consumption[k] += v
				}
				meters = append(meters, apt)
			}
			children = append(children, building)
		}
		if zs.zone == "Zone_VS" {
			children = append(children,
				model.MeterRecord{Label: "Coffee 1 (GF Shop No.591)", AccountNumber: nextAcct(), Level: model.LevelL3,
					Zone: zs.zone, ParentMeter: zs.bulk, Type: "Retail", Consumption: series(30)},
				model.MeterRecord{Label: "Irrigation Tank - VS PO Water", AccountNumber: nextAcct(), Level: model.LevelL3,
					Zone: zs.zone, ParentMeter: zs.bulk, Type: "IRR_Services", Consumption: series(60)})
		}
		for _, c := range children {
			for k, v := range c.Consumption {
				bulk.Consumption[k] += v
			}
		}
		for k, v := range bulk.Consumption {
			bulk.Consumption[k] = v / (1 - zs.leak)
		}
		meters = append(meters, bulk)
		meters = append(meters, children...)
	}

	dcs := []model.MeterRecord{
		{Label: "Hotel Main Building", AccountNumber: nextAcct(), Level: model.LevelDC, Zone: "Direct Connection",
			ParentMeter: source.Label, Type: "Retail", Consumption: series(900)},
		{Label: "Irrigation- Controller UP", AccountNumber: nextAcct(), Level: model.LevelDC, Zone: "Direct Connection",
			ParentMeter: source.Label, Type: "IRR_Services", Consumption: series(250)},
		{Label: "Faulty Direct Meter", AccountNumber: "4300322", Level: model.LevelDC, Zone: "Direct Connection",
			ParentMeter: source.Label, Type: "Retail", Consumption: series(5000)},
	}
	meters = append(meters, dcs...)

	for _, m := range meters {
		if m.Level != model.LevelL2 && m.Level != model.LevelDC {
			continue
		}
		if m.AccountNumber == "4300322" {
			continue
		}
		for k, v := range m.Consumption {
			source.Consumption[k] += v
		}
	}
	for k, v := range source.Consumption {
		source.Consumption[k] = v * 1.08
	}

	// Read errors and stale links.
	for i := range meters {
		if meters[i].Level == model.LevelL3 && meters[i].Type == "Residential (Villa)" {
			meters[i].Consumption[keys[len(keys)-1]] = -3
			break
		}
	}
	meters = append(meters, model.MeterRecord{Label: "Z5-Old-01", AccountNumber: nextAcct(), Level: model.LevelL3,
		Zone: "Zone 5", ParentMeter: "Zone 5 Bulk (retired)", Type: "Residential (Villa)", Consumption: series(20)})

	return append([]model.MeterRecord{source}, meters...)
}
