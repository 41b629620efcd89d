package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"muscat-water/internal/config"
	"muscat-water/internal/data"
	"muscat-water/internal/period"
)

func main() {
	var (
		configPath = flag.String("config", os.Getenv("WATER_CONFIG"), "Path to YAML config (optional)")
		source     = flag.String("source", "", "Source to pull from: airtable or supabase (default: configured source)")
		outputPath = flag.String("output", "", "Output file path (default: ./data/meters.json)")
		timeout    = flag.Duration("timeout", 2*time.Minute, "Timeout for the remote fetch")
	)
	flag.Parse()

	if err := config.LoadEnv(); err != nil {
		log.Printf("Warning: %v", err)
	}
	cfg, err := config.LoadUnchecked(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *source != "" {
		cfg.Source.Kind = *source
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	if *outputPath == "" {
		*outputPath = data.DefaultSnapshotPath()
	}

	loader, closeSource, err := cfg.NewLoader()
	if err != nil {
		log.Fatalf("Failed to set up %s source: %v", cfg.Source.Kind, err)
	}
	defer closeSource()

	fmt.Printf("Pulling meter registry from %s\n", cfg.Source.Kind)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	meters, err := loader.Load(ctx)
	if err != nil {
		log.Fatalf("Failed to load meters: %v", err)
	}
	if len(meters) == 0 {
		log.Fatalf("Source returned no meters, keeping the existing snapshot")
	}

	// Keep the previous snapshot's count around for a quick sanity check.
	if prev, err := data.LoadSnapshot(*outputPath); err == nil {
		fmt.Printf("Previous snapshot: %d meters from %s (%s)\n", len(prev.Meters), prev.Source, prev.UpdatedAt)
	}

	snap := &data.Snapshot{
		Source:    cfg.Source.Kind,
		UpdatedAt: time.Now().Format(time.RFC3339),
		Meters:    meters,
	}
	if err := data.SaveSnapshot(snap, *outputPath); err != nil {
		log.Fatalf("Failed to save snapshot: %v", err)
	}

	with := period.PeriodsWithReadings(meters)
	fmt.Printf("Saved %d meters to %s\n", len(meters), *outputPath)
	if latest := period.Latest(with); latest != "" {
		fmt.Printf("Months with readings: %d (latest %s)\n", len(with), latest)
	}
}
