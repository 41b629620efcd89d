package sink

import (
	"context"
	"fmt"
	"log"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"muscat-water/internal/model"
	"muscat-water/internal/period"
)

// Measurement names written per aggregate.
const (
	MeasurementLoss = "water_loss"
	MeasurementZone = "water_zone"
	MeasurementType = "water_type"
)

// InfluxConfig holds the InfluxDB v2 connection settings.
type InfluxConfig struct {
	URL    string
	Org    string
	Token  string
	Bucket string
}

// InfluxPublisher writes period aggregates to InfluxDB v2.
type InfluxPublisher struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	cfg      InfluxConfig
}

// NewInfluxPublisher initializes the client and verifies connectivity.
func NewInfluxPublisher(ctx context.Context, cfg InfluxConfig) (*InfluxPublisher, error) {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	if _, err := client.Health(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to InfluxDB: %w", err)
	}
	log.Printf("[Influx] Connected (url=%s, bucket=%s)", cfg.URL, cfg.Bucket)
	return &InfluxPublisher{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		cfg:      cfg,
	}, nil
}

// Publish writes one aggregate. Only single-period aggregates can be
// published; the timestamp is the first day of the month in UTC.
func (p *InfluxPublisher) Publish(ctx context.Context, agg *model.PeriodAggregate) error {
	points, err := Points(agg)
	if err != nil {
		return err
	}
	if err := p.writeAPI.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("failed to write %s to InfluxDB: %w", agg.Period, err)
	}
	log.Printf("[Influx] Wrote %d points for %s (bucket=%s)", len(points), agg.Period, p.cfg.Bucket)
	return nil
}

// Close closes the InfluxDB client.
func (p *InfluxPublisher) Close() {
	p.client.Close()
}

// Points renders an aggregate as line-protocol points: one water_loss point,
// one water_zone point per zone and one water_type point per type.
func Points(agg *model.PeriodAggregate) ([]*write.Point, error) {
	if agg == nil {
		return nil, fmt.Errorf("nil aggregate")
	}
	p, err := period.Parse(agg.Period)
	if err != nil {
		return nil, fmt.Errorf("cannot publish %q: %w", agg.Period, err)
	}
	ts := p.Start()
	tags := func(extra map[string]string) map[string]string {
		t := map[string]string{"period": p.Key()}
		for k, v := range extra {
			t[k] = v
		}
		return t
	}

	points := make([]*write.Point, 0, 1+len(agg.ZoneData)+len(agg.ConsumptionByType))
	points = append(points, write.NewPoint(
		MeasurementLoss,
		tags(nil),
		map[string]interface{}{
			"l1_supply":           agg.L1Supply,
			"l2_volume":           agg.L2Volume,
			"dc_volume":           agg.DCVolume,
			"l3_volume":           agg.L3Volume,
			"stage1_loss":         agg.Stage1Loss,
			"stage2_loss":         agg.Stage2Loss,
			"total_loss":          agg.TotalLoss,
			"stage1_loss_percent": agg.Stage1LossPercent,
			"stage2_loss_percent": agg.Stage2LossPercent,
			"total_loss_percent":  agg.TotalLossPercent,
			"efficiency":          agg.Efficiency,
			"unresolved_links":    agg.Diagnostics.UnresolvedCount,
		},
		ts,
	))
	for _, zm := range agg.ZoneData {
		points = append(points, write.NewPoint(
			MeasurementZone,
			tags(map[string]string{"zone": zm.Zone}),
			map[string]interface{}{
				"bulk_supply":     zm.BulkSupply,
				"individual_sum":  zm.IndividualSum,
				"loss":            zm.Loss,
				"loss_percentage": zm.LossPercentage,
			},
			ts,
		))
	}
	for _, tc := range agg.ConsumptionByType {
		points = append(points, write.NewPoint(
			MeasurementType,
			tags(map[string]string{"type": tc.Type}),
			map[string]interface{}{
				"consumption": tc.Consumption,
				"percentage":  tc.Percentage,
			},
			ts,
		))
	}
	return points, nil
}
