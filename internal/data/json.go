package data

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"muscat-water/internal/model"
)

// ParseRegistryJSON accepts the three JSON layouts the registry shows up in:
// a snapshot written by SaveSnapshot, an Airtable page ({"records": [...]})
// or a bare array of field objects.
func ParseRegistryJSON(raw []byte) ([]model.MeterRecord, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, fmt.Errorf("registry JSON is empty")
	}

	if raw[0] == '[' {
		var rows []map[string]any
		if err := json.Unmarshal(raw, &rows); err != nil {
			return nil, fmt.Errorf("failed to parse registry rows: %w", err)
		}
		return recordsFromMaps(rows), nil
	}

	var probe struct {
		Meters  json.RawMessage  `json:"meters"`
		Records []AirtableRecord `json:"records"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse registry JSON: %w", err)
	}
	switch {
	case len(probe.Meters) > 0:
		var snap Snapshot
		if err := json.Unmarshal(raw, &snap); err != nil {
			return nil, fmt.Errorf("failed to parse snapshot: %w", err)
		}
		return snap.Meters, nil
	case probe.Records != nil:
		rows := make([]map[string]any, 0, len(probe.Records))
		for _, r := range probe.Records {
			rows = append(rows, r.Fields)
		}
		return recordsFromMaps(rows), nil
	}
	return nil, fmt.Errorf("registry JSON has neither meters nor records")
}

func recordsFromMaps(rows []map[string]any) []model.MeterRecord {
	out := make([]model.MeterRecord, 0, len(rows))
	for _, row := range rows {
		if m, ok := RecordFromFields(row); ok {
			out = append(out, m)
		}
	}
	return out
}

// JSONLoader reads a registry JSON file on every Load. This is the mock-data
// source and the reader for snapshots.
type JSONLoader struct {
	Path string
}

func (l JSONLoader) Load(ctx context.Context) ([]model.MeterRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(l.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry file: %w", err)
	}
	return ParseRegistryJSON(raw)
}
