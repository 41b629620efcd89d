package data

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"muscat-water/internal/model"
)

// Snapshot is a registry captured from a remote source so the API and CLI
// can run without it.
type Snapshot struct {
	Source    string              `json:"source"`     // e.g. "airtable", "supabase"
	UpdatedAt string              `json:"updated_at"` // ISO 8601 timestamp
	Meters    []model.MeterRecord `json:"meters"`
}

// LoadSnapshot loads a snapshot from a JSON file.
func LoadSnapshot(filePath string) (*Snapshot, error) {
	raw, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot file: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot file: %w", err)
	}

	return &snap, nil
}

// SaveSnapshot writes a snapshot to a JSON file, creating the directory.
func SaveSnapshot(snap *Snapshot, filePath string) error {
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	raw, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if err := os.WriteFile(filePath, raw, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot file: %w", err)
	}

	return nil
}

// DefaultSnapshotPath returns the snapshot location, WATER_SNAPSHOT_FILE
// first.
func DefaultSnapshotPath() string {
	if path := os.Getenv("WATER_SNAPSHOT_FILE"); path != "" {
		return path
	}
	return "./data/meters.json"
}
