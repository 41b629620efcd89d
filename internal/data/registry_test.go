package data

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"muscat-water/internal/model"
)

const registryCSV = `Meter Label,Acct #,Zone,Type,Parent Meter,Label,Jan-25,Feb-25,Mar-25
Main Bulk (NAMA),C43659,Main Bulk,Main BULK,NAMA,L1,"32,580",44043,34915
ZONE 3A (Bulk Zone 3A),4300343,Zone_03_(A),Zone Bulk,Main Bulk (NAMA),L2,4235,4273,3591
Z3-42 (Villa),4300002,Zone_03_(A),Residential (Villa),ZONE 3A (BULK ZONE 3A),L3,61,33,-
,,,,,,,,
`

func TestParseRegistryCSV(t *testing.T) {
	meters, err := ParseRegistryCSV(strings.NewReader(registryCSV))
	require.NoError(t, err)
	require.Len(t, meters, 3)

	main := meters[0]
	assert.Equal(t, "Main Bulk (NAMA)", main.Label)
	assert.Equal(t, "C43659", main.AccountNumber)
	assert.Equal(t, model.LevelL1, main.Level)
	assert.Equal(t, 32580.0, main.Consumption["Jan-25"])

	villa := meters[2]
	assert.Equal(t, model.LevelL3, villa.Level)
	assert.Equal(t, "ZONE 3A (BULK ZONE 3A)", villa.ParentMeter)
	_, has := villa.Consumption["Mar-25"]
	assert.False(t, has, "a dash is no reading")
}

func TestParseRegistryTSV(t *testing.T) {
	tsv := "\ufeffMeter Label\tAcct #\tZone\tType\tParent Meter\tLevel \tjan_25\tFeb 2025\n" +
		"Hotel Main Building\t4300334\tDirect Connection \tRetail\tMain Bulk (NAMA)\tDC\t18048\t19482\n"
	meters, err := ParseRegistryCSV(strings.NewReader(tsv))
	require.NoError(t, err)
	require.Len(t, meters, 1)
	m := meters[0]
	assert.Equal(t, "Hotel Main Building", m.Label)
	assert.Equal(t, model.LevelDC, m.Level)
	assert.Equal(t, "Direct Connection", m.Zone)
	assert.Equal(t, map[string]float64{"Jan-25": 18048, "Feb-25": 19482}, m.Consumption)
}

func TestParseRegistryCSVEmpty(t *testing.T) {
	_, err := ParseRegistryCSV(strings.NewReader(""))
	assert.Error(t, err)
}

func TestRecordFromFields(t *testing.T) {
	rec, ok := RecordFromFields(map[string]any{
		"meter_label":    "Z5-17",
		"account_number": 4300001.0,
		"level":          "L3",
		"zone":           "Zone_05",
		"parent_meter":   "ZONE 5 (Bulk Zone 5)",
		"type":           "Residential (Villa)",
		"jan_25":         int64(112),
		"feb_25":         nil,
		"created_at":     "2025-01-01",
	})
	require.True(t, ok)
	assert.Equal(t, "4300001", rec.AccountNumber)
	assert.Equal(t, map[string]float64{"Jan-25": 112}, rec.Consumption)

	rec, ok = RecordFromFields(map[string]any{"Zone": "Zone_05"})
	assert.False(t, ok)
	assert.Equal(t, model.LevelNA, rec.Level)
}

func TestRecordsFromRowsAliasPrecedence(t *testing.T) {
	header := []string{"Meter Label", "Name", "Label", "Level", "Acct #", "Account Number", "Mar-25", "mar_25"}
	rows := [][]string{
		{"Villa 1", "Other", "L3", "", "4300001", "9999", "5", "7"},
		{"Villa 2", "", "", "L2", "", "4300002", "", "8"},
	}
	for i := 0; i < 50; i++ {
		meters := RecordsFromRows(header, rows)
		require.Len(t, meters, 2)

		assert.Equal(t, "Villa 1", meters[0].Label)
		assert.Equal(t, model.LevelL3, meters[0].Level)
		assert.Equal(t, "4300001", meters[0].AccountNumber)
		assert.Equal(t, 5.0, meters[0].Consumption["Mar-25"])

		assert.Equal(t, model.LevelL2, meters[1].Level)
		assert.Equal(t, "4300002", meters[1].AccountNumber)
		assert.Equal(t, 8.0, meters[1].Consumption["Mar-25"])
	}
}

func TestRecordFromFieldsAliasPrecedence(t *testing.T) {
	for i := 0; i < 50; i++ {
		rec, ok := RecordFromFields(map[string]any{
			"Name":        "Fallback",
			"Meter Label": "Z3-42 (Villa)",
			"Label":       "L3",
			"Level":       "",
			"Type":        "",
			"Meter Type":  "Residential (Villa)",
		})
		require.True(t, ok)
		assert.Equal(t, "Z3-42 (Villa)", rec.Label)
		assert.Equal(t, model.LevelL3, rec.Level)
		assert.Equal(t, "Residential (Villa)", rec.Type)
	}
}

func TestParseRegistryJSONLayouts(t *testing.T) {
	bare := `[{"Meter Label": "Main", "Label": "L1", "Jan-25": 10}]`
	airtable := `{"records": [{"id": "rec1", "fields": {"Name": "Main", "Level": ["L1"], "Jan-25": 10}}], "offset": ""}`
	snap := `{"source": "csv", "updated_at": "2025-04-01T00:00:00Z", "meters": [{"label": "Main", "level": "L1", "consumption": {"Jan-25": 10}}]}`

	for name, raw := range map[string]string{"bare": bare, "airtable": airtable, "snapshot": snap} {
		t.Run(name, func(t *testing.T) {
			meters, err := ParseRegistryJSON([]byte(raw))
			require.NoError(t, err)
			require.Len(t, meters, 1)
			assert.Equal(t, "Main", meters[0].Label)
			assert.Equal(t, model.LevelL1, meters[0].Level)
			assert.Equal(t, 10.0, meters[0].Consumption["Jan-25"])
		})
	}

	_, err := ParseRegistryJSON([]byte(`{"foo": 1}`))
	assert.Error(t, err)
	_, err = ParseRegistryJSON([]byte("  "))
	assert.Error(t, err)
}

func TestSnapshotRoundTripThroughJSONLoader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "meters.json")
	snap := &Snapshot{
		Source:    "airtable",
		UpdatedAt: "2025-04-01T00:00:00Z",
		Meters: []model.MeterRecord{{
			Label: "Main", Level: model.LevelL1, Consumption: map[string]float64{"Mar-25": 5},
		}},
	}
	require.NoError(t, SaveSnapshot(snap, path))

	got, err := LoadSnapshot(path)
	require.NoError(t, err)
	assert.Equal(t, snap, got)

	meters, err := JSONLoader{Path: path}.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, snap.Meters, meters)

	_, err = LoadSnapshot(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestCSVLoader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meters.csv")
	require.NoError(t, os.WriteFile(path, []byte(registryCSV), 0644))

	meters, err := CSVLoader{Path: path}.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, meters, 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = CSVLoader{Path: path}.Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestXLSXLoader(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	_, err := f.NewSheet("Water")
	require.NoError(t, err)
	rows := [][]any{
		{"Muscat Bay water registry"},
		{"Meter Label", "Acct #", "Zone", "Type", "Parent Meter", "Label", "Jan-25"},
		{"Main Bulk", "C43659", "Main Bulk", "Main BULK", "", "L1", 32580},
		{"Zone 8 Bulk", "4300342", "Zone_08", "Zone Bulk", "Main Bulk", "L2", 19000},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Water", cell, &row))
	}
	path := filepath.Join(t.TempDir(), "meters.xlsx")
	require.NoError(t, f.SaveAs(path))

	meters, err := XLSXLoader{Path: path, Sheet: "water"}.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, meters, 2)
	assert.Equal(t, model.LevelL2, meters[1].Level)
	assert.Equal(t, 19000.0, meters[1].Consumption["Jan-25"])

	_, err = XLSXLoader{Path: path, Sheet: "Electricity"}.Load(context.Background())
	assert.Error(t, err)
}

func TestStaticAndFuncLoaders(t *testing.T) {
	s := StaticLoader{{Label: "a"}}
	got, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 1)

	f := LoaderFunc(func(context.Context) ([]model.MeterRecord, error) { return nil, nil })
	got, err = f.Load(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestDBConfigDSN(t *testing.T) {
	dsn := DBConfig{Host: "db.example.supabase.co", Port: "5432", User: "postgres", Password: "pw", Name: "postgres"}.DSN()
	assert.Contains(t, dsn, "host=db.example.supabase.co")
	assert.Contains(t, dsn, "sslmode=require")
	assert.Contains(t, dsn, "TimeZone=Asia/Muscat")

	_, err := SupabaseLoader{}.Load(context.Background())
	assert.Error(t, err)
}
