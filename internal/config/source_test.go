package config

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"muscat-water/internal/data"
)

func TestNewLoaderFileSources(t *testing.T) {
	dir := t.TempDir()
	csvPath := writeFile(t, dir, "meters.csv", "Meter Label,Acct #,Label,Zone,Parent Meter,Type,Jan-25\nMain,1,L1,Main Bulk,,Main Bulk,100\n")

	c := Default()
	c.Source = SourceConfig{Kind: "CSV", Path: csvPath}
	loader, closeFn, err := c.NewLoader()
	require.NoError(t, err)
	require.NotNil(t, closeFn)
	assert.NoError(t, closeFn())
	assert.IsType(t, data.CSVLoader{}, loader)

	meters, err := loader.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, meters, 1)
	assert.Equal(t, 100.0, meters[0].Consumption["Jan-25"])

	c.Source = SourceConfig{Kind: SourceXLSX, Path: "x.xlsx", Sheet: "Master"}
	loader, _, err = c.NewLoader()
	require.NoError(t, err)
	assert.Equal(t, data.XLSXLoader{Path: "x.xlsx", Sheet: "Master"}, loader)

	c.Source = SourceConfig{Kind: SourceJSON, Path: "m.json"}
	loader, _, err = c.NewLoader()
	require.NoError(t, err)
	assert.Equal(t, data.JSONLoader{Path: "m.json"}, loader)
}

func TestNewLoaderAirtable(t *testing.T) {
	c := Default()
	c.Source.Kind = SourceAirtable
	c.Airtable = AirtableConfig{APIKey: "patXXXXXXXXXXXX", BaseID: "appBase", Table: "Meters", View: "Grid"}
	loader, _, err := c.NewLoader()
	require.NoError(t, err)
	at, ok := loader.(data.AirtableLoader)
	require.True(t, ok)
	assert.Equal(t, data.ListParams{BaseID: "appBase", Table: "Meters", View: "Grid"}, at.Params)
	assert.Equal(t, "patXXXXXXXXXXXX", at.Client.APIKey)
}

func TestNewLoaderUnknownKind(t *testing.T) {
	c := Default()
	c.Source.Kind = "ftp"
	_, closeFn, err := c.NewLoader()
	assert.Error(t, err)
	assert.NotNil(t, closeFn)
}

func TestSectionMappings(t *testing.T) {
	c := Default()
	c.Database = DatabaseConfig{Host: "db", Port: "6543", User: "u", Password: "p", Name: "postgres", SSLMode: "disable"}
	assert.Contains(t, c.DBConfig().DSN(), "host=db user=u password=p dbname=postgres port=6543 sslmode=disable")

	c.Influx = InfluxConfig{URL: "http://influx:8086", Org: "o", Token: "t", Bucket: "b"}
	s := c.InfluxSink()
	assert.Equal(t, "http://influx:8086", s.URL)
	assert.Equal(t, "b", s.Bucket)
}
