package config

import (
	"fmt"
	"log"
	"strings"

	"muscat-water/internal/data"
	"muscat-water/internal/sink"
)

// NewLoader builds the registry loader for the configured source. The
// returned close func releases any connection the loader holds and is never
// nil.
func (c *Config) NewLoader() (data.Loader, func() error, error) {
	noop := func() error { return nil }

	switch strings.ToLower(c.Source.Kind) {
	case SourceCSV:
		return data.CSVLoader{Path: c.Source.Path}, noop, nil
	case SourceXLSX:
		return data.XLSXLoader{Path: c.Source.Path, Sheet: c.Source.Sheet}, noop, nil
	case SourceJSON:
		return data.JSONLoader{Path: c.Source.Path}, noop, nil
	case SourceAirtable:
		client := data.NewAirtableClient(c.Airtable.APIKey, c.Airtable.BaseURL)
		return data.AirtableLoader{
			Client: client,
			Params: data.ListParams{
				BaseID: c.Airtable.BaseID,
				Table:  c.Airtable.Table,
				View:   c.Airtable.View,
			},
		}, noop, nil
	case SourceSupabase:
		db, err := data.OpenDB(c.DBConfig())
		if err != nil {
			return nil, noop, err
		}
		log.Printf("[Config] Connected to %s:%s/%s", c.Database.Host, c.Database.Port, c.Database.Name)
		closeDB := func() error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		}
		return data.SupabaseLoader{DB: db, Table: c.Database.Table}, closeDB, nil
	}
	return nil, noop, fmt.Errorf("unknown source kind %q", c.Source.Kind)
}

// DBConfig maps the database section onto the loader's connection settings.
func (c *Config) DBConfig() data.DBConfig {
	return data.DBConfig{
		Host:     c.Database.Host,
		Port:     c.Database.Port,
		User:     c.Database.User,
		Password: c.Database.Password,
		Name:     c.Database.Name,
		SSLMode:  c.Database.SSLMode,
	}
}

// InfluxSink maps the influx section onto the publisher settings.
func (c *Config) InfluxSink() sink.InfluxConfig {
	return sink.InfluxConfig{
		URL:    c.Influx.URL,
		Org:    c.Influx.Org,
		Token:  c.Influx.Token,
		Bucket: c.Influx.Bucket,
	}
}
