package data

import (
	"context"
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"muscat-water/internal/model"
)

// DefaultMeterTable is the Supabase table holding the water registry.
const DefaultMeterTable = "water_distribution_master"

// DBConfig holds the Postgres connection settings.
type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
	TimeZone string
}

// DSN renders the key=value connection string.
func (c DBConfig) DSN() string {
	ssl := c.SSLMode
	if ssl == "" {
		ssl = "require"
	}
	tz := c.TimeZone
	if tz == "" {
		tz = "Asia/Muscat"
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		c.Host, c.User, c.Password, c.Name, c.Port, ssl, tz)
}

// OpenDB connects to Postgres through gorm with a small read-only pool.
func OpenDB(cfg DBConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetMaxOpenConns(5)
	sqlDB.SetConnMaxLifetime(10 * time.Minute)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	return db, nil
}

// SupabaseLoader reads the registry table. Columns are meter_label,
// account_number, level, zone, parent_meter, type and one column per month
// (jan_25, feb_25, ...); unknown columns are ignored.
type SupabaseLoader struct {
	DB    *gorm.DB
	Table string
}

func (l SupabaseLoader) Load(ctx context.Context) ([]model.MeterRecord, error) {
	if l.DB == nil {
		return nil, fmt.Errorf("supabase loader has no database")
	}
	table := l.Table
	if table == "" {
		table = DefaultMeterTable
	}

	start := time.Now()
	var rows []map[string]interface{}
	if err := l.DB.WithContext(ctx).Table(table).Find(&rows).Error; err != nil {
		log.Printf("[Supabase] Query failed: %v (table=%s)", err, table)
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}

	out := make([]model.MeterRecord, 0, len(rows))
	for _, row := range rows {
		if m, ok := RecordFromFields(row); ok {
			out = append(out, m)
		}
	}
	log.Printf("[Supabase] Loaded %d meters from %d rows (table=%s, duration=%v)",
		len(out), len(rows), table, time.Since(start))
	return out, nil
}
