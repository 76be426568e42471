package repository

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/timmy/sportsclips/internal/config"
	"github.com/timmy/sportsclips/internal/domain"
	"github.com/timmy/sportsclips/internal/logger"
)

// ErrNotFound is returned when a record lookup by id misses.
var ErrNotFound = errors.New("record not found")

// ErrRunInFlight is returned when an entity already has a QUEUED or RUNNING run.
var ErrRunInFlight = errors.New("run already in flight")

// ErrRunNotRunning is returned when a worker finishes a run it no longer owns, for
// example after the reaper failed it.
var ErrRunNotRunning = errors.New("run is no longer running")

// InitDB opens the configured database and migrates the schema.
// Parameters:
//   - cfg: database configuration including driver and connection settings.
// Returns:
//   - *gorm.DB: initialized database handle.
//   - error: non-nil if connection or migration fails.
func InitDB(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
	}

	logger.Info("[DB] Initializing database with driver: %q", cfg.Driver)

	var db *gorm.DB
	var err error
	switch cfg.Driver {
	case "postgres":
		db, err = gorm.Open(postgres.New(postgres.Config{
			DSN:                  cfg.DSN(),
			PreferSimpleProtocol: true,
		}), gormConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
	default:
		db, err = openSQLite(cfg.Path, gormConfig)
		if err != nil {
			return nil, err
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB instance: %w", err)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func openSQLite(path string, gormConfig *gorm.Config) (*gorm.DB, error) {
	if path != "" && path != ":memory:" && filepath.Dir(path) != "." {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := gorm.Open(sqlite.Open(path), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SQLite: %w", err)
	}
	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA foreign_keys=ON")
	db.Exec("PRAGMA busy_timeout=5000")
	return db, nil
}

// Migrate creates tables and the partial unique indexes that back the one-run-in-flight rule.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&domain.Source{},
		&domain.SourceFetchRun{},
		&domain.NewsItem{},
		&domain.OddsSnapshot{},
		&domain.GameResult{},
		&domain.QueryDefinition{},
		&domain.QueryRun{},
		&domain.Video{},
		&domain.Candidate{},
		&domain.Moment{},
		&domain.ClipMatch{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	// sqlite and postgres both support partial indexes
	for _, stmt := range []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS uniq_fetch_runs_in_flight ON source_fetch_runs (source_id) WHERE status IN ('QUEUED','RUNNING')`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uniq_query_runs_in_flight ON query_runs (query_definition_id) WHERE status IN ('QUEUED','RUNNING')`,
	} {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to create in-flight index: %w", err)
		}
	}
	return nil
}

// notFound maps gorm's miss error onto ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
