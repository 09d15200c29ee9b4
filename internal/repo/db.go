// Package repo implements the GORM-backed tabular store and the webhook
// dedup table. This file contains database bootstrapping: credential
// parsing, driver selection (SQLite, PostgreSQL, MySQL), PRAGMAs for the
// pure-Go SQLite driver, tracing, and schema migrations.
package repo

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/go-order-bot/internal/domain"
)

// Supported store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	// DriverMemory keeps everything in process; nothing survives a restart.
	DriverMemory = "memory"
)

// Credentials is the decoded store credentials payload
// (STORE_CREDS_JSON), e.g. {"driver":"postgres","dsn":"postgres://..."}.
type Credentials struct {
	Driver string `json:"driver"`
	DSN    string `json:"dsn"`
}

// ParseCredentials decodes and validates the credentials payload. An empty
// driver defaults to SQLite.
func ParseCredentials(payload string) (Credentials, error) {
	var c Credentials
	if strings.TrimSpace(payload) == "" {
		return c, errors.New("store credentials are empty")
	}
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		return c, fmt.Errorf("decode store credentials: %w", err)
	}
	c.Driver = strings.ToLower(strings.TrimSpace(c.Driver))
	if c.Driver == "" {
		c.Driver = DriverSQLite
	}
	switch c.Driver {
	case DriverMemory:
		return c, nil
	case DriverSQLite, DriverPostgres, DriverMySQL:
	default:
		return c, fmt.Errorf("unsupported store driver %q", c.Driver)
	}
	if strings.TrimSpace(c.DSN) == "" {
		return c, errors.New("store credentials: dsn must not be empty")
	}
	return c, nil
}

// Open connects to the store described by c and installs the OpenTelemetry
// GORM plugin so every statement becomes a span. DriverMemory has no
// database and is rejected here; callers use sheets.Memory instead.
func Open(c Credentials) (*gorm.DB, error) {
	var (
		db  *gorm.DB
		err error
	)
	switch c.Driver {
	case DriverSQLite:
		db, err = OpenSQLite(c.DSN)
	case DriverPostgres:
		db, err = gorm.Open(postgres.Open(c.DSN), gormConfig())
	case DriverMySQL:
		db, err = gorm.Open(mysql.Open(c.DSN), gormConfig())
	default:
		return nil, fmt.Errorf("unsupported store driver %q", c.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, fmt.Errorf("install gorm tracing: %w", err)
	}
	return db, nil
}

// OpenSQLite opens (or creates) a SQLite database and applies PRAGMAs.
func OpenSQLite(path string) (*gorm.DB, error) {
	// Fail early if parent directory does not exist (instead of sqlite "out of memory (14)" on Windows).
	if dir := filepath.Dir(strings.TrimPrefix(path, "file:")); dir != "." && !strings.Contains(path, "mode=memory") {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), gormConfig())
	if err != nil {
		return nil, err
	}

	// PRAGMAs
	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=NORMAL;")
	db.Exec("PRAGMA foreign_keys=ON;")
	db.Exec("PRAGMA busy_timeout=5000;")

	// Pool
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	return db, nil
}

// AutoMigrate creates the worksheet, row and dedup tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Worksheet{},
		&domain.SheetRow{},
		&domain.ProcessedUpdate{},
	)
}

func gormConfig() *gorm.Config {
	return &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}
}
