package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	memoryDSN = ":memory:"
)

// DB wraps the GORM database connection
type DB struct {
	*gorm.DB
}

// ParseURL splits a database URL into a driver name and the DSN that driver expects.
//
//	sqlite:// or sqlite://:memory:   in-memory sqlite
//	sqlite:///relative/path.db       sqlite file (sqlite:////abs/path.db for absolute paths)
//	postgres://... or postgresql://  PostgreSQL
func ParseURL(databaseURL string) (driver, dsn string, err error) {
	switch {
	case databaseURL == "sqlite://", databaseURL == "sqlite://"+memoryDSN, databaseURL == memoryDSN:
		return DriverSQLite, memoryDSN, nil
	case strings.HasPrefix(databaseURL, "sqlite:///"):
		path := strings.TrimPrefix(databaseURL, "sqlite:///")
		if path == "" {
			return "", "", fmt.Errorf("sqlite database url has no path: %q", databaseURL)
		}
		return DriverSQLite, path, nil
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return DriverPostgres, databaseURL, nil
	default:
		return "", "", fmt.Errorf("unsupported database url %q", databaseURL)
	}
}

// Connect opens the database named by databaseURL. An in-memory sqlite
// database is pinned to a single connection so every caller sees the same data.
func Connect(databaseURL string) (*DB, error) {
	driver, dsn, err := ParseURL(databaseURL)
	if err != nil {
		return nil, err
	}

	config := &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Warn),
		SkipDefaultTransaction: true,
	}

	var dialector gorm.Dialector
	switch driver {
	case DriverPostgres:
		dialector = postgres.Open(dsn)
		config.PrepareStmt = true
	default:
		dialector = sqlite.Open(dsn)
	}

	db, err := gorm.Open(dialector, config)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	if driver == DriverSQLite && dsn == memoryDSN {
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetConnMaxLifetime(0)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	return &DB{DB: db}, nil
}

// Ping checks if the database connection is alive
func (db *DB) Ping(ctx context.Context) error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return sqlDB.PingContext(ctx)
}

// Close closes the database connection
func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
