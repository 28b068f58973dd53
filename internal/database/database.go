// File: internal/database/database.go
package database

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/iyunix/go-chat/internal/domain"
)

// ErrNotConfigured is returned by Connection before Configure was called.
var ErrNotConfigured = errors.New("database connection not configured")

var (
	mu      sync.Mutex
	driver  string
	dsn     string
	current *gorm.DB
)

// Configure records how the process-wide connection should be opened. The
// connection itself is established lazily on the first Connection call.
func Configure(driverName, source string) {
	mu.Lock()
	defer mu.Unlock()
	driver, dsn = driverName, source
	current = nil
}

// Connection returns the shared *gorm.DB, opening and migrating it on first
// use. Concurrent first callers share one connection.
func Connection() (*gorm.DB, error) {
	mu.Lock()
	defer mu.Unlock()
	if current != nil {
		return current, nil
	}
	if driver == "" {
		return nil, ErrNotConfigured
	}
	db, err := Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	current = db
	return current, nil
}

// Open connects to the given driver ("sqlite" or "postgres").
func Open(driverName, source string) (*gorm.DB, error) {
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}

	var dialector gorm.Dialector
	switch strings.ToLower(driverName) {
	case "sqlite", "sqlite3":
		dialector = sqlite.Open(source)
	case "postgres", "postgresql":
		dialector = postgres.Open(source)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driverName)
	}

	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driverName, err)
	}
	log.Info().Str("driver", driverName).Msg("database connection opened")
	return db, nil
}

// OpenInMemory returns a migrated SQLite database that lives as long as the
// returned handle. Tests use it; it is limited to a single connection so
// every query sees the same in-memory database.
func OpenInMemory() (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates the schema.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&domain.User{}, &domain.Chat{}, &domain.Message{}); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Close releases the shared connection, if any.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if current == nil {
		return nil
	}
	sqlDB, err := current.DB()
	current = nil
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
