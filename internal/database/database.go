package database

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/assetdesk/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	db   *gorm.DB
	once sync.Once
)

// Open connects to the sqlite database at dbPath and migrates the schema.
// Each call returns an independent connection pool.
func Open(dbPath string, quiet bool) (*gorm.DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	cfg := &gorm.Config{}
	if quiet {
		cfg.Logger = logger.Default.LogMode(logger.Silent)
	}

	// WAL plus a busy timeout lets API writes and run result writes interleave.
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"
	conn, err := gorm.Open(sqlite.Open(dsn), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := conn.AutoMigrate(
		&models.ReportSchedule{},
		&models.ReportRun{},
		&models.User{},
		&models.Asset{},
		&models.License{},
		&models.Assignment{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return conn, nil
}

// Initialize opens the process-wide database.
func Initialize(dbPath string) error {
	var initErr error
	once.Do(func() {
		db, initErr = Open(dbPath, false)
	})
	return initErr
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	if db == nil {
		panic("Database not initialized. Call Initialize() first")
	}
	return db
}

// Close closes the database connection
func Close() error {
	if db == nil {
		return nil
	}
	return CloseDB(db)
}

func CloseDB(conn *gorm.DB) error {
	sqlDB, err := conn.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying *sql.DB: %w", err)
	}
	return sqlDB.Close()
}
