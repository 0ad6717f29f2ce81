// Package database opens the application's SQLite database and migrates
// the owned tables.
package database

import (
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Amsanan/elterngeld-wizard-61894-sub000/internal/extraction"
	"github.com/Amsanan/elterngeld-wizard-61894-sub000/internal/mapping"
	"github.com/Amsanan/elterngeld-wizard-61894-sub000/internal/workflow"
)

// Open opens (and if needed creates) the SQLite database at path and
// auto-migrates the mapping, extraction and workflow tables.
func Open(path string, debug bool) (*gorm.DB, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	logMode := logger.Silent
	if debug {
		logMode = logger.Info
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logMode),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}

	if err := db.AutoMigrate(
		&mapping.FieldMapping{},
		&extraction.Record{},
		&workflow.Progress{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return db, nil
}
