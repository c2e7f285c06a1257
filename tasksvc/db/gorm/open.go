package gorm

import (
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	stdgorm "gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const sqliteScheme = "sqlite://"

// Open connects to the database named by databaseURL. An empty URL opens a
// private in-memory sqlite database, "sqlite://<path>" a sqlite file, and
// "postgres://" or "postgresql://" a PostgreSQL server.
func Open(databaseURL string) (*stdgorm.DB, error) {
	config := &stdgorm.Config{Logger: logger.Default.LogMode(logger.Silent)}

	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		db, err := stdgorm.Open(postgres.Open(databaseURL), config)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return db, nil

	case databaseURL == "", strings.HasPrefix(databaseURL, sqliteScheme):
		path := strings.TrimPrefix(databaseURL, sqliteScheme)
		if path == "" {
			path = ":memory:"
		}

		db, err := stdgorm.Open(sqlite.Open(path), config)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}

		// sqlite serializes writers anyway, and an in-memory database only
		// lives as long as its single connection.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)

		return db, nil
	}

	return nil, fmt.Errorf("unsupported database url %q", databaseURL)
}
