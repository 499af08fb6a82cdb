// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file contains database bootstrapping helpers for
// SQLite (pure Go driver) and PostgreSQL, plus schema migrations.
package repo

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-recipe-backend/internal/config"
	"github.com/tbourn/go-recipe-backend/internal/domain"
)

// Open selects the driver named in cfg and returns a pooled connection.
func Open(cfg config.DBConfig) (*gorm.DB, error) {
	switch cfg.Driver {
	case "postgres":
		return OpenPostgres(cfg.URL)
	case "sqlite", "":
		return OpenSQLite(cfg.Path)
	default:
		return nil, fmt.Errorf("unsupported DB driver %q", cfg.Driver)
	}
}

// OpenSQLite opens (or creates) a SQLite database and applies PRAGMAs.
//
// PRAGMAs are passed in the DSN so that every pooled connection gets them,
// not just the first one.
func OpenSQLite(path string) (*gorm.DB, error) {
	// Fail early if parent directory does not exist (instead of sqlite "out of memory (14)" on Windows).
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	dsn := "file:" + path +
		"?_pragma=foreign_keys(1)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)"

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	// Pool
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	return db, nil
}

// OpenPostgres opens a PostgreSQL connection from a URL-style DSN and
// configures pooling. The session time zone is forced to UTC.
func OpenPostgres(databaseURL string) (*gorm.DB, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	dsn, err := ensureTimezoneUTC(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

// Close releases the underlying connection pool. A nil db is a no-op.
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// AutoMigrate creates or updates the schema for all persisted models, then
// fills the folded search columns of rows written before they existed.
// Users come first so that foreign keys from recipes and saves resolve.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&domain.User{},
		&domain.Recipe{},
		&domain.SaveRelationship{},
		&domain.Idempotency{},
	); err != nil {
		return err
	}
	return backfillSearchColumns(db)
}

// backfillSearchColumns derives recipes.search_text and users.dietary_search
// where they are still empty. A populated recipe row is never empty (it
// always contains the field separators), so reruns touch nothing.
func backfillSearchColumns(db *gorm.DB) error {
	var recipes []domain.Recipe
	err := db.Where("search_text IS NULL OR search_text = ?", "").
		FindInBatches(&recipes, 200, func(_ *gorm.DB, _ int) error {
			for _, r := range recipes {
				if err := db.Model(&domain.Recipe{}).
					Where("id = ?", r.ID).
					UpdateColumn("search_text", domain.RecipeSearchText(r.Title, r.Description, r.Ingredients)).
					Error; err != nil {
					return err
				}
			}
			return nil
		}).Error
	if err != nil {
		return fmt.Errorf("backfill recipe search text: %w", err)
	}

	var users []domain.User
	err = db.Where("(dietary_search IS NULL OR dietary_search = ?) AND dietary_preferences <> ?", "", "").
		FindInBatches(&users, 200, func(_ *gorm.DB, _ int) error {
			for _, u := range users {
				if err := db.Model(&domain.User{}).
					Where("id = ?", u.ID).
					UpdateColumn("dietary_search", domain.FoldSearch(u.Profile.DietaryPreferences)).
					Error; err != nil {
					return err
				}
			}
			return nil
		}).Error
	if err != nil {
		return fmt.Errorf("backfill dietary search: %w", err)
	}
	return nil
}

// ensureTimezoneUTC adds TimeZone=UTC to URL-style DSNs that lack it.
// Key/value DSNs ("host=... user=...") are returned unchanged.
func ensureTimezoneUTC(databaseURL string) (string, error) {
	if !strings.Contains(databaseURL, "://") {
		return databaseURL, nil
	}
	u, err := url.Parse(databaseURL)
	if err != nil {
		return "", err
	}

	q := u.Query()
	if q.Get("TimeZone") == "" {
		q.Set("TimeZone", "UTC")
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
