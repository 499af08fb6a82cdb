package repo

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-recipe-backend/internal/domain"
)

// newTestDB opens a temp-file SQLite DB with foreign keys on. When migrate is
// true the full schema is created.
func newTestDB(t *testing.T, migrate bool) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), fmt.Sprintf("repo_test_%d.db", time.Now().UnixNano()))
	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	// Ensure the file handle is released before TempDir cleanup (Windows needs this).
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	if migrate {
		if err := AutoMigrate(db); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB, username, dietary string) *domain.User {
	t.Helper()
	u, err := CreateUser(context.Background(), db, username, "hash", domain.Profile{DietaryPreferences: dietary})
	if err != nil {
		t.Fatalf("seed user %q: %v", username, err)
	}
	return u
}

func seedRecipe(t *testing.T, db *gorm.DB, owner *domain.User, title string, public bool) *domain.Recipe {
	t.Helper()
	r := &domain.Recipe{UserID: owner.ID, Author: owner.Username, Title: title}
	if err := CreateRecipe(context.Background(), db, r); err != nil {
		t.Fatalf("seed recipe %q: %v", title, err)
	}
	if public {
		if err := PublishRecipe(context.Background(), db, r.ID); err != nil {
			t.Fatalf("publish %q: %v", title, err)
		}
		r.IsPublic = true
	}
	return r
}

func seedSave(t *testing.T, db *gorm.DB, r *domain.Recipe, u *domain.User) {
	t.Helper()
	ctx := context.Background()
	if _, err := InsertSave(ctx, db, r.ID, u.ID); err != nil {
		t.Fatalf("seed save: %v", err)
	}
	if _, err := RefreshSavedFlag(ctx, db, r.ID); err != nil {
		t.Fatalf("refresh saved: %v", err)
	}
}
