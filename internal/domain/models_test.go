package domain

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newDomainDB(t *testing.T) *gorm.DB {
	t.Helper()
	// foreign_keys is a per-connection pragma, so pass it in the DSN.
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)", filepath.Join(t.TempDir(), "domain.db"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func TestTableNames(t *testing.T) {
	cases := []struct {
		got, want string
	}{
		{(User{}).TableName(), "users"},
		{(Recipe{}).TableName(), "recipes"},
		{(SaveRelationship{}).TableName(), "save_relationships"},
		{(Idempotency{}).TableName(), "idempotency"},
	}
	for _, tc := range cases {
		if tc.got != tc.want {
			t.Fatalf("TableName() = %q; want %q", tc.got, tc.want)
		}
	}
}

func TestMigrations_Indexes_AndCascades(t *testing.T) {
	db := newDomainDB(t)

	if err := db.AutoMigrate(&User{}, &Recipe{}, &SaveRelationship{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	m := db.Migrator()

	for _, tbl := range []any{&User{}, &Recipe{}, &SaveRelationship{}} {
		if !m.HasTable(tbl) {
			t.Fatalf("expected table for %T to exist", tbl)
		}
	}
	if !m.HasIndex(&User{}, "ux_users_username") {
		t.Fatalf("expected unique index ux_users_username on users")
	}
	if !m.HasIndex(&Recipe{}, "idx_recipes_owner") {
		t.Fatalf("expected index idx_recipes_owner on recipes")
	}
	if !m.HasIndex(&SaveRelationship{}, "ux_save_recipe_user") {
		t.Fatalf("expected unique index ux_save_recipe_user on save_relationships")
	}
	// Profile is embedded, not a separate table.
	if !m.HasColumn(&User{}, "dietary_preferences") {
		t.Fatalf("expected embedded profile column dietary_preferences on users")
	}

	now := time.Now().UTC()
	owner := &User{ID: "u1", Username: "chef", PasswordHash: "x", CreatedAt: now}
	saver := &User{ID: "u2", Username: "fan", PasswordHash: "x", CreatedAt: now}
	for _, u := range []*User{owner, saver} {
		if err := db.Create(u).Error; err != nil {
			t.Fatalf("insert user %s: %v", u.ID, err)
		}
	}

	r := &Recipe{UserID: "u1", Title: "Soup", Author: "chef", CreatedAt: now}
	if err := db.Create(r).Error; err != nil {
		t.Fatalf("insert recipe: %v", err)
	}
	if r.ID == 0 {
		t.Fatalf("expected autoincrement recipe id")
	}
	if r.IsPublic || r.Saved {
		t.Fatalf("new recipe should default to private/unsaved: %+v", r)
	}

	if err := db.Create(&SaveRelationship{RecipeID: r.ID, UserID: "u2", CreatedAt: now}).Error; err != nil {
		t.Fatalf("insert save: %v", err)
	}
	// Uniqueness per (recipe, user).
	if err := db.Create(&SaveRelationship{RecipeID: r.ID, UserID: "u2", CreatedAt: now}).Error; err == nil {
		t.Fatalf("expected unique violation on duplicate save")
	}

	// CASCADE: deleting the recipe removes its save relationships.
	if err := db.Delete(&Recipe{}, "id = ?", r.ID).Error; err != nil {
		t.Fatalf("delete recipe: %v", err)
	}
	var cnt int64
	if err := db.Model(&SaveRelationship{}).Where("recipe_id = ?", r.ID).Count(&cnt).Error; err != nil {
		t.Fatalf("count saves after recipe delete: %v", err)
	}
	if cnt != 0 {
		t.Fatalf("expected saves to cascade-delete with recipe, got count=%d", cnt)
	}
}

func TestSaveRelationship_ForeignKeyRejectsUnknownRecipe(t *testing.T) {
	db := newDomainDB(t)
	if err := db.AutoMigrate(&User{}, &Recipe{}, &SaveRelationship{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	if err := db.Create(&User{ID: "u1", Username: "a", PasswordHash: "x"}).Error; err != nil {
		t.Fatalf("insert user: %v", err)
	}
	if err := db.Create(&SaveRelationship{RecipeID: 999, UserID: "u1"}).Error; err == nil {
		t.Fatalf("expected FK violation for unknown recipe")
	}
}
