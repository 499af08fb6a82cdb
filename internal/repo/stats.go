// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides aggregate queries: per-owner save counts
// for the statistics aggregator, and small (count, max updated_at) pairs used
// for conditional responses (ETag generation) in the HTTP layer.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-recipe-backend/internal/domain"
)

// RecipeSaveCount is one owned recipe with its current save count.
type RecipeSaveCount struct {
	RecipeID  int64
	Title     string
	SaveCount int64
}

// OwnedRecipeSaveCounts returns every recipe owned by ownerID (public and
// private) with its save count, ordered by save count descending and then
// recipe id ascending. The first element is therefore the most saved recipe,
// ties resolved to the lowest id.
func OwnedRecipeSaveCounts(ctx context.Context, db *gorm.DB, ownerID string) ([]RecipeSaveCount, error) {
	out := []RecipeSaveCount{}
	err := db.WithContext(ctx).
		Model(&domain.Recipe{}).
		Select("recipes.id AS recipe_id, recipes.title AS title, COUNT(save_relationships.id) AS save_count").
		Joins("LEFT JOIN save_relationships ON save_relationships.recipe_id = recipes.id").
		Where("recipes.user_id = ?", ownerID).
		Group("recipes.id").
		Group("recipes.title").
		Order("save_count DESC").
		Order("recipes.id ASC").
		Scan(&out).Error
	return out, err
}

// PublicRecipesStats returns aggregate metadata for the public feed: the
// number of public recipes and the greatest UpdatedAt among them.
//
// When there are no public recipes, the returned count is 0 and maxUpdatedAt
// is nil.
func PublicRecipesStats(ctx context.Context, db *gorm.DB) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Recipe{}).Where("is_public = ?", true)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}

// SaveStats returns the total number of save relationships and the latest
// CreatedAt among them. Saves change feed save counts without touching
// recipes.updated_at, so feed ETags mix both.
func SaveStats(ctx context.Context, db *gorm.DB) (count int64, maxCreatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.SaveRelationship{})

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	var row struct {
		CreatedAt time.Time
	}
	if err = q.Select("created_at").Order("created_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.CreatedAt, nil
}
