// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the save-relationship ledger functions.
//
// Every mutation of save_relationships must be followed, in the same
// transaction, by RefreshSavedFlag for the affected recipe. Services do this
// through a single call path; nothing else writes recipes.saved.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-recipe-backend/internal/domain"
)

// LockRecipe takes a write lock on the recipe row by issuing a no-op update.
// On SQLite this acquires the database write lock up front; on PostgreSQL it
// row-locks the recipe until commit. Concurrent ledger transactions on the
// same recipe therefore serialize. Returns ErrNotFound when no row matches.
func LockRecipe(ctx context.Context, tx *gorm.DB, recipeID int64) error {
	res := tx.WithContext(ctx).
		Model(&domain.Recipe{}).
		Where("id = ?", recipeID).
		UpdateColumn("saved", gorm.Expr("saved"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveExists reports whether userID has saved recipeID.
func SaveExists(ctx context.Context, db *gorm.DB, recipeID int64, userID string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.SaveRelationship{}).
		Where("recipe_id = ? AND user_id = ?", recipeID, userID).
		Count(&n).Error
	return n > 0, err
}

// InsertSave records that userID saved recipeID. An existing pair is left as
// is (ON CONFLICT DO NOTHING), so the call never produces a duplicate row.
// It reports whether a new row was written.
func InsertSave(ctx context.Context, tx *gorm.DB, recipeID int64, userID string) (bool, error) {
	rel := &domain.SaveRelationship{
		RecipeID:  recipeID,
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}
	res := tx.WithContext(ctx).
		Omit("Recipe", "User").
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "recipe_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).
		Create(rel)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// DeleteSave removes the (recipeID, userID) pair and reports whether a row
// was deleted.
func DeleteSave(ctx context.Context, tx *gorm.DB, recipeID int64, userID string) (bool, error) {
	res := tx.WithContext(ctx).
		Where("recipe_id = ? AND user_id = ?", recipeID, userID).
		Delete(&domain.SaveRelationship{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// RefreshSavedFlag recomputes recipes.saved from save_relationships for one
// recipe and returns the new value.
func RefreshSavedFlag(ctx context.Context, tx *gorm.DB, recipeID int64) (bool, error) {
	db := tx.WithContext(ctx)
	err := db.Exec(
		"UPDATE recipes SET saved = EXISTS (SELECT 1 FROM save_relationships WHERE recipe_id = ?) WHERE id = ?",
		recipeID, recipeID,
	).Error
	if err != nil {
		return false, err
	}
	var row struct{ Saved bool }
	if err := db.Model(&domain.Recipe{}).Select("saved").Where("id = ?", recipeID).Scan(&row).Error; err != nil {
		return false, err
	}
	return row.Saved, nil
}

// CountSaves returns the number of save relationships referencing recipeID.
func CountSaves(ctx context.Context, db *gorm.DB, recipeID int64) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.SaveRelationship{}).
		Where("recipe_id = ?", recipeID).
		Count(&n).Error
	return n, err
}

// CountDistinctSavers returns the number of distinct users that saved
// recipeID. With the (recipe_id, user_id) unique index it equals CountSaves.
func CountDistinctSavers(ctx context.Context, db *gorm.DB, recipeID int64) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.SaveRelationship{}).
		Where("recipe_id = ?", recipeID).
		Distinct("user_id").
		Count(&n).Error
	return n, err
}

// CountSavesByUser returns how many recipes userID has saved.
func CountSavesByUser(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.SaveRelationship{}).
		Where("user_id = ?", userID).
		Count(&n).Error
	return n, err
}

// ListSavedRecipes returns the recipes saved by userID with their save
// counts, most recently saved first.
func ListSavedRecipes(ctx context.Context, db *gorm.DB, userID string) ([]domain.RankedRecipe, error) {
	out := []domain.RankedRecipe{}
	err := rankedQuery(ctx, db).
		Joins("JOIN save_relationships AS mine ON mine.recipe_id = recipes.id AND mine.user_id = ?", userID).
		Order("MAX(mine.created_at) DESC").
		Order("recipes.id DESC").
		Scan(&out).Error
	return out, err
}

// SavedRecipeIDs returns which of recipeIDs userID has saved, as a set.
func SavedRecipeIDs(ctx context.Context, db *gorm.DB, userID string, recipeIDs []int64) (map[int64]bool, error) {
	out := make(map[int64]bool, len(recipeIDs))
	if len(recipeIDs) == 0 {
		return out, nil
	}
	var ids []int64
	err := db.WithContext(ctx).
		Model(&domain.SaveRelationship{}).
		Where("user_id = ? AND recipe_id IN ?", userID, recipeIDs).
		Pluck("recipe_id", &ids).Error
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}
