// Package services – LedgerService
//
// This file implements the save-relationship ledger. A user saves or unsaves
// a recipe with Toggle; the presence of the (recipe, user) pair is the saved
// state. Each toggle runs in one transaction that first write-locks the
// recipe row, then changes the pair, then recomputes recipes.saved through
// applyAndRefresh, the only code path that writes that column.
package services

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-recipe-backend/internal/domain"
	"github.com/tbourn/go-recipe-backend/internal/observability"
	"github.com/tbourn/go-recipe-backend/internal/repo"
)

// LedgerService records which users saved which recipes.
type LedgerService struct {
	DB *gorm.DB
}

// NewLedgerService constructs a LedgerService.
func NewLedgerService(db *gorm.DB) *LedgerService {
	return &LedgerService{DB: db}
}

// IsSaved reports whether userID has saved recipeID.
func (s *LedgerService) IsSaved(ctx context.Context, recipeID int64, userID string) (bool, error) {
	tr := otel.Tracer("services/LedgerService")
	ctx, span := tr.Start(ctx, "IsSaved",
		trace.WithAttributes(
			attribute.Int64("recipe.id", recipeID),
			attribute.String("user.id", userID),
		),
	)
	defer span.End()

	ok, err := repo.SaveExists(ctx, s.DB, recipeID, userID)
	if err != nil {
		return false, classify(err)
	}
	return ok, nil
}

// SavedAmong returns which of recipeIDs userID has saved.
func (s *LedgerService) SavedAmong(ctx context.Context, userID string, recipeIDs []int64) (map[int64]bool, error) {
	set, err := repo.SavedRecipeIDs(ctx, s.DB, userID, recipeIDs)
	if err != nil {
		return nil, classify(err)
	}
	return set, nil
}

// Toggle flips the saved state of (recipeID, userID) and returns the new
// state. The recipe must exist (ErrNotFound), be visible to the user
// (ErrForbidden), and not be authored by them (ErrSelfSave).
//
// Concurrent toggles on the same recipe serialize on the recipe row lock, so
// recipes.saved always matches the relationship count at commit.
func (s *LedgerService) Toggle(ctx context.Context, recipeID int64, userID string) (bool, error) {
	tr := otel.Tracer("services/LedgerService")
	ctx, span := tr.Start(ctx, "Toggle",
		trace.WithAttributes(
			attribute.Int64("recipe.id", recipeID),
			attribute.String("user.id", userID),
		),
	)
	defer span.End()

	var saved bool
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Lock first: on SQLite a read-then-write transaction can fail with
		// SQLITE_BUSY when two of them race to upgrade their locks.
		if err := repo.LockRecipe(ctx, tx, recipeID); err != nil {
			return err
		}
		r, err := repo.GetRecipe(ctx, tx, recipeID)
		if err != nil {
			return err
		}
		if !CanView(r, userID) {
			return ErrForbidden
		}
		if CanModify(r, userID) {
			return ErrSelfSave
		}

		saved, err = applyAndRefresh(ctx, tx, recipeID, userID)
		return err
	})
	if err != nil {
		return false, classify(err)
	}
	observability.ObserveToggle(saved)
	span.SetAttributes(attribute.Bool("recipe.saved_by_user", saved))
	return saved, nil
}

// applyAndRefresh removes the pair if present, otherwise inserts it, then
// recomputes the recipe's saved flag. It must run inside a transaction that
// holds the recipe lock. It reports whether the pair exists afterwards.
func applyAndRefresh(ctx context.Context, tx *gorm.DB, recipeID int64, userID string) (bool, error) {
	removed, err := repo.DeleteSave(ctx, tx, recipeID, userID)
	if err != nil {
		return false, err
	}
	if !removed {
		if _, err := repo.InsertSave(ctx, tx, recipeID, userID); err != nil {
			return false, err
		}
	}
	if _, err := repo.RefreshSavedFlag(ctx, tx, recipeID); err != nil {
		return false, err
	}
	return !removed, nil
}

// SaveCount returns how many save relationships reference recipeID.
func (s *LedgerService) SaveCount(ctx context.Context, recipeID int64) (int64, error) {
	n, err := repo.CountSaves(ctx, s.DB, recipeID)
	if err != nil {
		return 0, classify(err)
	}
	return n, nil
}

// UniqueSaverCount returns how many distinct users saved recipeID. It equals
// SaveCount because pairs are unique.
func (s *LedgerService) UniqueSaverCount(ctx context.Context, recipeID int64) (int64, error) {
	n, err := repo.CountDistinctSavers(ctx, s.DB, recipeID)
	if err != nil {
		return 0, classify(err)
	}
	return n, nil
}

// ListSaved returns the recipes userID saved that they can still view.
// A saved recipe whose owner made it private again is not listed.
func (s *LedgerService) ListSaved(ctx context.Context, userID string) ([]domain.RankedRecipe, error) {
	tr := otel.Tracer("services/LedgerService")
	ctx, span := tr.Start(ctx, "ListSaved",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	items, err := repo.ListSavedRecipes(ctx, s.DB, userID)
	if err != nil {
		return nil, classify(err)
	}
	return visibleTo(items, userID), nil
}
