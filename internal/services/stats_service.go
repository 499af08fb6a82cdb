// Package services – StatsService
//
// This file computes per-user statistics: how many recipes a user owns, how
// many recipes they saved, the average save count across their recipes, and
// the title of their most saved recipe.
package services

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-recipe-backend/internal/domain"
	"github.com/tbourn/go-recipe-backend/internal/repo"
)

// StatsService aggregates per-user statistics.
type StatsService struct {
	DB *gorm.DB
}

// NewStatsService constructs a StatsService.
func NewStatsService(db *gorm.DB) *StatsService {
	return &StatsService{DB: db}
}

// Compute returns the statistics of userID, or ErrNotFound for an unknown
// user. All reads share one transaction so the figures are consistent with
// each other.
//
// AvgSavesPerRecipe is 0 when the user owns no recipes. MostPopularRecipe is
// nil in that case too; otherwise it is the title of the recipe with the
// highest save count, ties going to the oldest recipe. A user whose recipes
// have no saves still has a most popular recipe.
func (s *StatsService) Compute(ctx context.Context, userID string) (*domain.UserStatistics, error) {
	tr := otel.Tracer("services/StatsService")
	ctx, span := tr.Start(ctx, "Compute",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	var (
		counts []repo.RecipeSaveCount
		saved  int64
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := repo.GetUser(ctx, tx, userID); err != nil {
			return err
		}
		var err error
		if counts, err = repo.OwnedRecipeSaveCounts(ctx, tx, userID); err != nil {
			return err
		}
		saved, err = repo.CountSavesByUser(ctx, tx, userID)
		return err
	})
	if err != nil {
		return nil, classify(err)
	}

	st := &domain.UserStatistics{
		TotalRecipes: int64(len(counts)),
		SavedRecipes: saved,
	}
	if len(counts) == 0 {
		return st, nil
	}

	var total int64
	for _, c := range counts {
		total += c.SaveCount
	}
	st.AvgSavesPerRecipe = float64(total) / float64(len(counts))
	title := counts[0].Title
	st.MostPopularRecipe = &title
	return st, nil
}
