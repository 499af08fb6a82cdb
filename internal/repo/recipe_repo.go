// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Recipe model.
//
// Error semantics:
//   - When a recipe is not found, functions return gorm.ErrRecordNotFound
//     (exported here as ErrNotFound).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// Ownership is not checked here. Callers route mutations through the access
// gate in the service layer first.
//
// Read queries that feed the public surfaces return domain.RankedRecipe, a
// recipe plus its live save count, computed by rankedQuery.
package repo

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-recipe-backend/internal/domain"
)

// CreateRecipe inserts r and fills its generated ID. CreatedAt/UpdatedAt are
// set to UTC now when zero. IsPublic and Saved are forced to false.
func CreateRecipe(ctx context.Context, db *gorm.DB, r *domain.Recipe) error {
	now := time.Now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = r.CreatedAt
	}
	r.IsPublic = false
	r.Saved = false
	return db.WithContext(ctx).Omit("Owner").Create(r).Error
}

// GetRecipe fetches a recipe by id, or ErrNotFound.
func GetRecipe(ctx context.Context, db *gorm.DB, id int64) (*domain.Recipe, error) {
	var r domain.Recipe
	if err := db.WithContext(ctx).Where("id = ?", id).First(&r).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

// GetRankedRecipe fetches a recipe by id together with its save count.
func GetRankedRecipe(ctx context.Context, db *gorm.DB, id int64) (*domain.RankedRecipe, error) {
	var out []domain.RankedRecipe
	if err := rankedQuery(ctx, db).Where("recipes.id = ?", id).Scan(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return &out[0], nil
}

// UpdateRecipeContent replaces the ingredients and instructions of a recipe
// and refreshes its search text. Returns ErrNotFound when no row matches.
func UpdateRecipeContent(ctx context.Context, db *gorm.DB, id int64, ingredients, instructions string) error {
	cur, err := GetRecipe(ctx, db, id)
	if err != nil {
		return err
	}
	res := db.WithContext(ctx).
		Model(&domain.Recipe{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"ingredients":  ingredients,
			"instructions": instructions,
			"search_text":  domain.RecipeSearchText(cur.Title, cur.Description, ingredients),
			"updated_at":   time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// PublishRecipe sets is_public = true. Publishing an already public recipe
// is not an error. Returns ErrNotFound when no row matches.
func PublishRecipe(ctx context.Context, db *gorm.DB, id int64) error {
	res := db.WithContext(ctx).
		Model(&domain.Recipe{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"is_public":  true,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteRecipe removes a recipe and every save relationship referencing it.
// Relationships are deleted explicitly before the recipe row; the foreign key
// cascade covers stores where that is not enough. Run it inside a transaction
// to make both deletes one unit. Returns ErrNotFound when no recipe matched.
func DeleteRecipe(ctx context.Context, db *gorm.DB, id int64) error {
	db = db.WithContext(ctx)
	if err := db.Where("recipe_id = ?", id).Delete(&domain.SaveRelationship{}).Error; err != nil {
		return err
	}
	res := db.Where("id = ?", id).Delete(&domain.Recipe{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountPublicRecipes returns the number of recipes with is_public = true.
func CountPublicRecipes(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Recipe{}).
		Where("is_public = ?", true).
		Count(&total).Error
	return total, err
}

// ListPublicRecipes returns every public recipe with its save count, newest
// first (ties by id).
func ListPublicRecipes(ctx context.Context, db *gorm.DB) ([]domain.RankedRecipe, error) {
	return ListPublicRecipesPage(ctx, db, 0, -1)
}

// ListPublicRecipesPage returns a page of public recipes, newest first.
// A negative limit means no limit. Use CountPublicRecipes for the total.
func ListPublicRecipesPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.RankedRecipe, error) {
	out := []domain.RankedRecipe{}
	q := rankedQuery(ctx, db).
		Where("recipes.is_public = ?", true).
		Order("recipes.created_at DESC").
		Order("recipes.id DESC")
	if limit >= 0 {
		q = q.Offset(offset).Limit(limit)
	}
	err := q.Scan(&out).Error
	return out, err
}

// ListOwnedRecipes returns the private recipes of ownerID with their save
// counts, newest first. Public recipes are listed in the feed instead.
func ListOwnedRecipes(ctx context.Context, db *gorm.DB, ownerID string) ([]domain.RankedRecipe, error) {
	out := []domain.RankedRecipe{}
	err := rankedQuery(ctx, db).
		Where("recipes.user_id = ? AND recipes.is_public = ?", ownerID, false).
		Order("recipes.created_at DESC").
		Order("recipes.id DESC").
		Scan(&out).Error
	return out, err
}

// SearchRecipes matches query as a case-insensitive substring of title,
// description, or ingredients. A non-empty dietary filter additionally
// requires the owner's dietary preferences to contain it (case-insensitive).
// Both are folded with domain.FoldSearch and matched against the folded
// search columns, so non-ASCII text matches on every driver.
// Results are ordered by save count descending, then recipe id ascending.
//
// Visibility is not applied here; the service filters the result for the
// viewer.
func SearchRecipes(ctx context.Context, db *gorm.DB, query, dietary string) ([]domain.RankedRecipe, error) {
	out := []domain.RankedRecipe{}
	q := rankedQuery(ctx, db).
		Joins("JOIN users ON users.id = recipes.user_id")

	if query = domain.FoldSearch(query); query != "" {
		q = q.Where("recipes.search_text LIKE ? ESCAPE '\\'", likePattern(query))
	}
	if dietary = domain.FoldSearch(dietary); dietary != "" {
		q = q.Where("users.dietary_search LIKE ? ESCAPE '\\'", likePattern(dietary))
	}

	err := q.Order("save_count DESC").Order("recipes.id ASC").Scan(&out).Error
	return out, err
}

// rankedQuery selects recipes with a save_count column aggregated from
// save_relationships. Callers add filters and ordering.
func rankedQuery(ctx context.Context, db *gorm.DB) *gorm.DB {
	return db.WithContext(ctx).
		Model(&domain.Recipe{}).
		Select("recipes.*, COUNT(save_relationships.id) AS save_count").
		Joins("LEFT JOIN save_relationships ON save_relationships.recipe_id = recipes.id").
		Group("recipes.id")
}

// likePattern escapes LIKE wildcards in an already folded s and wraps it
// in '%'.
func likePattern(s string) string {
	s = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
	return "%" + s + "%"
}
