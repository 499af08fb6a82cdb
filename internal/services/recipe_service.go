// Package services – RecipeService
//
// This file implements the recipe repository operations: creation (optionally
// idempotent), content updates, publishing, deletion, and the read surfaces
// (public feed, owner's private list, search, detail). Every mutating or
// detail-revealing call goes through the access gate first.
//
// Mutations that must touch more than one row (delete with its saves,
// idempotent create with its replay record) run inside one transaction.
//
// Observability: all public methods are OpenTelemetry-instrumented; mutation
// outcomes are counted in recipe_mutations_total.
package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-recipe-backend/internal/domain"
	"github.com/tbourn/go-recipe-backend/internal/observability"
	"github.com/tbourn/go-recipe-backend/internal/repo"
)

// ScopeCreateRecipe is the idempotency scope of recipe creation.
const ScopeCreateRecipe = "POST /recipes"

// RecipeDraft carries the author-supplied fields of a new recipe.
type RecipeDraft struct {
	Title        string
	Description  string
	Ingredients  string
	Instructions string
}

// RecipeService coordinates recipe persistence and visibility rules.
type RecipeService struct {
	DB *gorm.DB

	// TitleMaxLen caps stored titles by rune length.
	TitleMaxLen int
	// IdempotencyTTL is how long a create replay record stays valid.
	IdempotencyTTL time.Duration
}

// NewRecipeService constructs a RecipeService with default limits.
func NewRecipeService(db *gorm.DB) *RecipeService {
	return &RecipeService{
		DB:             db,
		TitleMaxLen:    255,
		IdempotencyTTL: 24 * time.Hour,
	}
}

// Create stores a new private recipe owned by ownerID. The author field is
// copied from the owner's current username and is not updated afterwards.
func (s *RecipeService) Create(ctx context.Context, ownerID string, d RecipeDraft) (*domain.Recipe, error) {
	tr := otel.Tracer("services/RecipeService")
	ctx, span := tr.Start(ctx, "Create",
		trace.WithAttributes(attribute.String("user.id", ownerID)),
	)
	defer span.End()

	var out *domain.Recipe
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := s.create(ctx, tx, ownerID, d)
		out = r
		return err
	})
	err = classify(err)
	observability.ObserveMutation("create", out != nil, infraOnly(err))
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int64("recipe.id", out.ID))
	return out, nil
}

// CreateOnce is Create keyed by an idempotency key. A repeated call with the
// same (ownerID, key) within the TTL returns the recipe created by the first
// call and replayed=true instead of creating another one. An empty key
// behaves like Create.
func (s *RecipeService) CreateOnce(ctx context.Context, ownerID, key string, d RecipeDraft) (r *domain.Recipe, replayed bool, err error) {
	key = strings.TrimSpace(key)
	if key == "" {
		r, err = s.Create(ctx, ownerID, d)
		return r, false, err
	}

	tr := otel.Tracer("services/RecipeService")
	ctx, span := tr.Start(ctx, "CreateOnce",
		trace.WithAttributes(attribute.String("user.id", ownerID)),
	)
	defer span.End()

	stale := false
	if r, err := s.replay(ctx, ownerID, key); err == nil {
		return r, true, nil
	} else if errors.Is(err, errStaleKey) {
		stale = true
	} else if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if stale {
			if err := repo.DeleteIdempotency(ctx, tx, ownerID, ScopeCreateRecipe, key); err != nil {
				return err
			}
		}
		created, err := s.create(ctx, tx, ownerID, d)
		if err != nil {
			return err
		}
		if _, err := repo.CreateIdempotency(ctx, tx, ownerID, ScopeCreateRecipe, key, created.ID, 201, s.IdempotencyTTL); err != nil {
			return err
		}
		r = created
		return nil
	})
	if errors.Is(err, repo.ErrDuplicate) {
		// A concurrent request with the same key committed first.
		r, err = s.replay(ctx, ownerID, key)
		return r, err == nil, err
	}
	err = classify(err)
	observability.ObserveMutation("create", r != nil, infraOnly(err))
	if err != nil {
		return nil, false, err
	}
	return r, false, nil
}

// errStaleKey reports a live idempotency record whose recipe was deleted.
// It matches ErrNotFound so callers outside CreateOnce see a plain miss.
var errStaleKey = fmt.Errorf("%w: idempotency key refers to a deleted recipe", ErrNotFound)

// replay loads the recipe recorded for (ownerID, key). It returns
// ErrNotFound when no record exists and errStaleKey when the record
// outlived its recipe.
func (s *RecipeService) replay(ctx context.Context, ownerID, key string) (*domain.Recipe, error) {
	rec, err := repo.GetIdempotency(ctx, s.DB, ownerID, ScopeCreateRecipe, key, time.Now().UTC())
	if err != nil {
		return nil, classify(err)
	}
	r, err := repo.GetRecipe(ctx, s.DB, rec.RecipeID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, errStaleKey
	}
	if err != nil {
		return nil, classify(err)
	}
	return r, nil
}

func (s *RecipeService) create(ctx context.Context, tx *gorm.DB, ownerID string, d RecipeDraft) (*domain.Recipe, error) {
	title := s.clip(normalizeTitle(d.Title))
	if title == "" {
		return nil, ErrEmptyTitle
	}
	owner, err := repo.GetUser(ctx, tx, ownerID)
	if err != nil {
		return nil, err
	}
	r := &domain.Recipe{
		UserID:       owner.ID,
		Author:       owner.Username,
		Title:        title,
		Description:  d.Description,
		Ingredients:  d.Ingredients,
		Instructions: d.Instructions,
	}
	if err := repo.CreateRecipe(ctx, tx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// Update replaces the ingredients and instructions of a recipe owned by
// editorID. Returns ErrNotFound or ErrForbidden when the gate rejects it.
func (s *RecipeService) Update(ctx context.Context, recipeID int64, editorID, ingredients, instructions string) error {
	tr := otel.Tracer("services/RecipeService")
	ctx, span := tr.Start(ctx, "Update",
		trace.WithAttributes(
			attribute.Int64("recipe.id", recipeID),
			attribute.String("user.id", editorID),
		),
	)
	defer span.End()

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := repo.GetRecipe(ctx, tx, recipeID)
		if err != nil {
			return err
		}
		if !CanModify(r, editorID) {
			return ErrForbidden
		}
		return repo.UpdateRecipeContent(ctx, tx, recipeID, ingredients, instructions)
	})
	err = classify(err)
	observability.ObserveMutation("update", err == nil, infraOnly(err))
	return err
}

// MakePublic publishes a recipe. It returns true only when the recipe exists
// and is owned by ownerID; publishing twice is a no-op that still returns
// true. A false result with a nil error means nothing changed.
func (s *RecipeService) MakePublic(ctx context.Context, recipeID int64, ownerID string) (bool, error) {
	tr := otel.Tracer("services/RecipeService")
	ctx, span := tr.Start(ctx, "MakePublic",
		trace.WithAttributes(
			attribute.Int64("recipe.id", recipeID),
			attribute.String("user.id", ownerID),
		),
	)
	defer span.End()

	applied, err := s.ownedMutation(ctx, recipeID, ownerID, func(tx *gorm.DB, r *domain.Recipe) error {
		if r.IsPublic {
			return nil
		}
		return repo.PublishRecipe(ctx, tx, recipeID)
	})
	observability.ObserveMutation("publish", applied, err)
	return applied, err
}

// Delete removes a recipe owned by ownerID together with every save
// relationship that references it, atomically. A false result with a nil
// error means the recipe does not exist or belongs to someone else, and
// nothing changed.
func (s *RecipeService) Delete(ctx context.Context, recipeID int64, ownerID string) (bool, error) {
	tr := otel.Tracer("services/RecipeService")
	ctx, span := tr.Start(ctx, "Delete",
		trace.WithAttributes(
			attribute.Int64("recipe.id", recipeID),
			attribute.String("user.id", ownerID),
		),
	)
	defer span.End()

	applied, err := s.ownedMutation(ctx, recipeID, ownerID, func(tx *gorm.DB, _ *domain.Recipe) error {
		return repo.DeleteRecipe(ctx, tx, recipeID)
	})
	observability.ObserveMutation("delete", applied, err)
	return applied, err
}

// ownedMutation loads the recipe in a transaction, applies the gate's
// CanModify and runs fn. Gate or existence failures yield (false, nil).
func (s *RecipeService) ownedMutation(ctx context.Context, recipeID int64, ownerID string, fn func(tx *gorm.DB, r *domain.Recipe) error) (bool, error) {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := repo.GetRecipe(ctx, tx, recipeID)
		if err != nil {
			return err
		}
		if !CanModify(r, ownerID) {
			return ErrForbidden
		}
		return fn(tx, r)
	})
	switch err = classify(err); {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrForbidden):
		return false, nil
	default:
		return false, err
	}
}

// ListPublic returns every public recipe with its save count.
func (s *RecipeService) ListPublic(ctx context.Context) ([]domain.RankedRecipe, error) {
	tr := otel.Tracer("services/RecipeService")
	ctx, span := tr.Start(ctx, "ListPublic")
	defer span.End()

	items, err := repo.ListPublicRecipes(ctx, s.DB)
	if err != nil {
		return nil, classify(err)
	}
	return items, nil
}

// ListPublicPage returns a page of the public feed and the total count.
// It applies defaults for invalid page/pageSize.
func (s *RecipeService) ListPublicPage(ctx context.Context, page, pageSize int) ([]domain.RankedRecipe, int64, error) {
	tr := otel.Tracer("services/RecipeService")
	ctx, span := tr.Start(ctx, "ListPublicPage",
		trace.WithAttributes(
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}

	total, err := repo.CountPublicRecipes(ctx, s.DB)
	if err != nil {
		return nil, 0, classify(err)
	}
	// Pages past the last one are empty. Checked by division so a huge page
	// never overflows the offset.
	if total == 0 || int64(page-1) > (total-1)/int64(pageSize) {
		return []domain.RankedRecipe{}, total, nil
	}
	offset := (page - 1) * pageSize

	items, err := repo.ListPublicRecipesPage(ctx, s.DB, offset, pageSize)
	if err != nil {
		return nil, 0, classify(err)
	}
	return items, total, nil
}

// FeedVersion returns an opaque token that changes whenever the public feed
// or any save count may have changed. Handlers use it as an ETag source.
func (s *RecipeService) FeedVersion(ctx context.Context) (string, error) {
	count, maxTS, err := repo.PublicRecipesStats(ctx, s.DB)
	if err != nil {
		return "", classify(err)
	}
	saves, maxSave, err := repo.SaveStats(ctx, s.DB)
	if err != nil {
		return "", classify(err)
	}
	return fmt.Sprintf("%d:%d:%d:%d", count, unixNano(maxTS), saves, unixNano(maxSave)), nil
}

// ListOwned returns the private recipes of ownerID.
func (s *RecipeService) ListOwned(ctx context.Context, ownerID string) ([]domain.RankedRecipe, error) {
	tr := otel.Tracer("services/RecipeService")
	ctx, span := tr.Start(ctx, "ListOwned",
		trace.WithAttributes(attribute.String("user.id", ownerID)),
	)
	defer span.End()

	items, err := repo.ListOwnedRecipes(ctx, s.DB, ownerID)
	if err != nil {
		return nil, classify(err)
	}
	return items, nil
}

// Search matches query case-insensitively against title, description and
// ingredients, optionally restricted to owners whose dietary preferences
// contain dietary. Results are ordered by save count (desc), then id, and
// only include recipes viewerID may see.
func (s *RecipeService) Search(ctx context.Context, viewerID, query, dietary string) ([]domain.RankedRecipe, error) {
	tr := otel.Tracer("services/RecipeService")
	ctx, span := tr.Start(ctx, "Search",
		trace.WithAttributes(
			attribute.String("user.id", viewerID),
			attribute.String("query", query),
			attribute.String("dietary", dietary),
		),
	)
	defer span.End()

	items, err := repo.SearchRecipes(ctx, s.DB, strings.TrimSpace(query), strings.TrimSpace(dietary))
	if err != nil {
		return nil, classify(err)
	}
	return visibleTo(items, viewerID), nil
}

// Get returns a recipe with its save count if viewerID may see it.
func (s *RecipeService) Get(ctx context.Context, recipeID int64, viewerID string) (*domain.RankedRecipe, error) {
	tr := otel.Tracer("services/RecipeService")
	ctx, span := tr.Start(ctx, "Get",
		trace.WithAttributes(
			attribute.Int64("recipe.id", recipeID),
			attribute.String("user.id", viewerID),
		),
	)
	defer span.End()

	r, err := repo.GetRankedRecipe(ctx, s.DB, recipeID)
	if err != nil {
		return nil, classify(err)
	}
	if !CanView(&r.Recipe, viewerID) {
		return nil, ErrForbidden
	}
	return r, nil
}

// clip truncates a title to the configured maximum rune length.
func (s *RecipeService) clip(title string) string {
	if s.TitleMaxLen > 0 && utf8.RuneCountInString(title) > s.TitleMaxLen {
		return string([]rune(title)[:s.TitleMaxLen])
	}
	return title
}

// infraOnly keeps infrastructure errors and drops precondition ones, for
// metric labelling.
func infraOnly(err error) error {
	if errors.Is(err, ErrConnectionFailure) || errors.Is(err, ErrConstraintViolation) {
		return err
	}
	return nil
}

// normalizeTitle trims whitespace and collapses multiple spaces to one.
func normalizeTitle(s string) string {
	return whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
}

// whitespaceRE collapses consecutive whitespace to a single space.
var whitespaceRE = regexp.MustCompile(`\s+`)

func unixNano(t *time.Time) int64 {
	if t == nil {
		return 0
	}
	return t.UnixNano()
}
