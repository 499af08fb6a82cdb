// Package handlers provides HTTP handler implementations for the public API.
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses (including conditional responses).
// Ownership and visibility are decided by the services; handlers never look at
// a recipe's owner themselves.
package handlers

import (
	"context"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-recipe-backend/internal/domain"
	"github.com/tbourn/go-recipe-backend/internal/services"
	"github.com/tbourn/go-recipe-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// CredentialService registers and authenticates users and serves profiles.
type CredentialService interface {
	Register(ctx context.Context, username, password string, profile domain.Profile) (string, error)
	Authenticate(ctx context.Context, username, password string) (string, error)
	Profile(ctx context.Context, userID string) (*domain.User, error)
	UpdateProfile(ctx context.Context, userID string, p domain.Profile) (*domain.User, error)
}

// RecipeService defines recipe lifecycle and read operations.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type RecipeService interface {
	// CreateOnce creates a recipe, replaying the earlier result for a
	// repeated idempotency key. An empty key always creates.
	CreateOnce(ctx context.Context, ownerID, key string, d services.RecipeDraft) (*domain.Recipe, bool, error)
	Update(ctx context.Context, recipeID int64, editorID, ingredients, instructions string) error
	MakePublic(ctx context.Context, recipeID int64, ownerID string) (bool, error)
	Delete(ctx context.Context, recipeID int64, ownerID string) (bool, error)
	ListPublicPage(ctx context.Context, page, pageSize int) ([]domain.RankedRecipe, int64, error)
	FeedVersion(ctx context.Context) (string, error)
	ListOwned(ctx context.Context, ownerID string) ([]domain.RankedRecipe, error)
	Search(ctx context.Context, viewerID, query, dietary string) ([]domain.RankedRecipe, error)
	Get(ctx context.Context, recipeID int64, viewerID string) (*domain.RankedRecipe, error)
}

// LedgerService defines save/unsave operations and save queries.
type LedgerService interface {
	Toggle(ctx context.Context, recipeID int64, userID string) (bool, error)
	IsSaved(ctx context.Context, recipeID int64, userID string) (bool, error)
	SaveCount(ctx context.Context, recipeID int64) (int64, error)
	UniqueSaverCount(ctx context.Context, recipeID int64) (int64, error)
	ListSaved(ctx context.Context, userID string) ([]domain.RankedRecipe, error)
	SavedAmong(ctx context.Context, userID string, recipeIDs []int64) (map[int64]bool, error)
}

// StatsService computes per-user statistics.
type StatsService interface {
	Compute(ctx context.Context, userID string) (*domain.UserStatistics, error)
}

// TokenIssuer mints bearer tokens after a successful login.
type TokenIssuer interface {
	Issue(userID, username string) (string, time.Time, error)
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for auth, profiles, recipes, saves and
// statistics. It depends on abstract service interfaces to keep transport
// concerns separate from business logic.
type Handlers struct {
	creds   CredentialService
	recipes RecipeService
	ledger  LedgerService
	stats   StatsService
	tokens  TokenIssuer
}

// New constructs and returns a Handlers instance bound to the given services.
func New(creds CredentialService, recipes RecipeService, ledger LedgerService, stats StatsService, tokens TokenIssuer) *Handlers {
	return &Handlers{creds: creds, recipes: recipes, ledger: ledger, stats: stats, tokens: tokens}
}

// userID returns the authenticated user id set by the Authenticate
// middleware, or "" when the request is anonymous.
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

//
// DTOs
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// RecipeView is a recipe as returned to a viewer: the stored fields, its save
// count, and whether the viewer has saved it.
type RecipeView struct {
	domain.RankedRecipe
	IsSaved bool `json:"is_saved"`
}

// RecipeListResponse wraps an unpaginated list of recipes.
type RecipeListResponse struct {
	Recipes []RecipeView `json:"recipes"`
}

// FeedResponse wraps a page of the public feed and pagination information.
type FeedResponse struct {
	Recipes    []RecipeView `json:"recipes"`
	Pagination Pagination   `json:"pagination"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize). page is capped so that
// (page-1)*pageSize fits in 32 bits.
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
		maxPage         = math.MaxInt32 / maxPageSize
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	if page > maxPage {
		page = maxPage
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

// recipeIDParam parses the :id path parameter. It writes a 400 and returns
// false when the id is not a positive integer.
func recipeIDParam(c *gin.Context) (int64, bool) {
	id, valid := utils.PositiveID(c.Param("id"))
	if !valid {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "recipe id must be a positive integer")
	}
	return id, valid
}

// views enriches items with the viewer's saved state. Anonymous viewers see
// is_saved=false everywhere.
func (h *Handlers) views(ctx context.Context, viewerID string, items []domain.RankedRecipe) ([]RecipeView, error) {
	out := make([]RecipeView, len(items))
	if len(items) == 0 {
		return out, nil
	}
	saved := map[int64]bool{}
	if viewerID != "" {
		ids := make([]int64, len(items))
		for i := range items {
			ids[i] = items[i].ID
		}
		var err error
		if saved, err = h.ledger.SavedAmong(ctx, viewerID, ids); err != nil {
			return nil, err
		}
	}
	for i := range items {
		out[i] = RecipeView{RankedRecipe: items[i], IsSaved: saved[items[i].ID]}
	}
	return out, nil
}
