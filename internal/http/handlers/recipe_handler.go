// Recipe HTTP handlers.
//
// This file exposes REST endpoints for recipe resources:
//   - POST   /recipes                 (create, Idempotency-Key aware)
//   - GET    /recipes                 (public feed, paginated, ETag support)
//   - GET    /recipes/search          (search by text and owner dietary preference)
//   - GET    /recipes/{id}            (detail)
//   - PUT    /recipes/{id}            (replace ingredients and instructions)
//   - DELETE /recipes/{id}            (delete with its saves)
//   - POST   /recipes/{id}/publish    (make public)
//   - GET    /me/recipes              (the caller's private recipes)
package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-recipe-backend/internal/http/middleware"
	"github.com/tbourn/go-recipe-backend/internal/services"
	"github.com/tbourn/go-recipe-backend/internal/utils"
)

// CreateRecipeRequest is the JSON payload for creating a recipe.
type CreateRecipeRequest struct {
	Title        string `json:"title" binding:"required" example:"Tomato soup"`
	Description  string `json:"description"  example:"A quick weeknight soup"`
	Ingredients  string `json:"ingredients"  example:"tomatoes, onion, stock"`
	Instructions string `json:"instructions" example:"Simmer for 20 minutes, then blend."`
}

// UpdateRecipeRequest replaces the ingredients and instructions of a recipe.
type UpdateRecipeRequest struct {
	Ingredients  string `json:"ingredients"  example:"tomatoes, garlic, stock"`
	Instructions string `json:"instructions" example:"Roast, then blend."`
}

// CreateRecipe godoc
// @ID          createRecipe
// @Summary     Create a recipe
// @Description Creates a private recipe owned by the caller. With an Idempotency-Key header, a retry returns the recipe created by the first request with 200 and `Idempotency-Replayed: true`.
// @Tags        Recipes
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries (UUID recommended)"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       body             body    handlers.CreateRecipeRequest  true  "Recipe payload"
//
// @Success     201  {object}  domain.Recipe
// @Success     200  {object}  domain.Recipe  "Replayed"
// @Header      200  {string}  Idempotency-Replayed  "true when served from a previous request"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     503  {object}  handlers.ErrorResponse  "Store unavailable"
// @Router      /recipes [post]
func (h *Handlers) CreateRecipe(c *gin.Context) {
	var req CreateRecipeRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Title) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "title is required")
		return
	}

	key, _ := middleware.GetIdempotencyKey(c)
	r, replayed, err := h.recipes.CreateOnce(c.Request.Context(), userID(c), key, services.RecipeDraft{
		Title:        req.Title,
		Description:  req.Description,
		Ingredients:  req.Ingredients,
		Instructions: req.Instructions,
	})
	if err != nil {
		failService(c, err)
		return
	}
	if replayed {
		c.Header("Idempotency-Replayed", "true")
		ok(c, http.StatusOK, r)
		return
	}
	ok(c, http.StatusCreated, r)
}

// ListPublicRecipes godoc
// @ID          listPublicRecipes
// @Summary     Public feed (paginated)
// @Description Returns a page of public recipes, newest first, with save counts and the caller's saved state. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Recipes
// @Produce     json
// @Security    BearerAuth
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"abc123\")
// @Param       page           query   int     false "Page number"                  minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"               minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.FeedResponse
// @Header      200  {string} ETag  "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Failure     503  {object} handlers.ErrorResponse "Store unavailable"
// @Router      /recipes [get]
func (h *Handlers) ListPublicRecipes(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)
	page, pageSize := clampPagination(c)

	// Revalidate instead of no-store so the ETag is usable.
	c.Header("Cache-Control", "private, no-cache")

	// ETag pre-check (best effort). The viewer is part of the tag because
	// is_saved differs per viewer.
	if v, err := h.recipes.FeedVersion(ctx); err == nil {
		etag := fmt.Sprintf(`W/"feed:%s:%s:%d:%d"`, uid, v, page, pageSize)
		if notModified(c, etag) {
			return
		}
	}

	items, total, err := h.recipes.ListPublicPage(ctx, page, pageSize)
	if err != nil {
		failService(c, err)
		return
	}
	views, err := h.views(ctx, uid, items)
	if err != nil {
		failService(c, err)
		return
	}

	totalPages := utils.TotalPages(total, pageSize)
	ok(c, http.StatusOK, FeedResponse{
		Recipes: views,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// SearchRecipes godoc
// @ID          searchRecipes
// @Summary     Search recipes
// @Description Case-insensitive substring match over title, description and ingredients, optionally restricted to owners whose dietary preferences contain dietary_preference. Ordered by save count, then id. Only recipes the caller may view are returned.
// @Tags        Recipes
// @Produce     json
// @Security    BearerAuth
//
// @Param       q                    query  string  false "Search text"
// @Param       dietary_preference   query  string  false "Owner dietary preference filter"
//
// @Success     200  {object}  handlers.RecipeListResponse
// @Failure     401  {object}  handlers.ErrorResponse "Unauthorized"
// @Failure     503  {object}  handlers.ErrorResponse "Store unavailable"
// @Router      /recipes/search [get]
func (h *Handlers) SearchRecipes(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)

	items, err := h.recipes.Search(ctx, uid, c.Query("q"), c.Query("dietary_preference"))
	if err != nil {
		failService(c, err)
		return
	}
	views, err := h.views(ctx, uid, items)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, RecipeListResponse{Recipes: views})
}

// GetRecipe godoc
// @ID          getRecipe
// @Summary     Recipe detail
// @Tags        Recipes
// @Produce     json
// @Security    BearerAuth
// @Param       id   path  int  true  "Recipe ID"  minimum(1)
// @Success     200  {object}  handlers.RecipeView
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     403  {object}  handlers.ErrorResponse  "Private recipe of another user"
// @Failure     404  {object}  handlers.ErrorResponse  "Recipe not found"
// @Failure     503  {object}  handlers.ErrorResponse  "Store unavailable"
// @Router      /recipes/{id} [get]
func (h *Handlers) GetRecipe(c *gin.Context) {
	id, valid := recipeIDParam(c)
	if !valid {
		return
	}
	ctx := c.Request.Context()
	uid := userID(c)

	r, err := h.recipes.Get(ctx, id, uid)
	if err != nil {
		failService(c, err)
		return
	}
	saved := false
	if uid != "" {
		if saved, err = h.ledger.IsSaved(ctx, id, uid); err != nil {
			failService(c, err)
			return
		}
	}
	ok(c, http.StatusOK, RecipeView{RankedRecipe: *r, IsSaved: saved})
}

// UpdateRecipe godoc
// @ID          updateRecipe
// @Summary     Replace ingredients and instructions
// @Description Only the owner may update a recipe.
// @Tags        Recipes
// @Accept      json
// @Security    BearerAuth
// @Param       id    path  int                           true  "Recipe ID"  minimum(1)
// @Param       body  body  handlers.UpdateRecipeRequest  true  "New content"
// @Success     204  {string}  string  "No Content"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     403  {object}  handlers.ErrorResponse  "Not the owner"
// @Failure     404  {object}  handlers.ErrorResponse  "Recipe not found"
// @Failure     503  {object}  handlers.ErrorResponse  "Store unavailable"
// @Router      /recipes/{id} [put]
func (h *Handlers) UpdateRecipe(c *gin.Context) {
	id, valid := recipeIDParam(c)
	if !valid {
		return
	}
	var req UpdateRecipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if err := h.recipes.Update(c.Request.Context(), id, userID(c), req.Ingredients, req.Instructions); err != nil {
		failService(c, err)
		return
	}
	noContent(c)
}

// PublishRecipe godoc
// @ID          publishRecipe
// @Summary     Make a recipe public
// @Description Publishing an already public recipe succeeds without change. Unknown recipes and recipes owned by someone else both yield 404.
// @Tags        Recipes
// @Security    BearerAuth
// @Param       id   path  int  true  "Recipe ID"  minimum(1)
// @Success     204  {string}  string  "No Content"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Recipe not found"
// @Failure     503  {object}  handlers.ErrorResponse  "Store unavailable"
// @Router      /recipes/{id}/publish [post]
func (h *Handlers) PublishRecipe(c *gin.Context) {
	id, valid := recipeIDParam(c)
	if !valid {
		return
	}
	applied, err := h.recipes.MakePublic(c.Request.Context(), id, userID(c))
	if err != nil {
		failService(c, err)
		return
	}
	if !applied {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "recipe not found")
		return
	}
	noContent(c)
}

// DeleteRecipe godoc
// @ID          deleteRecipe
// @Summary     Delete a recipe
// @Description Deletes a recipe owned by the caller together with all of its saves. Unknown recipes and recipes owned by someone else both yield 404.
// @Tags        Recipes
// @Security    BearerAuth
// @Param       id   path  int  true  "Recipe ID"  minimum(1)
// @Success     204  {string}  string  "No Content"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Recipe not found"
// @Failure     503  {object}  handlers.ErrorResponse  "Store unavailable"
// @Router      /recipes/{id} [delete]
func (h *Handlers) DeleteRecipe(c *gin.Context) {
	id, valid := recipeIDParam(c)
	if !valid {
		return
	}
	applied, err := h.recipes.Delete(c.Request.Context(), id, userID(c))
	if err != nil {
		failService(c, err)
		return
	}
	if !applied {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "recipe not found")
		return
	}
	noContent(c)
}

// ListMyRecipes godoc
// @ID          listMyRecipes
// @Summary     The caller's private recipes
// @Tags        Profile
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.RecipeListResponse
// @Failure     401  {object}  handlers.ErrorResponse "Unauthorized"
// @Failure     503  {object}  handlers.ErrorResponse "Store unavailable"
// @Router      /me/recipes [get]
func (h *Handlers) ListMyRecipes(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)

	items, err := h.recipes.ListOwned(ctx, uid)
	if err != nil {
		failService(c, err)
		return
	}
	// Owners cannot save their own recipes, so is_saved is always false.
	views, _ := h.views(ctx, "", items)
	ok(c, http.StatusOK, RecipeListResponse{Recipes: views})
}
