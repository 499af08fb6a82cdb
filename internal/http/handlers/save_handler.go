// Save HTTP handlers.
//
// This file exposes the save ledger:
//   - POST /recipes/{id}/save    (toggle the caller's save)
//   - GET  /recipes/{id}/save    (whether the caller saved it)
//   - GET  /recipes/{id}/saves   (save counts)
//   - GET  /me/saved             (recipes the caller saved)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SaveStateResponse reports whether the caller has saved a recipe.
type SaveStateResponse struct {
	RecipeID int64 `json:"recipe_id"`
	Saved    bool  `json:"saved"`
}

// SaveCountsResponse reports how often a recipe was saved.
type SaveCountsResponse struct {
	RecipeID     int64 `json:"recipe_id"`
	SaveCount    int64 `json:"save_count"`
	UniqueSavers int64 `json:"unique_savers"`
}

// ToggleSave godoc
// @ID          toggleSave
// @Summary     Save or unsave a recipe
// @Description Flips the caller's saved state for a recipe and returns the new state. The recipe must be visible to the caller and owned by someone else.
// @Tags        Saves
// @Produce     json
// @Security    BearerAuth
// @Param       id   path  int  true  "Recipe ID"  minimum(1)
// @Success     200  {object}  handlers.SaveStateResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     403  {object}  handlers.ErrorResponse  "Own or invisible recipe"
// @Failure     404  {object}  handlers.ErrorResponse  "Recipe not found"
// @Failure     503  {object}  handlers.ErrorResponse  "Store unavailable"
// @Router      /recipes/{id}/save [post]
func (h *Handlers) ToggleSave(c *gin.Context) {
	id, valid := recipeIDParam(c)
	if !valid {
		return
	}
	saved, err := h.ledger.Toggle(c.Request.Context(), id, userID(c))
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, SaveStateResponse{RecipeID: id, Saved: saved})
}

// GetSaveState godoc
// @ID          getSaveState
// @Summary     Whether the caller saved a recipe
// @Tags        Saves
// @Produce     json
// @Security    BearerAuth
// @Param       id   path  int  true  "Recipe ID"  minimum(1)
// @Success     200  {object}  handlers.SaveStateResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     503  {object}  handlers.ErrorResponse  "Store unavailable"
// @Router      /recipes/{id}/save [get]
func (h *Handlers) GetSaveState(c *gin.Context) {
	id, valid := recipeIDParam(c)
	if !valid {
		return
	}
	saved, err := h.ledger.IsSaved(c.Request.Context(), id, userID(c))
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, SaveStateResponse{RecipeID: id, Saved: saved})
}

// GetSaveCounts godoc
// @ID          getSaveCounts
// @Summary     Save counts of a recipe
// @Description Counts are only reported for recipes the caller may view.
// @Tags        Saves
// @Produce     json
// @Security    BearerAuth
// @Param       id   path  int  true  "Recipe ID"  minimum(1)
// @Success     200  {object}  handlers.SaveCountsResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     403  {object}  handlers.ErrorResponse  "Private recipe of another user"
// @Failure     404  {object}  handlers.ErrorResponse  "Recipe not found"
// @Failure     503  {object}  handlers.ErrorResponse  "Store unavailable"
// @Router      /recipes/{id}/saves [get]
func (h *Handlers) GetSaveCounts(c *gin.Context) {
	id, valid := recipeIDParam(c)
	if !valid {
		return
	}
	ctx := c.Request.Context()

	if _, err := h.recipes.Get(ctx, id, userID(c)); err != nil {
		failService(c, err)
		return
	}
	n, err := h.ledger.SaveCount(ctx, id)
	if err != nil {
		failService(c, err)
		return
	}
	u, err := h.ledger.UniqueSaverCount(ctx, id)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, SaveCountsResponse{RecipeID: id, SaveCount: n, UniqueSavers: u})
}

// ListSavedRecipes godoc
// @ID          listSavedRecipes
// @Summary     Recipes the caller saved
// @Description Most recently saved first. Recipes that became invisible to the caller are omitted.
// @Tags        Profile
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.RecipeListResponse
// @Failure     401  {object}  handlers.ErrorResponse "Unauthorized"
// @Failure     503  {object}  handlers.ErrorResponse "Store unavailable"
// @Router      /me/saved [get]
func (h *Handlers) ListSavedRecipes(c *gin.Context) {
	items, err := h.ledger.ListSaved(c.Request.Context(), userID(c))
	if err != nil {
		failService(c, err)
		return
	}
	views := make([]RecipeView, len(items))
	for i := range items {
		views[i] = RecipeView{RankedRecipe: items[i], IsSaved: true}
	}
	ok(c, http.StatusOK, RecipeListResponse{Recipes: views})
}
