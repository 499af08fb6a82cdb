// Profile and statistics HTTP handlers for the current user:
//   - GET /me/profile
//   - PUT /me/profile
//   - GET /me/statistics
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-recipe-backend/internal/domain"
)

// UpdateProfileRequest replaces every profile attribute. Omitted fields are
// cleared.
type UpdateProfileRequest struct {
	Bio                string `json:"bio"                 example:"Weekend baker"`
	ProfilePicture     []byte `json:"profile_picture"     swaggertype:"string" format:"base64"`
	Gender             string `json:"gender"              example:"male"`
	DietaryPreferences string `json:"dietary_preferences" example:"vegan, nut-free"`
}

// GetProfile godoc
// @ID          getProfile
// @Summary     Current user's profile
// @Tags        Profile
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  domain.User
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse  "User not found"
// @Failure     503  {object}  handlers.ErrorResponse  "Store unavailable"
// @Router      /me/profile [get]
func (h *Handlers) GetProfile(c *gin.Context) {
	u, err := h.creds.Profile(c.Request.Context(), userID(c))
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, u)
}

// UpdateProfile godoc
// @ID          updateProfile
// @Summary     Replace the current user's profile
// @Tags        Profile
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body  handlers.UpdateProfileRequest  true  "Profile attributes"
// @Success     200  {object}  domain.User
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse  "User not found"
// @Failure     503  {object}  handlers.ErrorResponse  "Store unavailable"
// @Router      /me/profile [put]
func (h *Handlers) UpdateProfile(c *gin.Context) {
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	u, err := h.creds.UpdateProfile(c.Request.Context(), userID(c), domain.Profile(req))
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, u)
}

// Statistics godoc
// @ID          getStatistics
// @Summary     Current user's recipe statistics
// @Description Number of owned recipes, number of saved recipes, average saves per owned recipe, and the most saved owned recipe (null when the user has none).
// @Tags        Profile
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  domain.UserStatistics
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse  "User not found"
// @Failure     503  {object}  handlers.ErrorResponse  "Store unavailable"
// @Router      /me/statistics [get]
func (h *Handlers) Statistics(c *gin.Context) {
	st, err := h.stats.Compute(c.Request.Context(), userID(c))
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, st)
}
