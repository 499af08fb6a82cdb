// Auth HTTP handlers.
//
// This file exposes the public account endpoints:
//   - POST /auth/register   (sign up)
//   - POST /auth/login      (exchange credentials for a bearer token)
package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-recipe-backend/internal/domain"
)

// RegisterRequest is the JSON payload for sign-up.
type RegisterRequest struct {
	Username string `json:"username" binding:"required" example:"chef"`
	Password string `json:"password" binding:"required" example:"s3cret-pass"`
	// Profile attributes are optional and free-form.
	Bio                string `json:"bio"                 example:"Home cook"`
	ProfilePicture     []byte `json:"profile_picture"     swaggertype:"string" format:"base64"`
	Gender             string `json:"gender"              example:"female"`
	DietaryPreferences string `json:"dietary_preferences" example:"vegetarian"`
}

// RegisterResponse carries the identity of a newly created user.
type RegisterResponse struct {
	UserID string `json:"user_id" example:"6f1c2b9e-3a51-4c55-9a5b-6d9f0f3e8a21"`
}

// LoginRequest is the JSON payload for login.
type LoginRequest struct {
	Username string `json:"username" binding:"required" example:"chef"`
	Password string `json:"password" binding:"required" example:"s3cret-pass"`
}

// LoginResponse carries a bearer token.
type LoginResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type" example:"Bearer"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Register godoc
// @ID          register
// @Summary     Sign up
// @Description Creates a user with the given username, password and optional profile attributes.
// @Tags        Auth
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.RegisterRequest  true  "Sign-up payload"
//
// @Success     201  {object}  handlers.RegisterResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     409  {object}  handlers.ErrorResponse  "Username taken"
// @Failure     503  {object}  handlers.ErrorResponse  "Store unavailable"
// @Router      /auth/register [post]
func (h *Handlers) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "username and password are required")
		return
	}

	id, err := h.creds.Register(c.Request.Context(), req.Username, req.Password, domain.Profile{
		Bio:                req.Bio,
		ProfilePicture:     req.ProfilePicture,
		Gender:             req.Gender,
		DietaryPreferences: req.DietaryPreferences,
	})
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusCreated, RegisterResponse{UserID: id})
}

// Login godoc
// @ID          login
// @Summary     Log in
// @Description Verifies credentials and returns a signed bearer token.
// @Tags        Auth
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.LoginRequest  true  "Credentials"
//
// @Success     200  {object}  handlers.LoginResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Invalid credentials"
// @Failure     503  {object}  handlers.ErrorResponse  "Store unavailable"
// @Router      /auth/login [post]
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "username and password are required")
		return
	}

	uid, err := h.creds.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		failService(c, err)
		return
	}

	token, exp, err := h.tokens.Issue(uid, strings.TrimSpace(req.Username))
	if err != nil {
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not issue token")
		return
	}
	ok(c, http.StatusOK, LoginResponse{
		Token:     token,
		TokenType: "Bearer",
		UserID:    uid,
		ExpiresAt: exp,
	})
}
