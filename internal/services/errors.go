// Package services defines the business logic for credentials, recipes, the
// save ledger, and per-user statistics. This file centralizes service-level
// error values so that they can be consistently returned by service methods
// and checked by callers.
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import (
	"errors"
	"fmt"

	"github.com/tbourn/go-recipe-backend/internal/repo"
)

// Precondition errors. The operation had no effect.
var (
	// ErrNotFound indicates that the referenced recipe or user does not exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when the actor lacks rights on a recipe.
	ErrForbidden = errors.New("forbidden")

	// ErrDuplicateUsername is returned when signing up with a taken username.
	ErrDuplicateUsername = errors.New("username already exists")

	// ErrSelfSave is returned when a user tries to save their own recipe.
	ErrSelfSave = errors.New("cannot save your own recipe")

	// ErrInvalidCredentials is returned when a username/password pair does
	// not match. It does not reveal which half was wrong.
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// Input errors.
var (
	ErrEmptyTitle    = errors.New("title is empty")
	ErrEmptyUsername = errors.New("username is empty")
	ErrWeakPassword  = errors.New("password too short")

	ErrUsernameTooLong = errors.New("username too long")
	ErrPasswordTooLong = errors.New("password too long")
)

// Infrastructure errors. The store rejected or could not run the operation.
var (
	// ErrConstraintViolation is a storage-layer integrity rejection.
	ErrConstraintViolation = errors.New("constraint violation")

	// ErrConnectionFailure means the store could not be reached or failed
	// while executing. Callers may retry.
	ErrConnectionFailure = errors.New("store unavailable")
)

// classify maps a raw storage error to the service taxonomy. Service
// sentinels pass through unchanged, missing rows become ErrNotFound, and
// everything else is wrapped as ErrConstraintViolation or
// ErrConnectionFailure with the original error kept in the chain.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case isServiceError(err):
		return err
	case errors.Is(err, repo.ErrNotFound):
		return ErrNotFound
	case repo.IsConstraintViolation(err):
		return fmt.Errorf("%w: %w", ErrConstraintViolation, err)
	default:
		return fmt.Errorf("%w: %w", ErrConnectionFailure, err)
	}
}

func isServiceError(err error) bool {
	for _, s := range []error{
		ErrNotFound, ErrForbidden, ErrDuplicateUsername, ErrSelfSave, ErrInvalidCredentials,
		ErrEmptyTitle, ErrEmptyUsername, ErrWeakPassword, ErrUsernameTooLong, ErrPasswordTooLong,
		ErrConstraintViolation, ErrConnectionFailure,
	} {
		if errors.Is(err, s) {
			return true
		}
	}
	return false
}
