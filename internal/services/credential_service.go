// Package services – CredentialService
//
// This file implements the credential store: sign-up, password verification,
// and profile reads/updates. Passwords are stored as bcrypt hashes only.
// Authentication performs one hash comparison whether or not the username
// exists, so response timing does not reveal which usernames are taken.
package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/tbourn/go-recipe-backend/internal/domain"
	"github.com/tbourn/go-recipe-backend/internal/repo"
)

// UserRepo defines the repository contract required by CredentialService.
type UserRepo interface {
	// CreateUser inserts a user; a taken username yields repo.ErrDuplicate.
	CreateUser(ctx context.Context, db *gorm.DB, username, passwordHash string, profile domain.Profile) (*domain.User, error)

	// GetUser fetches a user by id.
	GetUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error)

	// GetUserByUsername fetches a user by exact username.
	GetUserByUsername(ctx context.Context, db *gorm.DB, username string) (*domain.User, error)

	// UsernameExists reports whether username is taken.
	UsernameExists(ctx context.Context, db *gorm.DB, username string) (bool, error)

	// UpdateProfile replaces the profile attributes of a user.
	UpdateProfile(ctx context.Context, db *gorm.DB, id string, p domain.Profile) error
}

// CredentialService registers and authenticates users and manages profiles.
type CredentialService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the user repository used by this service.
	Repo UserRepo

	// Cost is the bcrypt work factor.
	Cost int
	// MinPasswordLen is the minimum password length in runes.
	MinPasswordLen int
	// MaxUsernameLen caps usernames by rune length.
	MaxUsernameLen int

	dummyOnce sync.Once
	dummyHash []byte
}

// maxPasswordBytes is the bcrypt input limit.
const maxPasswordBytes = 72

// NewCredentialService constructs a CredentialService with default limits.
func NewCredentialService(db *gorm.DB, r UserRepo, cost int) *CredentialService {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &CredentialService{
		DB:             db,
		Repo:           r,
		Cost:           cost,
		MinPasswordLen: 8,
		MaxUsernameLen: 64,
	}
}

// Register creates a user and returns its new identity. A taken username
// yields ErrDuplicateUsername and leaves the existing user untouched. The
// username is checked before hashing; the unique index still decides races.
func (s *CredentialService) Register(ctx context.Context, username, password string, profile domain.Profile) (string, error) {
	tr := otel.Tracer("services/CredentialService")
	ctx, span := tr.Start(ctx, "Register")
	defer span.End()

	username = strings.TrimSpace(username)
	if username == "" {
		return "", ErrEmptyUsername
	}
	if s.MaxUsernameLen > 0 && utf8.RuneCountInString(username) > s.MaxUsernameLen {
		return "", ErrUsernameTooLong
	}
	if utf8.RuneCountInString(password) < s.MinPasswordLen || password == "" {
		return "", ErrWeakPassword
	}
	if len(password) > maxPasswordBytes {
		return "", ErrPasswordTooLong
	}

	taken, err := s.Repo.UsernameExists(ctx, s.DB, username)
	if err != nil {
		return "", classify(err)
	}
	if taken {
		return "", ErrDuplicateUsername
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.Cost)
	if err != nil {
		return "", err
	}

	u, err := s.Repo.CreateUser(ctx, s.DB, username, string(hash), profile)
	if errors.Is(err, repo.ErrDuplicate) {
		return "", ErrDuplicateUsername
	}
	if err != nil {
		return "", classify(err)
	}
	span.SetAttributes(attribute.String("user.id", u.ID))
	return u.ID, nil
}

// Authenticate returns the user id when password matches the stored hash,
// and ErrInvalidCredentials otherwise.
func (s *CredentialService) Authenticate(ctx context.Context, username, password string) (string, error) {
	tr := otel.Tracer("services/CredentialService")
	ctx, span := tr.Start(ctx, "Authenticate")
	defer span.End()

	u, err := s.Repo.GetUserByUsername(ctx, s.DB, strings.TrimSpace(username))
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return "", classify(err)
	}

	hash := s.dummy()
	if u != nil {
		hash = []byte(u.PasswordHash)
	}
	cmpErr := bcrypt.CompareHashAndPassword(hash, []byte(password))
	if u == nil || cmpErr != nil {
		return "", ErrInvalidCredentials
	}
	return u.ID, nil
}

// Profile returns the user with the given id.
func (s *CredentialService) Profile(ctx context.Context, userID string) (*domain.User, error) {
	tr := otel.Tracer("services/CredentialService")
	ctx, span := tr.Start(ctx, "Profile",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	u, err := s.Repo.GetUser(ctx, s.DB, userID)
	if err != nil {
		return nil, classify(err)
	}
	return u, nil
}

// UpdateProfile replaces the profile attributes of userID and returns the
// updated user. Attributes are free-form and not validated.
func (s *CredentialService) UpdateProfile(ctx context.Context, userID string, p domain.Profile) (*domain.User, error) {
	tr := otel.Tracer("services/CredentialService")
	ctx, span := tr.Start(ctx, "UpdateProfile",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	if err := s.Repo.UpdateProfile(ctx, s.DB, userID, p); err != nil {
		return nil, classify(err)
	}
	return s.Profile(ctx, userID)
}

// dummy returns a hash to compare against when the username is unknown.
func (s *CredentialService) dummy() []byte {
	s.dummyOnce.Do(func() {
		h, err := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), s.Cost)
		if err != nil {
			h = []byte("$2a$10$invalidinvalidinvalidinvalidinvalidinvalidinvalidinva")
		}
		s.dummyHash = h
	})
	return s.dummyHash
}
