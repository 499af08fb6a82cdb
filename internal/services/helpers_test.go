package services

import (
	"context"
	"path/filepath"
	"testing"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/tbourn/go-recipe-backend/internal/domain"
	"github.com/tbourn/go-recipe-backend/internal/repo"
)

// ---------- test helpers ----------

// newSvcDB opens a migrated temp-file SQLite database configured the way
// the server opens it (foreign keys, busy timeout, WAL).
func newSvcDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := repo.OpenSQLite(filepath.Join(t.TempDir(), "svc.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close(db) })
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// userRepoFuncs adapts the repo package functions to UserRepo.
type userRepoFuncs struct{}

func (userRepoFuncs) CreateUser(ctx context.Context, db *gorm.DB, username, hash string, p domain.Profile) (*domain.User, error) {
	return repo.CreateUser(ctx, db, username, hash, p)
}
func (userRepoFuncs) GetUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	return repo.GetUser(ctx, db, id)
}
func (userRepoFuncs) GetUserByUsername(ctx context.Context, db *gorm.DB, username string) (*domain.User, error) {
	return repo.GetUserByUsername(ctx, db, username)
}
func (userRepoFuncs) UsernameExists(ctx context.Context, db *gorm.DB, username string) (bool, error) {
	return repo.UsernameExists(ctx, db, username)
}
func (userRepoFuncs) UpdateProfile(ctx context.Context, db *gorm.DB, id string, p domain.Profile) error {
	return repo.UpdateProfile(ctx, db, id, p)
}

func newCreds(db *gorm.DB) *CredentialService {
	return NewCredentialService(db, userRepoFuncs{}, bcrypt.MinCost)
}

func mustUser(t *testing.T, db *gorm.DB, username string, p domain.Profile) string {
	t.Helper()
	id, err := newCreds(db).Register(context.Background(), username, "password123", p)
	if err != nil {
		t.Fatalf("register %q: %v", username, err)
	}
	return id
}

func mustRecipe(t *testing.T, rs *RecipeService, ownerID string, d RecipeDraft, public bool) *domain.Recipe {
	t.Helper()
	ctx := context.Background()
	r, err := rs.Create(ctx, ownerID, d)
	if err != nil {
		t.Fatalf("create %q: %v", d.Title, err)
	}
	if public {
		ok, err := rs.MakePublic(ctx, r.ID, ownerID)
		if err != nil || !ok {
			t.Fatalf("make public %q: ok=%v err=%v", d.Title, ok, err)
		}
		r.IsPublic = true
	}
	return r
}

func mustToggle(t *testing.T, ls *LedgerService, recipeID int64, userID string, want bool) {
	t.Helper()
	got, err := ls.Toggle(context.Background(), recipeID, userID)
	if err != nil {
		t.Fatalf("toggle(%d, %s): %v", recipeID, userID, err)
	}
	if got != want {
		t.Fatalf("toggle(%d, %s) = %v, want %v", recipeID, userID, got, want)
	}
}

// savedFlag reads recipes.saved straight from storage.
func savedFlag(t *testing.T, db *gorm.DB, recipeID int64) bool {
	t.Helper()
	r, err := repo.GetRecipe(context.Background(), db, recipeID)
	if err != nil {
		t.Fatalf("get recipe %d: %v", recipeID, err)
	}
	return r.Saved
}
