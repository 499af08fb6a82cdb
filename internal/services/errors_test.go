package services

import (
	"errors"
	"fmt"
	"testing"

	"gorm.io/gorm"

	"github.com/tbourn/go-recipe-backend/internal/domain"
	"github.com/tbourn/go-recipe-backend/internal/repo"
)

func TestClassify(t *testing.T) {
	raw := errors.New("dial tcp: connection refused")
	unique := errors.New("UNIQUE constraint failed: users.username")

	if classify(nil) != nil {
		t.Fatal("nil must stay nil")
	}
	if err := classify(ErrForbidden); err != ErrForbidden {
		t.Fatalf("service errors pass through, got %v", err)
	}
	if err := classify(fmt.Errorf("wrap: %w", ErrSelfSave)); !errors.Is(err, ErrSelfSave) {
		t.Fatalf("wrapped service error lost: %v", err)
	}
	if err := classify(gorm.ErrRecordNotFound); err != ErrNotFound {
		t.Fatalf("record not found -> ErrNotFound, got %v", err)
	}
	if err := classify(repo.ErrNotFound); err != ErrNotFound {
		t.Fatalf("repo not found -> ErrNotFound, got %v", err)
	}

	err := classify(unique)
	if !errors.Is(err, ErrConstraintViolation) || !errors.Is(err, unique) {
		t.Fatalf("constraint error must wrap both, got %v", err)
	}
	err = classify(gorm.ErrForeignKeyViolated)
	if !errors.Is(err, ErrConstraintViolation) {
		t.Fatalf("fk violation -> ErrConstraintViolation, got %v", err)
	}

	err = classify(raw)
	if !errors.Is(err, ErrConnectionFailure) || !errors.Is(err, raw) {
		t.Fatalf("other errors -> ErrConnectionFailure wrapping cause, got %v", err)
	}
}

func TestInfraOnly(t *testing.T) {
	if infraOnly(ErrForbidden) != nil || infraOnly(nil) != nil {
		t.Fatal("precondition errors must be dropped")
	}
	if infraOnly(classify(errors.New("io"))) == nil {
		t.Fatal("connection failures must be kept")
	}
}

func TestGate(t *testing.T) {
	priv := &domain.Recipe{UserID: "owner"}
	pub := &domain.Recipe{UserID: "owner", IsPublic: true}

	cases := []struct {
		name       string
		r          *domain.Recipe
		actor      string
		view, edit bool
	}{
		{"owner private", priv, "owner", true, true},
		{"stranger private", priv, "other", false, false},
		{"anonymous private", priv, "", false, false},
		{"owner public", pub, "owner", true, true},
		{"stranger public", pub, "other", true, false},
		{"anonymous public", pub, "", true, false},
		{"nil recipe", nil, "owner", false, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanView(tc.r, tc.actor); got != tc.view {
				t.Fatalf("CanView = %v, want %v", got, tc.view)
			}
			if got := CanModify(tc.r, tc.actor); got != tc.edit {
				t.Fatalf("CanModify = %v, want %v", got, tc.edit)
			}
		})
	}

	// Empty owner ids never match an anonymous actor.
	if CanModify(&domain.Recipe{}, "") {
		t.Fatal("empty actor must not modify")
	}
}

func TestVisibleTo(t *testing.T) {
	items := []domain.RankedRecipe{
		{Recipe: domain.Recipe{ID: 1, UserID: "a", IsPublic: true}},
		{Recipe: domain.Recipe{ID: 2, UserID: "a"}},
		{Recipe: domain.Recipe{ID: 3, UserID: "b"}},
	}
	got := visibleTo(items, "b")
	if len(got) != 2 || got[0].ID != 1 || got[1].ID != 3 {
		t.Fatalf("visibleTo = %+v", got)
	}
}
