package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/tbourn/go-recipe-backend/internal/domain"
	"github.com/tbourn/go-recipe-backend/internal/services"
)

func saveEngine(d deps) http.Handler {
	h := d.handlers()
	r := newEngine()
	r.POST("/recipes/:id/save", h.ToggleSave)
	r.GET("/recipes/:id/save", h.GetSaveState)
	r.GET("/recipes/:id/saves", h.GetSaveCounts)
	r.GET("/me/saved", h.ListSavedRecipes)
	return r
}

func TestToggleSave(t *testing.T) {
	state := map[int64]bool{}
	r := saveEngine(deps{ledger: stubLedger{
		toggle: func(_ context.Context, id int64, user string) (bool, error) {
			switch id {
			case 2:
				return false, services.ErrSelfSave
			case 3:
				return false, services.ErrForbidden
			case 4:
				return false, services.ErrNotFound
			case 5:
				return false, services.ErrConnectionFailure
			}
			state[id] = !state[id]
			return state[id], nil
		},
	}})

	for _, want := range []bool{true, false} {
		w := do(t, r, http.MethodPost, "/recipes/1/save", "u1", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("status=%d", w.Code)
		}
		if got := decode[SaveStateResponse](t, w); got.RecipeID != 1 || got.Saved != want {
			t.Fatalf("got %+v, want saved=%v", got, want)
		}
	}

	expectError(t, do(t, r, http.MethodPost, "/recipes/2/save", "u1", nil), http.StatusForbidden, ErrCodeSelfSave)
	expectError(t, do(t, r, http.MethodPost, "/recipes/3/save", "u1", nil), http.StatusForbidden, ErrCodeForbidden)
	expectError(t, do(t, r, http.MethodPost, "/recipes/4/save", "u1", nil), http.StatusNotFound, ErrCodeNotFound)
	expectError(t, do(t, r, http.MethodPost, "/recipes/5/save", "u1", nil), http.StatusServiceUnavailable, ErrCodeStoreUnavailable)
	expectError(t, do(t, r, http.MethodPost, "/recipes/x/save", "u1", nil), http.StatusBadRequest, ErrCodeBadRequest)
}

func TestGetSaveState(t *testing.T) {
	r := saveEngine(deps{ledger: stubLedger{
		isSaved: func(_ context.Context, id int64, user string) (bool, error) {
			return id == 1 && user == "u1", nil
		},
	}})
	w := do(t, r, http.MethodGet, "/recipes/1/save", "u1", nil)
	if got := decode[SaveStateResponse](t, w); !got.Saved {
		t.Fatalf("expected saved, got %+v", got)
	}
	w = do(t, r, http.MethodGet, "/recipes/1/save", "u2", nil)
	if got := decode[SaveStateResponse](t, w); got.Saved {
		t.Fatalf("expected unsaved, got %+v", got)
	}
}

func TestGetSaveCounts_GatedByVisibility(t *testing.T) {
	r := saveEngine(deps{
		recipes: stubRecipes{
			get: func(_ context.Context, id int64, viewer string) (*domain.RankedRecipe, error) {
				if id == 2 {
					return nil, services.ErrForbidden
				}
				return &domain.RankedRecipe{Recipe: domain.Recipe{ID: id}}, nil
			},
		},
		ledger: stubLedger{
			saveCount: func(context.Context, int64) (int64, error) { return 3, nil },
			unique:    func(context.Context, int64) (int64, error) { return 3, nil },
		},
	})

	w := do(t, r, http.MethodGet, "/recipes/1/saves", "u1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	want := SaveCountsResponse{RecipeID: 1, SaveCount: 3, UniqueSavers: 3}
	if got := decode[SaveCountsResponse](t, w); got != want {
		t.Fatalf("got %+v want %+v", got, want)
	}
	expectError(t, do(t, r, http.MethodGet, "/recipes/2/saves", "u1", nil), http.StatusForbidden, ErrCodeForbidden)
}

func TestListSavedRecipes(t *testing.T) {
	r := saveEngine(deps{ledger: stubLedger{
		listSaved: func(_ context.Context, user string) ([]domain.RankedRecipe, error) {
			if user != "u1" {
				return nil, nil
			}
			return []domain.RankedRecipe{ranked(5, "e", 1), ranked(6, "f", 2)}, nil
		},
	}})

	resp := decode[RecipeListResponse](t, do(t, r, http.MethodGet, "/me/saved", "u1", nil))
	if len(resp.Recipes) != 2 {
		t.Fatalf("want 2 saved recipes, got %d", len(resp.Recipes))
	}
	for _, v := range resp.Recipes {
		if !v.IsSaved {
			t.Fatalf("recipe %d should be flagged saved", v.ID)
		}
	}

	resp = decode[RecipeListResponse](t, do(t, r, http.MethodGet, "/me/saved", "u2", nil))
	if resp.Recipes == nil || len(resp.Recipes) != 0 {
		t.Fatalf("want empty list, got %#v", resp.Recipes)
	}
}
