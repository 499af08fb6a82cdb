package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/tbourn/go-recipe-backend/internal/domain"
)

func TestCreateRecipe_StartsPrivateAndUnsaved(t *testing.T) {
	db := newTestDB(t, true)
	ctx := context.Background()
	owner := seedUser(t, db, "chef", "")

	r := &domain.Recipe{UserID: owner.ID, Author: "chef", Title: "Soup", IsPublic: true, Saved: true}
	if err := CreateRecipe(ctx, db, r); err != nil {
		t.Fatalf("CreateRecipe: %v", err)
	}
	if r.ID == 0 || r.CreatedAt.IsZero() {
		t.Fatalf("unexpected recipe: %+v", r)
	}

	got, err := GetRecipe(ctx, db, r.ID)
	if err != nil {
		t.Fatalf("GetRecipe: %v", err)
	}
	if got.IsPublic || got.Saved || got.Author != "chef" || got.Title != "Soup" {
		t.Fatalf("unexpected stored recipe: %+v", got)
	}
}

func TestCreateRecipe_UnknownOwner_FK(t *testing.T) {
	db := newTestDB(t, true)
	r := &domain.Recipe{UserID: "ghost", Author: "x", Title: "t"}
	err := CreateRecipe(context.Background(), db, r)
	if err == nil {
		t.Fatalf("expected FK error for unknown owner")
	}
	if !IsConstraintViolation(err) {
		t.Fatalf("expected constraint violation, got %v", err)
	}
}

func TestGetRecipe_NotFound(t *testing.T) {
	db := newTestDB(t, true)
	ctx := context.Background()
	if _, err := GetRecipe(ctx, db, 42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := GetRankedRecipe(ctx, db, 42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateRecipeContent(t *testing.T) {
	db := newTestDB(t, true)
	ctx := context.Background()
	owner := seedUser(t, db, "chef", "")
	r := seedRecipe(t, db, owner, "Soup", false)

	if err := UpdateRecipeContent(ctx, db, r.ID, "water, salt", "boil"); err != nil {
		t.Fatalf("UpdateRecipeContent: %v", err)
	}
	got, _ := GetRecipe(ctx, db, r.ID)
	if got.Ingredients != "water, salt" || got.Instructions != "boil" || got.Title != "Soup" {
		t.Fatalf("unexpected content: %+v", got)
	}
	if err := UpdateRecipeContent(ctx, db, 999, "a", "b"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPublishRecipe_Idempotent(t *testing.T) {
	db := newTestDB(t, true)
	ctx := context.Background()
	owner := seedUser(t, db, "chef", "")
	r := seedRecipe(t, db, owner, "Soup", false)

	for i := 0; i < 2; i++ {
		if err := PublishRecipe(ctx, db, r.ID); err != nil {
			t.Fatalf("PublishRecipe #%d: %v", i, err)
		}
	}
	got, _ := GetRecipe(ctx, db, r.ID)
	if !got.IsPublic {
		t.Fatalf("expected public recipe")
	}
	if err := PublishRecipe(ctx, db, 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteRecipe_CascadesSaves(t *testing.T) {
	db := newTestDB(t, true)
	ctx := context.Background()
	owner := seedUser(t, db, "chef", "")
	fan := seedUser(t, db, "fan", "")
	r := seedRecipe(t, db, owner, "Soup", true)
	other := seedRecipe(t, db, owner, "Stew", true)
	seedSave(t, db, r, fan)
	seedSave(t, db, other, fan)

	if err := DeleteRecipe(ctx, db, r.ID); err != nil {
		t.Fatalf("DeleteRecipe: %v", err)
	}
	if _, err := GetRecipe(ctx, db, r.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("recipe should be gone, got %v", err)
	}
	if n, _ := CountSaves(ctx, db, r.ID); n != 0 {
		t.Fatalf("saves for deleted recipe should be gone, got %d", n)
	}
	if n, _ := CountSaves(ctx, db, other.ID); n != 1 {
		t.Fatalf("other recipe's saves must survive, got %d", n)
	}
	if err := DeleteRecipe(ctx, db, r.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete should be ErrNotFound, got %v", err)
	}
}

func TestListPublicAndOwned_Partition(t *testing.T) {
	db := newTestDB(t, true)
	ctx := context.Background()
	a := seedUser(t, db, "a", "")
	b := seedUser(t, db, "b", "")
	aPriv := seedRecipe(t, db, a, "A private", false)
	aPub := seedRecipe(t, db, a, "A public", true)
	bPriv := seedRecipe(t, db, b, "B private", false)
	bPub := seedRecipe(t, db, b, "B public", true)
	seedSave(t, db, aPub, b)

	pub, err := ListPublicRecipes(ctx, db)
	if err != nil {
		t.Fatalf("ListPublicRecipes: %v", err)
	}
	ids := map[int64]int64{}
	for _, r := range pub {
		if !r.IsPublic {
			t.Fatalf("public list contains private recipe %d", r.ID)
		}
		ids[r.ID] = r.SaveCount
	}
	if len(pub) != 2 || ids[aPub.ID] != 1 || ids[bPub.ID] != 0 {
		t.Fatalf("unexpected public list: %+v", pub)
	}

	owned, err := ListOwnedRecipes(ctx, db, a.ID)
	if err != nil {
		t.Fatalf("ListOwnedRecipes: %v", err)
	}
	if len(owned) != 1 || owned[0].ID != aPriv.ID {
		t.Fatalf("unexpected owned list: %+v", owned)
	}
	for _, r := range owned {
		if r.UserID != a.ID || r.ID == bPriv.ID {
			t.Fatalf("owned list leaked another owner's recipe: %+v", r)
		}
	}

	if n, err := CountPublicRecipes(ctx, db); err != nil || n != 2 {
		t.Fatalf("CountPublicRecipes = %d, %v", n, err)
	}

	page, err := ListPublicRecipesPage(ctx, db, 1, 1)
	if err != nil || len(page) != 1 {
		t.Fatalf("ListPublicRecipesPage: len=%d err=%v", len(page), err)
	}

	empty, err := ListOwnedRecipes(ctx, db, "nobody")
	if err != nil || empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v err=%v", empty, err)
	}
}

func TestGetRankedRecipe_SaveCount(t *testing.T) {
	db := newTestDB(t, true)
	ctx := context.Background()
	owner := seedUser(t, db, "chef", "")
	r := seedRecipe(t, db, owner, "Soup", true)
	for _, name := range []string{"f1", "f2"} {
		seedSave(t, db, r, seedUser(t, db, name, ""))
	}

	got, err := GetRankedRecipe(ctx, db, r.ID)
	if err != nil {
		t.Fatalf("GetRankedRecipe: %v", err)
	}
	if got.ID != r.ID || got.SaveCount != 2 || !got.Saved || got.Title != "Soup" {
		t.Fatalf("unexpected ranked recipe: %+v", got)
	}
}

func TestSearchRecipes_MatchFieldsDietaryAndOrder(t *testing.T) {
	db := newTestDB(t, true)
	ctx := context.Background()
	vegan := seedUser(t, db, "green", "Vegan, gluten-free")
	omni := seedUser(t, db, "meat", "none")
	fans := []*domain.User{seedUser(t, db, "f1", ""), seedUser(t, db, "f2", "")}

	r1 := seedRecipe(t, db, vegan, "Tomato Soup", true)
	r2 := &domain.Recipe{UserID: omni.ID, Author: "meat", Title: "Stew", Description: "hearty TOMATO base"}
	if err := CreateRecipe(ctx, db, r2); err != nil {
		t.Fatal(err)
	}
	r3 := &domain.Recipe{UserID: vegan.ID, Author: "green", Title: "Salad", Ingredients: "tomatoes, basil"}
	if err := CreateRecipe(ctx, db, r3); err != nil {
		t.Fatal(err)
	}
	seedRecipe(t, db, omni, "Pancakes", true)

	// r3 gets the most saves, r2 one, r1 none.
	seedSave(t, db, r3, fans[0])
	seedSave(t, db, r3, fans[1])
	seedSave(t, db, r2, fans[0])

	got, err := SearchRecipes(ctx, db, "tomato", "")
	if err != nil {
		t.Fatalf("SearchRecipes: %v", err)
	}
	want := []int64{r3.ID, r2.ID, r1.ID}
	if len(got) != len(want) {
		t.Fatalf("expected %d results, got %+v", len(want), got)
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("order mismatch at %d: got %d want %d", i, got[i].ID, id)
		}
	}
	if got[0].SaveCount != 2 || got[1].SaveCount != 1 || got[2].SaveCount != 0 {
		t.Fatalf("unexpected save counts: %+v", got)
	}

	diet, err := SearchRecipes(ctx, db, "tomato", "vegan")
	if err != nil {
		t.Fatalf("SearchRecipes dietary: %v", err)
	}
	if len(diet) != 2 || diet[0].ID != r3.ID || diet[1].ID != r1.ID {
		t.Fatalf("dietary filter mismatch: %+v", diet)
	}

	// Wildcards in the query are literal.
	if lit, err := SearchRecipes(ctx, db, "%", ""); err != nil || len(lit) != 0 {
		t.Fatalf("expected literal %% to match nothing, got %d err=%v", len(lit), err)
	}

	// Empty query matches everything; ties fall back to id ascending.
	all, err := SearchRecipes(ctx, db, "", "")
	if err != nil || len(all) != 4 {
		t.Fatalf("expected 4 results, got %d err=%v", len(all), err)
	}
	if all[2].ID != r1.ID {
		t.Fatalf("tie-break by id expected r1 third, got %+v", all)
	}
}

func TestLikePattern(t *testing.T) {
	cases := map[string]string{
		"tomato": "%tomato%",
		"crème":  "%crème%",
		"50%":    `%50\%%`,
		"a_b":    `%a\_b%`,
		`c\d`:    `%c\\d%`,
	}
	for in, want := range cases {
		if got := likePattern(in); got != want {
			t.Fatalf("likePattern(%q) = %q; want %q", in, got, want)
		}
	}
}
