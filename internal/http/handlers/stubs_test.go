package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-recipe-backend/internal/domain"
	"github.com/tbourn/go-recipe-backend/internal/services"
)

// ---------- service stubs ----------

type stubCreds struct {
	register      func(ctx context.Context, u, p string, prof domain.Profile) (string, error)
	authenticate  func(ctx context.Context, u, p string) (string, error)
	profile       func(ctx context.Context, id string) (*domain.User, error)
	updateProfile func(ctx context.Context, id string, p domain.Profile) (*domain.User, error)
}

func (s stubCreds) Register(ctx context.Context, u, p string, prof domain.Profile) (string, error) {
	if s.register != nil {
		return s.register(ctx, u, p, prof)
	}
	return "u-new", nil
}
func (s stubCreds) Authenticate(ctx context.Context, u, p string) (string, error) {
	if s.authenticate != nil {
		return s.authenticate(ctx, u, p)
	}
	return "u1", nil
}
func (s stubCreds) Profile(ctx context.Context, id string) (*domain.User, error) {
	if s.profile != nil {
		return s.profile(ctx, id)
	}
	return &domain.User{ID: id}, nil
}
func (s stubCreds) UpdateProfile(ctx context.Context, id string, p domain.Profile) (*domain.User, error) {
	if s.updateProfile != nil {
		return s.updateProfile(ctx, id, p)
	}
	return &domain.User{ID: id, Profile: p}, nil
}

type stubRecipes struct {
	createOnce  func(ctx context.Context, owner, key string, d services.RecipeDraft) (*domain.Recipe, bool, error)
	update      func(ctx context.Context, id int64, editor, ing, ins string) error
	makePublic  func(ctx context.Context, id int64, owner string) (bool, error)
	del         func(ctx context.Context, id int64, owner string) (bool, error)
	listPage    func(ctx context.Context, page, size int) ([]domain.RankedRecipe, int64, error)
	feedVersion func(ctx context.Context) (string, error)
	listOwned   func(ctx context.Context, owner string) ([]domain.RankedRecipe, error)
	search      func(ctx context.Context, viewer, q, diet string) ([]domain.RankedRecipe, error)
	get         func(ctx context.Context, id int64, viewer string) (*domain.RankedRecipe, error)
}

func (s stubRecipes) CreateOnce(ctx context.Context, owner, key string, d services.RecipeDraft) (*domain.Recipe, bool, error) {
	if s.createOnce != nil {
		return s.createOnce(ctx, owner, key, d)
	}
	return &domain.Recipe{ID: 1, UserID: owner, Title: d.Title}, false, nil
}
func (s stubRecipes) Update(ctx context.Context, id int64, editor, ing, ins string) error {
	if s.update != nil {
		return s.update(ctx, id, editor, ing, ins)
	}
	return nil
}
func (s stubRecipes) MakePublic(ctx context.Context, id int64, owner string) (bool, error) {
	if s.makePublic != nil {
		return s.makePublic(ctx, id, owner)
	}
	return true, nil
}
func (s stubRecipes) Delete(ctx context.Context, id int64, owner string) (bool, error) {
	if s.del != nil {
		return s.del(ctx, id, owner)
	}
	return true, nil
}
func (s stubRecipes) ListPublicPage(ctx context.Context, page, size int) ([]domain.RankedRecipe, int64, error) {
	if s.listPage != nil {
		return s.listPage(ctx, page, size)
	}
	return nil, 0, nil
}
func (s stubRecipes) FeedVersion(ctx context.Context) (string, error) {
	if s.feedVersion != nil {
		return s.feedVersion(ctx)
	}
	return "v1", nil
}
func (s stubRecipes) ListOwned(ctx context.Context, owner string) ([]domain.RankedRecipe, error) {
	if s.listOwned != nil {
		return s.listOwned(ctx, owner)
	}
	return nil, nil
}
func (s stubRecipes) Search(ctx context.Context, viewer, q, diet string) ([]domain.RankedRecipe, error) {
	if s.search != nil {
		return s.search(ctx, viewer, q, diet)
	}
	return nil, nil
}
func (s stubRecipes) Get(ctx context.Context, id int64, viewer string) (*domain.RankedRecipe, error) {
	if s.get != nil {
		return s.get(ctx, id, viewer)
	}
	return &domain.RankedRecipe{Recipe: domain.Recipe{ID: id, IsPublic: true}}, nil
}

type stubLedger struct {
	toggle     func(ctx context.Context, id int64, user string) (bool, error)
	isSaved    func(ctx context.Context, id int64, user string) (bool, error)
	saveCount  func(ctx context.Context, id int64) (int64, error)
	unique     func(ctx context.Context, id int64) (int64, error)
	listSaved  func(ctx context.Context, user string) ([]domain.RankedRecipe, error)
	savedAmong func(ctx context.Context, user string, ids []int64) (map[int64]bool, error)
}

func (s stubLedger) Toggle(ctx context.Context, id int64, user string) (bool, error) {
	if s.toggle != nil {
		return s.toggle(ctx, id, user)
	}
	return true, nil
}
func (s stubLedger) IsSaved(ctx context.Context, id int64, user string) (bool, error) {
	if s.isSaved != nil {
		return s.isSaved(ctx, id, user)
	}
	return false, nil
}
func (s stubLedger) SaveCount(ctx context.Context, id int64) (int64, error) {
	if s.saveCount != nil {
		return s.saveCount(ctx, id)
	}
	return 0, nil
}
func (s stubLedger) UniqueSaverCount(ctx context.Context, id int64) (int64, error) {
	if s.unique != nil {
		return s.unique(ctx, id)
	}
	return 0, nil
}
func (s stubLedger) ListSaved(ctx context.Context, user string) ([]domain.RankedRecipe, error) {
	if s.listSaved != nil {
		return s.listSaved(ctx, user)
	}
	return nil, nil
}
func (s stubLedger) SavedAmong(ctx context.Context, user string, ids []int64) (map[int64]bool, error) {
	if s.savedAmong != nil {
		return s.savedAmong(ctx, user, ids)
	}
	return map[int64]bool{}, nil
}

type stubStats struct {
	compute func(ctx context.Context, user string) (*domain.UserStatistics, error)
}

func (s stubStats) Compute(ctx context.Context, user string) (*domain.UserStatistics, error) {
	if s.compute != nil {
		return s.compute(ctx, user)
	}
	return &domain.UserStatistics{}, nil
}

type stubTokens struct {
	err error
}

func (s stubTokens) Issue(userID, username string) (string, time.Time, error) {
	if s.err != nil {
		return "", time.Time{}, s.err
	}
	return "tok-" + userID + "-" + username, time.Unix(1700000000, 0).UTC(), nil
}

// ---------- test plumbing ----------

// deps collects the stubs behind a Handlers; zero values use defaults.
type deps struct {
	creds   stubCreds
	recipes stubRecipes
	ledger  stubLedger
	stats   stubStats
	tokens  stubTokens
}

func (d deps) handlers() *Handlers {
	return New(d.creds, d.recipes, d.ledger, d.stats, d.tokens)
}

// newEngine returns a gin engine that authenticates every request as the
// X-Test-User header value (when present).
func newEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("X-Request-ID", "rid-test")
		if u := c.GetHeader("X-Test-User"); u != "" {
			c.Set("userID", u)
		}
		c.Next()
	})
	return r
}

// do performs a request with an optional JSON body as user (may be "").
func do(t *testing.T, r http.Handler, method, path, user string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	if rd != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("json: %v (body=%s)", err, w.Body.String())
	}
	return v
}

func expectError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("status = %d, want %d (body=%s)", w.Code, status, w.Body.String())
	}
	er := decode[ErrorResponse](t, w)
	if er.Code != code || er.RequestID != "rid-test" {
		t.Fatalf("error body = %+v, want code %q", er, code)
	}
}
