package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-recipe-backend/internal/auth"
)

func TestBearerToken(t *testing.T) {
	cases := []struct {
		in    string
		token string
		ok    bool
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi", true},
		{"bearer   abc", "abc", true},
		{"  BEARER abc  ", "abc", true},
		{"Bearer", "", false},
		{"Bearer    ", "", false},
		{"Basic dXNlcjpwYXNz", "", false},
		{"", "", false},
		{"abc", "", false},
	}
	for _, tc := range cases {
		token, ok := bearerToken(tc.in)
		if token != tc.token || ok != tc.ok {
			t.Errorf("bearerToken(%q) = (%q,%v), want (%q,%v)", tc.in, token, ok, tc.token, tc.ok)
		}
	}
}

func TestAuthenticate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	iss := auth.NewIssuer("0123456789abcdef0123456789abcdef", "test", time.Hour)
	good, _, err := iss.Issue("u1", "chef")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	other, _, err := auth.NewIssuer("another-secret-another-secret", "test", time.Hour).Issue("u1", "chef")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	r := gin.New()
	r.Use(RequestID(), Authenticate(iss))
	r.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user": UserID(c), "username": c.GetString("username")})
	})

	t.Run("valid token", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+good)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
		}
		var body map[string]string
		_ = json.Unmarshal(w.Body.Bytes(), &body)
		if body["user"] != "u1" || body["username"] != "chef" {
			t.Fatalf("unexpected identity: %v", body)
		}
	})

	for name, header := range map[string]string{
		"missing":      "",
		"wrong scheme": "Token " + good,
		"garbage":      "Bearer not-a-jwt",
		"wrong secret": "Bearer " + other,
	} {
		t.Run(name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			r.ServeHTTP(w, req)
			if w.Code != http.StatusUnauthorized {
				t.Fatalf("status=%d, want 401", w.Code)
			}
			if w.Header().Get("WWW-Authenticate") == "" {
				t.Fatal("missing WWW-Authenticate challenge")
			}
			var body map[string]string
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("json: %v", err)
			}
			if body["code"] != "unauthorized" || body["request_id"] == "" {
				t.Fatalf("unexpected envelope: %v", body)
			}
		})
	}
}
