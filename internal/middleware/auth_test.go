package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gatehouse/gatehouse/internal/auth"
)

func newAuthMiddleware(t *testing.T) (func(http.Handler) http.Handler, *auth.TokenIssuer) {
	t.Helper()

	issuer := auth.NewTokenIssuer([]byte("middleware-test-secret"), "gatehouse", 0)
	mw := Auth(AuthConfig{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Issuer: issuer,
	})
	return mw, issuer
}

func TestAuth_ValidToken(t *testing.T) {
	t.Parallel()

	mw, issuer := newAuthMiddleware(t)

	token, err := issuer.IssueAccess(17, 15*time.Minute)
	if err != nil {
		t.Fatalf("IssueAccess failed: %v", err)
	}

	var gotID int64
	var gotOK bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID, gotOK = auth.UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	mw(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !gotOK {
		t.Fatal("user ID should be injected into the context")
	}
	if gotID != 17 {
		t.Errorf("expected user 17, got %d", gotID)
	}
}

func TestAuth_CaseInsensitiveScheme(t *testing.T) {
	t.Parallel()

	mw, issuer := newAuthMiddleware(t)

	token, err := issuer.IssueAccess(1, time.Minute)
	if err != nil {
		t.Fatalf("IssueAccess failed: %v", err)
	}

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set("Authorization", "bearer "+token)
	rec := httptest.NewRecorder()
	mw(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("lowercase bearer scheme should be accepted, got %d", rec.Code)
	}
}

func TestAuth_Rejections(t *testing.T) {
	t.Parallel()

	mw, issuer := newAuthMiddleware(t)

	expired, err := issuer.IssueAccess(1, -time.Minute)
	if err != nil {
		t.Fatalf("IssueAccess failed: %v", err)
	}

	foreign, err := auth.NewTokenIssuer([]byte("other-secret"), "gatehouse", 0).IssueAccess(1, time.Minute)
	if err != nil {
		t.Fatalf("IssueAccess failed: %v", err)
	}

	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic dXNlcjpwYXNz"},
		{"no token", "Bearer "},
		{"garbage token", "Bearer not.a.jwt"},
		{"expired token", "Bearer " + expired},
		{"foreign signature", "Bearer " + foreign},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			called := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
			})

			req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			mw(next).ServeHTTP(rec, req)

			if called {
				t.Error("handler must not run without valid authentication")
			}
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", rec.Code)
			}
			if rec.Header().Get("WWW-Authenticate") != "Bearer" {
				t.Error("expected WWW-Authenticate: Bearer header")
			}
		})
	}
}

func TestAuth_UniformRejectionBody(t *testing.T) {
	t.Parallel()

	mw, _ := newAuthMiddleware(t)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	send := func(header string) string {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		mw(next).ServeHTTP(rec, req)
		return rec.Body.String()
	}

	// Missing and invalid tokens must be indistinguishable to the caller.
	if send("") != send("Bearer bogus") {
		t.Error("rejection bodies must not vary by failure mode")
	}
}
