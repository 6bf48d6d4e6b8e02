package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"hullscope.io/internal/access"
)

func TestExtractBearerToken(t *testing.T) {
	cases := []struct {
		header  string
		want    string
		wantErr bool
	}{
		{"Bearer abc123", "abc123", false},
		{"bearer abc123", "abc123", false},
		{"  Bearer   abc123  ", "abc123", false},
		{"", "", true},
		{"Basic abc123", "", true},
		{"Bearer ", "", true},
	}
	for _, tc := range cases {
		got, err := extractBearerToken(tc.header)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("header %q: expected error", tc.header)
			}
			continue
		}
		if err != nil {
			t.Fatalf("header %q: %v", tc.header, err)
		}
		if got != tc.want {
			t.Fatalf("header %q: got %q, want %q", tc.header, got, tc.want)
		}
	}
}

func TestWithAuthPublicPaths(t *testing.T) {
	a := &API{}
	handler := a.withAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, path := range []string{"/healthz", "/readyz", "/metrics", "/openapi.yaml", "/v1/auth/token", "/"} {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("path %s: expected pass-through, got %d", path, rr.Code)
		}
	}

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/resources", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("protected path without token: expected 401, got %d", rr.Code)
	}
}

func TestWithAuthAllowsAnonymousRequestSubmission(t *testing.T) {
	a := &API{}
	handler := a.withAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/requests", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("anonymous POST /v1/requests: expected pass-through, got %d", rr.Code)
	}

	// Listing requests still needs a token.
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/requests", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("GET /v1/requests without token: expected 401, got %d", rr.Code)
	}
}

func TestWithAuthAttachesPrincipal(t *testing.T) {
	t.Setenv("HULLSCOPE_AUTH_SECRET", "test-secret")
	access.ResetSecretForTests()

	token, err := access.GenerateToken("p-1", access.RoleEditor, "org-1", time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	a := &API{}
	var gotID string
	handler := a.withAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID, _ = access.PrincipalIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/resources", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if gotID != "p-1" {
		t.Fatalf("principal not attached: %q", gotID)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/resources", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token: expected 401, got %d", rr.Code)
	}
}
