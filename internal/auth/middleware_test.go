package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if RoleFromContext(r.Context()) == "" && r.URL.Path != "/healthz" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
}

func serve(h http.Handler, method, path, token string) int {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	return resp.Code
}

func TestAuthMiddleware_NoToken(t *testing.T) {
	mw := NewMiddleware([]byte("test-secret"), NewDefaultPolicy(nil, nil))
	if code := serve(mw.Wrap(okHandler()), http.MethodGet, "/api/v1/records", ""); code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", code)
	}
}

func TestAuthMiddleware_ExemptPaths(t *testing.T) {
	mw := NewMiddleware([]byte("test-secret"), NewDefaultPolicy([]string{"/healthz"}, []string{"/metrics"}))
	if code := serve(mw.Wrap(okHandler()), http.MethodGet, "/healthz", ""); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
}

func TestAuthMiddleware_RoleRanking(t *testing.T) {
	secret := []byte("test-secret")
	handler := NewMiddleware(secret, NewDefaultPolicy(nil, nil)).Wrap(okHandler())
	viewer := mustToken(t, secret, "viewer")
	operator := mustToken(t, secret, "operator")
	admin := mustToken(t, secret, "admin")

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"viewer reads records", http.MethodGet, "/api/v1/records", viewer, http.StatusOK},
		{"viewer exports", http.MethodGet, "/api/v1/exports/day_ahead_price.csv", viewer, http.StatusOK},
		{"viewer cannot run", http.MethodPost, "/api/v1/runs", viewer, http.StatusForbidden},
		{"operator runs", http.MethodPost, "/api/v1/runs", operator, http.StatusOK},
		{"operator cannot backfill", http.MethodPost, "/api/v1/backfill", operator, http.StatusForbidden},
		{"admin backfills", http.MethodPost, "/api/v1/backfill", admin, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if code := serve(handler, tc.method, tc.path, tc.token); code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, code)
			}
		})
	}
}

func TestAuthMiddleware_RejectsWrongSecretAndExpiredToken(t *testing.T) {
	secret := []byte("test-secret")
	handler := NewMiddleware(secret, NewDefaultPolicy(nil, nil)).Wrap(okHandler())

	if code := serve(handler, http.MethodGet, "/api/v1/records", mustToken(t, []byte("other"), "admin")); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for foreign secret, got %d", code)
	}

	claims := Claims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if code := serve(handler, http.MethodGet, "/api/v1/records", expired); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for expired token, got %d", code)
	}
}

func TestIssueJWTRoundTrip(t *testing.T) {
	secret := []byte("test-secret")
	token, err := IssueJWT(secret, "ops", RoleOperator, time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := ParseJWT(token, secret)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "ops" || claims.Role != string(RoleOperator) {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if _, err := IssueJWT(secret, "ops", Role("root"), time.Minute); err == nil {
		t.Fatalf("expected invalid role error")
	}
}

func mustToken(t *testing.T, secret []byte, role string) string {
	t.Helper()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestPolicyFallbackAndExemptPrefix(t *testing.T) {
	policy := NewDefaultPolicy([]string{"/healthz"}, []string{"/metrics"})
	cases := []struct {
		method string
		path   string
		exempt bool
		role   Role
		ok     bool
	}{
		{http.MethodGet, "/metrics/extra", true, "", false},
		{http.MethodGet, "/api/v1/runs", false, RoleViewer, true},
		{http.MethodDelete, "/api/v1/other", false, RoleOperator, true},
		{http.MethodGet, "/", false, "", false},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		if got := policy.IsExempt(req); got != tc.exempt {
			t.Fatalf("%s %s: exempt=%v, want %v", tc.method, tc.path, got, tc.exempt)
		}
		role, ok := policy.RequiredRole(req)
		if role != tc.role || ok != tc.ok {
			t.Fatalf("%s %s: role=%q ok=%v, want %q %v", tc.method, tc.path, role, ok, tc.role, tc.ok)
		}
	}
}
