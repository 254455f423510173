package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

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
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddleware_NoToken(t *testing.T) {
	mw := NewMiddleware([]byte("test-secret"), NewDefaultPolicy(nil, nil))
	handler := mw.Wrap(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/actions", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestAuthMiddleware_HealthAndMetricsExempt(t *testing.T) {
	mw := NewMiddleware([]byte("test-secret"), NewDefaultPolicy(nil, nil))
	handler := mw.Wrap(okHandler())

	for _, path := range []string{"/healthz", "/metrics"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 without token, got %d", path, resp.Code)
		}
	}
}

func TestAuthMiddleware_ViewerCanReadHistory(t *testing.T) {
	secret := []byte("test-secret")
	mw := NewMiddleware(secret, NewDefaultPolicy(nil, nil))
	handler := mw.Wrap(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/history", nil)
	req.Header.Set("Authorization", "Bearer "+mustToken(t, secret, "viewer"))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
}

func TestAuthMiddleware_ViewerForbiddenExport(t *testing.T) {
	secret := []byte("test-secret")
	mw := NewMiddleware(secret, NewDefaultPolicy(nil, nil))
	handler := mw.Wrap(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/history/export.csv", nil)
	req.Header.Set("Authorization", "Bearer "+mustToken(t, secret, "viewer"))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.Code)
	}
}

func TestAuthMiddleware_AdminAllowedExport(t *testing.T) {
	secret := []byte("test-secret")
	mw := NewMiddleware(secret, NewDefaultPolicy(nil, nil))
	handler := mw.Wrap(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/history/export.xlsx", nil)
	req.Header.Set("Authorization", "Bearer "+mustToken(t, secret, "admin"))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
}

func TestAuthMiddleware_WrongSecret(t *testing.T) {
	mw := NewMiddleware([]byte("test-secret"), NewDefaultPolicy(nil, nil))
	handler := mw.Wrap(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/actions", nil)
	req.Header.Set("Authorization", "Bearer "+mustToken(t, []byte("other-secret"), "admin"))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}
