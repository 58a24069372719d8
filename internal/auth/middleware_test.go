package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAdminUnconfiguredFailsClosed(t *testing.T) {
	g := Gate{}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/queue/stats", nil)
	rec := httptest.NewRecorder()
	g.RequireAdmin(okHandler()).ServeHTTP(rec, req)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestRequireAdminAPIKeyValid(t *testing.T) {
	g := Gate{APIKey: "s3cr3t"}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/queue/stats", nil)
	req.Header.Set("X-API-Key", "s3cr3t")
	rec := httptest.NewRecorder()
	g.RequireAdmin(okHandler()).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestRequireAdminAPIKeyInvalid(t *testing.T) {
	g := Gate{APIKey: "s3cr3t"}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/queue/stats", nil)
	req.Header.Set("X-API-Key", "wrong")
	rec := httptest.NewRecorder()
	g.RequireAdmin(okHandler()).ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestRequireAdminAPIKeyCustomHeader(t *testing.T) {
	g := Gate{APIKey: "s3cr3t", APIKeyHeaderName: "X-Admin-Key"}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/queue/stats", nil)
	req.Header.Set("X-Admin-Key", "s3cr3t")
	rec := httptest.NewRecorder()
	g.RequireAdmin(okHandler()).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestRequireAdminJWTValid(t *testing.T) {
	g := Gate{JWTSecret: "jwt-secret"}
	tok, err := IssueToken("jwt-secret", "admin", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/queue/stats", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	g.RequireAdmin(okHandler()).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestRequireAdminJWTMissing(t *testing.T) {
	g := Gate{JWTSecret: "jwt-secret"}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/queue/stats", nil)
	rec := httptest.NewRecorder()
	g.RequireAdmin(okHandler()).ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestRequireAdminJWTInvalid(t *testing.T) {
	g := Gate{JWTSecret: "jwt-secret"}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/queue/stats", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec := httptest.NewRecorder()
	g.RequireAdmin(okHandler()).ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestExtractBearerTokenMalformed(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic abc123")
	if got := extractBearerToken(req); got != "" {
		t.Errorf("extractBearerToken() = %q, want empty for non-bearer scheme", got)
	}
}

func TestGateConfigured(t *testing.T) {
	if (Gate{}).Configured() {
		t.Error("expected unconfigured Gate to report false")
	}
	if !(Gate{APIKey: "x"}).Configured() {
		t.Error("expected Gate with APIKey to report true")
	}
	if !(Gate{JWTSecret: "x"}).Configured() {
		t.Error("expected Gate with JWTSecret to report true")
	}
}
