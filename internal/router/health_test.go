package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/nickbanetti/vbs/internal/auth"
	"github.com/nickbanetti/vbs/internal/scan"
)

func TestHealthCheck(t *testing.T) {
	gin.SetMode(gin.TestMode)

	authHandler := auth.NewHandler(auth.NewService(auth.NewInMemoryUserRepository()))
	scanHandler := scan.NewHandler(nil)
	r := New(authHandler, scanHandler)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
}

func TestScansRequireAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	t.Setenv("JWT_SECRET", "test-secret")

	authHandler := auth.NewHandler(auth.NewService(auth.NewInMemoryUserRepository()))
	scanHandler := scan.NewHandler(nil)
	r := New(authHandler, scanHandler)

	req := httptest.NewRequest(http.MethodPost, "/scans", nil)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", w.Code)
	}
}
