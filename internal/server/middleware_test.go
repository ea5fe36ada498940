package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bobmcallan/etfmomentum/internal/common"
)

func TestCorsMiddleware_ReadRoutes(t *testing.T) {
	handler := corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/etfs", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Methods"); got != "GET, OPTIONS" {
		t.Errorf("Expected GET, OPTIONS, got %q", got)
	}
}

func TestCorsMiddleware_PreflightShortCircuits(t *testing.T) {
	called := false
	handler := corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/refresh/", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if called {
		t.Error("Expected preflight not to reach the handler")
	}
	if rr.Code != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Methods"); got != "POST, OPTIONS" {
		t.Errorf("Expected POST, OPTIONS, got %q", got)
	}
}

func TestCorrelationIDMiddleware_StoresOnContext(t *testing.T) {
	var seen string
	handler := correlationIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = common.CorrelationID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Correlation-ID", "corr-42")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if seen != "corr-42" {
		t.Errorf("Expected corr-42 on context, got %q", seen)
	}
	if rr.Header().Get("X-Correlation-ID") != "corr-42" {
		t.Errorf("Expected response header corr-42, got %q", rr.Header().Get("X-Correlation-ID"))
	}
}

func TestResponseWriter_CapturesStatusAndBytes(t *testing.T) {
	rr := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rr, statusCode: http.StatusOK}

	rw.WriteHeader(http.StatusTeapot)
	n, err := rw.Write([]byte("short and stout"))
	if err != nil {
		t.Fatal(err)
	}

	if rw.statusCode != http.StatusTeapot {
		t.Errorf("Expected 418, got %d", rw.statusCode)
	}
	if rw.bytesWritten != n || n != 15 {
		t.Errorf("Expected 15 bytes, got %d", rw.bytesWritten)
	}
}

func TestIsRefreshPath(t *testing.T) {
	tests := map[string]bool{
		"/api/refresh":                   true,
		"/api/refresh/":                  true,
		"/functions/v1/update-etf-data":  true,
		"/api/etfs":                      false,
		"/functions/v1/update-etf-data2": false,
	}
	for path, want := range tests {
		if got := isRefreshPath(path); got != want {
			t.Errorf("isRefreshPath(%q) = %v, want %v", path, got, want)
		}
	}
}
