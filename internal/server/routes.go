package server

import (
	"net/http"
	"strings"

	"github.com/bobmcallan/etfmomentum/internal/common"
)

// Paths that trigger a refresh. The second is the legacy function URL.
const (
	refreshPath       = "/api/refresh"
	legacyRefreshPath = "/functions/v1/update-etf-data"
)

func isRefreshPath(path string) bool {
	path = strings.TrimSuffix(path, "/")
	return path == refreshPath || path == legacyRefreshPath
}

// registerRoutes sets up all REST API routes on the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	// System
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/version", s.handleVersion)
	mux.Handle("/metrics", s.app.Metrics.Handler())

	// Refresh
	mux.HandleFunc(refreshPath, s.handleRefresh)
	mux.HandleFunc(legacyRefreshPath, s.handleRefresh)

	// Momentum
	mux.HandleFunc("/api/etfs", s.handleETFs)
	mux.HandleFunc("/api/etfs/top", s.handleTopETFs)
	mux.HandleFunc("/api/sectors", s.handleSectors)
	mux.HandleFunc("/api/strategy", s.handleStrategy)
	mux.HandleFunc("/api/risk-status", s.handleRiskStatus)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	resp := map[string]string{"status": "ok"}
	if s.app.Storage != nil {
		resp["storage"] = s.app.Storage.Backend()
	}
	if s.app.MarketData != nil {
		resp["provider"] = s.app.MarketData.Name()
	}
	WriteJSON(w, http.StatusOK, resp)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, common.GetVersionInfo())
}
