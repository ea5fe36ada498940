package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/bobmcallan/etfmomentum/internal/common"
	"github.com/bobmcallan/etfmomentum/internal/models"
	"github.com/bobmcallan/etfmomentum/internal/services/momentum"
	"github.com/bobmcallan/etfmomentum/internal/signals"
)

// Refresh update statuses reported per instrument.
const (
	updateSuccess = "success"
	updateError   = "error"
)

// RefreshUpdate is one instrument's entry in the refresh response.
type RefreshUpdate struct {
	Symbol string `json:"symbol"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// RefreshResponse is returned when at least one instrument was due.
type RefreshResponse struct {
	Success    bool               `json:"success"`
	Updates    []RefreshUpdate    `json:"updates"`
	Timestamp  string             `json:"timestamp"`
	RunID      string             `json:"run_id,omitempty"`
	RiskStatus *models.RiskStatus `json:"risk_status,omitempty"`
}

// NoneDueResponse is returned when no instrument needed refreshing.
type NoneDueResponse struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

const noneDueMessage = "No ETFs need updating"

// handleRefresh runs one refresh. POST /api/refresh
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	summary, err := s.app.RefreshService.Refresh(r.Context())
	switch {
	case errors.Is(err, common.ErrRefreshInProgress):
		WriteTimestampedError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		s.logger.Error().
			Err(err).
			Str("correlation_id", common.CorrelationID(r.Context())).
			Msg("Refresh failed")
		WriteTimestampedError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if summary.NoneDue {
		WriteJSON(w, http.StatusOK, NoneDueResponse{Message: noneDueMessage, Timestamp: Timestamp(time.Now())})
		return
	}

	resp := RefreshResponse{
		Success:   true,
		Updates:   make([]RefreshUpdate, 0, len(summary.Outcomes)),
		Timestamp: Timestamp(time.Now()),
		RunID:     summary.RunID,
	}
	if summary.RiskStatusUpdated {
		resp.RiskStatus = summary.RiskStatus
	}
	for _, o := range summary.Outcomes {
		u := RefreshUpdate{Symbol: o.Symbol, Status: updateSuccess}
		if !o.State.Succeeded() {
			u.Status = updateError
			u.Error = o.Error
		}
		resp.Updates = append(resp.Updates, u)
	}
	WriteJSON(w, http.StatusOK, resp)
}

// PerformanceView is an instrument's latest returns rounded for display.
type PerformanceView struct {
	Symbol        string    `json:"symbol"`
	Name          string    `json:"name"`
	Sector        string    `json:"sector"`
	Date          time.Time `json:"date"`
	LastMonth     float64   `json:"last_month"`
	ThreeMonth    float64   `json:"three_month"`
	SixMonth      float64   `json:"six_month"`
	NineMonth     float64   `json:"nine_month"`
	OneYear       float64   `json:"one_year"`
	MomentumScore float64   `json:"momentum_score"`
	LastRefreshed time.Time `json:"last_refreshed"`
}

// SectorView is a ranked sector with rounded figures.
type SectorView struct {
	Sector       string            `json:"sector"`
	AverageScore float64           `json:"average_score"`
	ETFs         []PerformanceView `json:"etfs"`
}

// StrategyView is the strategy allocation with rounded scores.
type StrategyView struct {
	Symbol     string             `json:"symbol"`
	Reason     string             `json:"reason"`
	Scores     map[string]float64 `json:"scores"`
	Instrument PerformanceView    `json:"instrument"`
}

func performanceView(p models.InstrumentPerformance) PerformanceView {
	return PerformanceView{
		Symbol:        p.Symbol,
		Name:          p.Name,
		Sector:        p.Sector,
		Date:          p.Date,
		LastMonth:     round2(p.LastMonth),
		ThreeMonth:    round2(p.ThreeMonth),
		SixMonth:      round2(p.SixMonth),
		NineMonth:     round2(p.NineMonth),
		OneYear:       round2(p.OneYear),
		MomentumScore: round2(p.MomentumScore),
		LastRefreshed: p.LastRefreshed,
	}
}

func performanceViews(perfs []models.InstrumentPerformance) []PerformanceView {
	out := make([]PerformanceView, 0, len(perfs))
	for _, p := range perfs {
		out = append(out, performanceView(p))
	}
	return out
}

// handleETFs lists every instrument with its latest returns. GET /api/etfs
func (s *Server) handleETFs(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	perfs, err := s.app.MomentumService.Performance(r.Context())
	if err != nil {
		s.readFailed(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, performanceViews(perfs))
}

// handleTopETFs ranks instruments by momentum score. GET /api/etfs/top?count=4
func (s *Server) handleTopETFs(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	count, ok := QueryInt(w, r, "count", momentum.DefaultTopCount)
	if !ok {
		return
	}
	perfs, err := s.app.MomentumService.TopPerforming(r.Context(), count)
	if err != nil {
		s.readFailed(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, performanceViews(perfs))
}

// handleSectors ranks sectors. GET /api/sectors
func (s *Server) handleSectors(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	sectors, err := s.app.MomentumService.TopSectors(r.Context())
	if err != nil {
		s.readFailed(w, r, err)
		return
	}
	out := make([]SectorView, 0, len(sectors))
	for _, sec := range sectors {
		out = append(out, SectorView{
			Sector:       sec.Sector,
			AverageScore: round2(sec.AverageScore),
			ETFs:         performanceViews(sec.Members),
		})
	}
	WriteJSON(w, http.StatusOK, out)
}

// handleStrategy returns the dual momentum allocation. GET /api/strategy
func (s *Server) handleStrategy(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	alloc, err := s.app.MomentumService.Strategy(r.Context())
	if errors.Is(err, signals.ErrStrategyIncomplete) {
		WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		s.readFailed(w, r, err)
		return
	}
	scores := make(map[string]float64, len(alloc.Scores))
	for k, v := range alloc.Scores {
		scores[k] = round2(v)
	}
	WriteJSON(w, http.StatusOK, StrategyView{
		Symbol:     alloc.Symbol,
		Reason:     alloc.Reason,
		Scores:     scores,
		Instrument: performanceView(alloc.Instrument),
	})
}

// handleRiskStatus returns the latest risk status. GET /api/risk-status
func (s *Server) handleRiskStatus(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	status, err := s.app.MomentumService.RiskStatus(r.Context())
	if err != nil {
		s.readFailed(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, status)
}

func (s *Server) readFailed(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error().
		Err(err).
		Str("path", r.URL.Path).
		Str("correlation_id", common.CorrelationID(r.Context())).
		Msg("Read failed")
	WriteTimestampedError(w, http.StatusInternalServerError, "Failed to load data")
}
