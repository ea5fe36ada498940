package models

import "time"

// RefreshState is the per-instrument position in the refresh pipeline
type RefreshState string

const (
	StateDue                 RefreshState = "due"
	StateFetching            RefreshState = "fetching"
	StateFetchFailed         RefreshState = "fetch_failed"
	StateFetched             RefreshState = "fetched"
	StateComputing           RefreshState = "computing"
	StateInsufficientHistory RefreshState = "insufficient_history"
	StateComputeFailed       RefreshState = "compute_failed"
	StateComputed            RefreshState = "computed"
	StatePersisting          RefreshState = "persisting"
	StatePersistFailed       RefreshState = "persist_failed"
	StatePersisted           RefreshState = "persisted"
)

// Terminal reports whether no further transition is possible.
func (s RefreshState) Terminal() bool {
	switch s {
	case StateFetchFailed, StateInsufficientHistory, StateComputeFailed, StatePersistFailed, StatePersisted:
		return true
	}
	return false
}

// Succeeded reports whether the instrument was fully refreshed.
func (s RefreshState) Succeeded() bool {
	return s == StatePersisted
}

// InstrumentOutcome records how one instrument fared in a refresh run
type InstrumentOutcome struct {
	Symbol        string          `json:"symbol"`
	InstrumentID  string          `json:"instrument_id"`
	State         RefreshState    `json:"state"`
	Kind          string          `json:"kind,omitempty"` // error kind, empty on success
	Error         string          `json:"error,omitempty"`
	PricesWritten int             `json:"prices_written"`
	Snapshot      *ReturnSnapshot `json:"snapshot,omitempty"`
}

// RefreshReport is what the orchestrator produces for one run
type RefreshReport struct {
	RunID      string              `json:"run_id"`
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt time.Time           `json:"finished_at"`
	NoneDue    bool                `json:"none_due"`
	Outcomes   []InstrumentOutcome `json:"outcomes"`
}

// Succeeded returns the number of fully refreshed instruments.
func (r *RefreshReport) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.State.Succeeded() {
			n++
		}
	}
	return n
}

// Failed returns the number of instruments that stopped in a failure state.
func (r *RefreshReport) Failed() int {
	return len(r.Outcomes) - r.Succeeded()
}

// RefreshSummary is the result of a full refresh including risk derivation
type RefreshSummary struct {
	RunID             string              `json:"run_id"`
	RanAt             time.Time           `json:"ran_at"`
	NoneDue           bool                `json:"none_due"`
	Outcomes          []InstrumentOutcome `json:"outcomes"`
	RiskStatusUpdated bool                `json:"risk_status_updated"`
	RiskStatus        *RiskStatus         `json:"risk_status,omitempty"`
}
