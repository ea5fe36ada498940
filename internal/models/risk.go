package models

import "time"

// RiskSignal is the binary market risk state
type RiskSignal string

const (
	RiskOn  RiskSignal = "on"
	RiskOff RiskSignal = "off"
)

// RiskStatus is the derived market risk signal for a day. Unique per Date.
type RiskStatus struct {
	Date    time.Time  `json:"date"`
	Status  RiskSignal `json:"status"`
	Message string     `json:"message"`
}

// InitialRiskMessage is shown before the first risk status has been derived.
const InitialRiskMessage = "Initializing risk status..."

// DefaultRiskStatus is returned to readers when nothing has been stored yet.
func DefaultRiskStatus() *RiskStatus {
	return &RiskStatus{Status: RiskOff, Message: InitialRiskMessage}
}
