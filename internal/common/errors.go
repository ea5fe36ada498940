// Package common provides shared utilities for etfmomentum
package common

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Error kinds recorded on refresh outcomes and used as metric labels.
const (
	KindConfig              = "config"
	KindProvider            = "provider"
	KindDataFormat          = "data_format"
	KindInsufficientHistory = "insufficient_history"
	KindPersistence         = "persistence"
	KindCanceled            = "canceled"
	KindUnknown             = "unknown"
)

// ErrInsufficientHistory is the sentinel matched by InsufficientHistoryError.
var ErrInsufficientHistory = errors.New("insufficient price history")

// ErrRefreshInProgress is returned when a refresh is requested while one is running.
var ErrRefreshInProgress = errors.New("refresh already in progress")

// ConfigError reports missing or invalid startup configuration. It is fatal.
type ConfigError struct {
	Missing []string
	Reason  string
}

func (e *ConfigError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("missing required configuration: %s", strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("invalid configuration: %s", e.Reason)
}

// ProviderError is a non-success response or an error payload from the market data provider.
type ProviderError struct {
	Provider   string
	Symbol     string
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s API error for %s: %s (status: %d)", e.Provider, e.Symbol, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("%s error for %s: %s", e.Provider, e.Symbol, e.Message)
}

// DataFormatError reports a malformed or missing field in provider data.
type DataFormatError struct {
	Symbol string
	Field  string
	Reason string
}

func (e *DataFormatError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("bad data for %s: %s", e.Symbol, e.Reason)
	}
	return fmt.Sprintf("bad data for %s: %s: %s", e.Symbol, e.Field, e.Reason)
}

// InsufficientHistoryError means fewer price points than a full trailing year exist.
type InsufficientHistoryError struct {
	Symbol string
	Have   int
	Need   int
}

func (e *InsufficientHistoryError) Error() string {
	return fmt.Sprintf("insufficient price history for %s: have %d points, need %d", e.Symbol, e.Have, e.Need)
}

func (e *InsufficientHistoryError) Unwrap() error { return ErrInsufficientHistory }

// PersistenceError wraps a datastore failure with the operation that failed.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ErrorKind classifies err into one of the Kind* constants.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	var (
		cfgErr  *ConfigError
		provErr *ProviderError
		fmtErr  *DataFormatError
		perErr  *PersistenceError
	)
	switch {
	case errors.As(err, &cfgErr):
		return KindConfig
	case errors.Is(err, ErrInsufficientHistory):
		return KindInsufficientHistory
	case errors.As(err, &fmtErr):
		return KindDataFormat
	case errors.As(err, &provErr):
		return KindProvider
	case errors.As(err, &perErr):
		return KindPersistence
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		return KindUnknown
	}
}
