// Package common provides shared utilities for etfmomentum
package common

import "time"

// Refresh pipeline defaults
const (
	DefaultStaleness = 24 * time.Hour
	DefaultBatchSize = 5 // bounds run latency and provider rate-limit usage
	HistoryPoints    = 13 // current month plus 12 trailing months
	ProviderTimeout  = 30 * time.Second
)

// IsFresh returns true if the given timestamp is within the TTL
func IsFresh(updated time.Time, ttl time.Duration) bool {
	if updated.IsZero() {
		return false
	}
	return time.Since(updated) < ttl
}

// IsStale reports whether updated is older than now minus threshold.
// A zero timestamp is always stale.
func IsStale(updated, now time.Time, threshold time.Duration) bool {
	if updated.IsZero() {
		return true
	}
	return updated.Before(now.Add(-threshold))
}
