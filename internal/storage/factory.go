// Package storage selects and builds the datastore backend.
package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/bobmcallan/etfmomentum/internal/common"
	"github.com/bobmcallan/etfmomentum/internal/interfaces"
	"github.com/bobmcallan/etfmomentum/internal/storage/postgres"
	"github.com/bobmcallan/etfmomentum/internal/storage/surrealdb"
)

// Backend type constants.
const (
	BackendSurrealDB = "surrealdb"
	BackendPostgres  = "postgres"
)

// BackendFor maps a storage URL to a backend by scheme.
// Supported: ws, wss, http, https (SurrealDB); postgres, postgresql (Postgres).
func BackendFor(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("parse storage url: %w", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "ws", "wss", "http", "https":
		return BackendSurrealDB, nil
	case "postgres", "postgresql":
		return BackendPostgres, nil
	case "":
		return "", fmt.Errorf("storage url %q has no scheme", rawURL)
	default:
		return "", fmt.Errorf("unknown storage scheme: %s (supported: ws, wss, http, https, postgres, postgresql)", u.Scheme)
	}
}

// NewStorageManager creates the StorageManager for the configured URL.
func NewStorageManager(ctx context.Context, logger *common.Logger, config *common.Config) (interfaces.StorageManager, error) {
	backend, err := BackendFor(config.Storage.URL)
	if err != nil {
		return nil, &common.ConfigError{Reason: err.Error()}
	}

	// Return an untyped nil on failure so callers never hold a nil *Manager
	// behind a non-nil interface.
	switch backend {
	case BackendPostgres:
		m, err := postgres.NewManager(ctx, logger, config)
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		m, err := surrealdb.NewManager(ctx, logger, config)
		if err != nil {
			return nil, err
		}
		return m, nil
	}
}
