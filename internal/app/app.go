package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bobmcallan/etfmomentum/internal/clients/alphavantage"
	"github.com/bobmcallan/etfmomentum/internal/clients/breaker"
	"github.com/bobmcallan/etfmomentum/internal/clients/eodhd"
	"github.com/bobmcallan/etfmomentum/internal/common"
	"github.com/bobmcallan/etfmomentum/internal/interfaces"
	"github.com/bobmcallan/etfmomentum/internal/metrics"
	"github.com/bobmcallan/etfmomentum/internal/models"
	"github.com/bobmcallan/etfmomentum/internal/services/momentum"
	"github.com/bobmcallan/etfmomentum/internal/services/refresh"
	"github.com/bobmcallan/etfmomentum/internal/signals"
	"github.com/bobmcallan/etfmomentum/internal/storage"
)

// startupTimeout bounds datastore connection, schema setup and universe seeding.
const startupTimeout = 30 * time.Second

// App holds all initialized services, clients and storage.
// It is the shared core used by every cmd/etfmomentum subcommand.
type App struct {
	Config          *common.Config
	Logger          *common.Logger
	Storage         interfaces.StorageManager
	MarketData      interfaces.MarketDataClient
	Metrics         *metrics.Registry
	RefreshService  interfaces.RefreshService
	MomentumService interfaces.MomentumService
	StartupTime     time.Time

	schedulerCancel context.CancelFunc
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// ResolveConfigPath picks the config file: the given path, ETFM_CONFIG,
// etfmomentum.toml next to the binary, then config/etfmomentum.toml.
func ResolveConfigPath(configPath string) string {
	if configPath == "" {
		configPath = os.Getenv("ETFM_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(getBinaryDir(), "etfmomentum.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/etfmomentum.toml" // fallback for development
		}
	}
	return configPath
}

// NewApp loads and validates configuration, connects storage, builds the
// provider client and services, and seeds the instrument universe.
// A missing credential is returned as *common.ConfigError before anything connects.
func NewApp(configPath string) (*App, error) {
	startupStart := time.Now()

	// Load version from .version file (fallback if ldflags not set)
	common.LoadVersionFromFile()

	config, err := common.LoadConfig(ResolveConfigPath(configPath))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	// Resolve relative log file path to binary directory
	if config.Logging.FilePath != "" && !filepath.IsAbs(config.Logging.FilePath) {
		config.Logging.FilePath = filepath.Join(getBinaryDir(), config.Logging.FilePath)
	}

	logger := common.NewLoggerFromConfig(config.Logging)

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	storageManager, err := storage.NewStorageManager(ctx, logger, config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	client, err := NewMarketDataClient(config, logger)
	if err != nil {
		storageManager.Close()
		return nil, err
	}

	a, err := New(ctx, config, logger, storageManager, client)
	if err != nil {
		storageManager.Close()
		return nil, err
	}
	a.StartupTime = startupStart

	logger.Info().
		Str("storage", storageManager.Backend()).
		Str("provider", client.Name()).
		Dur("startup", time.Since(startupStart)).
		Msg("App initialized")

	return a, nil
}

// New wires services around an already connected storage manager and client,
// then registers the configured universe.
func New(ctx context.Context, config *common.Config, logger *common.Logger, storageManager interfaces.StorageManager, client interfaces.MarketDataClient) (*App, error) {
	reg := metrics.NewRegistry()

	selector := refresh.NewSelector(storageManager.InstrumentRegistry(), config.Refresh.GetStaleness(), config.Refresh.BatchSize)
	orchestrator := refresh.NewOrchestrator(selector, client, storageManager, logger,
		refresh.WithMetrics(reg),
	)
	policy := signals.RiskPolicy{
		BondSymbol: config.Refresh.BondSymbol,
		BondLabel:  config.Refresh.BondLabel,
		TopCount:   config.Refresh.TopSectorCount,
	}
	deriver := refresh.NewRiskDeriver(storageManager, config.Refresh.Benchmark, policy, logger)

	a := &App{
		Config:          config,
		Logger:          logger,
		Storage:         storageManager,
		MarketData:      client,
		Metrics:         reg,
		RefreshService:  refresh.NewService(orchestrator, deriver, reg, logger),
		MomentumService: momentum.NewService(storageManager, logger),
		StartupTime:     time.Now(),
	}

	if err := a.SeedUniverse(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

// NewMarketDataClient builds the configured provider client, wrapped in a
// circuit breaker when enabled.
func NewMarketDataClient(config *common.Config, logger *common.Logger) (interfaces.MarketDataClient, error) {
	var client interfaces.MarketDataClient

	switch config.Clients.Provider {
	case common.ProviderEODHD:
		p := config.Clients.EODHD
		client = eodhd.NewClient(p.APIKey,
			eodhd.WithBaseURL(p.BaseURL),
			eodhd.WithLogger(logger),
			eodhd.WithRateLimit(p.RateLimit),
			eodhd.WithTimeout(p.GetTimeout()),
		)
	case "", common.ProviderAlphaVantage:
		p := config.Clients.AlphaVantage
		client = alphavantage.NewClient(p.APIKey,
			alphavantage.WithBaseURL(p.BaseURL),
			alphavantage.WithLogger(logger),
			alphavantage.WithRateLimit(p.RateLimit),
			alphavantage.WithTimeout(p.GetTimeout()),
		)
	default:
		return nil, &common.ConfigError{Reason: fmt.Sprintf("unknown provider %q", config.Clients.Provider)}
	}

	if b := config.Clients.Breaker; b.Enabled {
		client = breaker.New(client, b.MaxFailures, b.GetOpenTimeout(), logger)
	}
	return client, nil
}

// SeedUniverse registers every configured instrument. Existing instruments
// keep their refresh timestamps; name and sector are updated.
func (a *App) SeedUniverse(ctx context.Context) error {
	registry := a.Storage.InstrumentRegistry()
	for _, u := range a.Config.Universe {
		symbol := strings.ToUpper(strings.TrimSpace(u.Symbol))
		inst := &models.Instrument{
			ID:     models.InstrumentIDFor(symbol),
			Symbol: symbol,
			Name:   u.Name,
			Sector: u.Sector,
		}
		if err := registry.Register(ctx, inst); err != nil {
			return fmt.Errorf("failed to register %s: %w", symbol, err)
		}
	}
	a.Logger.Info().Int("instruments", len(a.Config.Universe)).Msg("Universe registered")
	return nil
}

// Close releases all resources held by the App.
// Shutdown order: cancel scheduler, close storage.
func (a *App) Close() {
	if a.schedulerCancel != nil {
		a.schedulerCancel()
		a.schedulerCancel = nil
	}
	if a.Storage != nil {
		a.Storage.Close()
		a.Storage = nil
	}
}

// StartScheduler launches the background refresh loop when an interval is configured.
func (a *App) StartScheduler() {
	interval := a.Config.Refresh.GetScheduleInterval()
	if interval <= 0 {
		return
	}
	schedulerCtx, schedulerCancel := context.WithCancel(context.Background())
	a.schedulerCancel = schedulerCancel
	go startRefreshScheduler(schedulerCtx, a.RefreshService, a.Logger, interval)
}
