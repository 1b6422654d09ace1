package cmd

import (
	"fmt"

	"github.com/google/subcommands"
	"go.uber.org/zap"

	"pos_ledger/api"
	"pos_ledger/internal/config"
	"pos_ledger/internal/sheets"
)

// Register the subcommands.
func Register(c *subcommands.Commander, cfg *config.Config) {
	c.Register(&serveCmd{cfg: cfg}, "server")

	c.Register(&migrateCmd{cfg: cfg}, "maintenance")
	c.Register(&reconcileCmd{cfg: cfg}, "maintenance")
}

// NewLogger builds the process logger for the configured environment.
func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Server.Production() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// OpenStore opens the configured tabular store. The returned close function
// releases it.
func OpenStore(cfg *config.Config, logger *zap.Logger) (sheets.Store, func() error, error) {
	switch cfg.Store.Backend {
	case config.BackendSheets:
		c := sheets.NewClient(sheets.ClientConfig{
			BaseURL:       cfg.Store.SheetsBaseURL,
			SpreadsheetID: cfg.Store.SpreadsheetID,
			AccessToken:   cfg.Store.AccessToken,
			Timeout:       cfg.Store.RequestTimeout,
		}, logger.Named("sheets"))
		return c, c.Close, nil
	case config.BackendSQLite:
		s, err := sheets.OpenSQLite(cfg.Store.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case config.BackendMemory:
		logger.Warn("using the in-memory store, nothing will be persisted")
		return sheets.NewMemory(), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// setup validates the configuration and builds the logger, store and
// services shared by every subcommand.
func setup(cfg *config.Config) (api.Dependencies, func(), error) {
	if err := cfg.Validate(); err != nil {
		return api.Dependencies{}, nil, err
	}
	loc, err := cfg.Store.Location()
	if err != nil {
		return api.Dependencies{}, nil, err
	}
	logger, err := NewLogger(cfg)
	if err != nil {
		return api.Dependencies{}, nil, fmt.Errorf("creating logger: %w", err)
	}
	store, closeStore, err := OpenStore(cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return api.Dependencies{}, nil, err
	}

	deps := api.NewDependencies(store, api.Options{
		Location:        loc,
		CheckoutRetries: cfg.Checkout.Retries,
		Currency:        cfg.Checkout.Currency,
	}, logger)
	cleanup := func() {
		if err := closeStore(); err != nil {
			logger.Warn("closing store", zap.Error(err))
		}
		_ = logger.Sync()
	}
	return deps, cleanup, nil
}
