package di

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/synthbench/internal/config"
	"github.com/aristath/synthbench/internal/modules/ledger"
)

// Wire initializes all dependencies and returns a fully configured container
// Order of operations:
// 1. Open the run ledger (optional)
// 2. Create the ledger repository
// 3. Build the synthesis pipeline and reporters
func Wire(ctx context.Context, cfg *config.Config, opts Options, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	ledgerPath := cfg.LedgerPath
	if ledgerPath == "" {
		ledgerPath = opts.DefaultLedgerPath
	}

	// Step 1: Initialize databases
	db, err := InitializeDatabases(ledgerPath, log)
	if err != nil {
		return nil, err
	}
	container.LedgerDB = db

	// Step 2: Initialize repositories
	if db != nil {
		container.Ledger = ledger.NewRepository(db.Conn(), ledger.CollectHostInfo(log), log)
	}

	// Step 3: Initialize services
	if err := InitializeServices(ctx, container, cfg, opts, log); err != nil {
		container.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	log.Debug().Str("entry", opts.Entry).Msg("Dependency injection wiring completed successfully")

	return container, nil
}
