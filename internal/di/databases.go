package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/synthbench/internal/database"
)

// InitializeDatabases opens the run ledger at path and applies its schema.
// An empty path disables the ledger and returns nil.
func InitializeDatabases(path string, log zerolog.Logger) (*database.DB, error) {
	if path == "" {
		log.Debug().Msg("Run ledger disabled")
		return nil, nil
	}

	db, err := database.New(database.Config{
		Path:    path,
		Profile: database.ProfileLedger, // Maximum safety for the run history
		Name:    "runs",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize runs database: %w", err)
	}

	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema to %s: %w", db.Name(), err)
	}

	log.Info().Str("path", db.Path()).Msg("Run ledger initialized")

	return db, nil
}
