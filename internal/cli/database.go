package cli

import (
	"fmt"

	"github.com/mrlokans/ebookstore/internal/config"
	"github.com/mrlokans/ebookstore/internal/database"
)

// openDatabase opens the configured database. A non-empty path overrides the
// sqlite file from the environment.
func openDatabase(path string) (*database.Database, *config.Config, error) {
	cfg := config.NewConfig()
	if path != "" {
		cfg.Database.Driver = config.DatabaseDriverSQLite
		cfg.Database.Path = path
	}

	db, err := database.NewDatabase(cfg.Database, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return db, cfg, nil
}
