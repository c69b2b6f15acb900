package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/labeltree/internal/shared"
)

// Setup writes a config file from the template when none exists and migrates the response cache.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	if _, err := os.Stat(r.configPath); err != nil {
		r.logger.Info("config file not found, creating from template", "path", r.configPath)
		if err := shared.CreateConfigFile(r.configPath); err != nil {
			return fmt.Errorf("failed to create config file: %w", err)
		}
		r.writePlain("✓ Created %s\n", r.configPath)

		config, err := shared.LoadConfig(r.configPath)
		if err != nil {
			return fmt.Errorf("failed to load created config: %w", err)
		}
		r.config = config
	}

	r.logger.Info("initializing response cache", "path", r.config.Cache.DatabasePath)
	db, err := shared.OpenCache(r.config.Cache)
	if err != nil {
		return fmt.Errorf("failed to set up response cache: %w", err)
	}
	defer db.Close()

	if cmd.Bool("rollback") {
		if err := shared.RollbackMigration(db); err != nil {
			return fmt.Errorf("failed to roll back migration: %w", err)
		}
		return r.writePlain("✓ Rolled back latest migration in %s\n", r.config.Cache.DatabasePath)
	}

	r.writePlain("✓ Response cache ready at %s\n", r.config.Cache.DatabasePath)
	if r.session == nil {
		r.writePlain("\nAdd your Spotify client_id and client_secret to %s, then run:\n", r.configPath)
		r.writePlain("  labeltree auth spotify\n")
	}
	return nil
}
