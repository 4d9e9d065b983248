package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/listsync/internal/formatter"
	"github.com/desertthunder/listsync/internal/shared"
)

// SetupConfig writes a config file from the embedded template.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("config")
	if path == "" {
		return fmt.Errorf("%w: config path", shared.ErrMissingArgument)
	}

	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}

	r.logger.Info("config file created", "path", path)
	r.writePlain("%s %s\n", formatter.Success("✓ Config written to"), path)
	r.writePlainln("Next steps:")
	r.writePlain("1. Set api.base_url and realtime.endpoint, or export %s and %s\n", shared.EnvAPIURL, shared.EnvWSURL)
	r.writePlain("2. Set api.access_token or export %s\n", shared.EnvToken)
	r.writePlain("3. Run 'listsync setup database' to create the snapshot cache\n")
	return nil
}

// SetupDatabase initializes the snapshot cache and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	cfg := r.config.Database
	r.logger.Info("initializing database", "path", cfg.Path)

	db, err := shared.NewDatabase(cfg.Path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, cfg.MaxOpenConns, cfg.MaxIdleConns)

	switch {
	case cmd.Bool("rollback"):
		r.logger.Info("rolling back last migration")
		if err := shared.RollbackMigration(db); err != nil {
			return fmt.Errorf("failed to roll back migration: %w", err)
		}
	case cmd.Bool("status"):
	default:
		r.logger.Info("running database migrations")
		if err := shared.RunMigrations(db); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	statuses, err := shared.Migrations(db)
	if err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}

	r.writePlainHeader("Migrations: " + cfg.Path)
	for _, m := range statuses {
		mark := formatter.Muted("pending")
		if m.Applied {
			mark = formatter.Success("applied")
		}
		r.writePlain("%04d %-28s %s\n", m.Version, m.Name, mark)
	}

	r.logger.Infof("setup complete for database: %v", cfg.Path)
	return nil
}
