package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/cadence/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupDatabase initializes the database and runs migrations.
//
// With --status it only reports which migrations are applied; with --rollback it reverts the latest one.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	if cmd.Bool("status") && cmd.Bool("rollback") {
		return fmt.Errorf("%w: cannot specify both --status and --rollback", shared.ErrInvalidArgument)
	}

	r.logger.Info("initializing database", "path", r.config.Database.Path)

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	switch {
	case cmd.Bool("status"):
		statuses, err := shared.MigrationStatuses(db)
		if err != nil {
			return err
		}
		r.writePlainHeader("Migrations: " + r.config.Database.Path)
		for _, s := range statuses {
			mark := "pending"
			if s.Applied {
				mark = "applied " + s.AppliedAt.Format("2006-01-02 15:04:05")
			}
			r.writePlain("%04d %-32s %s\n", s.Version, s.Name, mark)
		}
		return nil

	case cmd.Bool("rollback"):
		r.logger.Info("rolling back latest migration")
		if err := shared.RollbackMigration(db); err != nil {
			return fmt.Errorf("failed to rollback migration: %w", err)
		}
		r.writePlain("✓ Rolled back latest migration\n")
		return nil
	}

	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	r.logger.Info("running database migrations")
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	return nil
}

// SetupConfig writes the embedded default configuration to disk.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("output")
	if path == "" {
		path = r.configPath
	}
	if path == "" {
		path = defaultConfigPath
	}

	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}
	r.logger.Info("config file created", "path", path)

	r.writePlain("✓ Wrote %s\n", path)
	r.writePlainln("Next steps:")
	r.writePlain("1. Set catalog.base_url (and client credentials if the catalog needs them)\n")
	r.writePlain("2. Run 'cadence setup database' to create the local database\n")
	return nil
}
