// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"codeberg.org/oliverandrich/game-meta-api/internal/config"
	"codeberg.org/oliverandrich/game-meta-api/internal/database"
	"codeberg.org/oliverandrich/game-meta-api/internal/repository"
	"github.com/urfave/cli/v3"
)

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Manage database migrations",
		Commands: []*cli.Command{
			{
				Name:  "up",
				Usage: "Apply all pending migrations",
				Action: withRawDB(func(db *sql.DB, dialect string) error {
					return database.RunMigrations(db, dialect)
				}),
			},
			{
				Name:  "down",
				Usage: "Roll back the most recent migration",
				Action: withRawDB(func(db *sql.DB, dialect string) error {
					return database.MigrateDown(db, dialect)
				}),
			},
			{
				Name:  "status",
				Usage: "Print the applied migration version",
				Action: withRawDB(func(db *sql.DB, dialect string) error {
					version, err := database.MigrationVersion(db, dialect)
					if err != nil {
						return err
					}
					fmt.Printf("migration version: %d\n", version)
					return nil
				}),
			},
		},
	}
}

// withRawDB opens the configured database without applying migrations.
func withRawDB(fn func(db *sql.DB, dialect string) error) cli.ActionFunc {
	return func(_ context.Context, cmd *cli.Command) error {
		cfg := config.NewFromCLI(cmd)
		dialect := database.DialectFor(cfg.Database.DSN)
		driver := database.DriverSQLite
		if dialect == database.DialectPostgres {
			driver = database.DriverPostgres
		}

		db, err := sql.Open(driver, cfg.Database.DSN)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer func() { _ = db.Close() }()

		return fn(db, dialect)
	}
}

func pruneCommand() *cli.Command {
	return &cli.Command{
		Name:  "prune-tokens",
		Usage: "Delete expired refresh tokens",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := config.NewFromCLI(cmd)
			db, err := database.Open(cfg.Database.DSN)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer func() { _ = db.Close() }()

			n, err := repository.New(db).DeleteExpiredRefreshTokens(ctx, time.Now())
			if err != nil {
				return err
			}
			fmt.Printf("deleted %d expired refresh tokens\n", n)
			return nil
		},
	}
}
