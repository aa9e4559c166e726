package main

import (
	"database/sql"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/Miraines/MoonyAndStarry/account-service/internal/infra/config"
	"github.com/Miraines/MoonyAndStarry/account-service/internal/infra/migrate"
)

func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: withDB(func(cmd *cobra.Command, db *sql.DB, _ []string) error {
			if err := migrate.Up(db); err != nil {
				return errors.Wrap(err, "migrate up")
			}
			cmd.Println("migrations applied")
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down [steps]",
		Short: "Roll back migrations (default 1 step)",
		Args:  cobra.MaximumNArgs(1),
		RunE: withDB(func(cmd *cobra.Command, db *sql.DB, args []string) error {
			steps := 1
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil || n < 1 {
					return errors.Errorf("invalid steps %q", args[0])
				}
				steps = n
			}
			if err := migrate.Down(db, steps); err != nil {
				return errors.Wrap(err, "migrate down")
			}
			cmd.Printf("rolled back %d migration(s)\n", steps)
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: withDB(func(cmd *cobra.Command, db *sql.DB, _ []string) error {
			v, dirty, err := migrate.Version(db)
			if err != nil {
				return errors.Wrap(err, "migrate version")
			}
			cmd.Printf("version %d (dirty: %t)\n", v, dirty)
			return nil
		}),
	})

	return cmd
}

func withDB(run func(*cobra.Command, *sql.DB, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadFile(configFile)
		if err != nil {
			return errors.Wrap(err, "load config")
		}
		db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
		if err != nil {
			return errors.Wrap(err, "connect to database")
		}
		sqlDB, err := db.DB()
		if err != nil {
			return errors.Wrap(err, "db handle")
		}
		defer sqlDB.Close()

		return run(cmd, sqlDB, args)
	}
}
