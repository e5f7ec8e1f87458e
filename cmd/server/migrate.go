package main

import (
	"fmt"

	"github.com/dkeye/parley/internal/store"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the embedded schema migrations and exit",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		if cfg.Database.Driver == store.DriverMemory {
			return fmt.Errorf("nothing to migrate for driver %q", cfg.Database.Driver)
		}
		s, err := store.Open(cfg.Database.Driver, cfg.Database.DSN)
		if err != nil {
			return err
		}
		defer s.Close()
		if err := s.Migrate(); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		log.Info().Str("module", "main").Str("driver", cfg.Database.Driver).Msg("migrations applied")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
