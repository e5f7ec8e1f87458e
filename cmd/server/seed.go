package main

import (
	"context"
	"fmt"

	"github.com/dkeye/parley/internal/store"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var seedCmd = &cobra.Command{
	Use:   "seed <fixture.yaml>",
	Short: "Load users, servers and channels from a yaml fixture",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Database.Driver == store.DriverMemory {
			return fmt.Errorf("seed needs a persistent driver, got %q; use serve --seed with the memory driver", cfg.Database.Driver)
		}
		s, err := store.Open(cfg.Database.Driver, cfg.Database.DSN)
		if err != nil {
			return err
		}
		defer s.Close()
		if cfg.Database.Migrate {
			if err := s.Migrate(); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
		}
		return seedStore(cmd.Context(), s, args[0])
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

// seedStore applies the fixture at path to st, which must accept writes.
func seedStore(ctx context.Context, st any, path string) error {
	seeder, ok := st.(store.Seeder)
	if !ok {
		return fmt.Errorf("store %T cannot be seeded", st)
	}
	fixture, err := readFixture(path)
	if err != nil {
		return err
	}
	if err := store.Apply(context.WithoutCancel(ctx), seeder, fixture); err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	log.Info().Str("module", "main").Str("fixture", path).Int("users", len(fixture.Users)).Int("servers", len(fixture.Servers)).Msg("fixture applied")
	return nil
}

func readFixture(path string) (store.Fixture, error) {
	v := viper.New()
	v.SetConfigFile(path)
	var f store.Fixture
	if err := v.ReadInConfig(); err != nil {
		return f, fmt.Errorf("read fixture: %w", err)
	}
	if err := v.Unmarshal(&f); err != nil {
		return f, fmt.Errorf("parse fixture: %w", err)
	}
	return f, nil
}
