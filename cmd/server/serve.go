package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	router "github.com/dkeye/parley/internal/adapters/http"
	"github.com/dkeye/parley/internal/adapters/natsbus"
	wssignal "github.com/dkeye/parley/internal/adapters/signal"
	"github.com/dkeye/parley/internal/app"
	"github.com/dkeye/parley/internal/app/orch"
	"github.com/dkeye/parley/internal/auth"
	"github.com/dkeye/parley/internal/core"
	"github.com/dkeye/parley/internal/metrics"
	"github.com/dkeye/parley/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and WebSocket server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var serveSeed string

func init() {
	serveCmd.Flags().StringVar(&serveSeed, "seed", "", "yaml fixture applied to the store before serving (the only way to populate the memory driver)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, health, closeStore, err := openStore(cfg.Database.Driver, cfg.Database.DSN, cfg.Database.Migrate)
	if err != nil {
		return err
	}
	defer closeStore()
	if serveSeed != "" {
		if err := seedStore(ctx, st, serveSeed); err != nil {
			return err
		}
	}

	var (
		rec      metrics.Recorder = metrics.Nop{}
		gatherer prometheus.Gatherer
	)
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		rec = metrics.NewCollector(reg)
		gatherer = reg
	}

	opts := orch.Options{
		Policy:  app.PolicyFor(cfg.Backpressure),
		Metrics: rec,
		Timeout: cfg.PersistTimeout,
	}
	if cfg.NATS.URL != "" {
		bus, err := natsbus.Connect(cfg.NATS.URL, cfg.NATS.SubjectPrefix)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer bus.Close()
		opts.Mirror = bus
	}

	o := orch.New(st, opts)
	authn := auth.New(cfg.JWTSecret, st)
	authn.Timeout = cfg.PersistTimeout

	limits := wssignal.NewRateLimiter(cfg.Rate.JoinPerSec, cfg.Rate.JoinBurst, cfg.Rate.SignalPerSec, cfg.Rate.SignalBurst)
	ctl := wssignal.NewSignalWSController(o, limits, rec)
	ctl.ReadLimit = cfg.ReadLimit
	ctl.PingPeriod = cfg.PingPeriod
	ctl.SendBuffer = cfg.SendBuffer

	r := router.SetupRouter(ctx, cfg, router.Deps{
		Orch:     o,
		Auth:     authn,
		Signal:   ctl,
		Gatherer: gatherer,
		Health:   health,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("module", "main").Str("addr", addr).Msg("parley server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Str("module", "main").Msg("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Str("module", "main").Msg("server forced to shutdown")
			return err
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}
	log.Info().Str("module", "main").Msg("server exited gracefully")
	return nil
}

// openStore returns the configured backend. The memory backend has no
// health check, ignores migrate and starts empty unless serve gets --seed.
func openStore(driver, dsn string, migrate bool) (core.Store, router.Pinger, func(), error) {
	if driver == store.DriverMemory {
		log.Warn().Str("module", "main").Msg("using in-memory store, it starts empty and state is lost on exit")
		return store.NewMemory(), nil, func() {}, nil
	}
	s, err := store.Open(driver, dsn)
	if err != nil {
		return nil, nil, nil, err
	}
	if migrate {
		if err := s.Migrate(); err != nil {
			_ = s.Close()
			return nil, nil, nil, fmt.Errorf("migrate: %w", err)
		}
	}
	closeFn := func() {
		if err := s.Close(); err != nil {
			log.Error().Err(err).Str("module", "main").Msg("close store")
		}
	}
	log.Info().Str("module", "main").Str("driver", driver).Msg("store ready")
	return s, s, closeFn, nil
}
