package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/docnav/internal/api"
	"github.com/dgallion1/docnav/internal/collab"
	"github.com/dgallion1/docnav/internal/config"
	"github.com/dgallion1/docnav/internal/ingest"
	"github.com/dgallion1/docnav/internal/mcptools"
	"github.com/dgallion1/docnav/internal/service"
)

var version = "dev"

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		log.Error("load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	store, err := collab.Open(cfg.StoreBackend, cfg.SQLitePath, cfg.StoreURL, cfg.StoreAPIKey)
	if err != nil {
		return err
	}
	defer store.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opts := service.OptionsFromConfig(cfg)
	opts.Metrics = service.NewMetrics(reg)
	nav := service.New(store, store, opts, log)

	orch := ingest.NewOrchestrator(cfg, store, log)
	orch.Start(ctx)

	servers := []*http.Server{{
		Addr:         ":" + cfg.Port,
		Handler:      api.NewServer(nav, orch, store, reg, log, cfg),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}}
	if cfg.MCPAddr != "" {
		mcpSrv := mcptools.NewServer(nav, version, log)
		servers = append(servers, &http.Server{
			Addr:        cfg.MCPAddr,
			Handler:     api.AuthMiddleware(cfg.APIKey, log)(mcptools.Handler(mcpSrv)),
			ReadTimeout: 30 * time.Second,
			IdleTimeout: 60 * time.Second,
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		g.Go(func() error {
			log.Info("listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	// Graceful shutdown.
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Warn("shutdown", "addr", srv.Addr, "error", err)
			}
		}
		// Only after no handler can Submit.
		orch.Stop()
		return nil
	})

	log.Info("starting docnav", "version", version, "port", cfg.Port, "store", cfg.StoreBackend)
	return g.Wait()
}
