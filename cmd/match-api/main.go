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

	"github.com/merev/ds-match-api/internal/config"
	"github.com/merev/ds-match-api/internal/database"
	"github.com/merev/ds-match-api/internal/events"
	apphttp "github.com/merev/ds-match-api/internal/http"
	"github.com/merev/ds-match-api/internal/logging"
	"github.com/merev/ds-match-api/internal/match"
	"github.com/merev/ds-match-api/internal/metrics"
	"github.com/merev/ds-match-api/internal/realtime"
	"github.com/merev/ds-match-api/internal/store"
)

const serviceName = "match-api"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(logging.Config{Format: cfg.LogFormat, Level: cfg.LogLevel}).
		With(logging.FieldService, serviceName)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logging.Error(logger, "match-api stopped", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	turns, err := match.ParseTurnPolicy(cfg.TurnPolicy)
	if err != nil {
		return err
	}
	firstThrow, err := match.ParseFirstThrow(cfg.FirstThrow)
	if err != nil {
		return err
	}

	st, closeStore, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	var recorder *metrics.Recorder
	if cfg.MetricsEnabled {
		recorder = metrics.NewRecorder()
	}

	bus := events.NewBus(func(e events.Event) {
		logging.Warn(logger, "event dropped for slow subscriber", logging.FieldMatchID, e.MatchID, "type", e.Type)
	})

	opts := match.Options{
		TurnPolicy: turns,
		FirstThrow: firstThrow,
		Logger:     logger,
		Events:     bus,
	}
	hubOpts := realtime.Options{AllowedOrigins: cfg.WSAllowedOrigins, Logger: logger}
	if recorder != nil {
		opts.Metrics = recorder
		hubOpts.Tracker = recorder
	}

	svc := match.NewService(st, opts)
	hub := realtime.NewHub(bus, hubOpts)
	router := apphttp.NewRouter(apphttp.Deps{
		Matches:  match.NewHandler(svc, cfg.RequestTimeout, logger),
		Realtime: hub,
		Metrics:  recorder,
		Logger:   logger,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("match-api running", "port", cfg.Port, "store", cfg.Store, "turn_policy", turns)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		return err
	case <-stop:
	}

	logger.Info("shutting down match-api...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	hub.Close()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logging.Error(logger, "graceful shutdown failed", err)
	}
	return nil
}

// openStore returns the configured match.Store and its cleanup.
func openStore(cfg config.Config, logger *slog.Logger) (match.Store, func(), error) {
	if cfg.Store == config.StoreMemory {
		logging.Warn(logger, "using in-memory store; matches are lost on restart")
		return store.NewMemory(), func() {}, nil
	}

	db, err := database.NewPool(context.Background(), cfg.DBDSN, 5*time.Second)
	if err != nil {
		return nil, nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := database.Migrate(ctx, db, logger); err != nil {
		db.Close()
		return nil, nil, err
	}

	return store.NewPostgres(db), db.Close, nil
}
