package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"github.com/dukerupert/larder/internal/config"
	"github.com/dukerupert/larder/internal/coordinator"
	"github.com/dukerupert/larder/internal/database"
	"github.com/dukerupert/larder/internal/logging"
	"github.com/dukerupert/larder/internal/offline"
	"github.com/dukerupert/larder/internal/server"
	"github.com/dukerupert/larder/internal/service"
	"github.com/dukerupert/larder/internal/state"
	"github.com/dukerupert/larder/internal/store"
	ws "github.com/dukerupert/larder/internal/websocket"
)

type options struct {
	configPath string
	addr       string
	dbPath     string
	logLevel   string
	offline    bool
}

func parseFlags(args []string) (options, *flag.FlagSet, error) {
	fs := flag.NewFlagSet("larder", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var o options
	fs.StringVarP(&o.configPath, "config", "c", os.Getenv("LARDER_CONFIG"), "path to the TOML config file")
	fs.StringVar(&o.addr, "addr", "", "listen address")
	fs.StringVar(&o.dbPath, "db", "", "SQLite database path")
	fs.StringVar(&o.logLevel, "log-level", "", "debug, info, warn or error")
	fs.BoolVar(&o.offline, "offline", false, "start disconnected and queue every write")

	if err := fs.Parse(args); err != nil {
		return options{}, nil, err
	}
	return o, fs, nil
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "larder:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	_ = godotenv.Load()

	opts, fs, err := parseFlags(args)
	if err != nil {
		return err
	}
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if fs.Changed("addr") {
		cfg.Addr = opts.addr
	}
	if fs.Changed("db") {
		cfg.DBPath = opts.dbPath
	}
	if fs.Changed("log-level") {
		cfg.LogLevel = opts.logLevel
	}
	if fs.Changed("offline") {
		cfg.StartOnline = !opts.offline
	}

	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := store.Seed(ctx, db); err != nil {
		return fmt.Errorf("seed database: %w", err)
	}

	svc := service.New(db, service.Options{
		Policy:  cfg.RetryPolicy(),
		Timeout: cfg.OperationTimeout,
		Logger:  logger.With("component", "service"),
	})

	queue, err := offline.New(ctx, store.NewPendingStore(db), offline.Options{Logger: logger.With("component", "queue")})
	if err != nil {
		return err
	}

	stateOpts := state.Options{Outbox: queue, Logger: logger.With("component", "state")}
	settings := state.NewSettings(svc.Settings, stateOpts)
	hub := ws.NewHub(logger.With("component", "websocket"))
	coord := coordinator.New(
		state.NewInventory(svc.Inventory, settings, stateOpts),
		state.NewShopping(svc.Shopping, stateOpts),
		state.NewCategories(svc.Categories, stateOpts),
		settings,
		svc.Transfer,
		coordinator.Options{Sink: hub.Publish, Outbox: queue, Logger: logger.With("component", "coordinator")},
	)
	queue.SetReplayers(offline.Replayers{Inventory: coord.Inventory, Shopping: coord.Shopping, Settings: coord.Settings})

	if err := coord.Load(ctx); err != nil {
		return err
	}
	coord.Start(ctx)
	defer coord.Stop()

	if pending, err := queue.Len(ctx); err == nil && pending > 0 {
		logger.Info("pending changes from a previous session", "count", pending)
	}
	if err := queue.SetOnline(ctx, cfg.StartOnline); err != nil {
		logger.Warn("initial replay failed, writes stay queued", "error", err)
	}

	srv := server.New(server.Config{
		Coordinator: coord,
		Queue:       queue,
		Hub:         hub,
		ExportDir:   cfg.ExportDir,
		WSOrigins:   cfg.WSOrigins,
	}, logger)

	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("larder listening", "addr", cfg.Addr, "online", queue.Online())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
