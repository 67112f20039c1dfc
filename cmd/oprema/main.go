package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/erazemk/oprema/internal/api"
	"github.com/erazemk/oprema/internal/bootstrap"
	"github.com/erazemk/oprema/internal/config"
	"github.com/erazemk/oprema/internal/db"
	"github.com/erazemk/oprema/internal/engine"
	"github.com/erazemk/oprema/internal/events"
	"github.com/erazemk/oprema/internal/logging"
	"github.com/erazemk/oprema/internal/metrics"
	"github.com/erazemk/oprema/internal/store"
)

func main() {
	fs := flag.NewFlagSet("oprema", flag.ContinueOnError)

	var configPath string
	fs.StringVar(&configPath, "config", "", "")
	fs.StringVar(&configPath, "c", "", "")

	fs.Usage = func() {
		fmt.Fprint(os.Stdout, `Usage: oprema [flags]

Flags:
  -c, -config <path>      YAML config file (default: none, defaults and OPREMA_* env only)
  -h, -help               show this help and exit
`)
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if fs.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "unexpected argument: %s\n", fs.Arg(0))
		fs.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid config: %v\n", err)
		os.Exit(1)
	}

	closeLog, err := logging.Setup(cfg.Log.Path, !cfg.IsDev())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	if err := run(cfg); err != nil {
		slog.Error("server error", "error", err)
		closeLog()
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx := context.Background()

	database, err := db.Open(cfg.Database.Driver, cfg.Database.DSN, db.Options{
		LockTimeout:  cfg.Database.LockTimeout,
		MaxOpenConns: cfg.Database.MaxOpenConns,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer database.Close()

	if err := db.Migrate(ctx, database); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}
	slog.Info("database ready", "driver", database.Dialect())

	password, err := bootstrap.EnsureAdmin(ctx, database, cfg.Admin.Email, cfg.Admin.Name)
	if err != nil {
		return err
	}
	if password != "" {
		printAdminCreated(cfg.Admin.Email, password)
	}

	// Load JWT secret from database (auto-generated on first run).
	jwtSecret, err := store.GetJWTSecret(ctx, database)
	if err != nil {
		return fmt.Errorf("getting JWT secret: %w", err)
	}

	publisher, err := newPublisher(cfg)
	if err != nil {
		return err
	}
	defer publisher.Close()

	engineOpts := []engine.Option{
		engine.WithPublisher(publisher),
		engine.WithLockTimeout(cfg.Database.LockTimeout),
	}

	mux := http.NewServeMux()
	var observer api.HTTPObserver
	if cfg.Metrics.Enabled {
		recorder := metrics.New()
		engineOpts = append(engineOpts, engine.WithRecorder(recorder))
		observer = recorder
		mux.Handle("GET /metrics", recorder.Handler())
	}

	eng := engine.New(database, engineOpts...)

	mux.Handle("/api/", api.NewRouter(api.Options{
		DB:                database,
		Engine:            eng,
		JWTSecret:         jwtSecret,
		LowStockThreshold: cfg.Inventory.LowStockThreshold,
	}))
	mux.Handle("GET /health", api.HealthHandler(database))

	handler := api.RequestIDMiddleware(api.LoggingMiddleware(observer)(mux))

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-quit
		slog.Info("shutdown signal received", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}()

	slog.Info("server started", "addr", cfg.HTTP.Addr, "env", cfg.App.Env, "metrics", cfg.Metrics.Enabled, "kafka", cfg.Kafka.Enabled)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	slog.Info("server stopped, closing database")
	return nil
}

func newPublisher(cfg *config.Config) (events.Publisher, error) {
	if !cfg.Kafka.Enabled {
		return events.LogPublisher{}, nil
	}

	p, err := events.NewKafkaPublisher(events.KafkaConfig{
		Brokers:  cfg.Kafka.Brokers,
		Topic:    cfg.Kafka.Topic,
		ClientID: cfg.Kafka.ClientID,
		Retries:  cfg.Kafka.Retries,
	}, slog.Default())
	if err != nil {
		return nil, err
	}
	slog.Info("publishing events to kafka", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	return p, nil
}

func printAdminCreated(email, password string) {
	fmt.Println("Admin account created:")
	fmt.Printf("  Email:    %s\n", email)
	fmt.Printf("  Password: %s\n", password)
	fmt.Println()
	fmt.Println("Save this password, it cannot be recovered.")
	fmt.Println("The admin can change it after logging in.")
	fmt.Println()
}
