// Audienced serves the audience taxonomy and saved audience selections over
// HTTP.
//
// Configuration is read from ~/.config/audienced/config.yaml (or -config)
// with AUDIENCED_* environment overrides. See internal/config for details.
//
// Usage:
//
//	# Start with defaults
//	audienced
//
//	# Serve a tree file on another port
//	AUDIENCED_TAXONOMY_PATH=/etc/audienced/tree.json AUDIENCED_SERVER_HTTP_PORT=9090 audienced
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/log/global"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/audienced/internal/catalog"
	"github.com/fyrsmithlabs/audienced/internal/config"
	"github.com/fyrsmithlabs/audienced/internal/events"
	httpserver "github.com/fyrsmithlabs/audienced/internal/http"
	"github.com/fyrsmithlabs/audienced/internal/logging"
	"github.com/fyrsmithlabs/audienced/internal/metrics"
	"github.com/fyrsmithlabs/audienced/internal/selectionsvc"
	"github.com/fyrsmithlabs/audienced/internal/store"
	"github.com/fyrsmithlabs/audienced/internal/store/sqlite"
	"github.com/fyrsmithlabs/audienced/internal/telemetry"
	"github.com/fyrsmithlabs/audienced/pkg/selection"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()
	args := flag.Args()

	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  audienced [-config path]   Start the audienced daemon\n")
			fmt.Fprintf(os.Stderr, "  audienced version          Show version information\n")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server shutdown complete")
}

func printVersion() {
	fmt.Printf("audienced by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts the server and blocks until ctx is cancelled.
//
//  1. Loads and validates configuration
//  2. Initializes telemetry and the logger
//  3. Loads the taxonomy and opens storage and events
//  4. Starts the HTTP server
//  5. Shuts down gracefully on cancellation
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	tel, err := telemetry.New(ctx, telemetry.NewConfig(cfg.Observability, version))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
		defer cancel()
		_ = tel.Shutdown(shutdownCtx)
	}()

	logger, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info(ctx, "starting audienced",
		zap.String("version", version),
		zap.String("addr", cfg.Server.Addr()),
		zap.String("taxonomy", cfg.Taxonomy.Path),
		zap.String("storage", cfg.Storage.Driver))

	deps, err := initDependencies(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	defer deps.Close()

	if cfg.Taxonomy.Watch && cfg.Taxonomy.Path != "" {
		go func() {
			if err := deps.catalog.Watch(ctx); err != nil {
				logger.Error(ctx, "taxonomy watcher stopped", zap.Error(err))
			}
		}()
	}

	svc, err := selectionsvc.New(selectionsvc.Options{
		Catalog:      deps.catalog,
		Store:        deps.store,
		Publisher:    deps.publisher,
		Metrics:      deps.metrics,
		Logger:       logger.Named("selection"),
		Tracer:       tel.Tracer("github.com/fyrsmithlabs/audienced/internal/selectionsvc"),
		RepairOnSave: cfg.Selection.RepairOnSave,
	})
	if err != nil {
		return fmt.Errorf("failed to create selection service: %w", err)
	}

	opts := []httpserver.Option{httpserver.WithHealth(tel.Health)}
	if cfg.Observability.EnableMetrics {
		opts = append(opts,
			httpserver.WithGatherer(prometheus.DefaultGatherer),
			httpserver.WithMeter(tel.Meter("github.com/fyrsmithlabs/audienced/internal/http")))
	}
	srv, err := httpserver.NewServer(svc, logger.Named("http"), httpserver.ConfigFrom(cfg.Server, version), opts...)
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info(ctx, "shutting down", zap.Duration("timeout", cfg.Server.ShutdownTimeout.Duration()))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}

func initLogger(cfg *config.Config) (*logging.Logger, error) {
	logCfg, err := logging.NewConfig(cfg.Logging)
	if err != nil {
		return nil, err
	}
	if logCfg.Output.OTEL {
		return logging.NewLogger(logCfg, global.GetLoggerProvider())
	}
	return logging.NewLogger(logCfg, nil)
}

// dependencies holds everything run closes on exit.
type dependencies struct {
	catalog   *catalog.Catalog
	store     store.Store
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    *logging.Logger
}

func initDependencies(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*dependencies, error) {
	deps := &dependencies{logger: logger}
	if cfg.Observability.EnableMetrics {
		deps.metrics = metrics.Default()
	}

	cat, err := catalog.Open(ctx, cfg.Taxonomy.Path,
		catalog.WithPolicy(selection.Policy{PruneEmptyAncestors: cfg.Selection.PruneEmptyAncestors}),
		catalog.WithLogger(logger.Named("catalog")),
		catalog.WithMetrics(deps.metrics),
		catalog.WithDebounce(cfg.Taxonomy.Debounce.Duration()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load taxonomy: %w", err)
	}
	deps.catalog = cat

	st, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	deps.store = st

	pub, err := openPublisher(cfg.Events, logger, deps.metrics)
	if err != nil {
		deps.Close()
		return nil, err
	}
	deps.publisher = pub

	logger.Info(ctx, "dependencies ready",
		zap.String("taxonomy_version", cat.Current().Version),
		zap.Bool("events", cfg.Events.Enabled))
	return deps, nil
}

// Close releases the store and the events connection.
func (d *dependencies) Close() {
	ctx := context.Background()
	if d.publisher != nil {
		if err := d.publisher.Close(); err != nil {
			d.logger.Warn(ctx, "failed to close events publisher", zap.Error(err))
		}
	}
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			d.logger.Warn(ctx, "failed to close store", zap.Error(err))
		}
	}
}

// openStore builds the configured selection store.
func openStore(ctx context.Context, cfg config.StorageConfig) (store.Store, error) {
	switch cfg.Driver {
	case "", config.DriverMemory:
		return store.NewMemory(), nil
	case config.DriverSQLite:
		st, err := sqlite.Open(ctx, cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// openPublisher connects to NATS when events are enabled.
func openPublisher(cfg config.EventsConfig, logger *logging.Logger, m *metrics.Metrics) (events.Publisher, error) {
	if !cfg.Enabled {
		return events.Nop{}, nil
	}
	pub, err := events.Connect(cfg, events.WithLogger(logger.Named("events")), events.WithMetrics(m))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return pub, nil
}
