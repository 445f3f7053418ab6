package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/zvdy/clustermeta/src/api"
	"github.com/zvdy/clustermeta/src/cache"
	"github.com/zvdy/clustermeta/src/collector"
	"github.com/zvdy/clustermeta/src/config"
)

var configPath string

func main() {
	defaultConfig := os.Getenv("CONFIG_PATH")
	if defaultConfig == "" {
		defaultConfig = "config.yaml"
	}

	rootCmd := &cobra.Command{
		Use:   "clustermeta",
		Short: "clustermeta - publishes YARN and Spark cluster path metadata",
		Long: `clustermeta reads the live configuration of every JobHistory server,
resolves where application logs and MapReduce history live, and publishes
those locations to a shared cache store.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfig, "Path to configuration file")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(refreshCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and refresh on schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
}

func refreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Refresh and publish once, printing the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.close()

			result, err := app.collector.RefreshNow(cmd.Context())
			if result != nil {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if encErr := enc.Encode(result); encErr != nil {
					return encErr
				}
			}
			return err
		},
	}
}

// app holds the wired components shared by every command
type app struct {
	cfg       *config.Config
	log       *logrus.Logger
	store     cache.Store
	registry  *prometheus.Registry
	collector *collector.ClusterCollector
}

func newApp(ctx context.Context) (*app, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := newLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	registry := cfg.Registry()
	log.Infof("Loaded configuration with %d yarn clusters and %d spark history servers",
		len(registry.Clusters()), len(registry.SparkHistoryServers()))

	store, err := cache.New(ctx, cfg.Cache, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s cache store: %w", cfg.Cache.Backend, err)
	}

	promRegistry := prometheus.NewRegistry()
	metrics := collector.NewMetrics(promRegistry)

	resolver := collector.NewResolver(cfg.Refresh, log)
	coordinator := collector.NewCoordinator(resolver, cfg.Refresh.Concurrency, metrics, log)
	publisher := collector.NewPublisher(store, cfg.Cache.Keys, log)
	clusterCollector := collector.NewClusterCollector(
		registry, coordinator, publisher, metrics, log, cfg.Refresh.Cron, cfg.Refresh.RunOnStart)

	return &app{
		cfg:       cfg,
		log:       log,
		store:     store,
		registry:  promRegistry,
		collector: clusterCollector,
	}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.log.Errorf("Failed to close cache store: %v", err)
	}
}

// newLogger builds the process logger from the logging configuration
func newLogger(cfg config.LoggingConfig) (*logrus.Logger, error) {
	log := logrus.New()

	if cfg.Format == "text" {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	log.SetLevel(level)

	switch cfg.Output {
	case "", "stdout":
		log.SetOutput(os.Stdout)
	case "stderr":
		log.SetOutput(os.Stderr)
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		log.SetOutput(f)
	}

	return log, nil
}

func serve() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer app.close()

	log := app.log
	log.Info("Starting cluster metadata publisher...")

	// Start collector in background
	collectorDone := make(chan struct{})
	go func() {
		defer close(collectorDone)
		if err := app.collector.Start(ctx); err != nil {
			log.Fatalf("Failed to start cluster collector: %v", err)
		}
	}()

	// Setup HTTP router
	handler := api.NewHandler(app.collector, app.registry, log)
	router := mux.NewRouter()
	handler.RegisterRoutes(router)

	serverAddr := fmt.Sprintf("%s:%d", app.cfg.Server.Host, app.cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  app.cfg.Server.ReadTimeout,
		WriteTimeout: app.cfg.Server.WriteTimeout,
		IdleTimeout:  app.cfg.Server.IdleTimeout,
	}

	go func() {
		log.Infof("Starting HTTP server on %s", serverAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down gracefully...")

	cancel()
	<-collectorDone

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Server shutdown error: %v", err)
	}

	log.Info("Cluster metadata publisher stopped")
	return nil
}
