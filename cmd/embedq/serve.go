package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/embedq/embedq"
	"github.com/embedq/embedq/infrastructure/api"
	v1 "github.com/embedq/embedq/infrastructure/api/v1"
	"github.com/embedq/embedq/internal/config"
	"github.com/embedq/embedq/internal/log"
)

func serveCmd() *cobra.Command {
	var (
		envFile string
		host    string
		port    int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server and the periodic driver",
		Long: `Start the HTTP API server and the periodic driver.

Configuration is loaded in the following order (later sources override earlier):
  1. Default values
  2. .env file (if --env-file specified or .env exists in current directory)
  3. Environment variables
  4. Command line flags

Environment variables:
  DB_URL                  Database URL (default: sqlite:///embedq.db)
  LOG_LEVEL               Log level: DEBUG, INFO, WARN, ERROR (default: INFO)
  LOG_FORMAT              Log format: pretty, json (default: pretty)
  POLL_INTERVAL_SECONDS   Scheduler poll interval (default: 5)
  TICK_CONCURRENCY        Concurrent vectorizer ticks (default: 4)
  DEFAULT_SCHEDULING      Resolution of the scheduling "default" sentinel: interval, none
  DEFAULT_INDEXING        Resolution of the indexing "default" sentinel: diskann, hnsw, none
  GRANT_READ              Comma-separated roles granted read access to destinations
  GRANT_WRITE             Comma-separated roles granted write access to destinations

  OPENAI_API_KEY          API key for openai embedding configs without a key variable
  OPENAI_BASE_URL         OpenAI-compatible endpoint base URL
  OPENAI_TIMEOUT          Request timeout in seconds (default: 60)
  OPENAI_MAX_RETRIES      Retry attempts (default: 5)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(envFile, host, port)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file (default: .env in current directory)")
	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "Server host to bind to")
	cmd.Flags().IntVar(&port, "port", 8080, "Server port to listen on")

	return cmd
}

func workerCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the periodic driver without the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker(envFile)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file (default: .env in current directory)")

	return cmd
}

func runServe(envFile, host string, port int) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}

	logger := log.NewLogger(log.Format(cfg.LogFormat()), cfg.LogLevel())
	logger.Info("starting embedq", slog.String("version", version))

	client, err := newClient(cfg, logger)
	if err != nil {
		return err
	}
	defer closeClient(client, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := client.Start(ctx); err != nil {
		return fmt.Errorf("start periodic driver: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", host, port)
	server := api.NewServer(addr, logger)

	router := server.Router()
	router.Get("/health", healthHandler)
	router.Get("/healthz", healthHandler)
	router.Mount("/api/v1/vectorizers", v1.NewVectorizersRouter(client).Routes())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("shutting down server")
		cancel()
		if err := server.Shutdown(context.Background()); err != nil {
			logger.Error("shutdown error", slog.Any("error", err))
		}
	}()

	logger.Info("starting server", slog.String("addr", addr))
	if err := server.Start(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

func runWorker(envFile string) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}

	logger := log.NewLogger(log.Format(cfg.LogFormat()), cfg.LogLevel())
	logger.Info("starting embedq worker", slog.String("version", version))

	client, err := newClient(cfg, logger)
	if err != nil {
		return err
	}
	defer closeClient(client, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := client.Start(ctx); err != nil {
		return fmt.Errorf("start periodic driver: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down worker")
	return nil
}

// newClient builds an embedq client from the resolved configuration.
func newClient(cfg config.AppConfig, logger *slog.Logger) (*embedq.Client, error) {
	client, err := embedq.New(context.Background(),
		embedq.WithConfig(cfg),
		embedq.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("create embedq client: %w", err)
	}
	return client, nil
}

func closeClient(client *embedq.Client, logger *slog.Logger) {
	if err := client.Close(); err != nil {
		logger.Error("failed to close embedq client", slog.Any("error", err))
	}
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}
