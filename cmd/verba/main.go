package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/verba-dev/verba/internal/api"
	"github.com/verba-dev/verba/internal/config"
	openaiembed "github.com/verba-dev/verba/internal/embed/openai"
	"github.com/verba-dev/verba/internal/memory"
	"github.com/verba-dev/verba/internal/observability"
	"github.com/verba-dev/verba/internal/secrets"
	"github.com/verba-dev/verba/internal/server"
	"github.com/verba-dev/verba/internal/stammer"
	"github.com/verba-dev/verba/internal/vector"
	"github.com/verba-dev/verba/internal/vector/hnswlocal"
	"github.com/verba-dev/verba/internal/vector/qdrant"
)

const version = "0.1.0"

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "verba",
		Short: "Translation memory service with retrieval-augmented prompts",
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(configPath)
		},
	}
	serveCmd.Flags().StringVar(&configPath, "config", "configs/verba.yaml", "Config file path")

	var (
		stammerSource     string
		stammerTranslated string
	)
	stammerCmd := &cobra.Command{
		Use:   "stammer",
		Short: "Check a translation for stammering artifacts",
		Run: func(cmd *cobra.Command, args []string) {
			if stammer.Detect(stammerSource, stammerTranslated) {
				fmt.Println("stammering: true")
				os.Exit(1)
			}
			fmt.Println("stammering: false")
		},
	}
	stammerCmd.Flags().StringVar(&stammerSource, "source", "", "Source sentence")
	stammerCmd.Flags().StringVar(&stammerTranslated, "translated", "", "Translated sentence")
	_ = stammerCmd.MarkFlagRequired("translated")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("verba " + version)
		},
	}

	rootCmd.AddCommand(serveCmd, stammerCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serve(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: config load failed (%v), using defaults\n", err)
		cfg = config.Default()
	}

	setupLogging(cfg.Log)

	ctx := context.Background()

	tracing, err := observability.InitTracing(ctx, &observability.TracingConfig{
		ServiceName:    "verba",
		ServiceVersion: version,
		Environment:    cfg.Tracing.Environment,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		SampleRate:     cfg.Tracing.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}

	apiKey := cfg.Embedding.APIKey
	if apiKey == "" {
		manager, err := secrets.NewManager(&secrets.Config{
			Provider: cfg.Secrets.Provider,
			FilePath: cfg.Secrets.FilePath,
		})
		if err != nil {
			return fmt.Errorf("init secrets: %w", err)
		}
		apiKey = manager.GetOrDefault(ctx, secrets.KeyEmbeddingAPIKey, "")
		if apiKey == "" {
			slog.Warn("No embedding API key configured; embedding calls will fail")
		}
	}

	provider := openaiembed.New(apiKey, cfg.Embedding.Model, cfg.Embedding.BaseURL)

	var index vector.Index
	var indexPing func(ctx context.Context) error
	switch cfg.Vector.Backend {
	case "memory":
		index = hnswlocal.New(provider)
		slog.Info("Using in-memory vector index")
	case "qdrant", "":
		qx, err := qdrant.New(ctx, cfg.Vector.Host, cfg.Vector.Port, cfg.Vector.Collection, provider)
		if err != nil {
			return fmt.Errorf("connect qdrant: %w", err)
		}
		if err := qx.EnsureCollection(ctx, cfg.Vector.Dimension); err != nil {
			return fmt.Errorf("ensure collection: %w", err)
		}
		index = qx
		indexPing = qx.Ping
		slog.Info("Using qdrant vector index",
			"host", cfg.Vector.Host,
			"port", cfg.Vector.Port,
			"collection", cfg.Vector.Collection)
	default:
		return fmt.Errorf("unknown vector backend: %s", cfg.Vector.Backend)
	}

	store := memory.New(index)

	registry := observability.NewMetricsRegistry()
	apiServer := api.NewServer(&api.Config{ListenAddr: cfg.Server.Addr}, store, registry)

	graceful := server.NewGracefulServer(
		&server.HealthConfig{Version: version},
		server.DefaultShutdownConfig(),
	)
	graceful.Health.RegisterCheck("index", server.IndexHealthChecker(cfg.Vector.Backend, indexPing))
	graceful.Health.RegisterCheck("embedder", server.EmbedderHealthChecker(provider.Name(), nil))

	graceful.Shutdown.Add(server.HTTPServerShutdownHook("api", apiServer.Stop))
	graceful.Shutdown.Add(server.IndexShutdownHook(index.Close))
	graceful.Shutdown.Add(server.TracingShutdownHook(tracing.Shutdown))

	if err := graceful.Start(cfg.Server.AdminAddr); err != nil {
		return fmt.Errorf("start admin server: %w", err)
	}

	slog.Info("Starting verba API server", "addr", cfg.Server.Addr)
	go func() {
		if err := apiServer.Start(); err != nil {
			slog.Error("API server stopped", "error", err)
			graceful.Shutdown.Shutdown()
		}
	}()

	graceful.Wait()
	slog.Info("Shutdown complete")
	return nil
}

func setupLogging(cfg config.LogConfig) {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
