package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ironsheep/wall-measure/internal/config"
	"github.com/ironsheep/wall-measure/internal/httpapi"
	"github.com/ironsheep/wall-measure/internal/imaging"
	"github.com/ironsheep/wall-measure/internal/ml"
	"github.com/ironsheep/wall-measure/internal/pipeline"
	"github.com/ironsheep/wall-measure/internal/render"
	"github.com/ironsheep/wall-measure/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

const shutdownTimeout = 10 * time.Second

func usage() {
	fmt.Println("wall-measure - wall detection and metric measurement from a single photo")
	fmt.Println()
	fmt.Println("Usage: wall-measure [serve|mcp] [--config path]")
	fmt.Println()
	fmt.Println("Modes:")
	fmt.Println("  serve            HTTP API (default)")
	fmt.Println("  mcp              MCP server over stdin/stdout")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --config path    YAML configuration file")
	fmt.Println("  --version, -v    Print version information")
	fmt.Println("  --help, -h       Print this help message")
	fmt.Println()
	fmt.Println("Environment variables:")
	fmt.Println("  WALL_MEASURE_CONFIG=path          Configuration file when --config is absent")
	fmt.Println("  PORT=8000                         HTTP listen port")
	fmt.Println("  INFERENCE_URL=http://host:5000    Model inference service")
	fmt.Println("  WALL_MEASURE_LOG_LEVEL=debug      Log level (debug, info, warn, error)")
}

func main() {
	mode := "serve"
	configPath := os.Getenv(config.EnvConfigPath)

	args := os.Args[1:]
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--version", "-v", "version":
			fmt.Printf("wall-measure %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			usage()
			return
		case "serve", "mcp":
			mode = args[i]
		case "--config", "-c":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--config requires a path")
				os.Exit(2)
			}
			i++
			configPath = args[i]
		default:
			fmt.Fprintf(os.Stderr, "unknown argument %q\n\n", args[i])
			usage()
			os.Exit(2)
		}
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	// stderr only: stdout is the MCP transport.
	level, _ := config.ParseLevel(cfg.Log.Level)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	logger.Info("wall-measure starting",
		"version", Version,
		"build_time", BuildTime,
		"commit", GitCommit,
		"mode", mode,
		"inference_url", cfg.Inference.URL)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := ml.NewClient(cfg.Inference.URL, cfg.InferenceTimeout())
	if err := checkModels(ctx, client); err != nil {
		logger.Warn("model service not available", "error", err)
	}

	models := pipeline.Models{
		Detector:  client,
		Segmenter: ml.NewSegmenterPool(client, cfg.Inference.SegmenterSessions),
		Depth:     client,
	}
	if err := models.Validate(); err != nil {
		logger.Error("invalid model configuration", "error", err)
		os.Exit(1)
	}
	analyzer := pipeline.New(models, render.New(imaging.DefaultPalette()), cfg.Analysis.Confidence, logger)

	switch mode {
	case "mcp":
		err = runMCP(ctx, analyzer, logger)
	default:
		err = runHTTP(ctx, cfg, analyzer, client, logger)
	}
	if err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.Info("wall-measure stopped")
}

func checkModels(ctx context.Context, client *ml.Client) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return client.CheckHealth(ctx)
}

func runMCP(ctx context.Context, analyzer *pipeline.Analyzer, logger *slog.Logger) error {
	srv := server.New(analyzer, imaging.NewImageCache(), Version, logger)
	err := srv.Run(ctx, os.Stdin, os.Stdout)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func runHTTP(ctx context.Context, cfg *config.Config, analyzer *pipeline.Analyzer, client *ml.Client, logger *slog.Logger) error {
	handler := httpapi.NewHandler(analyzer, client, cfg.MaxUploadBytes(), logger)
	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler.Router(),
		ReadTimeout:  cfg.ReadTimeout(),
		WriteTimeout: cfg.WriteTimeout(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.Server.Addr, "max_upload_mb", cfg.Server.MaxUploadMB)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down http server", "timeout", shutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
