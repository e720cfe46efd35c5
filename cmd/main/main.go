package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/blatherlabs/blather/pkg/markov"
	"github.com/blatherlabs/blather/pkg/store"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	baseLogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if err := run(baseLogger); err != nil {
		baseLogger.Error("An error occurred during server run, shutting down.", "error", err)
		os.Exit(1)
	}

	baseLogger.Info("Blather has shut down.")
}

// run hosts the API server and returns when an OS signal shuts it down.
func run(baseLogger *slog.Logger) error {
	config, err := LoadConfig("./config.json")
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	var logLevel slog.Level
	switch strings.ToLower(config.Server.LogLevel) {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	logger.Info("Starting blather", "version", Version, "commit", Commit, "build_date", BuildDate)

	if err = os.MkdirAll(config.Server.DataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := initDB(config.Server.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	if err = store.SetupSchema(db); err != nil {
		logger.Error("Failed to setup store schema", "error", err)
	}

	st, err := store.NewStore(db)
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to create snapshot store: %w", err)
	}
	st.SetLogger(logger)
	defer st.Close()

	model := markov.NewModel(config.Generation.Order, markov.NewDefaultTokenizer())
	api := NewEngineAPI(model, st, config.Generation, logger)

	mux := http.NewServeMux()
	api.RegisterRoutes(mux)

	httpServer := &http.Server{Addr: config.Server.ApiAddr, Handler: mux}

	go func() {
		logger.Info("Starting api server", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Api server failed", "error", err)
		}
	}()

	osSignalChan := make(chan os.Signal, 1)
	signal.Notify(osSignalChan, syscall.SIGINT, syscall.SIGTERM)
	<-osSignalChan
	logger.Info("OS signal received, initiating shutdown.")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err = httpServer.Shutdown(ctx); err != nil {
		logger.Error("Api server shutdown failed", "error", err)
	}
	logger.Info("HTTP server stopped.")

	logger.Info("Closing database connection.")
	if err = db.Close(); err != nil {
		logger.Error("Failed to close database", "error", err)
	}

	return nil
}
