package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/devadigapratham/printquote/api"
	"github.com/devadigapratham/printquote/config"
	"github.com/devadigapratham/printquote/logging"
	"github.com/devadigapratham/printquote/mesh"
	"github.com/devadigapratham/printquote/quote"
	"github.com/devadigapratham/printquote/tracing"
	"github.com/devadigapratham/printquote/upload"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

func main() {
	// Parse command line flags
	cfg := config.ParseFlags()

	logger, err := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat, cfg.ServiceName)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to create logger")
	}
	zlog.Logger = logger
	zerolog.DefaultContextLogger = &logger
	if logger.GetLevel() > zerolog.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	shutdownTracing, err := tracing.InitTracerProvider(cfg.ServiceName, cfg.JaegerEndpoint)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize tracing")
	}

	// Create the upload store
	store, err := upload.NewStore(cfg.UploadDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create upload store")
	}
	if n, err := store.Purge(); err != nil {
		logger.Warn().Err(err).Msg("Failed to purge stale uploads")
	} else if n > 0 {
		logger.Info().Int("count", n).Msg("Purged stale uploads")
	}

	service := quote.NewService(store, mesh.NewSTLAnalyzer(), quote.Config{
		MaxConcurrent: cfg.MaxConcurrentAnalyses,
		Timeout:       cfg.AnalysisTimeout,
	})

	// Setup HTTP router
	router := api.SetupRouter(cfg, service, logger)

	// Start HTTP server
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start the server in a goroutine
	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Failed to start HTTP server")
		}
	}()

	// Handle shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.AnalysisTimeout+5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Error shutting down HTTP server")
	}

	if err := shutdownTracing(ctx); err != nil {
		logger.Error().Err(err).Msg("Error shutting down tracer provider")
	}

	logger.Info().Msg("Shutdown complete")
}
