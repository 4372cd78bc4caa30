package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/FFM-HCFMUSP/FFM/internal/api"
	"github.com/FFM-HCFMUSP/FFM/internal/app"
	"github.com/FFM-HCFMUSP/FFM/internal/config"
	"github.com/FFM-HCFMUSP/FFM/internal/logging"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.NewLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx := context.Background()
	// Inline mode extracts within the upload request.
	inline := cfg.ExtractionMode == config.ExtractionModeInline
	a, err := app.New(ctx, cfg, logger, inline)
	if err != nil {
		log.Fatalf("init: %v", err)
	}
	defer a.Close()

	h := api.NewHandler(cfg, a.Service, a.Store, logger)
	router := api.NewRouter(h)

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("api listening", "port", cfg.HTTPPort, "extraction_mode", cfg.ExtractionMode)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}
