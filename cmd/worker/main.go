package main

import (
	"context"
	"log"
	"log/slog"

	"github.com/joho/godotenv"
	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/FFM-HCFMUSP/FFM/internal/app"
	"github.com/FFM-HCFMUSP/FFM/internal/config"
	"github.com/FFM-HCFMUSP/FFM/internal/logging"
	appTemporal "github.com/FFM-HCFMUSP/FFM/internal/temporal"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if !cfg.Persistent() {
		log.Fatalf("worker requires POSTGRES_DSN: the api and the worker must share candidate state")
	}
	logger := logging.NewLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	a, err := app.New(context.Background(), cfg, logger, true)
	if err != nil {
		log.Fatalf("init: %v", err)
	}
	defer a.Close()

	temporalClient, err := client.Dial(client.Options{
		HostPort:  cfg.TemporalAddress,
		Namespace: cfg.TemporalNamespace,
		Logger:    tlog.NewStructuredLogger(logger),
	})
	if err != nil {
		log.Fatalf("connect temporal: %v", err)
	}
	defer temporalClient.Close()

	activities := &appTemporal.Activities{
		Blob:      a.Blob,
		Extractor: a.Extractor,
		Resolver:  a.Service,
	}

	w := worker.New(temporalClient, cfg.TemporalTaskQueue, worker.Options{})
	w.RegisterWorkflowWithOptions(appTemporal.DocumentExtractionWorkflow, workflow.RegisterOptions{Name: appTemporal.DocumentExtractionWorkflowName})
	w.RegisterActivity(activities.ExtractDocumentActivity)
	w.RegisterActivity(activities.ResolveExtractionActivity)

	logger.Info("worker running", "task_queue", cfg.TemporalTaskQueue, "provider", cfg.ExtractionProvider)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker stopped with error: %v", err)
	}
}
