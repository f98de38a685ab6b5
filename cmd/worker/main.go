package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/okupriyanov/document-ai-processor/internal/bootstrap"
	"github.com/okupriyanov/document-ai-processor/internal/config"
	"github.com/okupriyanov/document-ai-processor/internal/core/domain"
	"github.com/okupriyanov/document-ai-processor/internal/observability/logging"
	"github.com/okupriyanov/document-ai-processor/internal/observability/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config error", "error", err)
		os.Exit(1)
	}
	logger := logging.NewJSONLogger("worker", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		logger.Error("bootstrap error", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics("worker")
	app.ProcessUC.
		WithStageObserver(workerMetrics).
		WithLogger(logger)

	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: metricsHandler(workerMetrics),
	}
	go func() {
		logger.Info("worker metrics listening", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	pool, err := ants.NewPool(cfg.WorkerPoolSize, ants.WithNonblocking(false))
	if err != nil {
		logger.Error("worker pool error", "error", err)
		os.Exit(1)
	}
	defer pool.Release()

	documentBudget := time.Duration(cfg.DocumentTimeoutSeconds) * time.Second

	logger.Info("worker subscribed",
		"subject", cfg.NATSSubject,
		"queue_group", cfg.NATSQueueGroup,
		"pool_size", cfg.WorkerPoolSize,
	)
	err = app.Queue.SubscribeEnrichmentJobs(ctx, func(handlerCtx context.Context, documentID string) error {
		// Submit blocks when the pool is full; that is the worker-side
		// backpressure for a flooded subject.
		return pool.Submit(func() {
			processCtx, cancel := context.WithTimeout(handlerCtx, documentBudget)
			defer cancel()

			if doc, lookupErr := app.Store.GetByID(processCtx, documentID); lookupErr == nil && doc.Status == domain.StatusQueued {
				workerMetrics.ObserveQueueLag(time.Since(doc.UploadedAt))
			}

			start := time.Now()
			workerMetrics.StartDocument()
			processErr := app.ProcessUC.ProcessByID(processCtx, documentID)
			workerMetrics.FinishDocument(time.Since(start), processErr)
			if processErr != nil {
				logger.Error("document processing failed", "document_id", documentID, "error", processErr)
			}
		})
	})
	if err != nil {
		logger.Error("worker subscribe error", "error", err)
		os.Exit(1)
	}
}

func metricsHandler(m *metrics.WorkerMetrics) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}
