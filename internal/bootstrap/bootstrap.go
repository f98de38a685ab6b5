package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/okupriyanov/document-ai-processor/internal/config"
	"github.com/okupriyanov/document-ai-processor/internal/core/ports"
	"github.com/okupriyanov/document-ai-processor/internal/core/usecase"
	"github.com/okupriyanov/document-ai-processor/internal/infrastructure/extractor"
	"github.com/okupriyanov/document-ai-processor/internal/infrastructure/nlp/ollama"
	"github.com/okupriyanov/document-ai-processor/internal/infrastructure/ocr"
	"github.com/okupriyanov/document-ai-processor/internal/infrastructure/queue/nats"
	"github.com/okupriyanov/document-ai-processor/internal/infrastructure/repository/postgres"
	"github.com/okupriyanov/document-ai-processor/internal/infrastructure/resilience"
	"github.com/okupriyanov/document-ai-processor/internal/infrastructure/storage/localfs"
)

type App struct {
	Config config.Config

	Queue *nats.Queue
	Store ports.ResultStore

	IngestUC  ports.DocumentIngestor
	ProcessUC *usecase.ProcessDocumentUseCase
	QueryUC   ports.DocumentQueries
	ManageUC  ports.DocumentAdmin

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	store := postgres.NewResultStore(db)
	if err := store.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := localfs.New(
		cfg.StoragePath,
		localfs.WithResilienceExecutor(resilience.NewExecutor(resilience.DefaultConfig())),
	)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		QueueGroup:         cfg.NATSQueueGroup,
		ResilienceExecutor: resilience.NewExecutor(resilience.DefaultConfig()),
	})
	if err != nil {
		return nil, fmt.Errorf("init job queue: %w", err)
	}

	stageTimeout := time.Duration(cfg.StageTimeoutSeconds) * time.Second

	// One executor for all vendor-model calls: stage retries, per-operation
	// breakers, and the enrichment rate gate live here.
	stageExecutor := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts: cfg.StageRetryLimit + 1,
		RatePerSecond:    float64(cfg.EnrichmentRPS),
		RateBurst:        cfg.EnrichmentBurst,
		BreakerEnabled:   true,
	})

	var ocrService extractor.OCRService
	if cfg.OCRURL != "" {
		ocrService = ocr.New(
			cfg.OCRURL,
			ocr.WithTimeout(stageTimeout),
			ocr.WithResilienceExecutor(stageExecutor),
		)
	}
	textExtractor := extractor.New(storage, ocrService, cfg.ScannedPDFMinChars)

	nlpClient := ollama.New(
		cfg.OllamaURL,
		cfg.OllamaGenModel,
		ollama.WithTimeout(stageTimeout),
		ollama.WithResilienceExecutor(stageExecutor),
	)

	ingestUC := usecase.NewIngestDocumentUseCase(store, storage, queue)
	processUC := usecase.NewProcessDocumentUseCase(
		store,
		textExtractor,
		ollama.NewClassifier(nlpClient),
		ollama.NewSummarizer(nlpClient),
		ollama.NewEntityExtractor(nlpClient),
		ollama.NewSentimentAnalyzer(nlpClient),
	)
	queryUC := usecase.NewQueryUseCase(store)
	manageUC := usecase.NewManageDocumentUseCase(store, queue)

	return &App{
		Config: cfg,
		Queue:  queue,
		Store:  store,

		IngestUC:  ingestUC,
		ProcessUC: processUC,
		QueryUC:   queryUC,
		ManageUC:  manageUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
