package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okupriyanov/document-ai-processor/internal/core/domain"
	"github.com/okupriyanov/document-ai-processor/internal/core/ports"
)

// StageObserver receives per-stage timing for metrics. Implementations must
// be safe for concurrent use.
type StageObserver interface {
	ObserveStage(stage domain.Stage, duration time.Duration, err error)
}

type noopStageObserver struct{}

func (noopStageObserver) ObserveStage(domain.Stage, time.Duration, error) {}

// ProcessDocumentUseCase drives one document through the pipeline state
// machine: queued -> extracting -> enriching -> processed, with a side
// transition to failed from any non-terminal state. Every transition is a
// compare-and-set against the expected prior status, so concurrent workers
// and redelivered jobs cannot regress a document.
type ProcessDocumentUseCase struct {
	store      ports.ResultStore
	extractor  ports.TextExtractor
	classifier ports.Classifier
	summarizer ports.Summarizer
	entities   ports.EntityExtractor
	sentiment  ports.SentimentAnalyzer
	observer   StageObserver
	logger     *slog.Logger
}

func NewProcessDocumentUseCase(
	store ports.ResultStore,
	extractor ports.TextExtractor,
	classifier ports.Classifier,
	summarizer ports.Summarizer,
	entities ports.EntityExtractor,
	sentiment ports.SentimentAnalyzer,
) *ProcessDocumentUseCase {
	return &ProcessDocumentUseCase{
		store:      store,
		extractor:  extractor,
		classifier: classifier,
		summarizer: summarizer,
		entities:   entities,
		sentiment:  sentiment,
		observer:   noopStageObserver{},
		logger:     slog.Default(),
	}
}

func (uc *ProcessDocumentUseCase) WithStageObserver(observer StageObserver) *ProcessDocumentUseCase {
	if observer != nil {
		uc.observer = observer
	}
	return uc
}

func (uc *ProcessDocumentUseCase) WithLogger(logger *slog.Logger) *ProcessDocumentUseCase {
	if logger != nil {
		uc.logger = logger
	}
	return uc
}

func (uc *ProcessDocumentUseCase) ProcessByID(ctx context.Context, documentID string) error {
	doc, err := uc.store.GetByID(ctx, documentID)
	if err != nil {
		return fmt.Errorf("fetch document by id: %w", err)
	}
	if doc.Status.IsTerminal() {
		// Stale or redelivered job; the document already finished.
		uc.logger.Info("skip_terminal_document", "document_id", doc.ID, "status", doc.Status)
		return nil
	}
	if doc.CancelRequested {
		return uc.markCancelled(ctx, doc.ID, doc.Status)
	}

	if err := uc.store.UpdateStatusCAS(ctx, doc.ID, domain.StatusQueued, domain.StatusExtracting, "", ""); err != nil {
		if domain.IsKind(err, domain.ErrStatusConflict) {
			// Another worker owns this document.
			uc.logger.Info("skip_claimed_document", "document_id", doc.ID)
			return nil
		}
		return fmt.Errorf("claim document: %w", err)
	}

	text, err := uc.runExtraction(ctx, doc)
	if err != nil {
		return uc.markFailed(ctx, doc.ID, domain.StatusExtracting, domain.StageExtraction, err)
	}

	if cancelled, err := uc.cancelRequested(ctx, doc.ID); err != nil {
		return err
	} else if cancelled {
		return uc.markCancelled(ctx, doc.ID, domain.StatusExtracting)
	}

	if err := uc.store.UpdateStatusCAS(ctx, doc.ID, domain.StatusExtracting, domain.StatusEnriching, "", ""); err != nil {
		return fmt.Errorf("set status=enriching: %w", err)
	}

	if err := uc.runEnrichment(ctx, doc.ID, text); err != nil {
		stage := domain.StageClassification
		if failed, ok := domain.FailedStageOf(err); ok {
			stage = failed
		}
		return uc.markFailed(ctx, doc.ID, domain.StatusEnriching, stage, err)
	}

	if cancelled, err := uc.cancelRequested(ctx, doc.ID); err != nil {
		return err
	} else if cancelled {
		return uc.markCancelled(ctx, doc.ID, domain.StatusEnriching)
	}

	if err := uc.store.UpdateStatusCAS(ctx, doc.ID, domain.StatusEnriching, domain.StatusProcessed, "", ""); err != nil {
		return fmt.Errorf("set status=processed: %w", err)
	}
	return nil
}

func (uc *ProcessDocumentUseCase) runExtraction(ctx context.Context, doc *domain.Document) (string, error) {
	start := time.Now()
	text, err := uc.extractor.Extract(ctx, doc)
	uc.observer.ObserveStage(domain.StageExtraction, time.Since(start), err)
	if err != nil {
		return "", fmt.Errorf("extract text: %w", err)
	}
	if text == "" {
		return "", domain.WrapError(domain.ErrPermanent, "extract text", errors.New("document yielded no text"))
	}
	if err := uc.store.SaveExtraction(ctx, doc.ID, domain.NewExtraction(text)); err != nil {
		return "", fmt.Errorf("save extraction: %w", err)
	}
	return text, nil
}

// runEnrichment fans the four independent stages out concurrently. Each stage
// persists its own field on success, so results from stages that finish
// before a sibling fails are preserved.
func (uc *ProcessDocumentUseCase) runEnrichment(ctx context.Context, documentID, text string) error {
	var g errgroup.Group

	g.Go(uc.stage(ctx, domain.StageClassification, func(ctx context.Context) error {
		cls, err := uc.classifier.Classify(ctx, text)
		if err != nil {
			return err
		}
		return uc.store.SaveClassification(ctx, documentID, cls)
	}))
	g.Go(uc.stage(ctx, domain.StageSummarization, func(ctx context.Context) error {
		summary, err := uc.summarizer.Summarize(ctx, text)
		if err != nil {
			return err
		}
		return uc.store.SaveSummary(ctx, documentID, summary)
	}))
	g.Go(uc.stage(ctx, domain.StageEntities, func(ctx context.Context) error {
		entities, err := uc.entities.ExtractEntities(ctx, text)
		if err != nil {
			return err
		}
		return uc.store.SaveEntities(ctx, documentID, entities)
	}))
	g.Go(uc.stage(ctx, domain.StageSentiment, func(ctx context.Context) error {
		sentiment, err := uc.sentiment.AnalyzeSentiment(ctx, text)
		if err != nil {
			return err
		}
		return uc.store.SaveSentiment(ctx, documentID, sentiment)
	}))

	return g.Wait()
}

func (uc *ProcessDocumentUseCase) stage(ctx context.Context, stage domain.Stage, fn func(context.Context) error) func() error {
	return func() error {
		start := time.Now()
		err := fn(ctx)
		uc.observer.ObserveStage(stage, time.Since(start), err)
		if err != nil {
			return domain.NewStageError(stage, err)
		}
		return nil
	}
}

func (uc *ProcessDocumentUseCase) cancelRequested(ctx context.Context, documentID string) (bool, error) {
	doc, err := uc.store.GetByID(ctx, documentID)
	if err != nil {
		return false, fmt.Errorf("check cancellation: %w", err)
	}
	return doc.CancelRequested, nil
}

// terminalWriteTimeout bounds the failed-status write itself. The write must
// not inherit cancellation from the pipeline context: the per-document budget
// expiring is exactly the failure being recorded, and a document stuck in
// extracting/enriching is unrecoverable because redelivered jobs drop on the
// claim CAS.
const terminalWriteTimeout = 5 * time.Second

func terminalWriteContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), terminalWriteTimeout)
}

func (uc *ProcessDocumentUseCase) markCancelled(ctx context.Context, documentID string, from domain.DocumentStatus) error {
	writeCtx, cancel := terminalWriteContext(ctx)
	defer cancel()

	err := uc.store.UpdateStatusCAS(writeCtx, documentID, from, domain.StatusFailed, "", domain.ErrCancelled.Error())
	if err != nil && !domain.IsKind(err, domain.ErrStatusConflict) {
		return fmt.Errorf("mark cancelled: %w", err)
	}
	uc.logger.Info("document_cancelled", "document_id", documentID)
	return nil
}

func (uc *ProcessDocumentUseCase) markFailed(ctx context.Context, documentID string, from domain.DocumentStatus, stage domain.Stage, cause error) error {
	writeCtx, cancel := terminalWriteContext(ctx)
	defer cancel()

	if err := uc.store.UpdateStatusCAS(writeCtx, documentID, from, domain.StatusFailed, stage, cause.Error()); err != nil {
		if domain.IsKind(err, domain.ErrStatusConflict) {
			uc.logger.Warn("failed_transition_lost", "document_id", documentID, "stage", stage, "error", cause)
			return cause
		}
		return fmt.Errorf("%w; mark failed status: %v", cause, err)
	}
	return cause
}
