package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/okupriyanov/document-ai-processor/internal/core/domain"
	"github.com/okupriyanov/document-ai-processor/internal/core/ports"
)

// ManageDocumentUseCase handles explicit lifecycle requests: reprocessing a
// finished document and cancelling one that is still in flight.
type ManageDocumentUseCase struct {
	store ports.ResultStore
	queue ports.JobQueue
}

func NewManageDocumentUseCase(store ports.ResultStore, queue ports.JobQueue) *ManageDocumentUseCase {
	return &ManageDocumentUseCase{store: store, queue: queue}
}

// Reprocess resets every enrichment field and requeues the document. Only
// documents in a terminal status can be reprocessed; resetting a document
// mid-pipeline would race its own in-flight stages.
func (uc *ManageDocumentUseCase) Reprocess(ctx context.Context, id string) (*domain.Document, error) {
	doc, err := uc.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch document by id: %w", err)
	}
	if !doc.Status.IsTerminal() {
		return nil, domain.WrapError(domain.ErrStatusConflict, "reprocess",
			fmt.Errorf("document is %s", doc.Status))
	}

	if err := uc.store.ResetForReprocess(ctx, id); err != nil {
		return nil, fmt.Errorf("reset document: %w", err)
	}
	if err := uc.queue.PublishEnrichmentJob(ctx, id); err != nil {
		return nil, fmt.Errorf("publish enrichment job: %w", err)
	}

	return uc.store.GetByID(ctx, id)
}

// Cancel marks the document so the pipeline stops before its next stage.
// In-flight external calls are not aborted; their results are discarded by
// the terminal-status write guard.
func (uc *ManageDocumentUseCase) Cancel(ctx context.Context, id string) error {
	doc, err := uc.store.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("fetch document by id: %w", err)
	}
	if doc.Status.IsTerminal() {
		return domain.WrapError(domain.ErrStatusConflict, "cancel",
			errors.New("document already finished"))
	}
	if err := uc.store.RequestCancel(ctx, id); err != nil {
		return fmt.Errorf("request cancel: %w", err)
	}
	return nil
}
