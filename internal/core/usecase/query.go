package usecase

import (
	"context"
	"fmt"

	"github.com/okupriyanov/document-ai-processor/internal/core/domain"
	"github.com/okupriyanov/document-ai-processor/internal/core/ports"
)

// QueryUseCase is the read-only facade. It never turns a failed document
// into an error: failure stage and reason are reported as data.
type QueryUseCase struct {
	store ports.ResultStore
}

func NewQueryUseCase(store ports.ResultStore) *QueryUseCase {
	return &QueryUseCase{store: store}
}

func (uc *QueryUseCase) ListDocuments(ctx context.Context) ([]domain.DocumentSummary, error) {
	summaries, err := uc.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return summaries, nil
}

func (uc *QueryUseCase) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	doc, err := uc.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch document by id: %w", err)
	}
	return doc, nil
}
