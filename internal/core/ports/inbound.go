package ports

import (
	"context"
	"io"

	"github.com/okupriyanov/document-ai-processor/internal/core/domain"
)

// DocumentIngestor is the inbound contract for document upload acceptance.
type DocumentIngestor interface {
	Upload(ctx context.Context, filename, contentType string, body io.Reader) (*domain.Document, error)
}

// DocumentProcessor is the inbound contract for asynchronous pipeline runs.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}

// DocumentQueries is the read-only facade over accumulated results.
type DocumentQueries interface {
	ListDocuments(ctx context.Context) ([]domain.DocumentSummary, error)
	GetDocument(ctx context.Context, id string) (*domain.Document, error)
}

// DocumentAdmin covers explicit lifecycle requests outside the pipeline.
type DocumentAdmin interface {
	Reprocess(ctx context.Context, id string) (*domain.Document, error)
	Cancel(ctx context.Context, id string) error
}
