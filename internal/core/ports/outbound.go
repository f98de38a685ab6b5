package ports

import (
	"context"
	"io"

	"github.com/okupriyanov/document-ai-processor/internal/core/domain"
)

// ResultStore persists document state and the accumulated enrichment record.
//
// Field-level saves write disjoint columns and are safe under concurrent
// stage completions for the same document; each save is rejected once the
// document reached a terminal status.
type ResultStore interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	List(ctx context.Context) ([]domain.DocumentSummary, error)

	// UpdateStatusCAS transitions status from expected to next in a single
	// compare-and-set statement. It returns domain.ErrStatusConflict when
	// the stored status differs from expected.
	UpdateStatusCAS(ctx context.Context, id string, expected, next domain.DocumentStatus, failedStage domain.Stage, reason string) error

	SaveExtraction(ctx context.Context, id string, ext domain.Extraction) error
	SaveClassification(ctx context.Context, id string, cls domain.Classification) error
	SaveSummary(ctx context.Context, id string, summary string) error
	SaveEntities(ctx context.Context, id string, entities domain.Entities) error
	SaveSentiment(ctx context.Context, id string, sentiment domain.Sentiment) error

	RequestCancel(ctx context.Context, id string) error
	// ResetForReprocess clears every enrichment field and returns the
	// document to queued. Valid only from a terminal status.
	ResetForReprocess(ctx context.Context, id string) error
}

// ObjectStorage stores source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// JobQueue publishes/consumes enrichment jobs.
type JobQueue interface {
	PublishEnrichmentJob(ctx context.Context, documentID string) error
	SubscribeEnrichmentJobs(ctx context.Context, handler func(context.Context, string) error) error
}

// TextExtractor produces plain text from stored raw bytes.
type TextExtractor interface {
	Extract(ctx context.Context, doc *domain.Document) (string, error)
}

// Classifier assigns a category with ranked alternatives.
type Classifier interface {
	Classify(ctx context.Context, text string) (domain.Classification, error)
}

// Summarizer produces a short abstract of the text.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// EntityExtractor finds named entities grouped by type.
type EntityExtractor interface {
	ExtractEntities(ctx context.Context, text string) (domain.Entities, error)
}

// SentimentAnalyzer scores the overall tone of the text.
type SentimentAnalyzer interface {
	AnalyzeSentiment(ctx context.Context, text string) (domain.Sentiment, error)
}
