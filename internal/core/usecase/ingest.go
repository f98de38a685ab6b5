package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okupriyanov/document-ai-processor/internal/core/domain"
	"github.com/okupriyanov/document-ai-processor/internal/core/ports"
)

// allowedContentTypes is the ingestion allow-list. Anything else is rejected
// before a single byte reaches the pipeline.
var allowedContentTypes = map[string]struct{}{
	"application/pdf": {},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {},
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":       {},
	"text/plain": {},
	"image/jpeg": {},
	"image/png":  {},
	"image/tiff": {},
}

type IngestDocumentUseCase struct {
	store   ports.ResultStore
	storage ports.ObjectStorage
	queue   ports.JobQueue
}

func NewIngestDocumentUseCase(
	store ports.ResultStore,
	storage ports.ObjectStorage,
	queue ports.JobQueue,
) *IngestDocumentUseCase {
	return &IngestDocumentUseCase{
		store:   store,
		storage: storage,
		queue:   queue,
	}
}

func (uc *IngestDocumentUseCase) Upload(
	ctx context.Context,
	filename, contentType string,
	body io.Reader,
) (*domain.Document, error) {
	mediaType, err := normalizeContentType(contentType)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(filename) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload", errors.New("filename is required"))
	}

	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s_%s", id, sanitizeFilename(filename))
	now := time.Now().UTC()

	if err := uc.storage.Save(ctx, storageKey, body); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	doc := &domain.Document{
		ID:          id,
		Filename:    filename,
		ContentType: mediaType,
		StoragePath: storageKey,
		Status:      domain.StatusQueued,
		UploadedAt:  now,
		UpdatedAt:   now,
	}

	if err := uc.store.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document metadata: %w", err)
	}

	if err := uc.queue.PublishEnrichmentJob(ctx, doc.ID); err != nil {
		return nil, fmt.Errorf("publish enrichment job: %w", err)
	}

	return doc, nil
}

func normalizeContentType(contentType string) (string, error) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", domain.WrapError(domain.ErrUnsupportedFormat, "upload", fmt.Errorf("parse content type %q: %w", contentType, err))
	}
	mediaType = strings.ToLower(mediaType)
	if _, ok := allowedContentTypes[mediaType]; !ok {
		return "", domain.WrapError(domain.ErrUnsupportedFormat, "upload", fmt.Errorf("content type %q is not accepted", mediaType))
	}
	return mediaType, nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" {
		return "document.bin"
	}
	return base
}
