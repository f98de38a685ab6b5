package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/okupriyanov/document-ai-processor/internal/core/domain"
)

type ingestStorageFake struct {
	savedKey  string
	savedBody string
	err       error
}

func (f *ingestStorageFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.err != nil {
		return f.err
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.savedKey = key
	f.savedBody = string(raw)
	return nil
}

func (f *ingestStorageFake) Open(context.Context, string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("")), nil
}

type jobQueueFake struct {
	published []string
	err       error
}

func (f *jobQueueFake) PublishEnrichmentJob(_ context.Context, documentID string) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, documentID)
	return nil
}

func (f *jobQueueFake) SubscribeEnrichmentJobs(context.Context, func(context.Context, string) error) error {
	return errors.New("not implemented")
}

func TestIngestUploadSuccess(t *testing.T) {
	store := newResultStoreFake(nil)
	storage := &ingestStorageFake{}
	queue := &jobQueueFake{}
	uc := NewIngestDocumentUseCase(store, storage, queue)

	doc, err := uc.Upload(context.Background(), "q3 report.txt", "text/plain; charset=utf-8", bytes.NewBufferString("hello"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if doc.ID == "" {
		t.Fatalf("expected document id")
	}
	if doc.Status != domain.StatusQueued {
		t.Fatalf("expected status queued, got %s", doc.Status)
	}
	if doc.ContentType != "text/plain" {
		t.Fatalf("expected normalized content type, got %s", doc.ContentType)
	}
	if len(queue.published) != 1 || queue.published[0] != doc.ID {
		t.Fatalf("expected published job for %s, got %v", doc.ID, queue.published)
	}
	if !strings.Contains(storage.savedKey, "_q3_report.txt") {
		t.Fatalf("expected sanitized key suffix, got %s", storage.savedKey)
	}
	if storage.savedBody != "hello" {
		t.Fatalf("expected saved body hello, got %s", storage.savedBody)
	}
}

func TestIngestUploadImmediatelyRetrievable(t *testing.T) {
	store := newResultStoreFake(nil)
	uc := NewIngestDocumentUseCase(store, &ingestStorageFake{}, &jobQueueFake{})

	doc, err := uc.Upload(context.Background(), "memo.txt", "text/plain", bytes.NewBufferString("x"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	fetched, err := store.GetByID(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if fetched.Status != domain.StatusQueued {
		t.Fatalf("expected queued before any stage runs, got %s", fetched.Status)
	}
}

func TestIngestUploadRejectsUnsupportedFormat(t *testing.T) {
	store := newResultStoreFake(nil)
	storage := &ingestStorageFake{}
	queue := &jobQueueFake{}
	uc := NewIngestDocumentUseCase(store, storage, queue)

	cases := []string{
		"application/x-msdownload",
		"application/octet-stream",
		"video/mp4",
		"",
	}
	for _, contentType := range cases {
		_, err := uc.Upload(context.Background(), "payload.exe", contentType, bytes.NewBufferString("MZ"))
		if err == nil {
			t.Fatalf("expected rejection for %q", contentType)
		}
		if !domain.IsKind(err, domain.ErrUnsupportedFormat) {
			t.Fatalf("expected ErrUnsupportedFormat for %q, got %v", contentType, err)
		}
	}
	if storage.savedKey != "" {
		t.Fatalf("rejected upload must not reach storage, saved %s", storage.savedKey)
	}
	if len(queue.published) != 0 {
		t.Fatalf("rejected upload must not reach the queue, got %v", queue.published)
	}
}

func TestIngestUploadStorageErrorKeepsKind(t *testing.T) {
	store := newResultStoreFake(nil)
	storage := &ingestStorageFake{
		err: domain.WrapError(domain.ErrTransient, "save object", errors.New("disk unavailable")),
	}
	uc := NewIngestDocumentUseCase(store, storage, &jobQueueFake{})

	_, err := uc.Upload(context.Background(), "report.txt", "text/plain", bytes.NewBufferString("hello"))
	if err == nil {
		t.Fatalf("expected error")
	}
	// The transient kind must survive wrapping so the gateway answers 503,
	// not 500, and the client knows the upload is retryable.
	if !domain.IsKind(err, domain.ErrTransient) {
		t.Fatalf("expected transient kind, got %v", err)
	}
}

func TestIngestUploadQueueError(t *testing.T) {
	store := newResultStoreFake(nil)
	queue := &jobQueueFake{err: errors.New("queue down")}
	uc := NewIngestDocumentUseCase(store, &ingestStorageFake{}, queue)

	_, err := uc.Upload(context.Background(), "report.txt", "text/plain", bytes.NewBufferString("hello"))
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "publish enrichment job") {
		t.Fatalf("expected publish error, got %v", err)
	}
}
