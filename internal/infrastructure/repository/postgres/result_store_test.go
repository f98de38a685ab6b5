package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/okupriyanov/document-ai-processor/internal/core/domain"
)

func newStoreWithMock(t *testing.T) (*ResultStore, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &ResultStore{db: db}, mock, func() { _ = db.Close() }
}

func TestGetByIDReturnsDomainNotFound(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, filename, content_type, storage_path").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := store.GetByID(context.Background(), "missing")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetByIDAssemblesPartialRecord(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "filename", "content_type", "storage_path", "status", "failed_stage", "failure_reason",
		"cancel_requested", "extracted_text", "word_count", "character_count", "classification",
		"summary", "entities", "sentiment", "uploaded_at", "updated_at",
	}).AddRow(
		"doc-1", "deal.txt", "text/plain", "doc-1_deal.txt", "enriching", "", "",
		false, "Acme Corp signed.", 3, 17, []byte(`{"category":"contract","confidence":0.9,"alternatives":[]}`),
		nil, []byte(`{"ORG":["Acme Corp"]}`), nil, now, now,
	)
	mock.ExpectQuery("SELECT id, filename, content_type, storage_path").
		WithArgs("doc-1").
		WillReturnRows(rows)

	doc, err := store.GetByID(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if doc.Status != domain.StatusEnriching {
		t.Fatalf("expected enriching, got %s", doc.Status)
	}
	if doc.Record.Extraction == nil || doc.Record.Extraction.WordCount != 3 {
		t.Fatalf("unexpected extraction: %+v", doc.Record.Extraction)
	}
	if doc.Record.Classification == nil || doc.Record.Classification.Category != "contract" {
		t.Fatalf("unexpected classification: %+v", doc.Record.Classification)
	}
	if doc.Record.Summary != nil || doc.Record.Sentiment != nil {
		t.Fatalf("absent fields must stay nil: %+v", doc.Record)
	}
	if got := doc.Record.Entities["ORG"]; len(got) != 1 || got[0] != "Acme Corp" {
		t.Fatalf("unexpected entities: %v", doc.Record.Entities)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateStatusCASConflict(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE documents").
		WithArgs("doc-1", "queued", "extracting", "", "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT status FROM documents").
		WithArgs("doc-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("extracting"))

	err := store.UpdateStatusCAS(context.Background(), "doc-1", domain.StatusQueued, domain.StatusExtracting, "", "")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrStatusConflict) {
		t.Fatalf("expected ErrStatusConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateStatusCASNotFound(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE documents").
		WithArgs("missing", "queued", "extracting", "", "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT status FROM documents").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	err := store.UpdateStatusCAS(context.Background(), "missing", domain.StatusQueued, domain.StatusExtracting, "", "")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveSummaryRejectedAfterTerminalStatus(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE documents").
		WithArgs("doc-1", "late summary", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT status FROM documents").
		WithArgs("doc-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("failed"))

	err := store.SaveSummary(context.Background(), "doc-1", "late summary")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrStatusConflict) {
		t.Fatalf("expected ErrStatusConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestResetForReprocessRequiresTerminalStatus(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE documents").
		WithArgs("doc-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT status FROM documents").
		WithArgs("doc-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("enriching"))

	err := store.ResetForReprocess(context.Background(), "doc-1")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrStatusConflict) {
		t.Fatalf("expected ErrStatusConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
