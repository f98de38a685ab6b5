package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/okupriyanov/document-ai-processor/internal/core/domain"
)

// ResultStore keeps document state and the accumulated enrichment record in
// a single row per document. Field-level saves touch disjoint columns and
// carry the terminal-status guard inside the statement, so concurrent stage
// completions never need application-side locking.
type ResultStore struct {
	db *sql.DB
}

func NewResultStore(db *sql.DB) *ResultStore {
	return &ResultStore{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *ResultStore) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082601)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	filename TEXT NOT NULL,
	content_type TEXT NOT NULL,
	storage_path TEXT NOT NULL,
	status TEXT NOT NULL,
	failed_stage TEXT NOT NULL DEFAULT '',
	failure_reason TEXT NOT NULL DEFAULT '',
	cancel_requested BOOLEAN NOT NULL DEFAULT FALSE,
	extracted_text TEXT,
	word_count INTEGER,
	character_count INTEGER,
	classification JSONB,
	summary TEXT,
	entities JSONB,
	sentiment JSONB,
	uploaded_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);
CREATE INDEX IF NOT EXISTS idx_documents_uploaded_at ON documents(uploaded_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *ResultStore) Create(ctx context.Context, doc *domain.Document) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO documents (
	id, filename, content_type, storage_path, status, failed_stage, failure_reason, cancel_requested, uploaded_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`,
		doc.ID, doc.Filename, doc.ContentType, doc.StoragePath, string(doc.Status),
		string(doc.FailedStage), doc.FailureReason, doc.CancelRequested, doc.UploadedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (r *ResultStore) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, filename, content_type, storage_path, status, failed_stage, failure_reason, cancel_requested,
	extracted_text, word_count, character_count, classification, summary, entities, sentiment,
	uploaded_at, updated_at
FROM documents
WHERE id = $1
`, id)

	var (
		doc            domain.Document
		status         string
		failedStage    string
		extractedText  sql.NullString
		wordCount      sql.NullInt64
		characterCount sql.NullInt64
		classification []byte
		summary        sql.NullString
		entities       []byte
		sentiment      []byte
	)

	err := row.Scan(
		&doc.ID, &doc.Filename, &doc.ContentType, &doc.StoragePath, &status, &failedStage,
		&doc.FailureReason, &doc.CancelRequested,
		&extractedText, &wordCount, &characterCount, &classification, &summary, &entities, &sentiment,
		&doc.UploadedAt, &doc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id %s", id))
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}

	doc.Status = domain.DocumentStatus(status)
	doc.FailedStage = domain.Stage(failedStage)

	if extractedText.Valid {
		doc.Record.Extraction = &domain.Extraction{
			Text:           extractedText.String,
			WordCount:      int(wordCount.Int64),
			CharacterCount: int(characterCount.Int64),
		}
	}
	if len(classification) > 0 {
		var cls domain.Classification
		if err := json.Unmarshal(classification, &cls); err != nil {
			return nil, fmt.Errorf("unmarshal classification: %w", err)
		}
		doc.Record.Classification = &cls
	}
	if summary.Valid {
		s := summary.String
		doc.Record.Summary = &s
	}
	if len(entities) > 0 {
		var ents domain.Entities
		if err := json.Unmarshal(entities, &ents); err != nil {
			return nil, fmt.Errorf("unmarshal entities: %w", err)
		}
		doc.Record.Entities = ents
	}
	if len(sentiment) > 0 {
		var snt domain.Sentiment
		if err := json.Unmarshal(sentiment, &snt); err != nil {
			return nil, fmt.Errorf("unmarshal sentiment: %w", err)
		}
		doc.Record.Sentiment = &snt
	}
	return &doc, nil
}

func (r *ResultStore) List(ctx context.Context) ([]domain.DocumentSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, filename, content_type, status, failed_stage, failure_reason, uploaded_at
FROM documents
ORDER BY uploaded_at DESC
`)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	summaries := []domain.DocumentSummary{}
	for rows.Next() {
		var (
			s           domain.DocumentSummary
			status      string
			failedStage string
		)
		if err := rows.Scan(&s.ID, &s.Filename, &s.ContentType, &status, &failedStage, &s.FailureReason, &s.UploadedAt); err != nil {
			return nil, fmt.Errorf("scan document summary: %w", err)
		}
		s.Status = domain.DocumentStatus(status)
		s.FailedStage = domain.Stage(failedStage)
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return summaries, nil
}

func (r *ResultStore) UpdateStatusCAS(ctx context.Context, id string, expected, next domain.DocumentStatus, failedStage domain.Stage, reason string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE documents
SET status = $3, failed_stage = $4, failure_reason = $5, updated_at = $6
WHERE id = $1 AND status = $2
`, id, string(expected), string(next), string(failedStage), reason, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	return r.explainZeroRows(ctx, result, id, "update status")
}

func (r *ResultStore) SaveExtraction(ctx context.Context, id string, ext domain.Extraction) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE documents
SET extracted_text = $2, word_count = $3, character_count = $4, updated_at = $5
WHERE id = $1 AND status NOT IN ('processed','failed')
`, id, ext.Text, ext.WordCount, ext.CharacterCount, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save extraction: %w", err)
	}
	return r.explainZeroRows(ctx, result, id, "save extraction")
}

func (r *ResultStore) SaveClassification(ctx context.Context, id string, cls domain.Classification) error {
	payload, err := json.Marshal(cls)
	if err != nil {
		return fmt.Errorf("marshal classification: %w", err)
	}
	result, err := r.db.ExecContext(ctx, `
UPDATE documents
SET classification = $2, updated_at = $3
WHERE id = $1 AND status NOT IN ('processed','failed')
`, id, payload, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save classification: %w", err)
	}
	return r.explainZeroRows(ctx, result, id, "save classification")
}

func (r *ResultStore) SaveSummary(ctx context.Context, id string, summary string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE documents
SET summary = $2, updated_at = $3
WHERE id = $1 AND status NOT IN ('processed','failed')
`, id, summary, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save summary: %w", err)
	}
	return r.explainZeroRows(ctx, result, id, "save summary")
}

func (r *ResultStore) SaveEntities(ctx context.Context, id string, entities domain.Entities) error {
	payload, err := json.Marshal(entities)
	if err != nil {
		return fmt.Errorf("marshal entities: %w", err)
	}
	result, err := r.db.ExecContext(ctx, `
UPDATE documents
SET entities = $2, updated_at = $3
WHERE id = $1 AND status NOT IN ('processed','failed')
`, id, payload, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save entities: %w", err)
	}
	return r.explainZeroRows(ctx, result, id, "save entities")
}

func (r *ResultStore) SaveSentiment(ctx context.Context, id string, sentiment domain.Sentiment) error {
	payload, err := json.Marshal(sentiment)
	if err != nil {
		return fmt.Errorf("marshal sentiment: %w", err)
	}
	result, err := r.db.ExecContext(ctx, `
UPDATE documents
SET sentiment = $2, updated_at = $3
WHERE id = $1 AND status NOT IN ('processed','failed')
`, id, payload, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save sentiment: %w", err)
	}
	return r.explainZeroRows(ctx, result, id, "save sentiment")
}

func (r *ResultStore) RequestCancel(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE documents
SET cancel_requested = TRUE, updated_at = $2
WHERE id = $1 AND status NOT IN ('processed','failed')
`, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("request cancel: %w", err)
	}
	return r.explainZeroRows(ctx, result, id, "request cancel")
}

func (r *ResultStore) ResetForReprocess(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE documents
SET status = 'queued', failed_stage = '', failure_reason = '', cancel_requested = FALSE,
	extracted_text = NULL, word_count = NULL, character_count = NULL,
	classification = NULL, summary = NULL, entities = NULL, sentiment = NULL,
	updated_at = $2
WHERE id = $1 AND status IN ('processed','failed')
`, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("reset document: %w", err)
	}
	return r.explainZeroRows(ctx, result, id, "reset document")
}

// explainZeroRows turns a zero-row guarded UPDATE into the right domain
// error: the row is missing, or its status no longer admits the write.
func (r *ResultStore) explainZeroRows(ctx context.Context, result sql.Result, id, operation string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", operation, err)
	}
	if affected > 0 {
		return nil
	}

	var status string
	err = r.db.QueryRowContext(ctx, `SELECT status FROM documents WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.WrapError(domain.ErrDocumentNotFound, operation, fmt.Errorf("id %s", id))
	}
	if err != nil {
		return fmt.Errorf("%s status lookup: %w", operation, err)
	}
	return domain.WrapError(domain.ErrStatusConflict, operation, fmt.Errorf("status is %s", status))
}
