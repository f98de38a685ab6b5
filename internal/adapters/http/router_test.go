package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/okupriyanov/document-ai-processor/internal/config"
	"github.com/okupriyanov/document-ai-processor/internal/core/domain"
)

type ingestorFake struct {
	err error
}

func (f ingestorFake) Upload(_ context.Context, filename, contentType string, body io.Reader) (*domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	if _, err := io.Copy(io.Discard, body); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &domain.Document{
		ID:          "doc-1",
		Filename:    filename,
		ContentType: contentType,
		StoragePath: "doc-1_file.txt",
		Status:      domain.StatusQueued,
		UploadedAt:  now,
		UpdatedAt:   now,
	}, nil
}

type queriesFake struct {
	doc  *domain.Document
	list []domain.DocumentSummary
	err  error
}

func (f queriesFake) ListDocuments(context.Context) ([]domain.DocumentSummary, error) {
	return f.list, f.err
}

func (f queriesFake) GetDocument(context.Context, string) (*domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.doc, nil
}

type adminFake struct {
	doc         *domain.Document
	err         error
	cancelCalls int
}

func (f *adminFake) Reprocess(context.Context, string) (*domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.doc, nil
}

func (f *adminFake) Cancel(context.Context, string) error {
	f.cancelCalls++
	return f.err
}

func newTestHandler(cfg config.Config, ingestor ingestorFake, queries queriesFake, admin *adminFake) http.Handler {
	if admin == nil {
		admin = &adminFake{}
	}
	return NewRouter(cfg, ingestor, queries, admin).Handler()
}

func multipartBody(t *testing.T, filename, contentType, content string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	header := make(map[string][]string)
	header["Content-Disposition"] = []string{`form-data; name="file"; filename="` + filename + `"`}
	header["Content-Type"] = []string{contentType}
	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("CreatePart() error = %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return &body, writer.FormDataContentType()
}

func TestHealthzEndpoint(t *testing.T) {
	handler := newTestHandler(config.Config{}, ingestorFake{}, queriesFake{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
}

func TestUploadDocumentAccepted(t *testing.T) {
	handler := newTestHandler(config.Config{}, ingestorFake{}, queriesFake{}, nil)

	body, formContentType := multipartBody(t, "report.txt", "text/plain", "hello")
	req := httptest.NewRequest(http.MethodPost, "/v1/documents", body)
	req.Header.Set("Content-Type", formContentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", res.Code)
	}

	var docResp map[string]any
	if err := json.NewDecoder(res.Body).Decode(&docResp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if docResp["id"] != "doc-1" {
		t.Fatalf("unexpected response: %+v", docResp)
	}
	if docResp["status"] != string(domain.StatusQueued) {
		t.Fatalf("expected queued status in response, got %v", docResp["status"])
	}
}

func TestUploadDocumentMissingMultipartField(t *testing.T) {
	handler := newTestHandler(config.Config{}, ingestorFake{}, queriesFake{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/documents", bytes.NewBufferString("plain-text"))
	req.Header.Set("Content-Type", "text/plain")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestUploadDocumentUnsupportedFormat(t *testing.T) {
	ingestor := ingestorFake{
		err: domain.WrapError(domain.ErrUnsupportedFormat, "upload", errors.New("application/x-msdownload")),
	}
	handler := newTestHandler(config.Config{}, ingestor, queriesFake{}, nil)

	body, formContentType := multipartBody(t, "tool.exe", "application/x-msdownload", "MZ")
	req := httptest.NewRequest(http.MethodPost, "/v1/documents", body)
	req.Header.Set("Content-Type", formContentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d", res.Code)
	}
}

func TestListDocumentsAlwaysReturnsArray(t *testing.T) {
	handler := newTestHandler(config.Config{}, ingestorFake{}, queriesFake{list: nil}, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/documents", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var resp struct {
		Documents []domain.DocumentSummary `json:"documents"`
	}
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Documents == nil {
		t.Fatalf("expected empty array, got null")
	}
}

func TestGetDocumentNotFoundMapsTo404(t *testing.T) {
	queries := queriesFake{
		err: domain.WrapError(domain.ErrDocumentNotFound, "get document", errors.New("missing")),
	}
	handler := newTestHandler(config.Config{}, ingestorFake{}, queries, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/documents/ghost", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestGetFailedDocumentIsStillOK(t *testing.T) {
	reason := "classification: model rejected input"
	queries := queriesFake{
		doc: &domain.Document{
			ID:            "doc-9",
			Status:        domain.StatusFailed,
			FailedStage:   domain.StageClassification,
			FailureReason: reason,
		},
	}
	handler := newTestHandler(config.Config{}, ingestorFake{}, queries, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/documents/doc-9", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("failure is data, expected 200, got %d", res.Code)
	}
	var resp map[string]any
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["status"] != string(domain.StatusFailed) {
		t.Fatalf("expected failed status, got %v", resp["status"])
	}
	if resp["failure_reason"] != reason {
		t.Fatalf("expected failure reason in payload, got %v", resp["failure_reason"])
	}
}

func TestReprocessConflictMapsTo409(t *testing.T) {
	admin := &adminFake{
		err: domain.WrapError(domain.ErrStatusConflict, "reprocess", errors.New("document still in flight")),
	}
	handler := newTestHandler(config.Config{}, ingestorFake{}, queriesFake{}, admin)

	req := httptest.NewRequest(http.MethodPost, "/v1/documents/doc-1/reprocess", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", res.Code)
	}
}

func TestCancelAccepted(t *testing.T) {
	admin := &adminFake{}
	handler := newTestHandler(config.Config{}, ingestorFake{}, queriesFake{}, admin)

	req := httptest.NewRequest(http.MethodPost, "/v1/documents/doc-1/cancel", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", res.Code)
	}
	if admin.cancelCalls != 1 {
		t.Fatalf("expected one cancel call, got %d", admin.cancelCalls)
	}
}

func TestUnknownDocumentAction(t *testing.T) {
	handler := newTestHandler(config.Config{}, ingestorFake{}, queriesFake{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/documents/doc-1/publish", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown action, got %d", res.Code)
	}
}
