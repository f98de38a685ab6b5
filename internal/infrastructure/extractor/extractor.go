package extractor

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/okupriyanov/document-ai-processor/internal/core/domain"
	"github.com/okupriyanov/document-ai-processor/internal/core/ports"
)

const (
	contentTypePDF  = "application/pdf"
	contentTypeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypeText = "text/plain"
)

// OCRService recognizes text in image-bearing content.
type OCRService interface {
	Recognize(ctx context.Context, data []byte, contentType string) (string, error)
}

// Extractor routes stored raw bytes to the parser for their content type:
// direct parsing for text/PDF/DOCX/XLSX, OCR for image formats. PDFs that
// parse to almost no text are treated as scanned and retried through OCR.
type Extractor struct {
	storage          ports.ObjectStorage
	ocr              OCRService
	scannedThreshold int
}

func New(storage ports.ObjectStorage, ocr OCRService, scannedThreshold int) *Extractor {
	if scannedThreshold <= 0 {
		scannedThreshold = 100
	}
	return &Extractor{
		storage:          storage,
		ocr:              ocr,
		scannedThreshold: scannedThreshold,
	}
}

func (e *Extractor) Extract(ctx context.Context, doc *domain.Document) (string, error) {
	reader, err := e.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return "", fmt.Errorf("open source document: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read source document: %w", err)
	}

	switch {
	case doc.ContentType == contentTypeText:
		return parsePlainText(raw)
	case doc.ContentType == contentTypePDF:
		return e.extractPDF(ctx, raw)
	case doc.ContentType == contentTypeDOCX:
		return parseDOCX(raw)
	case doc.ContentType == contentTypeXLSX:
		return parseXLSX(raw)
	case strings.HasPrefix(doc.ContentType, "image/"):
		return e.recognize(ctx, raw, doc.ContentType)
	default:
		return "", domain.WrapError(domain.ErrUnsupportedFormat, "extract",
			fmt.Errorf("no parser for content type %s", doc.ContentType))
	}
}

func (e *Extractor) extractPDF(ctx context.Context, raw []byte) (string, error) {
	text, err := parsePDF(raw)
	if err != nil {
		return "", err
	}
	if len(strings.TrimSpace(text)) >= e.scannedThreshold {
		return text, nil
	}
	// Little or no embedded text: likely a scanned document.
	return e.recognize(ctx, raw, contentTypePDF)
}

func (e *Extractor) recognize(ctx context.Context, raw []byte, contentType string) (string, error) {
	if e.ocr == nil {
		return "", domain.WrapError(domain.ErrPermanent, "extract",
			fmt.Errorf("no OCR service configured for %s", contentType))
	}
	text, err := e.ocr.Recognize(ctx, raw, contentType)
	if err != nil {
		return "", fmt.Errorf("ocr recognize: %w", err)
	}
	return strings.TrimSpace(text), nil
}
