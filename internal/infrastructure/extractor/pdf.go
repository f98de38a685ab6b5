package extractor

import (
	"bytes"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/okupriyanov/document-ai-processor/internal/core/domain"
)

func parsePDF(raw []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", domain.WrapError(domain.ErrPermanent, "parse pdf", err)
	}

	var builder strings.Builder
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", domain.WrapError(domain.ErrPermanent, "parse pdf", err)
	}
	if _, err := io.Copy(&builder, plain); err != nil {
		return "", domain.WrapError(domain.ErrPermanent, "parse pdf", err)
	}
	return strings.TrimSpace(builder.String()), nil
}
