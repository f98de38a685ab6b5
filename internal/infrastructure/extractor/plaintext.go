package extractor

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/okupriyanov/document-ai-processor/internal/core/domain"
)

func parsePlainText(raw []byte) (string, error) {
	if !utf8.Valid(raw) {
		return "", domain.WrapError(domain.ErrPermanent, "parse text", errors.New("not valid utf-8"))
	}
	return strings.TrimSpace(string(raw)), nil
}
