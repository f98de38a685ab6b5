package extractor

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/okupriyanov/document-ai-processor/internal/core/domain"
)

// parseDOCX walks word/document.xml inside the OOXML archive, collecting the
// character data of w:t runs and breaking lines at paragraph boundaries.
func parseDOCX(raw []byte) (string, error) {
	archive, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", domain.WrapError(domain.ErrPermanent, "parse docx", err)
	}

	var document *zip.File
	for _, f := range archive.File {
		if f.Name == "word/document.xml" {
			document = f
			break
		}
	}
	if document == nil {
		return "", domain.WrapError(domain.ErrPermanent, "parse docx", errors.New("word/document.xml missing"))
	}

	body, err := document.Open()
	if err != nil {
		return "", domain.WrapError(domain.ErrPermanent, "parse docx", err)
	}
	defer body.Close()

	var (
		builder strings.Builder
		inRun   bool
	)
	decoder := xml.NewDecoder(body)
	for {
		token, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", domain.WrapError(domain.ErrPermanent, "parse docx", fmt.Errorf("decode document.xml: %w", err))
		}

		switch t := token.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inRun = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inRun = false
			case "p":
				builder.WriteByte('\n')
			}
		case xml.CharData:
			if inRun {
				builder.Write(t)
			}
		}
	}
	return strings.TrimSpace(builder.String()), nil
}
