package extractor

import (
	"bytes"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/okupriyanov/document-ai-processor/internal/core/domain"
)

// parseXLSX flattens every sheet row-by-row, tab-separating cells, so the
// enrichment stages see spreadsheet content as plain text.
func parseXLSX(raw []byte) (string, error) {
	workbook, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		return "", domain.WrapError(domain.ErrPermanent, "parse xlsx", err)
	}
	defer workbook.Close()

	var builder strings.Builder
	for _, sheet := range workbook.GetSheetList() {
		rows, err := workbook.GetRows(sheet)
		if err != nil {
			return "", domain.WrapError(domain.ErrPermanent, "parse xlsx", err)
		}
		for _, row := range rows {
			line := strings.TrimSpace(strings.Join(row, "\t"))
			if line == "" {
				continue
			}
			builder.WriteString(line)
			builder.WriteByte('\n')
		}
	}
	return strings.TrimSpace(builder.String()), nil
}
