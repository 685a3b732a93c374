package cv

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// MaxPDFPages bounds how much of a compiled CV is read.
const MaxPDFPages = 10

// ParsePDF extracts metadata from a compiled CV.
func ParsePDF(path string) (Metadata, error) {
	text, err := ExtractText(path, MaxPDFPages)
	if err != nil {
		return Metadata{}, err
	}
	return ParseText(text), nil
}

// ExtractText extracts the plain text of the first maxPages pages of a PDF.
// Pages that fail to decode are skipped.
func ExtractText(path string, maxPages int) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening PDF: %w", err)
	}
	defer f.Close()

	if maxPages <= 0 || maxPages > r.NumPage() {
		maxPages = r.NumPage()
	}

	var builder strings.Builder
	for i := 1; i <= maxPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		builder.WriteString(text)
		builder.WriteString("\n")
	}

	return builder.String(), nil
}
