package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// MaxPDFPages limits the number of pages read from one PDF.
const MaxPDFPages = 100

func pdfText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("opening PDF: %w", err)
	}

	total := reader.NumPage()
	if total == 0 {
		return "", fmt.Errorf("PDF has no pages")
	}
	if total > MaxPDFPages {
		total = MaxPDFPages
	}

	var sb strings.Builder
	for n := 1; n <= total; n++ {
		page := reader.Page(n)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// Skip unreadable pages.
			continue
		}
		text = cleanText(strings.ReplaceAll(text, "\x00", ""))
		if text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(text)
		if sb.Len() > MaxTextSize {
			break
		}
	}
	return sb.String(), nil
}
