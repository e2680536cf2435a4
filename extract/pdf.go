package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// pdfToMarkdown renders each page's plain text as a "## Page N" section.
// The PDF parser panics on some malformed inputs; those are reported as
// ErrFailed.
func pdfToMarkdown(filename string, raw []byte) (md string, err error) {
	defer func() {
		if r := recover(); r != nil {
			md, err = "", failed(filename, fmt.Errorf("pdf parser: %v", r))
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", failed(filename, err)
	}

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", failed(filename, fmt.Errorf("page %d: %w", i, err))
		}

		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "## Page %d\n\n%s\n", i, strings.TrimSpace(text))
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}
