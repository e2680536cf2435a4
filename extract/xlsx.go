package extract

import (
	"bytes"
	"strings"

	"github.com/xuri/excelize/v2"
)

// xlsxToMarkdown renders every sheet as a markdown table headed by the
// sheet name. The first row is the table header.
func xlsxToMarkdown(filename string, raw []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		return "", failed(filename, err)
	}
	defer f.Close()

	var sections []string
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", failed(filename, err)
		}
		sections = append(sections, "## "+sheet+"\n\n"+markdownTable(rows))
	}
	return strings.Join(sections, "\n\n"), nil
}

// markdownTable renders rows as a pipe table. Short rows are padded to the
// widest row.
func markdownTable(rows [][]string) string {
	width := 0
	for _, row := range rows {
		width = max(width, len(row))
	}
	if width == 0 {
		return "_(empty)_"
	}

	var sb strings.Builder
	writeRow := func(cells []string) {
		sb.WriteString("|")
		for i := 0; i < width; i++ {
			cell := ""
			if i < len(cells) {
				cell = escapeCell(cells[i])
			}
			sb.WriteString(" " + cell + " |")
		}
		sb.WriteString("\n")
	}

	writeRow(rows[0])
	sb.WriteString("|" + strings.Repeat(" --- |", width) + "\n")
	for _, row := range rows[1:] {
		writeRow(row)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", "<br>")
}
