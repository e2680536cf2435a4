package extract

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// plainText lists extensions passed through unchanged.
var plainText = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".tsv":      true,
	".log":      true,
	".rst":      true,
	".html":     true,
	".htm":      true,
}

// textLanguages maps code-like extensions to a fence language.
var textLanguages = map[string]string{
	".json": "json",
	".yaml": "yaml",
	".yml":  "yaml",
	".xml":  "xml",
	".toml": "toml",
	".go":   "go",
	".py":   "python",
	".js":   "javascript",
	".ts":   "typescript",
	".sql":  "sql",
	".sh":   "bash",
}

func textToMarkdown(filename string, raw []byte) (string, error) {
	if !utf8.Valid(raw) {
		return "", failed(filename, fmt.Errorf("not valid UTF-8 text"))
	}
	text := strings.TrimRight(string(raw), "\n")

	lang := textLanguages[strings.ToLower(filepath.Ext(filename))]
	if lang == "" {
		return text, nil
	}
	return "```" + lang + "\n" + text + "\n```", nil
}
