package payload

import (
	"mime"
	"path/filepath"
	"strings"
)

// DefaultMimeType is used when a filename's type cannot be determined.
const DefaultMimeType = "application/octet-stream"

// documentTypes covers common document and image extensions that system MIME
// tables often lack or disagree on.
var documentTypes = map[string]string{
	".pdf":  "application/pdf",
	".md":   "text/markdown",
	".txt":  "text/plain",
	".csv":  "text/csv",
	".tsv":  "text/tab-separated-values",
	".json": "application/json",
	".yaml": "application/yaml",
	".yml":  "application/yaml",
	".xml":  "application/xml",
	".html": "text/html",
	".htm":  "text/html",
	".rtf":  "application/rtf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xls":  "application/vnd.ms-excel",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".ppt":  "application/vnd.ms-powerpoint",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".bmp":  "image/bmp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".heic": "image/heic",
	".heif": "image/heif",
	".svg":  "image/svg+xml",
}

// LookupType returns the MIME type (without parameters) for filename's
// extension and whether it was recognized.
func LookupType(filename string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		return "", false
	}
	if t, ok := documentTypes[ext]; ok {
		return t, true
	}

	t := mime.TypeByExtension(ext)
	if t == "" {
		return "", false
	}
	mediaType, _, err := mime.ParseMediaType(t)
	if err != nil {
		return "", false
	}
	return mediaType, true
}

// Classify returns the MIME type for filename, or DefaultMimeType.
func Classify(filename string) string {
	if t, ok := LookupType(filename); ok {
		return t
	}
	return DefaultMimeType
}

// IsImage reports whether mimeType is an image type.
func IsImage(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/")
}

// DataURL builds a base64 data URL.
func DataURL(mimeType, base64Data string) string {
	return "data:" + mimeType + ";base64," + base64Data
}
