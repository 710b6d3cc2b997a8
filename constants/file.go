package constants

import "strings"

// PDFContentType is the only media type the pipeline accepts. The extraction
// service parses PDFs exclusively, so everything else is rejected at intake.
const PDFContentType = "application/pdf"

// DefaultMaxFileSize caps uploads at 5 MiB unless overridden via config.
const DefaultMaxFileSize int64 = 5 * 1024 * 1024

// AllowedExtensions holds the file extensions accepted for directory ingestion.
var AllowedExtensions = map[string]struct{}{
	"pdf": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
