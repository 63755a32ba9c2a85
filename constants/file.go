package constants

import (
	"path/filepath"
	"strings"
)

// Document formats accepted for ingestion.
const (
	FormatDOCX = "DOCX"
	FormatPDF  = "PDF"
)

// FileTypes holds the allowed values for the format column in document_job.
var FileTypes = []string{FormatDOCX, FormatPDF}

// AllowedExtensions holds the file extensions picked up by ingestion.
var AllowedExtensions = map[string]struct{}{
	"docx": {},
	"pdf":  {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// FormatForPath maps a file path to its document format, or "" when unsupported.
func FormatForPath(path string) string {
	switch NormalizeExt(filepath.Ext(path)) {
	case "docx":
		return FormatDOCX
	case "pdf":
		return FormatPDF
	default:
		return ""
	}
}

// IsLockFile reports whether name is a Word owner file ("~$ficha.docx").
func IsLockFile(name string) bool {
	return strings.HasPrefix(filepath.Base(name), "~$")
}
