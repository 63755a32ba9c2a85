package ingest

import (
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/fichas/constants"
)

// AllowedExt checks if a file extension is in the allowed set (docx/pdf).
func AllowedExt(ext string) bool {
	ext = constants.NormalizeExt(ext)
	_, ok := constants.AllowedExtensions[ext]
	return ok
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") && base != "." && base != ".."
}

// Eligible reports whether a file path should be picked up: an allowed
// extension, not hidden, and not a Word lock file.
func Eligible(path string) bool {
	return AllowedExt(filepath.Ext(path)) && !IsHidden(path) && !constants.IsLockFile(path)
}
