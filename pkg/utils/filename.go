package utils

import (
	"path/filepath"
	"strings"
)

const maxFilenameLen = 255

var filenameReplacer = strings.NewReplacer(
	"/", "_", "\\", "_", "<", "_", ">", "_", ":", "_",
	"\"", "_", "|", "_", "?", "_", "*", "_", "\x00", "_",
)

// SanitizeFilename replaces path separators and characters that are invalid
// on common filesystems, and caps the name at 255 bytes while keeping the
// extension.
func SanitizeFilename(name string) string {
	name = strings.TrimSpace(filenameReplacer.Replace(name))
	if name == "" || name == "." || name == ".." {
		return "untitled"
	}

	return FitFilename(name, maxFilenameLen)
}

// FitFilename shortens name to at most limit bytes, trimming whole runes from
// the base and keeping the extension when it fits.
func FitFilename(name string, limit int) string {
	if len(name) <= limit {
		return name
	}

	ext := filepath.Ext(name)
	if len(ext) >= limit {
		ext = ""
	}
	base := []rune(strings.TrimSuffix(name, ext))
	for len(base) > 0 && len(string(base))+len(ext) > limit {
		base = base[:len(base)-1]
	}
	return string(base) + ext
}

// Extension returns the lowercased extension of name without the dot.
func Extension(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}
