// Package extract turns uploaded file bytes into plain text.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/papercomputeco/shelf/pkg/utils"
)

var (
	// ErrUnsupportedType is returned for extensions with no registered extractor.
	ErrUnsupportedType = errors.New("unsupported file type")

	// ErrUnreadable is returned when bytes cannot be decoded as text.
	ErrUnreadable = errors.New("file content is not readable text")
)

// Extractor produces text from a file's raw bytes.
type Extractor interface {
	Extract(data []byte, filename string) (string, error)
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(data []byte, filename string) (string, error)

func (f ExtractorFunc) Extract(data []byte, filename string) (string, error) {
	return f(data, filename)
}

// Registry dispatches on the lowercased file extension.
type Registry struct {
	byExt map[string]Extractor
}

// NewRegistry returns a registry with the built-in text and HTML extractors.
func NewRegistry() *Registry {
	r := &Registry{byExt: make(map[string]Extractor)}

	plain := ExtractorFunc(PlainText)
	for _, ext := range []string{"txt", "text", "md", "markdown", "csv", "tsv", "json", "log", "rst"} {
		r.Register(ext, plain)
	}

	html := ExtractorFunc(HTML)
	r.Register("html", html)
	r.Register("htm", html)

	return r
}

// Register sets the extractor for ext (without the dot).
func (r *Registry) Register(ext string, e Extractor) {
	r.byExt[strings.ToLower(strings.TrimPrefix(ext, "."))] = e
}

// Supports reports whether filename has a registered extractor.
func (r *Registry) Supports(filename string) bool {
	_, ok := r.byExt[utils.Extension(filename)]
	return ok
}

// Extensions lists the registered extensions in sorted order.
func (r *Registry) Extensions() []string {
	out := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		out = append(out, ext)
	}
	slices.Sort(out)
	return out
}

func (r *Registry) Extract(data []byte, filename string) (string, error) {
	ext := utils.Extension(filename)
	e, ok := r.byExt[ext]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, ext)
	}
	return e.Extract(data, filename)
}

var bom = []byte{0xEF, 0xBB, 0xBF}

// PlainText decodes UTF-8 text, dropping a byte order mark and normalizing
// line endings to "\n".
func PlainText(data []byte, _ string) (string, error) {
	data = bytes.TrimPrefix(data, bom)
	if !utf8.Valid(data) {
		return "", ErrUnreadable
	}

	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n"), nil
}
