// Package chunker partitions text into overlapping, token-bounded windows.
package chunker

import (
	"strings"
	"unicode/utf8"

	"github.com/papercomputeco/shelf/pkg/errs"
	"github.com/papercomputeco/shelf/pkg/tokenizer"
)

const (
	DefaultMaxTokens     = 500
	DefaultOverlapTokens = 50
)

// Draft is one chunk before it has an embedding.
//
// StartChar and EndChar are rune offsets into the source text computed by
// decoding token prefixes. They are exact for encoders whose decode is a true
// inverse and approximate otherwise, so they are never used to slice text.
type Draft struct {
	Index       int
	Text        string
	TokenCount  int
	TokenOffset int
	StartChar   int
	EndChar     int
}

// Chunker splits text with a fixed window size and overlap.
type Chunker struct {
	encoder tokenizer.Encoder
	max     int
	overlap int
}

// New validates the window parameters. maxTokens must be positive and
// overlapTokens must satisfy 0 <= overlap < max, otherwise the window would
// never advance.
func New(encoder tokenizer.Encoder, maxTokens, overlapTokens int) (*Chunker, error) {
	if encoder == nil {
		return nil, errs.New(errs.KindConfiguration, "chunker requires an encoder")
	}
	if maxTokens <= 0 {
		return nil, errs.Newf(errs.KindConfiguration, "max tokens must be positive, got %d", maxTokens)
	}
	if overlapTokens < 0 || overlapTokens >= maxTokens {
		return nil, errs.Newf(errs.KindConfiguration,
			"overlap tokens must be in [0, %d), got %d", maxTokens, overlapTokens)
	}

	return &Chunker{encoder: encoder, max: maxTokens, overlap: overlapTokens}, nil
}

// MaxTokens returns the configured window size.
func (c *Chunker) MaxTokens() int { return c.max }

// OverlapTokens returns the configured overlap.
func (c *Chunker) OverlapTokens() int { return c.overlap }

// Chunk splits text into drafts in document order. Whitespace-only input
// yields no drafts. Windows that decode to whitespace are dropped and the
// remaining drafts are numbered densely from zero.
func (c *Chunker) Chunk(text string) []Draft {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	tokens := c.encoder.Encode(text)
	n := len(tokens)
	if n == 0 {
		return nil
	}

	step := c.max - c.overlap
	drafts := make([]Draft, 0, n/step+1)

	// prefixStart/prefixRunes cache the rune length of the decoded prefix
	// tokens[:prefixStart] so each window only decodes what it advanced over.
	prefixStart, prefixRunes := 0, 0

	for start := 0; start < n; start += step {
		end := min(start+c.max, n)
		window := tokens[start:end]
		decoded := c.encoder.Decode(window)

		prefixRunes += utf8.RuneCountInString(c.encoder.Decode(tokens[prefixStart:start]))
		prefixStart = start

		trimmed := strings.TrimSpace(decoded)
		if trimmed != "" {
			drafts = append(drafts, Draft{
				Index:       len(drafts),
				Text:        trimmed,
				TokenCount:  len(window),
				TokenOffset: start,
				StartChar:   prefixRunes,
				EndChar:     prefixRunes + utf8.RuneCountInString(decoded),
			})
		}

		if end == n {
			break
		}
	}

	return drafts
}
