// Package tokenizer defines the encoder contract shared by chunking and
// embedding usage accounting.
package tokenizer

// Encoder turns text into integer tokens and back. Decode(Encode(s)) must
// reproduce s for the chunker's character offsets to be exact; encoders that
// normalize text produce approximate offsets.
type Encoder interface {
	// Encode splits text into token ids.
	Encode(text string) []int

	// Decode joins token ids back into text.
	Decode(tokens []int) string

	// Count returns len(Encode(text)) without keeping the tokens.
	Count(text string) int

	// Name identifies the encoding, e.g. "cl100k_base".
	Name() string
}
