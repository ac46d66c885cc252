// Package tiktoken provides a tokenizer.Encoder backed by OpenAI's BPE
// encodings.
package tiktoken

import (
	"fmt"

	tk "github.com/pkoukk/tiktoken-go"

	"github.com/papercomputeco/shelf/pkg/tokenizer"
)

// DefaultEncoding is used for models tiktoken does not recognize.
const DefaultEncoding = "cl100k_base"

// Encoder wraps a tiktoken encoding.
type Encoder struct {
	name string
	enc  *tk.Tiktoken
}

var _ tokenizer.Encoder = (*Encoder)(nil)

// New loads the named encoding (e.g. "cl100k_base", "o200k_base").
func New(encoding string) (*Encoder, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}

	enc, err := tk.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("loading encoding %q: %w", encoding, err)
	}

	return &Encoder{name: encoding, enc: enc}, nil
}

// ForModel loads the encoding a given model uses, falling back to
// DefaultEncoding when the model is unknown to tiktoken.
func ForModel(model string) (*Encoder, error) {
	enc, err := tk.EncodingForModel(model)
	if err != nil {
		return New(DefaultEncoding)
	}
	return &Encoder{name: model, enc: enc}, nil
}

func (e *Encoder) Encode(text string) []int {
	return e.enc.Encode(text, nil, nil)
}

func (e *Encoder) Decode(tokens []int) string {
	return e.enc.Decode(tokens)
}

func (e *Encoder) Count(text string) int {
	return len(e.Encode(text))
}

func (e *Encoder) Name() string {
	return e.name
}
