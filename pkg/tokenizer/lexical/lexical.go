// Package lexical provides a dependency-free tokenizer.Encoder that splits on
// word and punctuation boundaries. Each token keeps its leading whitespace, so
// decoding is an exact inverse of encoding. It needs no downloaded vocabulary
// and is used offline and in tests.
package lexical

import (
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/papercomputeco/shelf/pkg/tokenizer"
)

// Name is the encoding name reported by the lexical encoder.
const Name = "lexical"

// pieceBytes is how many bytes of text one token id carries. The remaining
// high byte holds a marker bit that records the length.
const pieceBytes = strconv.IntSize/8 - 1

var tokenPattern = regexp.MustCompile(`\s*[\p{L}\p{N}_]+|\s*[^\s\p{L}\p{N}_]|\s+`)

// Encoder packs the bytes of each token into its id, so it keeps no
// vocabulary and any Encoder decodes any other's tokens. Words longer than
// pieceBytes become several tokens, split on rune boundaries.
type Encoder struct{}

var _ tokenizer.Encoder = (*Encoder)(nil)

func New() *Encoder {
	return &Encoder{}
}

func (e *Encoder) Encode(text string) []int {
	var out []int
	each(text, func(id int) { out = append(out, id) })
	return out
}

func (e *Encoder) Decode(tokens []int) string {
	var b strings.Builder
	for _, t := range tokens {
		unpack(&b, t)
	}
	return b.String()
}

func (e *Encoder) Count(text string) int {
	n := 0
	each(text, func(int) { n++ })
	return n
}

func (e *Encoder) Name() string {
	return Name
}

// each emits the ids of text in order.
func each(text string, emit func(int)) {
	for _, word := range tokenPattern.FindAllString(text, -1) {
		start := 0
		for i := 0; i < len(word); {
			_, size := utf8.DecodeRuneInString(word[i:])
			switch {
			case size > pieceBytes:
				// Only reachable where int is 32 bits wide.
				if start < i {
					emit(pack(word[start:i]))
				}
				r, _ := utf8.DecodeRuneInString(word[i:])
				emit(-int(r) - 1)
				start = i + size
			case i+size-start > pieceBytes:
				emit(pack(word[start:i]))
				start = i
			}
			i += size
		}
		if start < len(word) {
			emit(pack(word[start:]))
		}
	}
}

// pack stores s (at most pieceBytes long) below a leading marker bit.
func pack(s string) int {
	id := 1
	for i := 0; i < len(s); i++ {
		id = id<<8 | int(s[i])
	}
	return id
}

func unpack(b *strings.Builder, id int) {
	if id < 0 {
		b.WriteRune(rune(-id - 1))
		return
	}
	var buf [8]byte
	n := 0
	for id > 1 && n < len(buf) {
		buf[n] = byte(id)
		id >>= 8
		n++
	}
	piece := buf[:n]
	slices.Reverse(piece)
	b.Write(piece)
}
