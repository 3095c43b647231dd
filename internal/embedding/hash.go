package embedding

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"
)

// Hash is an offline embedder using feature hashing over lowercased word
// tokens. It needs no network and is deterministic, which makes it useful
// for local runs and tests; its ranking is lexical rather than semantic.
type Hash struct {
	dims int
}

var _ Embedder = (*Hash)(nil)

// NewHash returns a hashing embedder with dims buckets (default 256).
func NewHash(dims int) *Hash {
	if dims <= 0 {
		dims = 256
	}
	return &Hash{dims: dims}
}

// EmbedBatch hashes every token of every text into a bucket count vector.
func (h *Hash) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, h.dims)
		for _, tok := range tokenize(text) {
			f := fnv.New32a()
			f.Write([]byte(tok))
			v[f.Sum32()%uint32(h.dims)]++
		}
		out[i] = v
	}
	return out, nil
}

func (h *Hash) Dimensions() int   { return h.dims }
func (h *Hash) ModelName() string { return "hash" }

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
