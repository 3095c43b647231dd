package chunker

import (
	"fmt"
	"unicode/utf8"

	"github.com/dgallion1/pdfchat/internal/document"
)

// Config controls chunking behavior. Sizes are in characters (runes).
type Config struct {
	ChunkSize    int // Window length.
	ChunkOverlap int // Characters shared by consecutive windows of one page.
}

// DefaultConfig returns the default splitter settings.
func DefaultConfig() Config {
	return Config{
		ChunkSize:    200,
		ChunkOverlap: 20,
	}
}

// Validate checks that overlap is non-negative and smaller than the window.
func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be > 0, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("chunk overlap must be >= 0 and < chunk size (%d), got %d", c.ChunkSize, c.ChunkOverlap)
	}
	return nil
}

// Split breaks every page into overlapping windows. Pages are split
// independently; output follows page order, then window order.
func Split(pages []document.Page, cfg Config) ([]document.Passage, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var passages []document.Passage
	for _, page := range pages {
		for _, w := range splitText(page.Text, cfg.ChunkSize, cfg.ChunkOverlap) {
			passages = append(passages, document.Passage{
				Text:          w.text,
				Index:         len(passages),
				Page:          page.Number,
				Offset:        w.offset,
				TokenEstimate: EstimateTokens(w.text),
			})
		}
	}
	return passages, nil
}

type window struct {
	text   string
	offset int
}

// splitText slides a size-rune window with the given overlap over text.
// The last window ends exactly at the end of the text. Windows are cut at
// rune boundaries of the original bytes, so every window is a substring of
// text even when text holds invalid UTF-8 (each stray byte counts as a rune).
func splitText(text string, size, overlap int) []window {
	bounds := runeBounds(text)
	n := len(bounds) - 1
	if n == 0 {
		return nil
	}

	step := size - overlap
	var out []window
	for start := 0; ; start += step {
		end := min(start+size, n)
		out = append(out, window{text: text[bounds[start]:bounds[end]], offset: start})
		if end == n {
			break
		}
	}
	return out
}

// runeBounds returns the byte offset of every rune start plus len(text).
func runeBounds(text string) []int {
	bounds := make([]int, 0, len(text)+1)
	for i := 0; i < len(text); {
		bounds = append(bounds, i)
		_, w := utf8.DecodeRuneInString(text[i:])
		i += w
	}
	return append(bounds, len(text))
}

// Count returns how many windows a text of length runes produces.
func Count(length int, cfg Config) int {
	switch {
	case length <= 0:
		return 0
	case length <= cfg.ChunkSize:
		return 1
	}
	step := cfg.ChunkSize - cfg.ChunkOverlap
	return (length - cfg.ChunkOverlap + step - 1) / step
}
