package parser

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgallion1/pdfchat/internal/document"
)

// Parser converts raw document bytes into ordered page texts.
type Parser interface {
	Parse(ctx context.Context, r io.Reader, filename string) ([]document.Page, error)
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".pdf":      true,
	".txt":      true,
	".md":       true,
	".markdown": true,
	".html":     true,
	".htm":      true,
	".docx":     true,
}

// Options tunes parser behaviour.
type Options struct {
	PDFFallbackPdftotext bool
	PdftotextTimeout     time.Duration // Zero means DefaultPdftotextTimeout.
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string, opts Options) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".pdf":
		return newPDFParser(opts), nil
	case ".txt":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".docx":
		return &DOCXParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %q", ext)
	}
}

// ForDocument picks a parser by extension, falling back to the PDF parser
// when the extension is missing or unknown but data starts like a PDF.
func ForDocument(filename string, data []byte, opts Options) (Parser, error) {
	if IsSupportedExtension(filename) {
		return ForFile(filename, opts)
	}
	if IsPDF(data) {
		return newPDFParser(opts), nil
	}
	return ForFile(filename, opts)
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// IsSupported reports whether ForDocument would accept filename and data.
func IsSupported(filename string, data []byte) bool {
	return IsSupportedExtension(filename) || IsPDF(data)
}

// pdfSniffLen bounds how far into the data the %PDF- header may appear.
// Readers tolerate leading garbage before it.
const pdfSniffLen = 1024

// IsPDF reports whether data carries a PDF header near its start.
func IsPDF(data []byte) bool {
	head := data[:min(len(data), pdfSniffLen)]
	return bytes.Contains(head, []byte("%PDF-"))
}

// HasText reports whether any page carries non-blank text.
func HasText(pages []document.Page) bool {
	for _, p := range pages {
		if strings.TrimSpace(p.Text) != "" {
			return true
		}
	}
	return false
}

// sectionCollector accumulates heading-delimited sections into pages.
// Text before the first heading becomes an untitled section.
type sectionCollector struct {
	pages   []document.Page
	title   string
	current strings.Builder
}

func (c *sectionCollector) heading(title string) {
	c.flush()
	c.title = title
}

func (c *sectionCollector) text(t string) {
	t = strings.TrimSpace(t)
	if t == "" {
		return
	}
	if c.current.Len() > 0 {
		c.current.WriteString("\n\n")
	}
	c.current.WriteString(t)
}

func (c *sectionCollector) flush() {
	t := strings.TrimSpace(c.current.String())
	c.current.Reset()
	if t == "" {
		return
	}
	c.pages = append(c.pages, document.Page{
		Number: len(c.pages) + 1,
		Title:  c.title,
		Text:   t,
	})
}

func (c *sectionCollector) done() []document.Page {
	c.flush()
	return c.pages
}
