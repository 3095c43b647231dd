package parser

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/dgallion1/pdfchat/internal/document"
	pdflib "github.com/ledongthuc/pdf"
)

// PDFParser handles PDF files. It tries the Go library first,
// then falls back to pdftotext if enabled and available.
type PDFParser struct {
	FallbackPdftotext bool
	PdftotextTimeout  time.Duration
}

// DefaultPdftotextTimeout bounds one pdftotext run.
const DefaultPdftotextTimeout = 30 * time.Second

func newPDFParser(opts Options) *PDFParser {
	return &PDFParser{FallbackPdftotext: opts.PDFFallbackPdftotext, PdftotextTimeout: opts.PdftotextTimeout}
}

func (p *PDFParser) Parse(ctx context.Context, r io.Reader, filename string) ([]document.Page, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}

	pages, err := extractPDFPages(data)
	if (err != nil || !HasText(pages)) && p.FallbackPdftotext {
		if fallback, ferr := p.pdftotext(ctx, data); ferr == nil {
			pages, err = fallback, nil
		} else if ctx.Err() != nil {
			return nil, fmt.Errorf("extract pdf text: %w", ctx.Err())
		}
	}
	if err != nil {
		return nil, fmt.Errorf("extract pdf text: %w", err)
	}
	return pages, nil
}

func extractPDFPages(data []byte) (pages []document.Page, err error) {
	// The pdf library panics on some malformed cross-reference tables.
	defer func() {
		if rec := recover(); rec != nil {
			pages, err = nil, fmt.Errorf("malformed pdf: %v", rec)
		}
	}()

	reader, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		pages = append(pages, document.Page{Number: i, Text: text})
	}
	return pages, nil
}

func (p *PDFParser) pdftotext(ctx context.Context, data []byte) ([]document.Page, error) {
	timeout := p.PdftotextTimeout
	if timeout <= 0 {
		timeout = DefaultPdftotextTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tmp, err := os.CreateTemp("", "pdfchat-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	out, err := exec.CommandContext(ctx, "pdftotext", "-layout", tmpPath, "-").Output()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("pdftotext: %w", ctxErr)
		}
		return nil, fmt.Errorf("pdftotext: %w", err)
	}
	return splitPages(string(out)), nil
}

// splitPages splits pdftotext output on form feeds, keeping page numbers.
func splitPages(text string) []document.Page {
	var pages []document.Page
	for i, raw := range strings.Split(text, "\f") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		pages = append(pages, document.Page{Number: i + 1, Text: raw})
	}
	return pages
}
