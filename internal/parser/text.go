package parser

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/dgallion1/pdfchat/internal/document"
)

// TextParser handles plain text files. Form feeds delimit pages;
// without them the whole file is a single page.
type TextParser struct{}

func (p *TextParser) Parse(_ context.Context, r io.Reader, filename string) ([]document.Page, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var sb strings.Builder
	for scanner.Scan() {
		sb.WriteString(scanner.Text())
		sb.WriteString("\n")
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return splitPages(sb.String()), nil
}
