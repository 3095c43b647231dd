// Package retriever exposes an index to the agent as the pdf_search tool.
package retriever

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/dgallion1/pdfchat/internal/index"
	"github.com/dgallion1/pdfchat/internal/rag"
)

const (
	ToolName        = "pdf_search"
	ToolDescription = "Use this tool when answering the questions."
	DefaultK        = 3
)

var parameters = json.RawMessage(`{"type":"object","properties":{"query":{"type":"string","description":"query to look up in the document"}},"required":["query"]}`)

// Searcher answers top-k similarity queries. *index.Index satisfies it.
type Searcher interface {
	Query(ctx context.Context, text string, k int) ([]index.Hit, error)
}

// Tool is stateless beyond its searcher and k.
type Tool struct {
	searcher Searcher
	k        int
	log      *slog.Logger
}

// New returns a pdf_search tool over s. k <= 0 selects DefaultK.
func New(s Searcher, k int, log *slog.Logger) *Tool {
	if k <= 0 {
		k = DefaultK
	}
	if log == nil {
		log = slog.Default()
	}
	return &Tool{searcher: s, k: k, log: log}
}

func (t *Tool) Name() string                { return ToolName }
func (t *Tool) Description() string         { return ToolDescription }
func (t *Tool) Parameters() json.RawMessage { return parameters }

// K returns the fixed number of passages returned per search.
func (t *Tool) K() int { return t.k }

// Search returns the ranked hits for query with provenance.
func (t *Tool) Search(ctx context.Context, query string) ([]index.Hit, error) {
	return t.searcher.Query(ctx, query, t.k)
}

// Call decodes {"query": "..."} and returns the hit texts separated by
// blank lines.
func (t *Tool) Call(ctx context.Context, args json.RawMessage) (string, error) {
	var in struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return "", rag.E(rag.KindAgent, ToolName, err)
	}
	if strings.TrimSpace(in.Query) == "" {
		return "", rag.Errorf(rag.KindAgent, ToolName, "missing query argument")
	}

	hits, err := t.Search(ctx, in.Query)
	if err != nil {
		return "", err
	}

	pages := make([]int, len(hits))
	texts := make([]string, len(hits))
	for i, h := range hits {
		pages[i] = h.Page
		texts[i] = h.Text
	}
	t.log.Debug("pdf_search", "query", in.Query, "hits", len(hits), "pages", pages)
	return strings.Join(texts, "\n\n"), nil
}
