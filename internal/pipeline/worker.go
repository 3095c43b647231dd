package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgallion1/pdfchat/internal/agent"
	"github.com/dgallion1/pdfchat/internal/chunker"
	"github.com/dgallion1/pdfchat/internal/document"
	"github.com/dgallion1/pdfchat/internal/embedding"
	"github.com/dgallion1/pdfchat/internal/index"
	"github.com/dgallion1/pdfchat/internal/llm"
	"github.com/dgallion1/pdfchat/internal/parser"
	"github.com/dgallion1/pdfchat/internal/rag"
	"github.com/dgallion1/pdfchat/internal/retriever"
	"github.com/google/uuid"
)

// Worker builds a Session from a document. It holds no per-document
// state and may be reused.
type Worker struct {
	embedder embedding.Embedder
	model    llm.ChatModel
	opts     Options
	log      *slog.Logger
}

func NewWorker(emb embedding.Embedder, model llm.ChatModel, opts Options, log *slog.Logger) *Worker {
	return &Worker{embedder: emb, model: model, opts: opts, log: log}
}

// Process runs extract → chunk → index → retriever → agent for doc,
// recording progress on job. The returned Session is complete; nothing
// is returned on failure.
func (w *Worker) Process(ctx context.Context, job *Job, doc document.Document) (*Session, error) {
	log := w.log.With("job_id", job.ID, "filename", doc.Filename)

	// Phase 1: Parse
	job.SetStatus(StatusParsing, "parsing")
	pages, err := w.parse(ctx, doc)
	if err != nil {
		job.Fail("parsing", err)
		log.Error("parse failed", "error", err)
		return nil, err
	}

	// Phase 2: Chunk
	job.SetStatus(StatusChunking, "chunking")
	passages, err := chunker.Split(pages, w.opts.Chunk)
	if err != nil {
		err = rag.E(rag.KindValidation, "chunk", err)
		job.Fail("chunking", err)
		return nil, err
	}
	units := w.units(pages, passages)
	job.SetProgress(Progress{Pages: len(pages), Passages: len(passages)})
	log.Info("chunked document", "pages", len(pages), "passages", len(passages), "index_unit", w.opts.IndexUnit, "units", len(units))

	// Phase 3: Embed and index
	job.SetStatus(StatusEmbedding, "embedding")
	start := time.Now()
	ix, err := index.Build(ctx, w.embedder, units, w.opts.Index)
	if err != nil {
		job.Fail("embedding", err)
		log.Error("index build failed", "error", err, "kind", rag.KindOf(err))
		return nil, err
	}
	job.SetProgress(Progress{Pages: len(pages), Passages: len(passages), Indexed: ix.Len()})
	log.Info("index built", "units", ix.Len(), "dimensions", ix.Dimensions(), "duration_ms", time.Since(start).Milliseconds())

	// Phase 4: Bind retriever and agent
	id := uuid.NewString()
	sessionLog := w.log.With("session_id", id)
	tool := retriever.New(ix, w.opts.RetrievalK, sessionLog)
	s := &Session{
		ID:             id,
		Filename:       doc.Filename,
		ContentHash:    job.ContentHash,
		Pages:          len(pages),
		Passages:       len(passages),
		IndexUnit:      w.opts.IndexUnit,
		EmbeddingModel: w.embedder.ModelName(),
		CreatedAt:      time.Now(),
		index:          ix,
		retriever:      tool,
		agent:          agent.New(w.model, []agent.Tool{tool}, w.opts.Agent, sessionLog),
	}
	return s, nil
}

func (w *Worker) parse(ctx context.Context, doc document.Document) ([]document.Page, error) {
	const op = "extract"
	if len(doc.Data) == 0 {
		return nil, rag.Errorf(rag.KindValidation, op, "empty upload")
	}
	p, err := parser.ForDocument(doc.Filename, doc.Data, w.opts.Parser)
	if err != nil {
		return nil, rag.E(rag.KindValidation, op, err)
	}
	pages, err := p.Parse(ctx, bytes.NewReader(doc.Data), doc.Filename)
	if err != nil {
		return nil, rag.E(rag.KindExtraction, op, err)
	}
	if !parser.HasText(pages) {
		return nil, rag.Errorf(rag.KindExtraction, op, "%s: no extractable text", doc.Filename)
	}
	return pages, nil
}

// units picks what to embed according to the configured index unit.
func (w *Worker) units(pages []document.Page, passages []document.Passage) []index.Unit {
	if w.opts.IndexUnit == UnitPage {
		out := make([]index.Unit, 0, len(pages))
		for _, p := range pages {
			if strings.TrimSpace(p.Text) == "" {
				continue
			}
			out = append(out, index.Unit{Text: p.Text, Page: p.Number})
		}
		return out
	}
	out := make([]index.Unit, 0, len(passages))
	for _, p := range passages {
		out = append(out, index.Unit{Text: p.Text, Page: p.Page, Offset: p.Offset})
	}
	return out
}

// ParseIndexUnit validates a configured index unit name.
func ParseIndexUnit(s string) (IndexUnit, error) {
	switch u := IndexUnit(strings.ToLower(strings.TrimSpace(s))); u {
	case "", UnitPassage:
		return UnitPassage, nil
	case UnitPage:
		return UnitPage, nil
	default:
		return "", fmt.Errorf("unknown index unit %q (want passage or page)", s)
	}
}
