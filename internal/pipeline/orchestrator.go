package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgallion1/pdfchat/internal/agent"
	"github.com/dgallion1/pdfchat/internal/chunker"
	"github.com/dgallion1/pdfchat/internal/document"
	"github.com/dgallion1/pdfchat/internal/embedding"
	"github.com/dgallion1/pdfchat/internal/index"
	"github.com/dgallion1/pdfchat/internal/llm"
	"github.com/dgallion1/pdfchat/internal/parser"
	"github.com/dgallion1/pdfchat/internal/rag"
)

// Options configures how sessions are built.
type Options struct {
	Chunk      chunker.Config
	IndexUnit  IndexUnit
	Index      index.Options
	RetrievalK int
	Agent      agent.Config
	Parser     parser.Options
	// RetryTimeouts wraps the providers so timed-out calls are retried
	// with backoff.
	RetryTimeouts bool
	JobTTL        time.Duration
}

// DefaultOptions returns the default RAG settings.
func DefaultOptions() Options {
	return Options{
		Chunk:      chunker.DefaultConfig(),
		IndexUnit:  UnitPassage,
		RetrievalK: 3,
		Agent: agent.Config{
			Persona:       agent.DefaultPersona,
			Temperature:   0.7,
			MaxIterations: agent.DefaultMaxIterations,
		},
		RetryTimeouts: true,
		JobTTL:        time.Hour,
	}
}

// Orchestrator owns the single active Session. Ingests build a new
// Session off to the side and publish it with one atomic store; asks load
// the pointer once and run entirely against that Session.
type Orchestrator struct {
	worker  *Worker
	jobs    *JobStore
	log     *slog.Logger
	current atomic.Pointer[Session]

	ingestMu sync.Mutex

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrchestrator wires the providers into a pipeline.
func NewOrchestrator(emb embedding.Embedder, model llm.ChatModel, opts Options, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	if opts.IndexUnit == "" {
		opts.IndexUnit = UnitPassage
	}
	if opts.RetryTimeouts {
		emb = retryingEmbedder{Embedder: emb, log: log}
		model = retryingModel{ChatModel: model, log: log}
	}
	return &Orchestrator{
		worker: NewWorker(emb, model, opts, log),
		jobs:   NewJobStore(opts.JobTTL),
		log:    log,
	}
}

// Start launches the job history janitor.
func (o *Orchestrator) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
}

// Stop waits for background goroutines to exit.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()
}

// Ingest replaces the active Session with one built from doc. A concurrent
// ingest is rejected with rag.ErrIngestInProgress. On failure the previous
// Session stays active.
func (o *Orchestrator) Ingest(ctx context.Context, doc document.Document) (SessionInfo, error) {
	if !o.ingestMu.TryLock() {
		return SessionInfo{}, rag.ErrIngestInProgress
	}
	defer o.ingestMu.Unlock()

	job := newJob(doc.Filename, doc.Data)
	o.jobs.Put(job)

	start := time.Now()
	s, err := o.worker.Process(ctx, job, doc)
	if err != nil {
		return SessionInfo{}, err
	}

	prev := o.current.Swap(s)
	job.Complete(s.ID)

	attrs := []any{"session_id", s.ID, "filename", s.Filename, "duration_ms", time.Since(start).Milliseconds()}
	if prev != nil {
		attrs = append(attrs, "replaced_session_id", prev.ID)
	}
	o.log.Info("session activated", attrs...)
	return s.Info(), nil
}

// Ask answers question against the active Session.
func (o *Orchestrator) Ask(ctx context.Context, question string, history agent.History) (Answer, error) {
	s := o.current.Load()
	if s == nil {
		return Answer{}, rag.ErrNoSession
	}
	start := time.Now()
	ans, err := s.Ask(ctx, question, history)
	if err != nil {
		o.log.Warn("ask failed", "session_id", s.ID, "kind", rag.KindOf(err), "error", err)
		return Answer{}, err
	}
	o.log.Info("question answered", "session_id", s.ID, "tool_calls", len(ans.Steps), "stopped", ans.Stopped, "duration_ms", time.Since(start).Milliseconds())
	return ans, nil
}

// Current returns the active Session, or nil before the first ingest.
func (o *Orchestrator) Current() *Session {
	return o.current.Load()
}

// GetJob returns an ingest job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// Jobs lists recent ingest attempts, newest first.
func (o *Orchestrator) Jobs() []JobSnapshot {
	return o.jobs.List()
}
