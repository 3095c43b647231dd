package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/dgallion1/pdfchat/internal/agent"
	"github.com/dgallion1/pdfchat/internal/index"
	"github.com/dgallion1/pdfchat/internal/rag"
	"github.com/dgallion1/pdfchat/internal/retriever"
)

// IndexUnit selects what the index embeds.
type IndexUnit string

const (
	// UnitPassage indexes chunker output.
	UnitPassage IndexUnit = "passage"
	// UnitPage indexes whole extracted pages.
	UnitPage IndexUnit = "page"
)

// Session is everything bound to one loaded document. It is fully built
// before it becomes visible and never modified afterwards.
type Session struct {
	ID             string
	Filename       string
	ContentHash    string
	Pages          int
	Passages       int
	IndexUnit      IndexUnit
	EmbeddingModel string
	CreatedAt      time.Time

	index     *index.Index
	retriever *retriever.Tool
	agent     *agent.Agent
}

// SessionInfo is the JSON view of a Session.
type SessionInfo struct {
	ID             string    `json:"session_id"`
	Filename       string    `json:"filename"`
	ContentHash    string    `json:"content_hash"`
	Pages          int       `json:"pages"`
	Passages       int       `json:"passages"`
	IndexedUnits   int       `json:"indexed_units"`
	IndexUnit      IndexUnit `json:"index_unit"`
	Dimensions     int       `json:"dimensions"`
	EmbeddingModel string    `json:"embedding_model"`
	CreatedAt      time.Time `json:"created_at"`
}

func (s *Session) Info() SessionInfo {
	return SessionInfo{
		ID:             s.ID,
		Filename:       s.Filename,
		ContentHash:    s.ContentHash,
		Pages:          s.Pages,
		Passages:       s.Passages,
		IndexedUnits:   s.index.Len(),
		IndexUnit:      s.IndexUnit,
		Dimensions:     s.index.Dimensions(),
		EmbeddingModel: s.EmbeddingModel,
		CreatedAt:      s.CreatedAt,
	}
}

// Answer is the outcome of one question.
type Answer struct {
	Text    string
	History agent.History
	Steps   []agent.Step
	Stopped bool
}

// Ask runs the agent against this session. On success the returned
// history is history plus the question and answer; history itself is
// left untouched. On failure no history is returned.
func (s *Session) Ask(ctx context.Context, question string, history agent.History) (Answer, error) {
	if strings.TrimSpace(question) == "" {
		return Answer{}, rag.Errorf(rag.KindValidation, "ask", "No question provided")
	}
	if err := history.Validate(); err != nil {
		return Answer{}, err
	}

	res, err := s.agent.Run(ctx, question, history)
	if err != nil {
		return Answer{}, err
	}
	return Answer{
		Text:    res.Answer,
		History: history.Append(question, res.Answer),
		Steps:   res.Steps,
		Stopped: res.Stopped,
	}, nil
}

// Search runs the session's retriever directly, bypassing the agent.
func (s *Session) Search(ctx context.Context, query string) ([]index.Hit, error) {
	return s.retriever.Search(ctx, query)
}
