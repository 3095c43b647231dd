package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgallion1/pdfchat/internal/llm"
	"github.com/dgallion1/pdfchat/internal/rag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedModel replays canned responses and records every request.
type scriptedModel struct {
	mu        sync.Mutex
	responses []llm.Response
	err       error
	requests  []llm.Request
}

func (m *scriptedModel) Complete(_ context.Context, req llm.Request) (llm.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.err != nil {
		return llm.Response{}, m.err
	}
	if len(m.requests) > len(m.responses) {
		return m.responses[len(m.responses)-1], nil
	}
	return m.responses[len(m.requests)-1], nil
}

func (m *scriptedModel) ModelName() string { return "scripted" }

type echoTool struct {
	calls []string
	err   error
}

func (e *echoTool) Name() string        { return "pdf_search" }
func (e *echoTool) Description() string { return "Use this tool when answering the questions." }
func (e *echoTool) Parameters() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"query":{"type":"string"}}}`)
}
func (e *echoTool) Call(_ context.Context, args json.RawMessage) (string, error) {
	if e.err != nil {
		return "", e.err
	}
	var in struct{ Query string }
	if err := json.Unmarshal(args, &in); err != nil {
		return "", err
	}
	e.calls = append(e.calls, in.Query)
	return "The capital of France is Paris.", nil
}

func searchCall(id, query string) llm.ToolCall {
	return llm.ToolCall{ID: id, Name: "pdf_search", Arguments: json.RawMessage(fmt.Sprintf(`{"query":%q}`, query))}
}

func TestRun_AnswersDirectly(t *testing.T) {
	model := &scriptedModel{responses: []llm.Response{{Content: "Hello, I'm Max."}}}
	a := New(model, []Tool{&echoTool{}}, Config{Temperature: 0.7}, nil)

	res, err := a.Run(context.Background(), "Who are you?", nil)
	require.NoError(t, err)
	assert.Equal(t, "Hello, I'm Max.", res.Answer)
	assert.Equal(t, 1, res.Iterations)
	assert.Empty(t, res.Steps)

	req := model.requests[0]
	assert.Contains(t, req.System, "called Max")
	assert.Contains(t, req.System, "Give priority for information from the document.")
	assert.Equal(t, 0.7, req.Temperature)
	require.Len(t, req.Tools, 1)
	assert.Equal(t, "pdf_search", req.Tools[0].Name)
}

func TestRun_ToolCallThenAnswer(t *testing.T) {
	model := &scriptedModel{responses: []llm.Response{
		{ToolCalls: []llm.ToolCall{searchCall("c1", "capital of France")}},
		{Content: "The capital of France is Paris."},
	}}
	tool := &echoTool{}
	a := New(model, []Tool{tool}, Config{}, nil)

	history := History{{Role: RoleHuman, Content: "hi"}, {Role: RoleAI, Content: "hello"}}
	res, err := a.Run(context.Background(), "What is the capital of France?", history)
	require.NoError(t, err)
	assert.Contains(t, res.Answer, "Paris")
	assert.Equal(t, []string{"capital of France"}, tool.calls)
	require.Len(t, res.Steps, 1)
	assert.Equal(t, "pdf_search", res.Steps[0].Tool)

	// Second step sees history, question, and the scratchpad.
	msgs := model.requests[1].Messages
	require.Len(t, msgs, 5)
	assert.Equal(t, llm.RoleUser, msgs[0].Role)
	assert.Equal(t, llm.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "What is the capital of France?", msgs[2].Content)
	assert.Len(t, msgs[3].ToolCalls, 1)
	assert.Equal(t, llm.RoleTool, msgs[4].Role)
	assert.Equal(t, "c1", msgs[4].ToolCallID)
	assert.Contains(t, msgs[4].Content, "Paris")
}

func TestRun_IterationCeiling(t *testing.T) {
	model := &scriptedModel{responses: []llm.Response{
		{ToolCalls: []llm.ToolCall{searchCall("loop", "again")}},
	}}
	a := New(model, []Tool{&echoTool{}}, Config{MaxIterations: 3}, nil)

	res, err := a.Run(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Equal(t, FallbackAnswer, res.Answer)
	assert.True(t, res.Stopped)
	assert.Equal(t, 3, res.Iterations)
	assert.Len(t, model.requests, 3)
}

func TestRun_DefaultCeiling(t *testing.T) {
	model := &scriptedModel{responses: []llm.Response{
		{ToolCalls: []llm.ToolCall{searchCall("loop", "again")}},
	}}
	a := New(model, []Tool{&echoTool{}}, Config{}, nil)

	res, err := a.Run(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxIterations, res.Iterations)
}

func TestRun_TimeBudget(t *testing.T) {
	model := &scriptedModel{responses: []llm.Response{
		{ToolCalls: []llm.ToolCall{searchCall("loop", "again")}},
	}}
	a := New(model, []Tool{&echoTool{}}, Config{MaxDuration: time.Minute}, nil)
	clock := time.Unix(0, 0)
	a.nowFunc = func() time.Time {
		clock = clock.Add(25 * time.Second)
		return clock
	}

	res, err := a.Run(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Equal(t, FallbackAnswer, res.Answer)
	assert.Less(t, res.Iterations, DefaultMaxIterations)
}

func TestRun_UnknownToolIsReportedToModel(t *testing.T) {
	model := &scriptedModel{responses: []llm.Response{
		{ToolCalls: []llm.ToolCall{{ID: "x", Name: "web_search", Arguments: json.RawMessage(`{}`)}}},
		{Content: "Sorry, I can only search the PDF."},
	}}
	a := New(model, []Tool{&echoTool{}}, Config{}, nil)

	res, err := a.Run(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Equal(t, "Sorry, I can only search the PDF.", res.Answer)
	last := model.requests[1].Messages
	assert.Contains(t, last[len(last)-1].Content, "web_search is not a valid tool")
}

func TestRun_MalformedArgumentsIsAgentError(t *testing.T) {
	model := &scriptedModel{responses: []llm.Response{
		{ToolCalls: []llm.ToolCall{{ID: "x", Name: "pdf_search", Arguments: json.RawMessage(`{"query":`)}}},
	}}
	a := New(model, []Tool{&echoTool{}}, Config{}, nil)

	_, err := a.Run(context.Background(), "q", nil)
	require.Error(t, err)
	assert.Equal(t, rag.KindAgent, rag.KindOf(err))
}

func TestRun_ModelFailures(t *testing.T) {
	cases := map[string]struct {
		err  error
		kind rag.Kind
	}{
		"unreachable":  {errors.New("dial tcp: connection refused"), rag.KindAgent},
		"rate limited": {&llm.APIError{StatusCode: 429, Message: "slow"}, rag.KindAgent},
		"timeout":      {fmt.Errorf("post: %w", context.DeadlineExceeded), rag.KindTimeout},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			a := New(&scriptedModel{err: tc.err}, nil, Config{}, nil)
			_, err := a.Run(context.Background(), "q", nil)
			require.Error(t, err)
			assert.Equal(t, tc.kind, rag.KindOf(err))
		})
	}
}

func TestRun_EmptyResponseIsAgentError(t *testing.T) {
	a := New(&scriptedModel{responses: []llm.Response{{Content: "  "}}}, nil, Config{}, nil)
	_, err := a.Run(context.Background(), "q", nil)
	assert.Equal(t, rag.KindAgent, rag.KindOf(err))
}

func TestRun_ToolErrorKeepsItsKind(t *testing.T) {
	model := &scriptedModel{responses: []llm.Response{
		{ToolCalls: []llm.ToolCall{searchCall("c", "x")}},
	}}
	tool := &echoTool{err: rag.E(rag.KindEmbedding, "index.query", errors.New("bad vector"))}
	a := New(model, []Tool{tool}, Config{}, nil)

	_, err := a.Run(context.Background(), "q", nil)
	assert.Equal(t, rag.KindEmbedding, rag.KindOf(err))
}

func TestRun_DoesNotMutateHistory(t *testing.T) {
	model := &scriptedModel{responses: []llm.Response{{Content: "answer"}}}
	a := New(model, nil, Config{}, nil)

	history := make(History, 1, 4)
	history[0] = Turn{Role: RoleHuman, Content: "first"}
	_, err := a.Run(context.Background(), "q", history)
	require.NoError(t, err)

	assert.Len(t, history, 1)
	assert.Equal(t, History{{Role: RoleHuman, Content: "first"}}, history)
}

func TestSystemPrompt_Persona(t *testing.T) {
	assert.True(t, strings.HasPrefix(SystemPrompt(""), "You are a friendly assistant called Max."))
	assert.Contains(t, SystemPrompt("Ada"), "called Ada")

	a := New(&scriptedModel{}, nil, Config{SystemPrompt: "custom"}, nil)
	assert.Equal(t, "custom", a.System())
}

func TestHistory_AppendAndValidate(t *testing.T) {
	h := make(History, 1, 8)
	h[0] = Turn{Role: RoleHuman, Content: "a"}

	next := h.Append("q", "ans")
	require.Len(t, next, 3)
	assert.Equal(t, Turn{Role: RoleHuman, Content: "q"}, next[1])
	assert.Equal(t, Turn{Role: RoleAI, Content: "ans"}, next[2])

	// The original backing array is untouched.
	assert.Equal(t, Turn{}, h[:2][1])

	assert.NoError(t, next.Validate())
	err := History{{Role: "system", Content: "x"}}.Validate()
	assert.Equal(t, rag.KindValidation, rag.KindOf(err))
}

func TestHistory_JSONShape(t *testing.T) {
	raw, err := json.Marshal(History{}.Append("q", "a"))
	require.NoError(t, err)
	assert.JSONEq(t, `[{"type":"human","content":"q"},{"type":"ai","content":"a"}]`, string(raw))
}
