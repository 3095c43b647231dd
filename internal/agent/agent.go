// Package agent drives a tool-calling chat model through a bounded
// reason/act loop until it produces an answer.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/dgallion1/pdfchat/internal/llm"
	"github.com/dgallion1/pdfchat/internal/rag"
)

// Tool is something the model may invoke by name.
type Tool interface {
	Name() string
	Description() string
	// Parameters is the JSON Schema of the arguments object.
	Parameters() json.RawMessage
	Call(ctx context.Context, args json.RawMessage) (string, error)
}

// Config holds the per-session agent settings.
type Config struct {
	Persona       string
	SystemPrompt  string // overrides the persona template when set
	Temperature   float64
	MaxTokens     int
	MaxIterations int           // model consultations per question
	MaxDuration   time.Duration // wall-clock budget per question, 0 = none
}

const DefaultMaxIterations = 8

// State is a position in the per-question state machine.
type State int

const (
	StateStart State = iota
	StateReasoning
	StateToolCall
	StateFinal
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateReasoning:
		return "reasoning"
	case StateToolCall:
		return "tool_call"
	case StateFinal:
		return "final"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Step records one tool invocation made while answering.
type Step struct {
	Tool   string `json:"tool"`
	Input  string `json:"input"`
	Output string `json:"output"`
}

// Result is the outcome of Run.
type Result struct {
	Answer     string
	Steps      []Step
	Iterations int
	// Stopped is set when the answer is FallbackAnswer because a limit was hit.
	Stopped bool
}

// Agent is immutable after New and safe for concurrent Run calls.
type Agent struct {
	model   llm.ChatModel
	tools   map[string]Tool
	specs   []llm.ToolSpec
	names   []string
	system  string
	cfg     Config
	log     *slog.Logger
	nowFunc func() time.Time
}

// New binds model and tools under cfg.
func New(model llm.ChatModel, tools []Tool, cfg Config, log *slog.Logger) *Agent {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if log == nil {
		log = slog.Default()
	}
	a := &Agent{
		model:   model,
		tools:   make(map[string]Tool, len(tools)),
		system:  cfg.SystemPrompt,
		cfg:     cfg,
		log:     log,
		nowFunc: time.Now,
	}
	if a.system == "" {
		a.system = SystemPrompt(cfg.Persona)
	}
	for _, t := range tools {
		a.tools[t.Name()] = t
		a.names = append(a.names, t.Name())
		a.specs = append(a.specs, llm.ToolSpec{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return a
}

// System returns the instructions sent with every reasoning step.
func (a *Agent) System() string { return a.system }

// Run answers question given the prior history. history is read only.
func (a *Agent) Run(ctx context.Context, question string, history History) (Result, error) {
	const op = "agent.run"

	base := append(history.messages(), llm.Message{Role: llm.RoleUser, Content: question})
	var (
		scratch []llm.Message
		pending []llm.ToolCall
		res     Result
		state   = StateStart
		started = a.nowFunc()
	)

	for {
		switch state {
		case StateStart:
			state = StateReasoning

		case StateReasoning:
			if res.Iterations >= a.cfg.MaxIterations || a.overBudget(started) {
				a.log.Warn("agent stopped", "iterations", res.Iterations, "elapsed_ms", a.nowFunc().Sub(started).Milliseconds())
				res.Answer = FallbackAnswer
				res.Stopped = true
				return res, nil
			}
			res.Iterations++

			resp, err := a.model.Complete(ctx, llm.Request{
				System:      a.system,
				Messages:    slices.Concat(base, scratch),
				Tools:       a.specs,
				Temperature: a.cfg.Temperature,
				MaxTokens:   a.cfg.MaxTokens,
			})
			if err != nil {
				return Result{}, rag.E(rag.KindAgent, op, err)
			}

			if len(resp.ToolCalls) == 0 {
				if strings.TrimSpace(resp.Content) == "" {
					return Result{}, rag.Errorf(rag.KindAgent, op, "model returned neither an answer nor a tool call")
				}
				res.Answer = resp.Content
				state = StateFinal
				continue
			}
			pending = resp.ToolCalls
			scratch = append(scratch, llm.Message{Role: llm.RoleAssistant, Content: resp.Content, ToolCalls: pending})
			state = StateToolCall

		case StateToolCall:
			for _, call := range pending {
				out, err := a.invoke(ctx, call)
				if err != nil {
					return Result{}, err
				}
				res.Steps = append(res.Steps, Step{Tool: call.Name, Input: string(call.Arguments), Output: out})
				scratch = append(scratch, llm.Message{Role: llm.RoleTool, ToolCallID: call.ID, Content: out})
			}
			pending = nil
			state = StateReasoning

		case StateFinal:
			a.log.Debug("agent answered", "iterations", res.Iterations, "tool_calls", len(res.Steps))
			return res, nil
		}
	}
}

// invoke runs one tool call. An unknown tool is reported back to the model
// so it can correct itself; undecodable arguments abort the run.
func (a *Agent) invoke(ctx context.Context, call llm.ToolCall) (string, error) {
	const op = "agent.tool"

	tool, ok := a.tools[call.Name]
	if !ok {
		a.log.Warn("model requested unknown tool", "tool", call.Name)
		return fmt.Sprintf("%s is not a valid tool, try one of [%s].", call.Name, strings.Join(a.names, ", ")), nil
	}

	args := call.Arguments
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(args, &fields); err != nil {
		return "", rag.E(rag.KindAgent, op, fmt.Errorf("%s: malformed arguments %q: %w", call.Name, string(call.Arguments), err))
	}

	a.log.Debug("tool call", "tool", call.Name, "args", string(args))
	out, err := tool.Call(ctx, args)
	if err != nil {
		if rag.KindOf(err) != rag.KindInternal {
			return "", err
		}
		return "", rag.E(rag.KindAgent, op, fmt.Errorf("%s: %w", call.Name, err))
	}
	return out, nil
}

func (a *Agent) overBudget(started time.Time) bool {
	return a.cfg.MaxDuration > 0 && a.nowFunc().Sub(started) >= a.cfg.MaxDuration
}
