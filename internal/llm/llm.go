// Package llm talks to chat-completion providers that support tool calling.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Role of a message in a conversation.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry in the conversation sent to the model. Assistant
// messages may carry ToolCalls; tool messages answer one call by ID.
type Message struct {
	Role       Role
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
}

// ToolCall is a model's request to invoke a named tool.
type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// ToolSpec describes a tool to the model. Parameters is a JSON Schema object.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// Request is one reasoning step.
type Request struct {
	System      string
	Messages    []Message
	Tools       []ToolSpec
	Temperature float64
	MaxTokens   int
}

// Response is the model's reply: either text, tool calls, or both.
type Response struct {
	Content   string
	ToolCalls []ToolCall
}

// ChatModel completes a conversation, possibly requesting tool calls.
type ChatModel interface {
	Complete(ctx context.Context, req Request) (Response, error)
	ModelName() string
}

// Config selects and configures a chat provider.
type Config struct {
	Provider string // "openai" or "anthropic"
	APIKey   string
	BaseURL  string
	Model    string
	Timeout  time.Duration
	Stats    *LLMStats
}

// New builds the provider named by cfg.Provider.
func New(cfg Config) (ChatModel, error) {
	switch cfg.Provider {
	case "openai", "":
		return NewOpenAI(cfg)
	case "anthropic":
		return NewAnthropic(cfg)
	default:
		return nil, fmt.Errorf("unknown chat provider: %q", cfg.Provider)
	}
}

// APIError is a non-2xx response from a provider. RateLimited is set for 429.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("llm api status %d: %s", e.StatusCode, truncate(e.Message, 200))
}

// RateLimited reports whether the provider rejected the call for rate limits.
func (e *APIError) RateLimited() bool { return e.StatusCode == 429 }

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// record feeds a call's latency and outcome into stats when configured.
func record(stats *LLMStats, start time.Time, err error) {
	if stats == nil {
		return
	}
	ms := time.Since(start).Milliseconds()
	if err != nil {
		stats.RecordFailure(ms)
		return
	}
	stats.Record(ms)
}
