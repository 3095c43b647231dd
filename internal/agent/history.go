package agent

import (
	"github.com/dgallion1/pdfchat/internal/llm"
	"github.com/dgallion1/pdfchat/internal/rag"
)

// Role tags a conversation turn. The JSON values match the chat_history
// wire format.
type Role string

const (
	RoleHuman Role = "human"
	RoleAI    Role = "ai"
)

// Turn is one entry of a chat history.
type Turn struct {
	Role    Role   `json:"type"`
	Content string `json:"content"`
}

// History is caller-owned. The agent never modifies it in place.
type History []Turn

// Validate rejects turns with an unknown role.
func (h History) Validate() error {
	for i, t := range h {
		if t.Role != RoleHuman && t.Role != RoleAI {
			return rag.Errorf(rag.KindValidation, "chat_history", "turn %d: unknown type %q", i, t.Role)
		}
	}
	return nil
}

// Append returns a new history with the question and answer added.
// The receiver's backing array is never written.
func (h History) Append(question, answer string) History {
	out := make(History, 0, len(h)+2)
	out = append(out, h...)
	return append(out,
		Turn{Role: RoleHuman, Content: question},
		Turn{Role: RoleAI, Content: answer},
	)
}

func (h History) messages() []llm.Message {
	out := make([]llm.Message, 0, len(h))
	for _, t := range h {
		role := llm.RoleUser
		if t.Role == RoleAI {
			role = llm.RoleAssistant
		}
		out = append(out, llm.Message{Role: role, Content: t.Content})
	}
	return out
}
