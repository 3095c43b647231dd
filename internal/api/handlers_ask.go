package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dgallion1/pdfchat/internal/agent"
)

type askRequest struct {
	Question    string        `json:"question"`
	ChatHistory agent.History `json:"chat_history"`
}

type askResponse struct {
	Response    string        `json:"response"`
	ChatHistory agent.History `json:"chat_history"`
}

const maxAskBody = 4 << 20

func (s *Server) handleAskQuestion(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAskBody)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON body: " + err.Error(),
			"kind":  "validation",
		})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		jsonError(w, "No question provided", http.StatusBadRequest)
		return
	}

	ans, err := s.orchestrator.Ask(r.Context(), req.Question, req.ChatHistory)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, askResponse{Response: ans.Text, ChatHistory: ans.History})
}
