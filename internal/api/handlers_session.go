package api

import (
	"net/http"

	"github.com/dgallion1/pdfchat/internal/rag"
)

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	cur := s.orchestrator.Current()
	if cur == nil {
		s.writeError(w, r, rag.ErrNoSession)
		return
	}
	writeJSON(w, http.StatusOK, cur.Info())
}
