package api

import (
	"encoding/json"
	"net/http"

	"github.com/dgallion1/pdfchat/internal/rag"
	"github.com/go-chi/chi/v5/middleware"
)

// statusFor maps an error kind onto an HTTP status.
func statusFor(kind rag.Kind) int {
	switch kind {
	case rag.KindValidation:
		return http.StatusBadRequest
	case rag.KindNoSession, rag.KindBusy:
		return http.StatusConflict
	case rag.KindExtraction:
		return http.StatusUnprocessableEntity
	case rag.KindEmbedding, rag.KindAgent:
		return http.StatusBadGateway
	case rag.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as {"error", "kind"} with the mapped status.
// Unclassified errors are logged and hidden behind a generic message.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := rag.KindOf(err)
	msg := err.Error()
	if kind == rag.KindInternal {
		s.log.Error("internal error", "error", err, "request_id", middleware.GetReqID(r.Context()))
		msg = "internal error"
	}
	writeJSON(w, statusFor(kind), map[string]string{"error": msg, "kind": string(kind)})
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
