package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mahesh-arinnovate/multi-chat/pkg/gateway/live/session"
)

// SessionsHandler serves the read-only session REST surface:
// GET /v1/sessions, GET /v1/sessions/{id}, DELETE /v1/sessions/{id}.
type SessionsHandler struct {
	Sessions *session.Manager
}

func (h SessionsHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"sessions": h.Sessions.List()})
}

func (h SessionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctrl, err := h.Sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, ctrl.Session().Info())
}

func (h SessionsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Sessions.Delete(chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(v)
}
