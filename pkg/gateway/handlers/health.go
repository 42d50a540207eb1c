package handlers

import (
	"encoding/json"
	"net/http"
	"sync/atomic"

	"github.com/mahesh-arinnovate/multi-chat/pkg/gateway/live/session"
)

// HealthHandler serves GET /healthz. Draining, when set, flips the response
// to 503 so load balancers stop routing new connections during shutdown.
type HealthHandler struct {
	Sessions *session.Manager
	Draining *atomic.Bool
}

func (h HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sessions := 0
	if h.Sessions != nil {
		sessions = h.Sessions.Count()
	}
	status := "ok"
	code := http.StatusOK
	if h.Draining != nil && h.Draining.Load() {
		status = "draining"
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":   status,
		"sessions": sessions,
	})
}
