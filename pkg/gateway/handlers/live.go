package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mahesh-arinnovate/multi-chat/pkg/core"
	"github.com/mahesh-arinnovate/multi-chat/pkg/gateway/config"
	"github.com/mahesh-arinnovate/multi-chat/pkg/gateway/live/protocol"
	"github.com/mahesh-arinnovate/multi-chat/pkg/gateway/live/session"
	"github.com/mahesh-arinnovate/multi-chat/pkg/gateway/ratelimit"
)

// LiveHandler handles /v1/live websocket connections. Each connection hosts
// exactly one session: the first frame must be start_session, and the
// session is destroyed when the connection closes.
type LiveHandler struct {
	Config   config.Config
	Logger   *slog.Logger
	Sessions *session.Manager
}

func (h LiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, r, core.NewInvalidRequestError("method not allowed"))
		return
	}
	if !h.originAllowed(r) {
		writeError(w, r, core.NewInvalidRequestError("origin is not allowed"))
		return
	}

	upgrader := websocket.Upgrader{
		// Origin already checked above against the configured allowlist.
		CheckOrigin: func(*http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	if h.Config.WSMaxMessageBytes > 0 {
		conn.SetReadLimit(h.Config.WSMaxMessageBytes)
	}

	handshakeTimeout := h.Config.WSHandshakeTimeout
	if handshakeTimeout <= 0 {
		handshakeTimeout = 5 * time.Second
	}
	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, firstFrame, err := conn.ReadMessage()
	if err != nil {
		h.writeDirectError(conn, "failed to read start_session")
		return
	}

	decoded, err := protocol.DecodeClientMessage(firstFrame)
	if err != nil {
		h.writeDirectError(conn, err.Error())
		return
	}
	start, ok := decoded.(protocol.StartSession)
	if !ok {
		h.writeDirectError(conn, "first frame must be start_session")
		return
	}

	sink := newWSEventSink(h.Logger)
	ctrl, err := h.Sessions.Create(r.Context(),
		strings.TrimSpace(start.Scenario),
		strings.TrimSpace(start.UserName),
		strings.TrimSpace(start.UserRole),
		sink)
	if err != nil {
		h.writeDirectError(conn, err.Error())
		return
	}
	sess := ctrl.Session()
	logger := h.Logger.With("session_id", sess.ID)

	writerDone := make(chan error, 1)
	go func() {
		writerDone <- writeFrames(conn, sink.frames, h.Config.WSPingInterval, h.Config.WSWriteTimeout)
	}()

	agents := make([]protocol.AgentInfo, 0, len(sess.Roster))
	for _, p := range sess.Roster {
		agents = append(agents, protocol.AgentInfo{
			ID:     p.ID,
			Name:   p.Name,
			Role:   p.Role,
			Gender: string(p.Gender),
		})
	}
	sink.send(protocol.SessionStarted{
		Type:      "session_started",
		SessionID: sess.ID,
		Agents:    agents,
	})

	// An agent opens the conversation.
	ctrl.TriggerTurn()

	limiter := ratelimit.NewCommandLimiter(h.Config.LiveCommandsPerSecond, h.Config.LiveCommandBurst)
	_ = conn.SetReadDeadline(time.Time{})

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("read loop ended", "error", err)
			}
			break
		}
		if !limiter.Allow() {
			sink.Error("rate limit exceeded")
			continue
		}

		decoded, err := protocol.DecodeClientMessage(frame)
		if err != nil {
			sink.Error(err.Error())
			continue
		}
		switch msg := decoded.(type) {
		case protocol.StartSession:
			sink.Error("session already started")
		case protocol.UserMessage:
			ctrl.HandleUserMessage(msg.Text)
		case protocol.PlaybackComplete:
			ctrl.HandlePlaybackComplete(msg.AgentID)
		}
	}

	// Teardown order matters: deleting the session cancels its context and
	// silences in-flight turn goroutines before the sink stops accepting.
	_ = h.Sessions.Delete(sess.ID)
	sink.Close()
	select {
	case <-writerDone:
	case <-time.After(2 * time.Second):
	}
	logger.Info("connection closed")
}

func (h LiveHandler) originAllowed(r *http.Request) bool {
	if len(h.Config.CORSAllowedOrigins) == 0 {
		return true
	}
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	_, ok := h.Config.CORSAllowedOrigins[origin]
	return ok
}

// writeDirectError is for failures before the writer goroutine exists.
func (h LiveHandler) writeDirectError(conn *websocket.Conn, message string) {
	data, err := json.Marshal(protocol.ErrorEvent{Type: "error", Message: message})
	if err != nil {
		return
	}
	deadline := time.Now().Add(5 * time.Second)
	_ = conn.SetWriteDeadline(deadline)
	_ = conn.WriteMessage(websocket.TextMessage, data)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, ""), deadline)
}
