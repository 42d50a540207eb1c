package handlers

import (
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mahesh-arinnovate/multi-chat/pkg/gateway/live/protocol"
	"github.com/mahesh-arinnovate/multi-chat/pkg/gateway/live/session"
)

// wsEventSink marshals session events into protocol frames and queues them
// for the connection's writer goroutine. Events arrive from multiple session
// goroutines; queueing is the synchronization point. A full queue drops the
// frame rather than blocking the turn machinery on a slow client.
type wsEventSink struct {
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
	frames chan []byte
}

const sinkQueueSize = 256

func newWSEventSink(logger *slog.Logger) *wsEventSink {
	return &wsEventSink{
		logger: logger,
		frames: make(chan []byte, sinkQueueSize),
	}
}

func (s *wsEventSink) send(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("event marshal failed", "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.frames <- data:
	default:
		s.logger.Warn("outbound queue full, dropping frame", "bytes", len(data))
	}
}

// Close stops accepting events and lets the writer drain what is queued.
func (s *wsEventSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.frames)
}

func (s *wsEventSink) UserTurn() {
	s.send(protocol.UserTurn{Type: "user_turn"})
}

func (s *wsEventSink) Thinking() {
	s.send(protocol.AIThinking{Type: "ai_thinking"})
}

func (s *wsEventSink) ResponseStart(agent session.Participant) {
	s.send(protocol.AIResponseStart{
		Type:    "ai_response_start",
		AgentID: agent.ID,
		Name:    agent.Name,
		Gender:  string(agent.Gender),
	})
}

func (s *wsEventSink) ResponseChunk(agentID, text string) {
	s.send(protocol.AIResponseChunk{Type: "ai_response_chunk", AgentID: agentID, Text: text})
}

func (s *wsEventSink) ResponseEnd(agent session.Participant, fullText string) {
	s.send(protocol.AIResponseEnd{
		Type:    "ai_response_end",
		AgentID: agent.ID,
		Name:    agent.Name,
		Text:    fullText,
	})
}

func (s *wsEventSink) FirstAudio(agentID string) {
	s.send(protocol.TTSFirstAudio{Type: "tts_first_audio", AgentID: agentID})
}

func (s *wsEventSink) AudioChunk(agentID string, data []byte) {
	s.send(protocol.AIAudioChunk{
		Type:     "ai_audio_chunk",
		AgentID:  agentID,
		AudioB64: base64.StdEncoding.EncodeToString(data),
	})
}

func (s *wsEventSink) AudioEnd(agentID string) {
	s.send(protocol.AIAudioEnd{Type: "ai_audio_end", AgentID: agentID})
}

func (s *wsEventSink) ConversationEnded() {
	s.send(protocol.ConversationEnded{Type: "conversation_ended"})
}

func (s *wsEventSink) Error(message string) {
	s.send(protocol.ErrorEvent{Type: "error", Message: message})
}

// writeFrames owns all writes on the connection: queued frames, ping
// keepalive, and the closing handshake once the queue is drained.
func writeFrames(conn *websocket.Conn, frames <-chan []byte, pingInterval, writeTimeout time.Duration) error {
	if pingInterval <= 0 {
		pingInterval = 20 * time.Second
	}
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}

	pingTicker := time.NewTicker(pingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case frame, ok := <-frames:
			if !ok {
				deadline := time.Now().Add(writeTimeout)
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
				return nil
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return err
			}
		case <-pingTicker.C:
			deadline := time.Now().Add(writeTimeout)
			if err := conn.WriteControl(websocket.PingMessage, []byte("ping"), deadline); err != nil {
				return err
			}
		}
	}
}
