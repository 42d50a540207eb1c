// Package session implements the turn-taking core of the interview practice
// service: the conversation log, the roster, the turn decision engine, the
// utterance generator, the speech renderer, and the per-session turn
// controller that sequences them.
package session

import (
	"context"
	"sync"
	"time"
)

// State is the turn controller's state. Exactly one participant is speaking
// (or being awaited) at any instant; illegal flag combinations are
// unrepresentable.
type State int

const (
	StateIdle State = iota
	StateDeciding
	StateEmittingText
	StateAwaitingAudioAck
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDeciding:
		return "deciding"
	case StateEmittingText:
		return "emitting_text"
	case StateAwaitingAudioAck:
		return "awaiting_audio_ack"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Session owns one conversation: its roster, its log, and its turn state.
// Created on session start, destroyed only by explicit deletion; deletion
// cancels the session context, which turns every in-flight callback into a
// no-op.
type Session struct {
	ID        string
	Scenario  string
	UserName  string
	UserRole  string
	Roster    []Participant
	CreatedAt time.Time

	log *ConversationLog

	mu               sync.Mutex
	state            State
	currentSpeakerID string
	pendingUserTurn  bool

	ctx    context.Context
	cancel context.CancelFunc
}

// Log returns the session's conversation log.
func (s *Session) Log() *ConversationLog {
	return s.log
}

// Context is canceled when the session is deleted.
func (s *Session) Context() context.Context {
	return s.ctx
}

// State returns the current controller state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// CurrentSpeakerID returns the agent currently awaiting playback
// acknowledgement, or "" when none. Non-empty exactly while the state is
// StateAwaitingAudioAck.
func (s *Session) CurrentSpeakerID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentSpeakerID
}

// Info is a read-only snapshot for the session-list endpoints.
type Info struct {
	ID        string        `json:"id"`
	Scenario  string        `json:"scenario"`
	UserName  string        `json:"user_name"`
	UserRole  string        `json:"user_role"`
	State     string        `json:"state"`
	Turns     int           `json:"turns"`
	Agents    []Participant `json:"agents"`
	CreatedAt time.Time     `json:"created_at"`
}

// Info snapshots the session.
func (s *Session) Info() Info {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()
	return Info{
		ID:        s.ID,
		Scenario:  s.Scenario,
		UserName:  s.UserName,
		UserRole:  s.UserRole,
		State:     state.String(),
		Turns:     s.log.Len(),
		Agents:    s.Roster,
		CreatedAt: s.CreatedAt,
	}
}
