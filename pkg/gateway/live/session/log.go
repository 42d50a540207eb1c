package session

import (
	"sync"
	"time"
)

// Utterance is one entry in the conversation log. Speaker is UserSpeakerID
// or an agent id. Entries are never mutated after append.
type Utterance struct {
	Speaker string    `json:"speaker"`
	Text    string    `json:"text"`
	At      time.Time `json:"at"`
}

// ConversationLog is the append-only, ordered record of what has been said
// in one session. Insertion order is the sole timeline used for turn
// decisions.
type ConversationLog struct {
	mu      sync.Mutex
	entries []Utterance
	now     func() time.Time
}

// NewConversationLog creates an empty log.
func NewConversationLog() *ConversationLog {
	return &ConversationLog{now: time.Now}
}

// Append records an utterance.
func (l *ConversationLog) Append(speaker, text string) Utterance {
	l.mu.Lock()
	defer l.mu.Unlock()
	u := Utterance{Speaker: speaker, Text: text, At: l.now()}
	l.entries = append(l.entries, u)
	return u
}

// Snapshot returns a copy of all entries in insertion order.
func (l *ConversationLog) Snapshot() []Utterance {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Utterance, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of entries.
func (l *ConversationLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Last returns the most recent entry, if any.
func (l *ConversationLog) Last() (Utterance, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) == 0 {
		return Utterance{}, false
	}
	return l.entries[len(l.entries)-1], true
}

// lastAgentSpeaker returns the id of the most recent agent entry.
func lastAgentSpeaker(entries []Utterance) (string, bool) {
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Speaker != UserSpeakerID {
			return entries[i].Speaker, true
		}
	}
	return "", false
}

// trailingAgentRun counts consecutive agent entries at the end of the log.
func trailingAgentRun(entries []Utterance) int {
	run := 0
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Speaker == UserSpeakerID {
			break
		}
		run++
	}
	return run
}
