package session

// EventSink receives the session's outbound events. The websocket transport
// implements it; tests use in-memory fakes. Implementations must be safe for
// concurrent use: text and audio events for one utterance are emitted from
// different goroutines.
type EventSink interface {
	// UserTurn signals that the human participant should speak next.
	UserTurn()

	// Thinking signals that a turn evaluation is in progress.
	Thinking()

	// ResponseStart announces an agent beginning an utterance.
	ResponseStart(agent Participant)

	// ResponseChunk delivers an incremental text fragment.
	ResponseChunk(agentID, text string)

	// ResponseEnd delivers the completed utterance text.
	ResponseEnd(agent Participant, fullText string)

	// FirstAudio fires exactly once per utterance, before the first audio
	// chunk.
	FirstAudio(agentID string)

	// AudioChunk delivers incremental audio. The first chunk of an
	// utterance carries the WAV container header prefix.
	AudioChunk(agentID string, data []byte)

	// AudioEnd signals that the utterance's audio stream is complete.
	// Emitted exactly once per rendered utterance.
	AudioEnd(agentID string)

	// ConversationEnded signals the terminal state.
	ConversationEnded()

	// Error reports a non-fatal failure.
	Error(message string)
}
