package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/mahesh-arinnovate/multi-chat/pkg/core"
	"github.com/mahesh-arinnovate/multi-chat/pkg/core/types"
)

// fakeProvider scripts completion responses. Complete pops from completions
// in order; StreamComplete pops from streams, defaulting to a single token.
type fakeProvider struct {
	mu          sync.Mutex
	completions []string
	completeErr error
	streams     [][]string
	streamErr   error
	requests    []*types.CompletionRequest
	gate        chan struct{}
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) setGate(gate chan struct{}) {
	p.mu.Lock()
	p.gate = gate
	p.mu.Unlock()
}

func (p *fakeProvider) Complete(_ context.Context, req *types.CompletionRequest) (*types.Completion, error) {
	p.mu.Lock()
	gate := p.gate
	p.mu.Unlock()
	if gate != nil {
		<-gate
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	if p.completeErr != nil {
		return nil, p.completeErr
	}
	if len(p.completions) == 0 {
		return nil, errors.New("no scripted completion")
	}
	text := p.completions[0]
	p.completions = p.completions[1:]
	return &types.Completion{Text: text}, nil
}

func (p *fakeProvider) StreamComplete(_ context.Context, req *types.CompletionRequest) (core.TokenStream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	if p.streamErr != nil {
		return nil, p.streamErr
	}
	tokens := []string{"Let's begin with your background."}
	if len(p.streams) > 0 {
		tokens = p.streams[0]
		p.streams = p.streams[1:]
	}
	return &fakeTokenStream{tokens: tokens}, nil
}

func (p *fakeProvider) requestCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

type fakeTokenStream struct {
	tokens []string
}

func (s *fakeTokenStream) Next() (string, error) {
	if len(s.tokens) == 0 {
		return "", io.EOF
	}
	t := s.tokens[0]
	s.tokens = s.tokens[1:]
	return t, nil
}

func (s *fakeTokenStream) Close() error { return nil }

type sinkEvent struct {
	name string
	arg  string
}

// recordingSink captures events in arrival order. Safe for concurrent use
// like the real websocket sink.
type recordingSink struct {
	mu     sync.Mutex
	events []sinkEvent
	audio  [][]byte
}

func (s *recordingSink) add(name, arg string) {
	s.mu.Lock()
	s.events = append(s.events, sinkEvent{name: name, arg: arg})
	s.mu.Unlock()
}

func (s *recordingSink) UserTurn() { s.add("user_turn", "") }
func (s *recordingSink) Thinking() { s.add("thinking", "") }

func (s *recordingSink) ResponseStart(agent Participant) { s.add("response_start", agent.ID) }

func (s *recordingSink) ResponseChunk(agentID, text string) { s.add("response_chunk", text) }

func (s *recordingSink) ResponseEnd(agent Participant, fullText string) {
	s.add("response_end", fullText)
}

func (s *recordingSink) FirstAudio(agentID string) { s.add("first_audio", agentID) }

func (s *recordingSink) AudioChunk(agentID string, data []byte) {
	s.mu.Lock()
	s.audio = append(s.audio, append([]byte(nil), data...))
	s.events = append(s.events, sinkEvent{name: "audio_chunk", arg: agentID})
	s.mu.Unlock()
}

func (s *recordingSink) AudioEnd(agentID string) { s.add("audio_end", agentID) }
func (s *recordingSink) ConversationEnded()      { s.add("conversation_ended", "") }
func (s *recordingSink) Error(message string)    { s.add("error", message) }

func (s *recordingSink) count(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.events {
		if e.name == name {
			n++
		}
	}
	return n
}

func (s *recordingSink) names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.events))
	for i, e := range s.events {
		out[i] = e.name
	}
	return out
}

func (s *recordingSink) last(name string) (sinkEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].name == name {
			return s.events[i], true
		}
	}
	return sinkEvent{}, false
}

func (s *recordingSink) waitCount(t *testing.T, name string, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.count(name) >= n {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d %q events; saw %v", n, name, s.names())
}

func waitState(t *testing.T, sess *Session, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if sess.State() == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("state = %v, want %v", sess.State(), want)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestSession creates a manager and one session. The provider's first
// completion is consumed by roster generation; scripting a non-roster line
// there lands the session on the default two-agent panel.
func newTestSession(t *testing.T, p *fakeProvider, delay time.Duration) (*Manager, *Controller, *recordingSink) {
	t.Helper()
	sink := &recordingSink{}
	m := NewManager(Deps{
		Provider:       p,
		Model:          "test-model",
		Logger:         testLogger(),
		PostAudioDelay: delay,
	})
	ctrl, err := m.Create(context.Background(), "Backend engineer screen", "Priya", "Backend_Engineer", sink)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return m, ctrl, sink
}

func TestControllerFullTurnCycle(t *testing.T) {
	p := &fakeProvider{completions: []string{
		"fallback to default panel",
		"AGENT:Sarah_HR_Manager\nWelcome in, thanks for joining us today.",
	}}
	_, ctrl, sink := newTestSession(t, p, 5*time.Millisecond)
	sess := ctrl.Session()

	ctrl.TriggerTurn()
	sink.waitCount(t, "response_end", 1)
	sink.waitCount(t, "audio_end", 1)

	names := sink.names()
	order := []string{"thinking", "response_start", "response_chunk", "response_end", "audio_end"}
	idx := 0
	for _, n := range names {
		if idx < len(order) && n == order[idx] {
			idx++
		}
	}
	if idx != len(order) {
		t.Fatalf("events out of order: %v", names)
	}

	if got := sess.State(); got != StateAwaitingAudioAck {
		t.Fatalf("state = %v, want %v", got, StateAwaitingAudioAck)
	}
	if got := sess.CurrentSpeakerID(); got != "Sarah_HR_Manager" {
		t.Fatalf("current speaker = %q", got)
	}
	last, ok := sess.Log().Last()
	if !ok || last.Speaker != "Sarah_HR_Manager" {
		t.Fatalf("log last = %+v", last)
	}
	if last.Text != "Welcome in, thanks for joining us today." {
		t.Fatalf("log text = %q", last.Text)
	}

	// Acknowledge playback; the next turn triggers after the delay. The
	// scripted completions are exhausted, so the decision falls back to
	// round-robin: the agent after Sarah, generated via streaming.
	ctrl.HandlePlaybackComplete("Sarah_HR_Manager")
	sink.waitCount(t, "response_end", 2)

	ev, _ := sink.last("response_start")
	if ev.arg != "David_Tech_Lead" {
		t.Fatalf("second speaker = %q, want David_Tech_Lead", ev.arg)
	}
	if sess.Log().Len() != 2 {
		t.Fatalf("log len = %d, want 2", sess.Log().Len())
	}
}

func TestControllerBusyTriggerDropped(t *testing.T) {
	p := &fakeProvider{completions: []string{
		"fallback to default panel",
		"AGENT:Sarah_HR_Manager\nGood morning.",
	}}
	_, ctrl, sink := newTestSession(t, p, time.Minute)

	ctrl.TriggerTurn()
	sink.waitCount(t, "response_end", 1)
	waitState(t, ctrl.Session(), StateAwaitingAudioAck)

	ctrl.TriggerTurn()
	time.Sleep(20 * time.Millisecond)
	if got := sink.count("thinking"); got != 1 {
		t.Fatalf("thinking count = %d, want 1 (busy trigger must be dropped)", got)
	}
	if got := ctrl.Session().State(); got != StateAwaitingAudioAck {
		t.Fatalf("state = %v, want %v", got, StateAwaitingAudioAck)
	}
}

func TestControllerStaleAndDuplicateAcksIgnored(t *testing.T) {
	p := &fakeProvider{completions: []string{
		"fallback to default panel",
		"AGENT:Sarah_HR_Manager\nGood morning.",
	}}
	_, ctrl, _ := newTestSession(t, p, time.Minute)
	sess := ctrl.Session()

	ctrl.TriggerTurn()
	waitState(t, sess, StateAwaitingAudioAck)

	// Mismatched agent id: ignored.
	ctrl.HandlePlaybackComplete("David_Tech_Lead")
	if got := sess.State(); got != StateAwaitingAudioAck {
		t.Fatalf("state after mismatched ack = %v", got)
	}

	// Matching ack returns to idle (case-insensitive on the id).
	ctrl.HandlePlaybackComplete("sarah_hr_manager")
	if got := sess.State(); got != StateIdle {
		t.Fatalf("state after ack = %v, want %v", got, StateIdle)
	}
	if got := sess.CurrentSpeakerID(); got != "" {
		t.Fatalf("current speaker = %q, want empty", got)
	}

	// Duplicate ack after returning to idle: ignored.
	ctrl.HandlePlaybackComplete("Sarah_HR_Manager")
	if got := sess.State(); got != StateIdle {
		t.Fatalf("state after duplicate ack = %v", got)
	}
}

func TestControllerUserDecision(t *testing.T) {
	p := &fakeProvider{completions: []string{
		"fallback to default panel",
		"USER",
	}}
	_, ctrl, sink := newTestSession(t, p, 5*time.Millisecond)
	ctrl.Session().Log().Append("Sarah_HR_Manager", "Tell me about yourself.")

	ctrl.TriggerTurn()
	sink.waitCount(t, "user_turn", 1)
	waitState(t, ctrl.Session(), StateIdle)
}

func TestControllerEndDecision(t *testing.T) {
	p := &fakeProvider{completions: []string{
		"fallback to default panel",
		"END_CONVERSATION",
	}}
	_, ctrl, sink := newTestSession(t, p, 5*time.Millisecond)
	sess := ctrl.Session()
	sess.Log().Append("Sarah_HR_Manager", "That wraps it up, thank you.")

	ctrl.TriggerTurn()
	sink.waitCount(t, "conversation_ended", 1)
	waitState(t, sess, StateEnded)

	// Ended is terminal: messages are still recorded, nothing else moves.
	before := sink.count("thinking")
	ctrl.HandleUserMessage("Wait, one more question.")
	ctrl.TriggerTurn()
	time.Sleep(20 * time.Millisecond)
	if got := sink.count("thinking"); got != before {
		t.Fatalf("thinking count changed after end: %d -> %d", before, got)
	}
	last, _ := sess.Log().Last()
	if last.Speaker != UserSpeakerID {
		t.Fatalf("user message not recorded after end: %+v", last)
	}
	if got := sess.State(); got != StateEnded {
		t.Fatalf("state = %v, want %v", got, StateEnded)
	}
}

func TestControllerUserMessageWhileBusyQueuesTurn(t *testing.T) {
	p := &fakeProvider{completions: []string{
		"fallback to default panel",
		"USER",
	}}
	_, ctrl, sink := newTestSession(t, p, 5*time.Millisecond)
	sess := ctrl.Session()
	sess.Log().Append("Sarah_HR_Manager", "Walk me through your last project.")

	gate := make(chan struct{})
	p.setGate(gate)
	ctrl.TriggerTurn()

	// The decision is in flight; a user message must be recorded and
	// deferred, not dropped.
	ctrl.HandleUserMessage("I led the migration to event-driven ingestion.")
	if got := sess.Log().Len(); got != 2 {
		t.Fatalf("log len = %d, want 2", got)
	}

	// Release the in-flight decision. Closing never blocks, whether or not
	// Complete has reached the gate yet, and later completions pass freely.
	close(gate)

	// The deferred message re-triggers a second decision cycle. Its
	// scripted completions are exhausted, so it falls back to round-robin
	// and an agent speaks.
	sink.waitCount(t, "thinking", 2)
	sink.waitCount(t, "response_end", 1)
}

func TestControllerGenerationFailureRecovers(t *testing.T) {
	p := &fakeProvider{
		completions: []string{
			"fallback to default panel",
			"AGENT:Sarah_HR_Manager", // no utterance text, generator must run
		},
		streamErr: errors.New("upstream unavailable"),
	}
	_, ctrl, sink := newTestSession(t, p, 5*time.Millisecond)
	sess := ctrl.Session()

	ctrl.TriggerTurn()
	sink.waitCount(t, "error", 1)
	waitState(t, sess, StateIdle)

	// Nothing was appended; the conversation is unchanged.
	if got := sess.Log().Len(); got != 0 {
		t.Fatalf("log len = %d, want 0", got)
	}
	if got := sink.count("response_end"); got != 0 {
		t.Fatalf("response_end count = %d, want 0", got)
	}
}

func TestControllerDeletedSessionSilencesCallbacks(t *testing.T) {
	p := &fakeProvider{completions: []string{"fallback to default panel"}}
	m, ctrl, sink := newTestSession(t, p, 5*time.Millisecond)

	if err := m.Delete(ctrl.Session().ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	before := p.requestCount()
	ctrl.TriggerTurn()
	ctrl.HandleUserMessage("Hello?")
	ctrl.HandlePlaybackComplete("Sarah_HR_Manager")
	time.Sleep(20 * time.Millisecond)

	if got := len(sink.names()); got != 0 {
		t.Fatalf("events after deletion: %v", sink.names())
	}
	if got := p.requestCount(); got != before {
		t.Fatalf("provider called after deletion: %d -> %d", before, got)
	}
}
