package session

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/mahesh-arinnovate/multi-chat/pkg/core"
)

// DefaultPostAudioDelay is the pause between a playback acknowledgement and
// the next turn trigger. It keeps back-to-back agent turns from feeling
// machine-gunned.
const DefaultPostAudioDelay = 500 * time.Millisecond

// Controller sequences one session's turns. It is the only writer of the
// session's state field; event sinks and the renderer run on goroutines it
// spawns, all bounded by the session context.
type Controller struct {
	sess      *Session
	engine    *Engine
	generator *Generator
	renderer  *Renderer
	sink      EventSink
	logger    *slog.Logger

	postAudioDelay time.Duration
}

// Session returns the controlled session.
func (c *Controller) Session() *Session {
	return c.sess
}

// TriggerTurn starts a decision cycle if the session is idle. Triggers that
// arrive while a turn is already in flight are dropped with a warning; the
// state machine has no queue, re-triggering happens on the acknowledgement
// path instead.
func (c *Controller) TriggerTurn() {
	c.sess.mu.Lock()
	switch c.sess.state {
	case StateIdle:
		c.sess.state = StateDeciding
	case StateEnded:
		c.sess.mu.Unlock()
		return
	default:
		state := c.sess.state
		c.sess.mu.Unlock()
		c.logger.Warn("turn trigger dropped, session busy",
			"session_id", c.sess.ID, "state", state.String())
		return
	}
	c.sess.mu.Unlock()
	go c.runTurn()
}

// HandleUserMessage records a user utterance and, when the session is idle,
// kicks off the next turn. When a turn is in flight the message is still
// appended (the log is append-only and always safe to record) and a turn is
// scheduled for when the session returns to idle.
func (c *Controller) HandleUserMessage(text string) {
	if c.sess.ctx.Err() != nil {
		return
	}
	c.sess.log.Append(UserSpeakerID, text)

	c.sess.mu.Lock()
	switch c.sess.state {
	case StateIdle:
		c.sess.mu.Unlock()
		c.TriggerTurn()
	case StateEnded:
		c.sess.mu.Unlock()
	default:
		c.sess.pendingUserTurn = true
		c.sess.mu.Unlock()
	}
}

// HandlePlaybackComplete processes a client acknowledgement that the given
// agent's audio finished playing. Acknowledgements that do not match the
// awaited speaker, including duplicates, are ignored. A matching
// acknowledgement returns the session to idle and schedules the next turn
// after a short delay.
func (c *Controller) HandlePlaybackComplete(agentID string) {
	c.sess.mu.Lock()
	if c.sess.state != StateAwaitingAudioAck || !strings.EqualFold(agentID, c.sess.currentSpeakerID) {
		state := c.sess.state
		c.sess.mu.Unlock()
		c.logger.Debug("stale playback acknowledgement ignored",
			"session_id", c.sess.ID, "agent_id", agentID, "state", state.String())
		return
	}
	c.sess.state = StateIdle
	c.sess.currentSpeakerID = ""
	// The scheduled trigger below subsumes any pending user turn.
	c.sess.pendingUserTurn = false
	c.sess.mu.Unlock()

	time.AfterFunc(c.postAudioDelay, func() {
		if c.sess.ctx.Err() != nil {
			return
		}
		c.TriggerTurn()
	})
}

// runTurn executes one full decision cycle. Entered only from TriggerTurn
// after the state moved to StateDeciding.
func (c *Controller) runTurn() {
	if c.sess.ctx.Err() != nil {
		return
	}
	c.sink.Thinking()

	entries := c.sess.log.Snapshot()
	decision := c.engine.Decide(c.sess.ctx, entries, c.sess.Roster,
		c.sess.Scenario, c.sess.UserName, c.sess.UserRole)
	if c.sess.ctx.Err() != nil {
		return
	}

	switch decision.Kind {
	case DecisionEnd:
		c.sess.mu.Lock()
		c.sess.state = StateEnded
		c.sess.currentSpeakerID = ""
		c.sess.mu.Unlock()
		c.sink.ConversationEnded()

	case DecisionUser:
		c.sink.UserTurn()
		c.backToIdle()

	case DecisionAgent:
		agent, ok := FindParticipant(c.sess.Roster, decision.AgentID)
		if !ok {
			c.logger.Error("decision named unknown agent",
				"session_id", c.sess.ID, "agent_id", decision.AgentID)
			c.backToIdle()
			return
		}
		c.runAgentTurn(agent, decision.Text, entries)
	}
}

func (c *Controller) runAgentTurn(agent Participant, text string, entries []Utterance) {
	c.sess.mu.Lock()
	c.sess.state = StateEmittingText
	c.sess.mu.Unlock()

	c.sink.ResponseStart(agent)

	if text != "" {
		c.sink.ResponseChunk(agent.ID, text)
	} else {
		streamed, err := c.streamUtterance(agent, entries)
		if err != nil {
			if c.sess.ctx.Err() == nil {
				c.logger.Error("utterance generation failed",
					"session_id", c.sess.ID, "agent_id", agent.ID, "error", err)
				c.sink.Error(fmt.Sprintf("%s could not respond", agent.Name))
			}
			// Nothing was appended; the conversation stays where it was.
			c.backToIdle()
			return
		}
		text = streamed
	}

	c.finishUtterance(agent, text)
}

// streamUtterance generates the agent's reply, forwarding each fragment to
// the sink as it arrives. The full text is returned only when the stream
// completes; a mid-stream failure discards the partial utterance.
func (c *Controller) streamUtterance(agent Participant, entries []Utterance) (string, error) {
	stream, err := c.generator.Generate(c.sess.ctx, agent, entries, c.sess.Roster,
		c.sess.Scenario, c.sess.UserName, c.sess.UserRole)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	var full strings.Builder
	for {
		frag, err := stream.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		if c.sess.ctx.Err() != nil {
			return "", c.sess.ctx.Err()
		}
		full.WriteString(frag)
		c.sink.ResponseChunk(agent.ID, frag)
	}
	text := full.String()
	if strings.TrimSpace(text) == "" {
		return "", core.NewProviderError("generator", fmt.Errorf("empty utterance"))
	}
	return text, nil
}

// finishUtterance commits a completed agent utterance: append to the log,
// move to StateAwaitingAudioAck, announce completion, and start speech
// rendering in the background.
func (c *Controller) finishUtterance(agent Participant, text string) {
	c.sess.log.Append(agent.ID, text)

	c.sess.mu.Lock()
	c.sess.state = StateAwaitingAudioAck
	c.sess.currentSpeakerID = agent.ID
	c.sess.mu.Unlock()

	c.sink.ResponseEnd(agent, text)

	voice := VoiceID(agent.Gender, rosterOrdinal(c.sess.Roster, agent.ID))
	go c.renderer.Render(c.sess.ctx, agent.ID, text, voice, c.sink)
}

// backToIdle returns the session to idle and fires any user turn that queued
// up while a turn was in flight. A no-op once the session has ended.
func (c *Controller) backToIdle() {
	c.sess.mu.Lock()
	if c.sess.state == StateEnded {
		c.sess.mu.Unlock()
		return
	}
	c.sess.state = StateIdle
	c.sess.currentSpeakerID = ""
	pending := c.sess.pendingUserTurn
	c.sess.pendingUserTurn = false
	c.sess.mu.Unlock()

	if pending {
		c.TriggerTurn()
	}
}

func rosterOrdinal(roster []Participant, agentID string) int {
	for i, p := range roster {
		if strings.EqualFold(p.ID, agentID) {
			return i
		}
	}
	return 0
}
