package session

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/mahesh-arinnovate/multi-chat/pkg/core"
	"github.com/mahesh-arinnovate/multi-chat/pkg/core/types"
)

// Markers the decision engine expects in the provider's free-form output.
const (
	markerAgent = "AGENT:"
	markerUser  = "USER"
	markerEnd   = "END_CONVERSATION"
)

// DecisionKind tags a parsed turn decision.
type DecisionKind int

const (
	// DecisionAgent selects an agent; Text may be empty, in which case the
	// utterance generator produces the agent's speech.
	DecisionAgent DecisionKind = iota
	// DecisionUser hands the turn to the human participant.
	DecisionUser
	// DecisionEnd ends the conversation.
	DecisionEnd
	// DecisionUnrecognized means the raw text matched nothing; callers fall
	// back to round-robin. Never escapes Decide.
	DecisionUnrecognized
)

// Decision is the transient outcome of one turn evaluation.
type Decision struct {
	Kind    DecisionKind
	AgentID string
	Text    string
}

// Engine decides who speaks next, optionally producing the chosen agent's
// utterance in the same step. All string-matching fragility of the free-text
// protocol lives here; malformed provider output never escapes as an error.
type Engine struct {
	Provider core.Provider
	Model    string
}

const decisionRules = `You are the director of a mock interview practice conversation.
Decide who speaks next and reply in ONE of these exact forms:

AGENT:<agent_id>
<what that agent says>

USER

END_CONVERSATION

Rules:
- If the conversation is empty, an agent opens the interview.
- If the last entry is from the user, exactly one agent responds.
- An agent never speaks twice in a row.
- After two consecutive agent turns, reply USER so the candidate can speak.
- If an agent asked the user a question, no other agent speaks until the user answers.
- Aim for the user doing about 60% of the talking overall.
- Reply END_CONVERSATION only when the interview has reached a natural close.
- Speak only as the chosen agent. Never write the bracketed speaker labels in the reply.`

// Decide evaluates the next turn. It never returns an error for malformed
// provider output; the deterministic round-robin fallback guarantees
// liveness. Provider transport failures also fall back.
func (e *Engine) Decide(ctx context.Context, entries []Utterance, roster []Participant, scenario, userName, userRole string) Decision {
	// Hard policy: the third consecutive agent turn forces the user,
	// regardless of what the provider would say.
	if trailingAgentRun(entries) >= 3 {
		return Decision{Kind: DecisionUser}
	}

	raw, err := e.complete(ctx, entries, roster, scenario, userName, userRole)
	if err != nil {
		return fallbackDecision(entries, roster)
	}

	d := ParseDecision(raw, roster)
	return applyTurnPolicy(d, entries, roster)
}

func (e *Engine) complete(ctx context.Context, entries []Utterance, roster []Participant, scenario, userName, userRole string) (string, error) {
	if e == nil || e.Provider == nil {
		return "", fmt.Errorf("decision provider is not configured")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Scenario: %s\n", scenario)
	fmt.Fprintf(&b, "Candidate: %s (%s), speaker id %q\n\nInterviewers:\n", userName, userRole, UserSpeakerID)
	for _, p := range roster {
		fmt.Fprintf(&b, "- %s: %s, %s. %s\n", p.ID, p.Name, p.Role, p.Persona)
	}
	b.WriteString("\nConversation so far:\n")
	if len(entries) == 0 {
		b.WriteString("(empty)\n")
	}
	for _, u := range entries {
		b.WriteString(renderEntry(u, roster, userName) + "\n")
	}
	b.WriteString("\nWho speaks next?")

	resp, err := e.Provider.Complete(ctx, &types.CompletionRequest{
		Model:     e.Model,
		System:    decisionRules,
		Messages:  []types.Message{{Role: "user", Content: b.String()}},
		MaxTokens: 512,
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// renderEntry annotates a log entry with its decision-time speaker label.
// The annotation exists only for the decision prompt and is never stored.
func renderEntry(u Utterance, roster []Participant, userName string) string {
	if u.Speaker == UserSpeakerID {
		return speakerLabel(userName, UserSpeakerID) + ": " + u.Text
	}
	if p, ok := FindParticipant(roster, u.Speaker); ok {
		return speakerLabel(p.Name, p.ID) + ": " + u.Text
	}
	return speakerLabel(u.Speaker, u.Speaker) + ": " + u.Text
}

// ParseDecision classifies the provider's free-form response.
func ParseDecision(raw string, roster []Participant) Decision {
	trimmed := strings.TrimSpace(raw)

	if matchesMarker(trimmed, markerEnd) {
		return Decision{Kind: DecisionEnd}
	}
	if matchesMarker(trimmed, markerUser) {
		return Decision{Kind: DecisionUser}
	}

	if rest, ok := cutFold(trimmed, markerAgent); ok {
		idLine, body, _ := strings.Cut(rest, "\n")
		id := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(idLine), ":"))
		p, known := FindParticipant(roster, id)
		text := cleanUtterance(body)
		if known && text != "" {
			return Decision{Kind: DecisionAgent, AgentID: p.ID, Text: text}
		}
		return Decision{Kind: DecisionUnrecognized}
	}

	// Last resort: look for a known agent name or id anywhere in the raw
	// text and treat the cleaned text as that agent's utterance.
	lower := strings.ToLower(trimmed)
	for _, p := range roster {
		if strings.Contains(lower, strings.ToLower(p.ID)) || containsWordFold(trimmed, p.Name) {
			if text := cleanUtterance(trimmed); text != "" {
				return Decision{Kind: DecisionAgent, AgentID: p.ID, Text: text}
			}
			break
		}
	}
	return Decision{Kind: DecisionUnrecognized}
}

// applyTurnPolicy enforces the structural turn rules on a parsed decision
// and resolves Unrecognized via the fallback.
func applyTurnPolicy(d Decision, entries []Utterance, roster []Participant) Decision {
	switch d.Kind {
	case DecisionEnd:
		// A conversation that has not started cannot end.
		if len(entries) == 0 {
			return fallbackDecision(entries, roster)
		}
		return d
	case DecisionUser:
		// An agent must open, and exactly one agent answers the user.
		if len(entries) == 0 || entries[len(entries)-1].Speaker == UserSpeakerID {
			return fallbackDecision(entries, roster)
		}
		return d
	case DecisionAgent:
		// No agent id appears twice consecutively among the log's
		// agent-attributed entries.
		if last, ok := lastAgentSpeaker(entries); ok && strings.EqualFold(last, d.AgentID) {
			return fallbackDecision(entries, roster)
		}
		return d
	default:
		return fallbackDecision(entries, roster)
	}
}

// fallbackDecision is the deterministic round-robin: the agent after the most
// recent agent speaker in roster order, wrapping; the first roster entry if no
// agent has spoken. No text, so the utterance generator runs.
func fallbackDecision(entries []Utterance, roster []Participant) Decision {
	if len(roster) == 0 {
		return Decision{Kind: DecisionUser}
	}
	last, ok := lastAgentSpeaker(entries)
	if !ok {
		return Decision{Kind: DecisionAgent, AgentID: roster[0].ID}
	}
	for i, p := range roster {
		if strings.EqualFold(p.ID, last) {
			return Decision{Kind: DecisionAgent, AgentID: roster[(i+1)%len(roster)].ID}
		}
	}
	return Decision{Kind: DecisionAgent, AgentID: roster[0].ID}
}

var speakerLabelRe = regexp.MustCompile(`\[[^\[\]\n]+ - [^\[\]\n]+\]:?\s*`)

// cleanUtterance strips leaked speaker-label annotations and leaked
// user-turn/end markers from an utterance body.
func cleanUtterance(body string) string {
	body = speakerLabelRe.ReplaceAllString(body, "")

	var kept []string
	for _, line := range strings.Split(body, "\n") {
		if matchesMarker(line, markerUser) || matchesMarker(line, markerEnd) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// matchesMarker reports whether s is exactly the marker token, tolerating
// surrounding whitespace, a trailing colon, and any letter case.
func matchesMarker(s, marker string) bool {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, ":")
	return strings.EqualFold(strings.TrimSpace(s), marker)
}

// cutFold is strings.CutPrefix with case-insensitive matching.
func cutFold(s, prefix string) (string, bool) {
	if len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
		return s[len(prefix):], true
	}
	return s, false
}

// containsWordFold reports whether word occurs in s on word boundaries,
// case-insensitively. Guards the last-resort scan against short names
// matching inside unrelated words.
func containsWordFold(s, word string) bool {
	if word == "" {
		return false
	}
	lower := strings.ToLower(s)
	target := strings.ToLower(word)
	for idx := 0; ; {
		i := strings.Index(lower[idx:], target)
		if i < 0 {
			return false
		}
		i += idx
		before := i == 0 || !isWordByte(lower[i-1])
		afterIdx := i + len(target)
		after := afterIdx >= len(lower) || !isWordByte(lower[afterIdx])
		if before && after {
			return true
		}
		idx = i + 1
	}
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}
