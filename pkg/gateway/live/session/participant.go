package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/mahesh-arinnovate/multi-chat/pkg/core"
	"github.com/mahesh-arinnovate/multi-chat/pkg/core/types"
)

// UserSpeakerID is the fixed speaker id of the human participant.
const UserSpeakerID = "user"

// Gender selects the voice pool for an agent.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// Participant is one agent in a session's roster. Immutable once generated.
type Participant struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Role    string `json:"role"`
	Persona string `json:"persona"`
	Gender  Gender `json:"gender"`
}

// Voice pools, three distinct ElevenLabs voices per gender. An agent's voice
// is (gender, roster ordinal mod 3), so up to three same-gender agents in a
// session sound distinguishable.
var (
	maleVoices   = [3]string{"pNInz6obpgDQGcFmaJgB", "TxGEqnHWrfWFTfGW9XjX", "VR6AewLTigWG4xSOukaG"}
	femaleVoices = [3]string{"21m00Tcm4TlvDq8ikWAM", "EXAVITQu4vr4xnSDxMaL", "AZnzlk1XvdvUeBnXmlld"}
)

// VoiceID returns the synthesis voice for an agent at the given roster ordinal.
func VoiceID(gender Gender, ordinal int) string {
	if ordinal < 0 {
		ordinal = 0
	}
	if gender == GenderMale {
		return maleVoices[ordinal%3]
	}
	return femaleVoices[ordinal%3]
}

// DeriveID builds the stable agent id from name and role, e.g.
// ("Alice", "Coach") -> "Alice_Coach". Unique within a session because
// name+role pairs are unique in a generated roster.
func DeriveID(name, role string) string {
	return sanitizeIDPart(name) + "_" + sanitizeIDPart(role)
}

func sanitizeIDPart(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		case r == ' ', r == '_':
			b.WriteRune('_')
		}
	}
	return b.String()
}

// speakerLabel is the decision-time annotation for a participant. It exists
// only inside decision prompts and is never stored in the conversation log.
func speakerLabel(name, id string) string {
	return "[" + name + " - " + id + "]"
}

// RosterGenerator builds the agent roster for a new session from the
// scenario description.
type RosterGenerator struct {
	Provider core.Provider
	Model    string
}

const rosterSystemPrompt = `You are setting up a mock interview practice session. ` +
	`Given the scenario, invent the panel of interviewers the candidate will face. ` +
	`Respond with one line per interviewer, between 2 and 4 lines total, in exactly this format:

Name | Role | One-sentence persona | male or female

No other text. Names are single words. Roles are short labels without spaces (use underscores).`

// Generate asks the completion provider for a panel fitting the scenario and
// parses it. Any malformed response falls back to a fixed default panel, so
// session creation never fails because of the provider.
func (g *RosterGenerator) Generate(ctx context.Context, scenario, userName, userRole string) []Participant {
	if g == nil || g.Provider == nil {
		return defaultRoster()
	}

	req := &types.CompletionRequest{
		Model:  g.Model,
		System: rosterSystemPrompt,
		Messages: []types.Message{{
			Role:    "user",
			Content: fmt.Sprintf("Scenario: %s\nCandidate: %s (%s)", scenario, userName, userRole),
		}},
		MaxTokens: 512,
	}
	resp, err := g.Provider.Complete(ctx, req)
	if err != nil {
		return defaultRoster()
	}

	roster := ParseRoster(resp.Text)
	if len(roster) == 0 {
		return defaultRoster()
	}
	return roster
}

// ParseRoster parses "Name | Role | Persona | gender" lines. Lines that do
// not fit are skipped; duplicate ids are dropped.
func ParseRoster(raw string) []Participant {
	var out []Participant
	seen := make(map[string]struct{})
	for _, line := range strings.Split(raw, "\n") {
		parts := strings.Split(line, "|")
		if len(parts) != 4 {
			continue
		}
		name := strings.TrimSpace(parts[0])
		role := strings.TrimSpace(parts[1])
		persona := strings.TrimSpace(parts[2])
		gender := GenderFemale
		if strings.EqualFold(strings.TrimSpace(parts[3]), string(GenderMale)) {
			gender = GenderMale
		}
		if name == "" || role == "" {
			continue
		}
		id := DeriveID(name, role)
		if id == "_" || id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, Participant{
			ID:      id,
			Name:    name,
			Role:    role,
			Persona: persona,
			Gender:  gender,
		})
		if len(out) == 4 {
			break
		}
	}
	return out
}

func defaultRoster() []Participant {
	return []Participant{
		{
			ID:      DeriveID("Sarah", "HR_Manager"),
			Name:    "Sarah",
			Role:    "HR_Manager",
			Persona: "Warm but thorough HR manager who probes for culture fit and motivation.",
			Gender:  GenderFemale,
		},
		{
			ID:      DeriveID("David", "Tech_Lead"),
			Name:    "David",
			Role:    "Tech_Lead",
			Persona: "Pragmatic technical lead who digs into past projects and tradeoffs.",
			Gender:  GenderMale,
		},
	}
}

// FindParticipant looks up a roster entry by id, case-insensitively.
func FindParticipant(roster []Participant, id string) (Participant, bool) {
	id = strings.TrimSpace(id)
	for _, p := range roster {
		if strings.EqualFold(p.ID, id) {
			return p, true
		}
	}
	return Participant{}, false
}
