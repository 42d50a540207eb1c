package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/mahesh-arinnovate/multi-chat/pkg/core"
	"github.com/mahesh-arinnovate/multi-chat/pkg/core/types"
)

// Generator streams an agent's utterance when the decision engine selected a
// speaker without producing text (the round-robin fallback path).
type Generator struct {
	Provider core.Provider
	Model    string
}

// Generate opens a token stream for the chosen agent's next utterance. The
// caller accumulates fragments and appends the full text to the log only
// after the stream completes cleanly.
func (g *Generator) Generate(ctx context.Context, agent Participant, entries []Utterance, roster []Participant, scenario, userName, userRole string) (core.TokenStream, error) {
	if g == nil || g.Provider == nil {
		return nil, fmt.Errorf("utterance provider is not configured")
	}

	system := fmt.Sprintf(
		"You are %s, %s in a mock interview practice session. %s\nScenario: %s\nThe candidate is %s (%s).\nSpeak naturally in first person. Reply with only your next utterance, no speaker labels.",
		agent.Name, agent.Role, agent.Persona, scenario, userName, userRole,
	)

	var transcript strings.Builder
	for _, u := range entries {
		transcript.WriteString(renderEntry(u, roster, userName) + "\n")
	}
	if transcript.Len() == 0 {
		transcript.WriteString("(you open the conversation)\n")
	}

	return g.Provider.StreamComplete(ctx, &types.CompletionRequest{
		Model:     g.Model,
		System:    system,
		Messages:  []types.Message{{Role: "user", Content: transcript.String()}},
		MaxTokens: 512,
	})
}
