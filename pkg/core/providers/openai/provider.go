// Package openai implements a Chat Completions API provider.
// It works against api.openai.com and any OpenAI-compatible endpoint.
package openai

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mahesh-arinnovate/multi-chat/pkg/core"
	"github.com/mahesh-arinnovate/multi-chat/pkg/core/types"
)

const (
	// DefaultBaseURL is the default OpenAI API endpoint.
	DefaultBaseURL = "https://api.openai.com/v1"

	// DefaultMaxTokens is the default max tokens if not specified.
	DefaultMaxTokens = 1024
)

// Provider implements the OpenAI Chat Completions API.
type Provider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// New creates a new OpenAI provider.
func New(apiKey string, opts ...Option) *Provider {
	p := &Provider{
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return "openai"
}

// Complete sends a non-streaming request.
func (p *Provider) Complete(ctx context.Context, req *types.CompletionRequest) (*types.Completion, error) {
	chatReq := p.buildRequest(req)

	respBody, err := p.doRequest(ctx, chatReq)
	if err != nil {
		return nil, err
	}

	return parseResponse(respBody)
}

// StreamComplete sends a streaming request and returns an SSE-backed token stream.
func (p *Provider) StreamComplete(ctx context.Context, req *types.CompletionRequest) (core.TokenStream, error) {
	chatReq := p.buildRequest(req)
	chatReq.Stream = true

	body, err := p.doStreamRequest(ctx, chatReq)
	if err != nil {
		return nil, err
	}

	return newTokenStream(body), nil
}

// buildRequest translates the provider-neutral request to OpenAI's format.
func (p *Provider) buildRequest(req *types.CompletionRequest) *chatRequest {
	out := &chatRequest{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if out.MaxTokens <= 0 {
		out.MaxTokens = DefaultMaxTokens
	}
	if req.System != "" {
		out.Messages = append(out.Messages, chatMessage{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		out.Messages = append(out.Messages, chatMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

func parseResponse(body []byte) (*types.Completion, error) {
	resp, err := decodeChatResponse(body)
	if err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, core.NewProviderError("openai", fmt.Errorf("response has no choices"))
	}
	choice := resp.Choices[0]
	return &types.Completion{
		Text:         choice.Message.Content,
		Model:        "openai/" + resp.Model,
		FinishReason: choice.FinishReason,
	}, nil
}
