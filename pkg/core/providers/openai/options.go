package openai

import (
	"net/http"
	"strings"
)

// Option configures the provider.
type Option func(*Provider)

// WithBaseURL overrides the API endpoint. Useful for OpenAI-compatible
// servers and for tests.
func WithBaseURL(baseURL string) Option {
	return func(p *Provider) {
		p.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) {
		if client != nil {
			p.httpClient = client
		}
	}
}
