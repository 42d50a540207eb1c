package core

import (
	"context"
	"io"

	"github.com/mahesh-arinnovate/multi-chat/pkg/core/types"
)

// Provider is the interface that all chat completion providers must implement.
type Provider interface {
	// Name returns the provider identifier (e.g., "openai").
	Name() string

	// Complete sends a non-streaming request and returns the full completion.
	Complete(ctx context.Context, req *types.CompletionRequest) (*types.Completion, error)

	// StreamComplete sends a streaming request. The returned stream yields
	// incremental text fragments.
	StreamComplete(ctx context.Context, req *types.CompletionRequest) (TokenStream, error)
}

// TokenStream is an iterator over incremental text output.
type TokenStream interface {
	// Next returns the next text fragment. Returns "", io.EOF when the
	// stream is complete.
	Next() (string, error)

	// Close releases resources. Safe to call more than once.
	Close() error
}

// Ensure io.EOF is accessible
var _ = io.EOF
