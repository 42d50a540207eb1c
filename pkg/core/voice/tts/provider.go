// Package tts provides text-to-speech functionality.
package tts

import (
	"context"
	"sync"
)

// Provider is the interface for text-to-speech services.
type Provider interface {
	// Name returns the provider identifier.
	Name() string

	// SynthesizeStream converts text to streaming audio.
	SynthesizeStream(ctx context.Context, text string, opts SynthesizeOptions) (*SynthesisStream, error)
}

// SynthesizeOptions configures synthesis.
type SynthesizeOptions struct {
	Voice      string // Voice identifier
	Language   string // Language code
	Format     string // Output format: "pcm" or "mp3"
	SampleRate int    // Sample rate: 16000, 22050, 24000, 44100, 48000
}

// SynthesisStream provides streaming audio output. The chunks channel is
// closed when synthesis completes or fails; Err reports the failure.
type SynthesisStream struct {
	chunks    chan []byte
	err       error
	done      chan struct{}
	closeOnce sync.Once
}

// NewSynthesisStream creates a new synthesis stream.
func NewSynthesisStream() *SynthesisStream {
	return &SynthesisStream{
		chunks: make(chan []byte, 100),
		done:   make(chan struct{}),
	}
}

// Chunks returns the channel of audio chunks.
func (s *SynthesisStream) Chunks() <-chan []byte {
	return s.chunks
}

// Err returns any error that occurred. It blocks until the stream is closed.
func (s *SynthesisStream) Err() error {
	<-s.done
	return s.err
}

// Close closes the stream. Safe to call from both the producer and the
// consumer; only the first call closes done.
func (s *SynthesisStream) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
	})
	return nil
}

// SetError sets the stream error.
func (s *SynthesisStream) SetError(err error) {
	s.err = err
}

// Send sends a chunk to the stream. Returns false if the stream is closed.
func (s *SynthesisStream) Send(chunk []byte) bool {
	select {
	case s.chunks <- chunk:
		return true
	case <-s.done:
		return false
	}
}

// FinishSending closes the chunks channel to signal completion.
func (s *SynthesisStream) FinishSending() {
	close(s.chunks)
}
