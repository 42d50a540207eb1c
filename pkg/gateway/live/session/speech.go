package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mahesh-arinnovate/multi-chat/pkg/core/voice"
	"github.com/mahesh-arinnovate/multi-chat/pkg/core/voice/tts"
)

// DefaultFlushTimeout bounds how long the renderer waits for the synthesis
// provider to complete after flush. Expiry is treated as normal completion,
// not an error, so the controller is never left waiting.
const DefaultFlushTimeout = 30 * time.Second

// Renderer converts a completed utterance into an incremental audio stream.
// Rendering starts only once the full text is known and runs concurrently
// with nothing else for the same session: the controller does not begin a
// new turn until the current one is acknowledged.
type Renderer struct {
	TTS          tts.Provider
	Logger       *slog.Logger
	FlushTimeout time.Duration
}

// Render streams synthesized audio for one utterance to the sink. The first
// chunk is prefixed with the WAV container header; FirstAudio fires exactly
// once before it. AudioEnd is emitted exactly once on every path except
// session cancellation. Failures are reported but never abort the already
// delivered text.
func (r *Renderer) Render(ctx context.Context, agentID, text, voiceID string, sink EventSink) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if r.TTS == nil {
		sink.AudioEnd(agentID)
		return
	}

	stream, err := r.TTS.SynthesizeStream(ctx, text, tts.SynthesizeOptions{
		Voice:      voiceID,
		Format:     "pcm",
		SampleRate: voice.SpeechSampleRate,
	})
	if err != nil {
		if ctx.Err() == nil {
			logger.Warn("speech synthesis failed to start", "agent_id", agentID, "error", err)
			sink.Error("speech synthesis unavailable")
			sink.AudioEnd(agentID)
		}
		return
	}
	defer stream.Close()

	flushTimeout := r.FlushTimeout
	if flushTimeout <= 0 {
		flushTimeout = DefaultFlushTimeout
	}
	timer := time.NewTimer(flushTimeout)
	defer timer.Stop()

	first := true
	for {
		select {
		case <-ctx.Done():
			// Session deleted mid-render; all callbacks become no-ops.
			return
		case <-timer.C:
			logger.Warn("speech synthesis timed out, forcing completion", "agent_id", agentID)
			sink.AudioEnd(agentID)
			return
		case chunk, ok := <-stream.Chunks():
			if !ok {
				if err := stream.Err(); err != nil && !errors.Is(err, context.Canceled) && ctx.Err() == nil {
					logger.Warn("speech synthesis failed", "agent_id", agentID, "error", err)
					sink.Error("speech synthesis failed")
				}
				if ctx.Err() == nil {
					sink.AudioEnd(agentID)
				}
				return
			}
			if len(chunk) == 0 {
				continue
			}
			if first {
				first = false
				sink.FirstAudio(agentID)
				chunk = append(voice.SpeechStreamHeader(), chunk...)
			}
			sink.AudioChunk(agentID, chunk)
		}
	}
}
