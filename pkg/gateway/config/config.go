// Package config loads gateway configuration from the environment. Every
// knob has a default; malformed values fall back to the default, out-of-range
// values fail loading with a per-field error.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Addr string

	// Completion provider (OpenAI-compatible).
	OpenAIAPIKey  string
	OpenAIBaseURL string
	Model         string

	// Speech synthesis. An empty API key disables audio; sessions still run
	// text-only.
	ElevenLabsAPIKey    string
	ElevenLabsWSBaseURL string

	// CORS allowlist for the REST surface; empty => disabled.
	CORSAllowedOrigins map[string]struct{}

	// Live WebSocket (/v1/live).
	WSPingInterval     time.Duration
	WSWriteTimeout     time.Duration
	WSHandshakeTimeout time.Duration
	WSMaxMessageBytes  int64

	// Inbound command rate limit per connection.
	LiveCommandsPerSecond float64
	LiveCommandBurst      int

	// Turn pacing.
	SpeechFlushTimeout time.Duration
	PostAudioDelay     time.Duration

	// Operational defaults.
	ReadHeaderTimeout   time.Duration
	ShutdownGracePeriod time.Duration
}

func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                  envOr("MULTICHAT_ADDR", ":8080"),
		OpenAIAPIKey:          strings.TrimSpace(os.Getenv("MULTICHAT_OPENAI_API_KEY")),
		OpenAIBaseURL:         envOr("MULTICHAT_OPENAI_BASE_URL", "https://api.openai.com/v1"),
		Model:                 envOr("MULTICHAT_MODEL", "gpt-4o-mini"),
		ElevenLabsAPIKey:      strings.TrimSpace(os.Getenv("MULTICHAT_ELEVENLABS_API_KEY")),
		ElevenLabsWSBaseURL:   envOr("MULTICHAT_ELEVENLABS_WS_BASE_URL", "wss://api.elevenlabs.io/v1/text-to-speech/{voice_id}/stream-input"),
		CORSAllowedOrigins:    make(map[string]struct{}),
		WSPingInterval:        envDurationOr("MULTICHAT_WS_PING_INTERVAL", 20*time.Second),
		WSWriteTimeout:        envDurationOr("MULTICHAT_WS_WRITE_TIMEOUT", 5*time.Second),
		WSHandshakeTimeout:    envDurationOr("MULTICHAT_WS_HANDSHAKE_TIMEOUT", 5*time.Second),
		WSMaxMessageBytes:     envInt64Or("MULTICHAT_WS_MAX_MESSAGE_BYTES", 64*1024),
		LiveCommandsPerSecond: envFloat64Or("MULTICHAT_LIVE_COMMANDS_PER_SECOND", 5.0),
		LiveCommandBurst:      envIntOr("MULTICHAT_LIVE_COMMAND_BURST", 10),
		SpeechFlushTimeout:    envDurationOr("MULTICHAT_SPEECH_FLUSH_TIMEOUT", 30*time.Second),
		PostAudioDelay:        envDurationOr("MULTICHAT_POST_AUDIO_DELAY", 500*time.Millisecond),
		ReadHeaderTimeout:     envDurationOr("MULTICHAT_READ_HEADER_TIMEOUT", 10*time.Second),
		ShutdownGracePeriod:   envDurationOr("MULTICHAT_SHUTDOWN_GRACE_PERIOD", 30*time.Second),
	}

	for _, origin := range splitCSV(os.Getenv("MULTICHAT_CORS_ORIGINS")) {
		cfg.CORSAllowedOrigins[origin] = struct{}{}
	}

	if strings.TrimSpace(cfg.Addr) == "" {
		return Config{}, fmt.Errorf("MULTICHAT_ADDR must not be empty")
	}
	if cfg.OpenAIAPIKey == "" {
		return Config{}, fmt.Errorf("MULTICHAT_OPENAI_API_KEY must be set")
	}
	if strings.TrimSpace(cfg.OpenAIBaseURL) == "" {
		return Config{}, fmt.Errorf("MULTICHAT_OPENAI_BASE_URL must not be empty")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return Config{}, fmt.Errorf("MULTICHAT_MODEL must not be empty")
	}
	if strings.TrimSpace(cfg.ElevenLabsWSBaseURL) == "" {
		return Config{}, fmt.Errorf("MULTICHAT_ELEVENLABS_WS_BASE_URL must not be empty")
	}
	if cfg.WSPingInterval <= 0 {
		return Config{}, fmt.Errorf("MULTICHAT_WS_PING_INTERVAL must be > 0")
	}
	if cfg.WSWriteTimeout <= 0 {
		return Config{}, fmt.Errorf("MULTICHAT_WS_WRITE_TIMEOUT must be > 0")
	}
	if cfg.WSHandshakeTimeout <= 0 {
		return Config{}, fmt.Errorf("MULTICHAT_WS_HANDSHAKE_TIMEOUT must be > 0")
	}
	if cfg.WSMaxMessageBytes <= 0 {
		return Config{}, fmt.Errorf("MULTICHAT_WS_MAX_MESSAGE_BYTES must be > 0")
	}
	if cfg.LiveCommandsPerSecond <= 0 {
		return Config{}, fmt.Errorf("MULTICHAT_LIVE_COMMANDS_PER_SECOND must be > 0")
	}
	if cfg.LiveCommandBurst <= 0 {
		return Config{}, fmt.Errorf("MULTICHAT_LIVE_COMMAND_BURST must be > 0")
	}
	if cfg.SpeechFlushTimeout <= 0 {
		return Config{}, fmt.Errorf("MULTICHAT_SPEECH_FLUSH_TIMEOUT must be > 0")
	}
	if cfg.PostAudioDelay <= 0 {
		return Config{}, fmt.Errorf("MULTICHAT_POST_AUDIO_DELAY must be > 0")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("MULTICHAT_READ_HEADER_TIMEOUT must be > 0")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return Config{}, fmt.Errorf("MULTICHAT_SHUTDOWN_GRACE_PERIOD must be > 0")
	}

	return cfg, nil
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envInt64Or(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envIntOr(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envFloat64Or(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return n
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

func splitCSV(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
