// Package ratelimit bounds how fast clients may issue live commands.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// CommandLimiter is a per-connection token bucket for inbound websocket
// commands. Frames that exceed the limit are rejected, not queued.
type CommandLimiter struct {
	l *rate.Limiter
}

func NewCommandLimiter(perSecond float64, burst int) *CommandLimiter {
	if perSecond <= 0 {
		perSecond = 5
	}
	if burst <= 0 {
		burst = 10
	}
	return &CommandLimiter{l: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (c *CommandLimiter) Allow() bool {
	return c.l.Allow()
}

// Registry hands out one limiter per key (remote address for the REST
// surface). Idle entries are pruned so the map does not grow unbounded.
type Registry struct {
	perSecond float64
	burst     int

	mu      sync.Mutex
	entries map[string]*registryEntry
	lastGC  time.Time
}

type registryEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

const registryGCInterval = 5 * time.Minute

func NewRegistry(perSecond float64, burst int) *Registry {
	if perSecond <= 0 {
		perSecond = 5
	}
	if burst <= 0 {
		burst = 10
	}
	return &Registry{
		perSecond: perSecond,
		burst:     burst,
		entries:   make(map[string]*registryEntry),
		lastGC:    time.Now(),
	}
}

// Allow reports whether the keyed client may proceed.
func (r *Registry) Allow(key string) bool {
	now := time.Now()

	r.mu.Lock()
	e, ok := r.entries[key]
	if !ok {
		e = &registryEntry{limiter: rate.NewLimiter(rate.Limit(r.perSecond), r.burst)}
		r.entries[key] = e
	}
	e.lastSeen = now

	if now.Sub(r.lastGC) > registryGCInterval {
		for k, v := range r.entries {
			if now.Sub(v.lastSeen) > registryGCInterval {
				delete(r.entries, k)
			}
		}
		r.lastGC = now
	}
	r.mu.Unlock()

	return e.limiter.Allow()
}
