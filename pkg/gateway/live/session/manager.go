package session

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mahesh-arinnovate/multi-chat/pkg/core"
	"github.com/mahesh-arinnovate/multi-chat/pkg/core/voice/tts"
)

// Deps carries the collaborators a session needs. Zero-value optional fields
// get defaults in NewManager.
type Deps struct {
	Provider core.Provider
	TTS      tts.Provider
	Model    string
	Logger   *slog.Logger

	// PostAudioDelay is the pause between playback acknowledgement and the
	// next turn trigger. Defaults to DefaultPostAudioDelay.
	PostAudioDelay time.Duration
	// FlushTimeout bounds how long speech rendering waits for synthesis to
	// finish. Defaults to DefaultFlushTimeout.
	FlushTimeout time.Duration
}

// Manager tracks live sessions and wires a Controller for each. All methods
// are safe for concurrent use.
type Manager struct {
	deps Deps

	mu       sync.Mutex
	sessions map[string]*Controller
}

// NewManager builds a Manager. Provider and Logger must be non-nil; TTS may
// be nil, in which case sessions run text-only.
func NewManager(deps Deps) *Manager {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.PostAudioDelay <= 0 {
		deps.PostAudioDelay = DefaultPostAudioDelay
	}
	if deps.FlushTimeout <= 0 {
		deps.FlushTimeout = DefaultFlushTimeout
	}
	return &Manager{
		deps:     deps,
		sessions: make(map[string]*Controller),
	}
}

// Create validates the start parameters, generates a roster for the scenario,
// and registers a new session. The returned controller is ready for
// TriggerTurn. The session lives until Delete; it is not bound to the ctx
// passed here, which only bounds roster generation.
func (m *Manager) Create(ctx context.Context, scenario, userName, userRole string, sink EventSink) (*Controller, error) {
	if scenario == "" {
		return nil, core.NewInvalidRequestErrorWithParam("scenario is required", "scenario")
	}
	if userName == "" {
		return nil, core.NewInvalidRequestErrorWithParam("user_name is required", "user_name")
	}
	if userRole == "" {
		return nil, core.NewInvalidRequestErrorWithParam("user_role is required", "user_role")
	}
	if sink == nil {
		return nil, core.NewInvalidRequestError("event sink is required")
	}

	rg := &RosterGenerator{Provider: m.deps.Provider, Model: m.deps.Model}
	roster := rg.Generate(ctx, scenario, userName, userRole)

	sessCtx, cancel := context.WithCancel(context.Background())
	sess := &Session{
		ID:        uuid.NewString(),
		Scenario:  scenario,
		UserName:  userName,
		UserRole:  userRole,
		Roster:    roster,
		CreatedAt: time.Now().UTC(),
		log:       NewConversationLog(),
		state:     StateIdle,
		ctx:       sessCtx,
		cancel:    cancel,
	}

	ctrl := &Controller{
		sess:      sess,
		engine:    &Engine{Provider: m.deps.Provider, Model: m.deps.Model},
		generator: &Generator{Provider: m.deps.Provider, Model: m.deps.Model},
		renderer: &Renderer{
			TTS:          m.deps.TTS,
			Logger:       m.deps.Logger,
			FlushTimeout: m.deps.FlushTimeout,
		},
		sink:           sink,
		logger:         m.deps.Logger,
		postAudioDelay: m.deps.PostAudioDelay,
	}

	m.mu.Lock()
	m.sessions[sess.ID] = ctrl
	m.mu.Unlock()

	m.deps.Logger.Info("session created",
		"session_id", sess.ID, "scenario", scenario, "agents", len(roster))
	return ctrl, nil
}

// Get returns the controller for the given session id.
func (m *Manager) Get(id string) (*Controller, error) {
	m.mu.Lock()
	ctrl, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return nil, core.NewNotFoundError("session not found: " + id)
	}
	return ctrl, nil
}

// List snapshots all live sessions, newest first.
func (m *Manager) List() []Info {
	m.mu.Lock()
	infos := make([]Info, 0, len(m.sessions))
	for _, ctrl := range m.sessions {
		infos = append(infos, ctrl.sess.Info())
	}
	m.mu.Unlock()
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].CreatedAt.After(infos[j].CreatedAt)
	})
	return infos
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Delete removes a session and cancels its context, which silences any
// in-flight decision, generation, or rendering goroutines.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	ctrl, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if !ok {
		return core.NewNotFoundError("session not found: " + id)
	}
	ctrl.sess.cancel()
	m.deps.Logger.Info("session deleted", "session_id", id)
	return nil
}
