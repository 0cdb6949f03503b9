package session

import (
	"context"
	"sync"

	"reportforms/internal/gallery"

	"go.uber.org/zap"
)

// AppState is the in-memory state of one app for one form session: the
// attachment gallery, the last generated document and its summary row.
type AppState struct {
	mu           sync.Mutex
	gallery      *gallery.Gallery
	lastArtifact string
	summary      []string
}

func newAppState() *AppState {
	return &AppState{gallery: gallery.New()}
}

func (s *AppState) Gallery() *gallery.Gallery { return s.gallery }

func (s *AppState) SetResult(artifactID string, summary []string) {
	s.mu.Lock()
	s.lastArtifact = artifactID
	s.summary = append([]string(nil), summary...)
	s.mu.Unlock()
}

func (s *AppState) LastArtifact() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastArtifact
}

func (s *AppState) Summary() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.summary...)
}

// Reset clears the gallery and the summary.
func (s *AppState) Reset() {
	s.gallery.Clear()
	s.mu.Lock()
	s.lastArtifact = ""
	s.summary = nil
	s.mu.Unlock()
}

// StateManager owns the AppState of every live form session.
type StateManager struct {
	mu     sync.Mutex
	states map[string]map[string]*AppState
	bus    *Invalidator
	logger *zap.Logger
}

func NewStateManager(bus *Invalidator, logger *zap.Logger) *StateManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &StateManager{
		states: make(map[string]map[string]*AppState),
		bus:    bus,
		logger: logger,
	}
	return m
}

// Listen applies invalidations published by other instances until ctx ends.
func (m *StateManager) Listen(ctx context.Context) error {
	if m.bus == nil {
		<-ctx.Done()
		return nil
	}
	return m.bus.Listen(ctx, m.apply)
}

// Get returns the state of the app, creating it on first use.
func (m *StateManager) Get(token, app string) *AppState {
	m.mu.Lock()
	defer m.mu.Unlock()
	apps := m.states[token]
	if apps == nil {
		apps = make(map[string]*AppState)
		m.states[token] = apps
	}
	st := apps[app]
	if st == nil {
		st = newAppState()
		apps[app] = st
	}
	return st
}

// Reset clears the app state locally and on the other instances.
func (m *StateManager) Reset(ctx context.Context, token, app string) {
	m.apply(Invalidation{Session: token, App: app, Scope: ScopeApp})
	m.publish(ctx, Invalidation{Session: token, App: app, Scope: ScopeApp})
}

// Drop forgets every app state of the session.
func (m *StateManager) Drop(ctx context.Context, token string) {
	m.apply(Invalidation{Session: token, Scope: ScopeSession})
	m.publish(ctx, Invalidation{Session: token, Scope: ScopeSession})
}

func (m *StateManager) publish(ctx context.Context, msg Invalidation) {
	if m.bus == nil {
		return
	}
	if err := m.bus.Publish(ctx, msg); err != nil {
		m.logger.Warn("publish invalidation failed", zap.Error(err))
	}
}

func (m *StateManager) apply(msg Invalidation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch msg.Scope {
	case ScopeSession:
		if apps, ok := m.states[msg.Session]; ok {
			for _, st := range apps {
				st.Reset()
			}
			delete(m.states, msg.Session)
		}
	case ScopeApp:
		if st, ok := m.states[msg.Session][msg.App]; ok {
			st.Reset()
		}
	default:
		m.logger.Debug("unknown invalidation scope", zap.String("scope", msg.Scope))
	}
}

// Sessions reports how many form sessions hold state.
func (m *StateManager) Sessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.states)
}
