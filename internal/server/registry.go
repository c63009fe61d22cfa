package server

import (
	"log/slog"
	"sync"
	"time"

	"github.com/san-kum/rayview/internal/viewstate"
)

// Factory builds a fresh session for a new browser.
type Factory func() *viewstate.Session

type entry struct {
	session  *viewstate.Session
	lastSeen time.Time
}

// Registry maps browser session keys to their view-state sessions.
type Registry struct {
	factory Factory
	logger  *slog.Logger
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry
	closed   bool
}

func NewRegistry(factory Factory, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		factory:  factory,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*entry),
	}
}

// Get returns the session registered under id.
func (r *Registry) Get(id string) (*viewstate.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	e.lastSeen = r.now()
	return e.session, true
}

// Create registers a new session and returns it. It fails with
// viewstate.ErrClosed once the registry is closed.
func (r *Registry) Create() (*viewstate.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, viewstate.ErrClosed
	}
	s := r.factory()
	r.sessions[s.ID()] = &entry{session: s, lastSeen: r.now()}
	r.logger.Debug("session created", "session", s.ID(), "active", len(r.sessions))
	return s, nil
}

// Remove closes and forgets the session. It reports whether id was known.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	e, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if ok {
		e.session.Close()
		r.logger.Debug("session removed", "session", id)
	}
	return ok
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep closes sessions not seen for longer than idle and returns how many
// were dropped.
func (r *Registry) Sweep(idle time.Duration) int {
	cutoff := r.now().Add(-idle)
	var stale []*viewstate.Session

	r.mu.Lock()
	for id, e := range r.sessions {
		if e.lastSeen.Before(cutoff) {
			stale = append(stale, e.session)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range stale {
		s.Close()
	}
	if len(stale) > 0 {
		r.logger.Info("idle sessions closed", "count", len(stale))
	}
	return len(stale)
}

// Close ends every session. Later Create calls fail.
func (r *Registry) Close() {
	r.mu.Lock()
	all := r.sessions
	r.sessions = make(map[string]*entry)
	r.closed = true
	r.mu.Unlock()

	for _, e := range all {
		e.session.Close()
	}
}
