package viewstate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/san-kum/rayview/internal/rays"
	"github.com/san-kum/rayview/internal/trace"
)

// DefaultNoticeLimit bounds the notice log of a session.
const DefaultNoticeLimit = 32

// LoadStatus tracks the ray data pipeline of a session.
type LoadStatus int

const (
	StatusNotLoaded LoadStatus = iota
	StatusLoading
	StatusLoaded
	StatusFailed
)

func (s LoadStatus) String() string {
	switch s {
	case StatusNotLoaded:
		return "not_loaded"
	case StatusLoading:
		return "loading"
	case StatusLoaded:
		return "loaded"
	case StatusFailed:
		return "failed"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s LoadStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *LoadStatus) UnmarshalText(b []byte) error {
	for st := StatusNotLoaded; st <= StatusFailed; st++ {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("viewstate: unknown load status %q", b)
}

// Snapshot is a read-only copy of a session's state for renderers and controls.
type Snapshot struct {
	SessionID  string     `json:"session_id"`
	Status     LoadStatus `json:"status"`
	View       ViewState  `json:"view"`
	RayCount   int        `json:"ray_count"`
	Mode       Mode       `json:"mode"`
	Controls   Controls   `json:"controls"`
	LastNotice *Notice    `json:"last_notice,omitempty"`
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithNoticeLimit bounds how many notices are kept.
func WithNoticeLimit(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.noticeLimit = n
		}
	}
}

// WithClock overrides the time source used for notices.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// Session owns one ViewState and one Dataset for the life of a visualization
// view. Every control that reads or mutates ray state holds the session
// explicitly; there is no shared global.
type Session struct {
	id          string
	ref         string
	loader      trace.Loader
	transformer rays.Transformer
	logger      *slog.Logger
	now         func() time.Time
	noticeLimit int

	mu      sync.RWMutex
	view    ViewState
	dataset *rays.Dataset
	status  LoadStatus
	pending *flight
	notices []Notice
	closed  bool

	subMu     sync.Mutex
	listeners map[chan struct{}]struct{}
}

// New creates a session that loads ray data from ref on first demand.
func New(loader trace.Loader, transformer rays.Transformer, ref string, opts ...Option) *Session {
	s := &Session{
		id:          uuid.NewString(),
		ref:         ref,
		loader:      loader,
		transformer: transformer,
		logger:      slog.Default(),
		now:         time.Now,
		noticeLimit: DefaultNoticeLimit,
		view:        Initial(),
		listeners:   make(map[chan struct{}]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("session", s.id)
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Ref returns the trace reference the session loads from.
func (s *Session) Ref() string { return s.ref }

// Status returns the load status.
func (s *Session) Status() LoadStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// View returns the current view state.
func (s *Session) View() ViewState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view
}

// Dataset returns the installed dataset, or nil before the first successful load.
func (s *Session) Dataset() *rays.Dataset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dataset
}

// Snapshot returns a consistent copy of the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		SessionID: s.id,
		Status:    s.status,
		View:      s.view,
		RayCount:  s.dataset.Len(),
		Mode:      ActiveMode(s.view),
		Controls:  Select(s.view),
	}
	if n := len(s.notices); n > 0 {
		last := s.notices[n-1]
		snap.LastNotice = &last
	}
	return snap
}

// Notices returns the recorded notices, oldest first.
func (s *Session) Notices() []Notice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Notice, len(s.notices))
	copy(out, s.notices)
	return out
}

// ToggleRaysVisible is the rays button: it goes through the lazy-load coordinator.
func (s *Session) ToggleRaysVisible(ctx context.Context) error {
	return s.RequestToggleVisibility(ctx)
}

// ToggleShowAllRays switches between show-all and playback mode.
func (s *Session) ToggleShowAllRays() error {
	return s.apply("toggle show-all", func(v ViewState, _ int) (ViewState, error) {
		return v.ToggleShowAll()
	})
}

// ToggleScatterPoints switches the scatter-point overlay.
func (s *Session) ToggleScatterPoints() error {
	return s.apply("toggle scatter points", func(v ViewState, _ int) (ViewState, error) {
		return v.ToggleScatterPoints()
	})
}

// SetPlaybackIndex moves the playback cursor to i.
func (s *Session) SetPlaybackIndex(i int) error {
	return s.apply("set playback index", func(v ViewState, n int) (ViewState, error) {
		return v.SetPlaybackIndex(i, n)
	})
}

// StepPlayback moves the playback cursor by delta, wrapping around.
func (s *Session) StepPlayback(delta int) error {
	return s.apply("step playback", func(v ViewState, n int) (ViewState, error) {
		return v.StepPlayback(delta, n)
	})
}

func (s *Session) apply(op string, fn func(ViewState, int) (ViewState, error)) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	next, err := fn(s.view, s.dataset.Len())
	if err != nil {
		s.recordLocked(noticeFor(err, s.now()))
		s.mu.Unlock()
		s.broadcast()
		return err
	}
	if err := CheckExclusive(next); err != nil {
		s.mu.Unlock()
		return err
	}
	s.view = next
	s.mu.Unlock()

	s.logger.Debug("view state changed", "op", op, "mode", ActiveMode(next), "playback", next.PlaybackIndex)
	s.broadcast()
	return nil
}

// recordLocked appends a notice and logs it. Callers hold s.mu.
func (s *Session) recordLocked(n Notice) {
	s.notices = append(s.notices, n)
	if over := len(s.notices) - s.noticeLimit; over > 0 {
		s.notices = append(s.notices[:0], s.notices[over:]...)
	}
	s.logger.Log(context.Background(), n.Level(), n.Message, "kind", n.Kind, "ref", s.ref)
}

// Subscribe returns a channel that receives a ping after every state change.
// The caller must Unsubscribe when done. On a closed session the channel is
// returned already closed.
func (s *Session) Subscribe() chan struct{} {
	ch := make(chan struct{}, 1)
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		close(ch)
		return ch
	}
	s.listeners[ch] = struct{}{}
	return ch
}

// Unsubscribe removes and closes a listener channel.
func (s *Session) Unsubscribe(ch chan struct{}) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if _, ok := s.listeners[ch]; ok {
		delete(s.listeners, ch)
		close(ch)
	}
}

// broadcast pings every listener without blocking; a listener with a pending
// ping already knows it has to re-read the snapshot.
func (s *Session) broadcast() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for ch := range s.listeners {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Close ends the session scope. Listeners are closed and later mutations fail
// with ErrClosed. An in-flight load still runs to completion.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.subMu.Lock()
	for ch := range s.listeners {
		delete(s.listeners, ch)
		close(ch)
	}
	s.subMu.Unlock()
}
