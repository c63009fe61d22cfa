package viewstate

import (
	"context"
	"fmt"
	"time"

	"github.com/san-kum/rayview/internal/rays"
)

// flight is the loading latch: every caller that arrives while a load is in
// progress waits on the same flight and sees the same result.
type flight struct {
	done chan struct{}
	err  error
}

// RequestToggleVisibility is the lazy-load-then-branch entry point.
//
// With a loaded dataset it flips RaysVisible. Otherwise it starts the
// fetch-transform-install pipeline, or joins the one already running, and
// makes rays visible once the dataset is installed. A failed load leaves
// visibility untouched and moves the status to StatusFailed; the next call
// retries.
//
// Requests coalesced into one flight produce a single visibility change.
// If ctx ends while waiting the call returns ctx.Err(), but the load keeps
// running and is installed when it completes.
func (s *Session) RequestToggleVisibility(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}

	if s.status == StatusLoaded {
		s.view = s.view.withVisible(!s.view.RaysVisible)
		visible := s.view.RaysVisible
		s.mu.Unlock()
		s.logger.Debug("toggled ray visibility", "visible", visible)
		s.broadcast()
		return nil
	}

	f := s.pending
	if f == nil {
		f = &flight{done: make(chan struct{})}
		s.pending = f
		s.status = StatusLoading
		s.mu.Unlock()

		s.logger.Info("loading ray data", "ref", s.ref)
		s.broadcast()
		go s.run(context.WithoutCancel(ctx), f)
	} else {
		s.mu.Unlock()
		s.logger.Debug("joined in-flight ray load", "ref", s.ref)
	}

	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run executes one flight and installs its result.
func (s *Session) run(ctx context.Context, f *flight) {
	start := s.now()
	ds, err := s.load(ctx)

	s.mu.Lock()
	s.pending = nil
	if err != nil {
		s.status = StatusFailed
		s.recordLocked(noticeFor(err, s.now()))
	} else {
		s.dataset = ds
		s.status = StatusLoaded
		s.view = s.view.withVisible(true)
		s.recordLocked(Notice{
			Kind:    NoticeLoaded,
			Message: fmt.Sprintf("loaded %d rays in %s", ds.Len(), s.now().Sub(start).Round(time.Millisecond)),
			At:      s.now(),
		})
	}
	f.err = err
	s.mu.Unlock()

	close(f.done)
	s.broadcast()
}

// load runs fetch then transform. Collaborator panics are reported as
// failures of their stage so a broken loader cannot take the session down.
func (s *Session) load(ctx context.Context) (ds *rays.Dataset, err error) {
	stage := StageFetch
	defer func() {
		if r := recover(); r != nil {
			ds, err = nil, &LoadError{Ref: s.ref, Stage: stage, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	raw, err := s.loader.Fetch(ctx, s.ref)
	if err != nil {
		return nil, &LoadError{Ref: s.ref, Stage: StageFetch, Err: err}
	}
	if !raw.Present() {
		return nil, &LoadError{Ref: s.ref, Stage: StageFetch}
	}

	stage = StageTransform
	ds, err = s.transformer.Transform(raw)
	if err != nil {
		return nil, &LoadError{Ref: s.ref, Stage: StageTransform, Err: err}
	}
	if ds.IsEmpty() {
		return nil, &LoadError{Ref: s.ref, Stage: StageTransform, Err: rays.ErrEmptyBundle}
	}
	return ds, nil
}
