// Package preview regenerates the live collage preview. Requests are held in
// a queue of depth one: a newer request replaces the pending one, and the
// render only starts once no request arrived for the quiet window.
package preview

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aouyang1/photobooth/compositor"
)

type Renderer interface {
	Render(ctx context.Context, req compositor.Request) (*compositor.Result, error)
}

type Preview struct {
	Seq        uint64
	SessionID  string
	Result     *compositor.Result
	Err        error
	RenderedAt time.Time
}

type job struct {
	seq       uint64
	sessionID string
	req       compositor.Request
}

type Scheduler struct {
	renderer Renderer
	quiet    time.Duration
	publish  func(Preview)

	mu       sync.Mutex
	seq      uint64
	cleared  uint64
	pending  *job
	inFlight bool
	latest   *Preview

	wake chan struct{}
}

// NewScheduler creates a scheduler. publish, if not nil, is called from the
// Run goroutine with every finished preview.
func NewScheduler(renderer Renderer, quiet time.Duration, publish func(Preview)) *Scheduler {
	return &Scheduler{
		renderer: renderer,
		quiet:    quiet,
		publish:  publish,
		wake:     make(chan struct{}, 1),
	}
}

// Submit replaces the pending request and restarts the quiet window.
func (s *Scheduler) Submit(sessionID string, req compositor.Request) uint64 {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.pending = &job{seq: seq, sessionID: sessionID, req: req}
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return seq
}

// Clear drops the pending request and the latest preview.
func (s *Scheduler) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.cleared = s.seq
	s.pending = nil
	s.latest = nil
}

// Latest returns the most recent finished preview.
func (s *Scheduler) Latest() (Preview, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil {
		return Preview{}, false
	}
	return *s.latest, true
}

// Pending reports whether a request is waiting or rendering.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil || s.inFlight
}

func (s *Scheduler) take() *job {
	s.mu.Lock()
	defer s.mu.Unlock()
	j := s.pending
	s.pending = nil
	if j != nil {
		s.inFlight = true
	}
	return j
}

// Run renders submitted requests until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	timer := time.NewTimer(s.quiet)
	timer.Stop()
	armed := false

	for {
		var fire <-chan time.Time
		if armed {
			fire = timer.C
		}

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-s.wake:
			timer.Reset(s.quiet)
			armed = true
		case <-fire:
			armed = false
			if j := s.take(); j != nil {
				s.render(ctx, j)
			}
		}
	}
}

func (s *Scheduler) render(ctx context.Context, j *job) {
	res, err := s.renderer.Render(ctx, j.req)
	if err != nil {
		slog.Warn("preview render failed", "session", j.sessionID, "error", err)
	}
	p := Preview{
		Seq:        j.seq,
		SessionID:  j.sessionID,
		Result:     res,
		Err:        err,
		RenderedAt: time.Now(),
	}

	s.mu.Lock()
	s.inFlight = false
	// a Clear during the render makes the result stale
	stale := j.seq <= s.cleared
	if !stale {
		s.latest = &p
	}
	s.mu.Unlock()

	if !stale && s.publish != nil {
		s.publish(p)
	}
}
