package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aouyang1/photobooth/capture"
	"github.com/aouyang1/photobooth/compositor"
	"github.com/aouyang1/photobooth/export"
	"github.com/aouyang1/photobooth/preview"
	"github.com/aouyang1/photobooth/session"
	"github.com/aouyang1/photobooth/store"
)

var (
	ErrCaptureInProgress = errors.New("capture already in progress")
	ErrSessionIncomplete = errors.New("session is not complete")
)

const defaultCountdownSeconds = 3

// Booth drives the single session of the kiosk: camera, captures, caption,
// live preview and export.
type Booth struct {
	feed       *capture.Feed
	compositor *compositor.Compositor
	previews   *preview.Scheduler
	exporter   *export.Exporter
	db         *store.Database
	hub        *Hub

	mu      sync.Mutex
	session *session.Session

	camMu  sync.Mutex
	handle capture.Handle

	capturing atomic.Bool
	sleep     func(ctx context.Context, d time.Duration) error
}

func NewBooth(
	feed *capture.Feed,
	comp *compositor.Compositor,
	exporter *export.Exporter,
	db *store.Database,
	hub *Hub,
	previewQuiet time.Duration,
) *Booth {
	b := &Booth{
		feed:       feed,
		compositor: comp,
		exporter:   exporter,
		db:         db,
		hub:        hub,
		session:    session.FromParams("", ""),
		sleep:      sleepCtx,
	}
	b.previews = preview.NewScheduler(comp, previewQuiet, b.publishPreview)
	return b
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Run processes preview requests until ctx is done.
func (b *Booth) Run(ctx context.Context) {
	b.previews.Run(ctx)
}

func (b *Booth) Feed() *capture.Feed {
	return b.feed
}

func (b *Booth) Session() *session.Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.session
}

// StartSession replaces the current session. Absent parameters take the
// configured defaults; unknown ones fall back to the catalog defaults.
func (b *Booth) StartSession(layoutID, frameID string) *session.Session {
	if layoutID == "" {
		settings, err := b.db.GetBoothSettings()
		if err != nil {
			slog.Warn("unable to get booth settings, using catalog defaults", "error", err)
		} else {
			layoutID = settings.DefaultLayout
			if frameID == "" {
				frameID = settings.DefaultFrame
			}
		}
	}

	s := session.FromParams(layoutID, frameID)
	b.ReleaseCamera()
	b.previews.Clear()

	b.mu.Lock()
	b.session = s
	b.mu.Unlock()

	slog.Info("session started", "session", s.ID(), "layout", s.Layout().ID, "frame", s.Frame().ID)
	b.hub.Publish(Event{Type: EventSession, SessionID: s.ID(), Data: map[string]any{"action": "started"}})
	return s
}

// AcquireCamera opens the camera unless it is already held by the booth.
func (b *Booth) AcquireCamera(ctx context.Context) error {
	b.camMu.Lock()
	defer b.camMu.Unlock()
	if b.handle != nil {
		if _, err := b.handle.Frame(); !errors.Is(err, capture.ErrHandleClosed) {
			return nil
		}
		b.handle = nil
	}

	h, err := b.feed.Open(ctx)
	if err != nil {
		b.hub.Publish(Event{Type: EventCamera, Data: map[string]any{"held": false, "error": err.Error()}})
		return err
	}
	b.handle = h
	slog.Info("camera acquired")
	b.hub.Publish(Event{Type: EventCamera, Data: map[string]any{"held": true}})
	return nil
}

// ReleaseCamera closes the camera handle, if any.
func (b *Booth) ReleaseCamera() {
	b.camMu.Lock()
	defer b.camMu.Unlock()
	if b.handle == nil {
		return
	}
	if err := b.handle.Close(); err != nil {
		slog.Warn("failed to release camera", "error", err)
	}
	b.handle = nil
	slog.Info("camera released")
	b.hub.Publish(Event{Type: EventCamera, Data: map[string]any{"held": false}})
}

func (b *Booth) CameraHeld() bool {
	b.camMu.Lock()
	defer b.camMu.Unlock()
	return b.handle != nil && b.feed.Held()
}

func (b *Booth) countdownSeconds() int {
	settings, err := b.db.GetBoothSettings()
	if err != nil {
		slog.Warn("unable to get booth settings, using default countdown", "error", err)
		return defaultCountdownSeconds
	}
	return settings.CountdownSeconds
}

// Capture runs the countdown, takes one still and appends it to the session.
// Only one capture runs at a time.
func (b *Booth) Capture(ctx context.Context) (session.Snapshot, error) {
	if !b.capturing.CompareAndSwap(false, true) {
		return session.Snapshot{}, ErrCaptureInProgress
	}
	defer b.capturing.Store(false)

	s := b.Session()
	if s.IsComplete() {
		return s.Snapshot(), session.ErrSessionFull
	}
	if err := b.AcquireCamera(ctx); err != nil {
		return s.Snapshot(), err
	}

	for remaining := b.countdownSeconds(); remaining > 0; remaining-- {
		b.hub.Publish(Event{Type: EventCountdown, SessionID: s.ID(), Data: map[string]any{"remaining": remaining}})
		if err := b.sleep(ctx, time.Second); err != nil {
			return s.Snapshot(), err
		}
	}

	b.camMu.Lock()
	h := b.handle
	var still capture.Still
	err := capture.ErrHandleClosed
	if h != nil {
		still, err = capture.CaptureStill(h, func() {
			b.hub.Publish(Event{Type: EventFlash, SessionID: s.ID()})
		})
	}
	b.camMu.Unlock()
	if err != nil {
		return s.Snapshot(), fmt.Errorf("failed to capture still: %w", err)
	}

	idx, err := s.AppendStill(still)
	if err != nil {
		return s.Snapshot(), err
	}
	snap := s.Snapshot()
	b.hub.Publish(Event{Type: EventShot, SessionID: s.ID(), Data: map[string]any{"index": idx, "shots": snap.Layout.Shots}})

	if snap.Complete {
		b.hub.Publish(Event{Type: EventComplete, SessionID: s.ID()})
		b.schedulePreview(snap)
	}
	return snap, nil
}

// SetCaption stores the caption and regenerates the preview of a complete
// session.
func (b *Booth) SetCaption(text string) string {
	s := b.Session()
	caption := s.SetCaption(text)
	if snap := s.Snapshot(); snap.Complete {
		b.schedulePreview(snap)
	}
	return caption
}

// Reset clears the stills and caption of the current session.
func (b *Booth) Reset() {
	s := b.Session()
	s.Reset()
	b.previews.Clear()
	b.hub.Publish(Event{Type: EventSession, SessionID: s.ID(), Data: map[string]any{"action": "reset"}})
}

func requestFor(snap session.Snapshot) compositor.Request {
	return compositor.Request{
		Layout:  snap.Layout,
		Frame:   snap.Frame,
		Stills:  snap.Stills,
		Caption: snap.Caption,
	}
}

func (b *Booth) schedulePreview(snap session.Snapshot) {
	b.previews.Submit(snap.ID, requestFor(snap))
}

func (b *Booth) publishPreview(p preview.Preview) {
	data := map[string]any{"seq": p.Seq}
	if p.Err != nil {
		data["error"] = p.Err.Error()
	} else if p.Result != nil {
		data["framed"] = p.Result.Framed
		data["warnings"] = warningStrings(p.Result.Warnings)
	}
	b.hub.Publish(Event{Type: EventPreview, SessionID: p.SessionID, Data: data})
}

// Preview returns the latest preview of the current session and whether a
// newer one is on its way.
func (b *Booth) Preview() (preview.Preview, bool, bool) {
	id := b.Session().ID()
	pending := b.previews.Pending()
	p, ok := b.previews.Latest()
	if !ok || p.SessionID != id || p.Result == nil {
		return preview.Preview{}, false, pending
	}
	return p, true, pending
}

// Export renders the complete session, writes it into the exports directory
// and records it in the ledger.
func (b *Booth) Export(ctx context.Context) (export.Artifact, []error, error) {
	snap := b.Session().Snapshot()
	if !snap.Complete {
		return export.Artifact{}, nil, ErrSessionIncomplete
	}

	res, err := b.compositor.Render(ctx, requestFor(snap))
	if err != nil {
		return export.Artifact{}, nil, fmt.Errorf("failed to render collage: %w", err)
	}
	art, err := b.exporter.Export(res)
	if err != nil {
		return export.Artifact{}, res.Warnings, err
	}

	if err := b.db.InsertExport(&store.Export{
		Name:      art.Name,
		SessionID: snap.ID,
		LayoutID:  string(art.LayoutID),
		FrameID:   art.FrameID,
		Framed:    art.Framed,
		SizeBytes: art.SizeBytes,
		CreatedAt: art.CreatedAt,
	}); err != nil {
		// the file is kept; the indexer registers it on its next pass
		slog.Warn("failed to record export", "name", art.Name, "error", err)
	}

	slog.Info("collage exported", "session", snap.ID, "name", art.Name, "framed", art.Framed)
	b.hub.Publish(Event{Type: EventExported, SessionID: snap.ID, Data: map[string]any{"name": art.Name}})
	return art, res.Warnings, nil
}

// ResetIfIdle resets a session that has been idle for at least timeout and
// releases the camera. It reports whether anything was reset.
func (b *Booth) ResetIfIdle(now time.Time, timeout time.Duration) bool {
	s := b.Session()
	if b.capturing.Load() || s.IdleSince(now) < timeout {
		return false
	}
	if s.ShotIndex() == 0 && s.Caption() == "" && !b.CameraHeld() {
		return false
	}

	slog.Info("resetting idle session", "session", s.ID(), "idle", s.IdleSince(now))
	b.Reset()
	b.ReleaseCamera()
	return true
}

// Close releases the camera.
func (b *Booth) Close() {
	b.ReleaseCamera()
	b.feed.Release()
}

func warningStrings(errs []error) []string {
	if len(errs) == 0 {
		return nil
	}
	out := make([]string, len(errs))
	for i, err := range errs {
		out[i] = err.Error()
	}
	return out
}
