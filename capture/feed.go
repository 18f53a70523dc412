package capture

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"sync"
	"time"
)

// DecodeFrame decodes a camera frame pushed by the browser.
func DecodeFrame(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode camera frame: %w", err)
	}
	return img, nil
}

// Feed is a live video feed driven by the browser. The browser pushes its
// latest camera frame, or reports why the camera failed. Only one handle can
// be open at a time.
type Feed struct {
	wait time.Duration

	mu      sync.Mutex
	latest  image.Image
	failure string
	held    bool
	gen     uint64
	notify  chan struct{}
}

func NewFeed(wait time.Duration) *Feed {
	return &Feed{
		wait:   wait,
		notify: make(chan struct{}),
	}
}

// broadcast wakes every waiter. Must be called with mu held.
func (f *Feed) broadcast() {
	close(f.notify)
	f.notify = make(chan struct{})
}

// Push replaces the current frame and clears any reported failure.
func (f *Feed) Push(img image.Image) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.latest = img
	f.failure = ""
	f.broadcast()
}

// Fail records that the browser could not produce frames.
func (f *Feed) Fail(reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.latest = nil
	f.failure = reason
	f.broadcast()
}

// Held reports whether a handle is currently open.
func (f *Feed) Held() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.held
}

// Release force closes the open handle, if any.
func (f *Feed) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held {
		f.held = false
		f.gen++
		slog.Info("camera released")
	}
}

// Open acquires the camera and waits up to the configured wait for a first
// frame.
func (f *Feed) Open(ctx context.Context) (Handle, error) {
	f.mu.Lock()
	if f.held {
		f.mu.Unlock()
		return nil, &UnavailableError{Reason: "camera is already in use"}
	}
	f.held = true
	f.gen++
	gen := f.gen
	f.mu.Unlock()

	timer := time.NewTimer(f.wait)
	defer timer.Stop()

	for {
		f.mu.Lock()
		switch {
		case f.gen != gen:
			f.mu.Unlock()
			return nil, &UnavailableError{Reason: "camera was released while opening"}
		case f.failure != "":
			reason := f.failure
			f.releaseLocked(gen)
			f.mu.Unlock()
			return nil, &UnavailableError{Reason: reason}
		case f.latest != nil:
			f.mu.Unlock()
			return &feedHandle{feed: f, gen: gen}, nil
		}
		notify := f.notify
		f.mu.Unlock()

		select {
		case <-notify:
		case <-timer.C:
			f.mu.Lock()
			f.releaseLocked(gen)
			f.mu.Unlock()
			return nil, &UnavailableError{Reason: fmt.Sprintf("no camera frame received within %s", f.wait)}
		case <-ctx.Done():
			f.mu.Lock()
			f.releaseLocked(gen)
			f.mu.Unlock()
			return nil, &UnavailableError{Reason: "camera open cancelled", Err: ctx.Err()}
		}
	}
}

func (f *Feed) releaseLocked(gen uint64) {
	if f.held && f.gen == gen {
		f.held = false
		f.gen++
	}
}

type feedHandle struct {
	feed *Feed
	gen  uint64
}

func (h *feedHandle) Frame() (image.Image, error) {
	f := h.feed
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.held || f.gen != h.gen {
		return nil, ErrHandleClosed
	}
	if f.failure != "" {
		return nil, &UnavailableError{Reason: f.failure}
	}
	if f.latest == nil {
		return nil, &UnavailableError{Reason: "no camera frame available"}
	}
	return f.latest, nil
}

// Close releases the camera. Closing a handle that was already released is a
// no-op.
func (h *feedHandle) Close() error {
	f := h.feed
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releaseLocked(h.gen)
	return nil
}
