// Package capture wraps the camera feed of the booth and turns live frames
// into square stills.
package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
)

// Constraints the browser should request from getUserMedia.
const (
	PreferredWidth  = 1280
	PreferredHeight = 720
	FacingMode      = "user"
)

var (
	ErrCameraUnavailable = errors.New("camera unavailable")
	ErrHandleClosed      = errors.New("camera handle closed")
)

// UnavailableError carries the human readable reason the camera could not be
// opened. It matches ErrCameraUnavailable with errors.Is.
type UnavailableError struct {
	Reason string
	Err    error
}

func (e *UnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("camera unavailable: %s: %v", e.Reason, e.Err)
	}
	return "camera unavailable: " + e.Reason
}

func (e *UnavailableError) Is(target error) bool {
	return target == ErrCameraUnavailable
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// Source opens the camera. Open may be retried any number of times.
type Source interface {
	Open(ctx context.Context) (Handle, error)
}

// Handle is an open camera. Frame returns the current video frame.
type Handle interface {
	Frame() (image.Image, error)
	Close() error
}

// WithHandle opens src, runs fn with the handle and closes the handle on
// every return path.
func WithHandle(ctx context.Context, src Source, fn func(Handle) error) error {
	h, err := src.Open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := h.Close(); err != nil {
			slog.Warn("failed to release camera", "error", err)
		}
	}()
	return fn(h)
}
