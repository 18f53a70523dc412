package capture

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 0, 255})
		}
	}
	return img
}

func TestCropSquare(t *testing.T) {
	tests := []struct {
		name     string
		w, h     int
		side     int
		topLeftX uint8
		topLeftY uint8
	}{
		{"landscape", 128, 72, 72, 28, 0},
		{"portrait", 60, 100, 60, 0, 20},
		{"square", 50, 50, 50, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sq := CropSquare(gradient(tt.w, tt.h))
			if sq.Bounds().Dx() != tt.side || sq.Bounds().Dy() != tt.side {
				t.Fatalf("bounds %v, want %dx%d", sq.Bounds(), tt.side, tt.side)
			}
			c := sq.RGBAAt(0, 0)
			if c.R != tt.topLeftX || c.G != tt.topLeftY {
				t.Errorf("top left sampled from (%d,%d), want (%d,%d)", c.R, c.G, tt.topLeftX, tt.topLeftY)
			}
		})
	}
}

func TestCropSquareOffsetBounds(t *testing.T) {
	src := gradient(100, 60).SubImage(image.Rect(10, 0, 100, 60))
	sq := CropSquare(src)
	if sq.Bounds() != image.Rect(0, 0, 60, 60) {
		t.Fatalf("bounds %v", sq.Bounds())
	}
	// source spans x 10..100, centered square starts at 10 + 15
	if got := sq.RGBAAt(0, 0).R; got != 25 {
		t.Errorf("top left sampled from x=%d, want 25", got)
	}
}

func TestStillRoundTrip(t *testing.T) {
	s, err := NewStill(CropSquare(gradient(80, 40)))
	if err != nil {
		t.Fatalf("NewStill failed: %v", err)
	}
	if s.Width != 40 || s.Height != 40 {
		t.Errorf("still size %dx%d, want 40x40", s.Width, s.Height)
	}
	img, err := s.Decode()
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if img.Bounds().Dx() != 40 {
		t.Errorf("decoded bounds %v", img.Bounds())
	}

	if _, err := (Still{Data: []byte("garbage")}).Decode(); err == nil {
		t.Error("expected decode error")
	}
}

func TestFeedOpenWaitsForFrame(t *testing.T) {
	feed := NewFeed(time.Second)
	go func() {
		time.Sleep(20 * time.Millisecond)
		feed.Push(gradient(64, 48))
	}()

	h, err := feed.Open(context.Background())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer h.Close()

	flashes := 0
	s, err := CaptureStill(h, func() { flashes++ })
	if err != nil {
		t.Fatalf("CaptureStill failed: %v", err)
	}
	if flashes != 1 {
		t.Errorf("expected one flash, got %d", flashes)
	}
	if s.Width != 48 || s.Height != 48 {
		t.Errorf("still %dx%d, want 48x48", s.Width, s.Height)
	}
}

func TestFeedUnavailable(t *testing.T) {
	t.Run("no frame", func(t *testing.T) {
		feed := NewFeed(10 * time.Millisecond)
		_, err := feed.Open(context.Background())
		if !errors.Is(err, ErrCameraUnavailable) {
			t.Fatalf("expected ErrCameraUnavailable, got %v", err)
		}
		if feed.Held() {
			t.Error("failed open must not hold the camera")
		}
	})

	t.Run("browser failure", func(t *testing.T) {
		feed := NewFeed(time.Second)
		feed.Fail("Permission denied")
		_, err := feed.Open(context.Background())
		var ue *UnavailableError
		if !errors.As(err, &ue) {
			t.Fatalf("expected UnavailableError, got %v", err)
		}
		if ue.Reason != "Permission denied" {
			t.Errorf("reason = %q", ue.Reason)
		}

		// retry succeeds once frames flow again
		feed.Push(gradient(4, 4))
		h, err := feed.Open(context.Background())
		if err != nil {
			t.Fatalf("retry failed: %v", err)
		}
		h.Close()
	})

	t.Run("already held", func(t *testing.T) {
		feed := NewFeed(time.Second)
		feed.Push(gradient(4, 4))
		h, err := feed.Open(context.Background())
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		if _, err := feed.Open(context.Background()); !errors.Is(err, ErrCameraUnavailable) {
			t.Errorf("second open should fail, got %v", err)
		}
		h.Close()
		if feed.Held() {
			t.Error("camera still held after close")
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		feed := NewFeed(time.Minute)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := feed.Open(ctx)
		if !errors.Is(err, context.Canceled) || !errors.Is(err, ErrCameraUnavailable) {
			t.Errorf("expected cancelled unavailable error, got %v", err)
		}
	})
}

func TestFeedRelease(t *testing.T) {
	feed := NewFeed(time.Second)
	feed.Push(gradient(4, 4))
	h, err := feed.Open(context.Background())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	feed.Release()
	if _, err := h.Frame(); !errors.Is(err, ErrHandleClosed) {
		t.Errorf("expected ErrHandleClosed after release, got %v", err)
	}

	h2, err := feed.Open(context.Background())
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	// closing the stale handle must not release the new one
	h.Close()
	if !feed.Held() {
		t.Error("stale close released the new handle")
	}
	h2.Close()
}

func TestWithHandleReleasesOnError(t *testing.T) {
	feed := NewFeed(time.Second)
	feed.Push(gradient(4, 4))

	boom := errors.New("boom")
	err := WithHandle(context.Background(), feed, func(h Handle) error {
		if !feed.Held() {
			t.Error("camera not held inside scope")
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
	if feed.Held() {
		t.Error("camera still held after scope")
	}
}

func TestDirSource(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.png", "a.png", "notes.txt"} {
		f, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			t.Fatal(err)
		}
		if filepath.Ext(name) == ".png" {
			w := 10
			if name == "b.png" {
				w = 20
			}
			if err := png.Encode(f, gradient(w, 10)); err != nil {
				t.Fatal(err)
			}
		}
		f.Close()
	}

	var widths []int
	err := WithHandle(context.Background(), NewDirSource(dir), func(h Handle) error {
		for {
			img, err := h.Frame()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return err
			}
			widths = append(widths, img.Bounds().Dx())
		}
	})
	if err != nil {
		t.Fatalf("WithHandle failed: %v", err)
	}
	if len(widths) != 2 || widths[0] != 10 || widths[1] != 20 {
		t.Errorf("frames replayed out of order: %v", widths)
	}

	if _, err := NewDirSource(t.TempDir()).Open(context.Background()); !errors.Is(err, ErrCameraUnavailable) {
		t.Errorf("empty dir should be unavailable, got %v", err)
	}
}
