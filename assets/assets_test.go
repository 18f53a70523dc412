package assets

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/aouyang1/photobooth/catalog"
)

func TestEmbeddedFramesMatchCanvas(t *testing.T) {
	loader := Embedded()
	for _, l := range catalog.Layouts() {
		for _, f := range catalog.FramesFor(l.ID) {
			t.Run(f.ID, func(t *testing.T) {
				img, err := loader.Load(context.Background(), f)
				if err != nil {
					t.Fatalf("Load failed: %v", err)
				}
				if img.Bounds() != l.Canvas() {
					t.Errorf("frame bounds %v, want %v", img.Bounds(), l.Canvas())
				}
			})
		}
	}
}

func encodePNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestFSLoader(t *testing.T) {
	fsys := fstest.MapFS{
		"1x1/custom.png": &fstest.MapFile{Data: encodePNG(t, 4, 6, color.White)},
		"1x1/broken.png": &fstest.MapFile{Data: []byte("not a png")},
	}
	loader := NewFSLoader("test", fsys)

	tests := []struct {
		name    string
		asset   string
		wantErr bool
	}{
		{"decodes", "1x1/custom.png", false},
		{"missing", "1x1/missing.png", true},
		{"corrupt", "1x1/broken.png", true},
		{"unsupported", "1x1/custom.gif", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := loader.Load(context.Background(), catalog.Frame{ID: "custom", Asset: tt.asset})
			if (err != nil) != tt.wantErr {
				t.Fatalf("Load err = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && img.Bounds().Dx() != 4 {
				t.Errorf("unexpected bounds %v", img.Bounds())
			}
		})
	}
}

func TestDirLoaderOverridesEmbedded(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "1x1"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "1x1", "white-1x1.png"), encodePNG(t, 3, 3, color.Black), 0o644); err != nil {
		t.Fatal(err)
	}

	chain := Chain{NewDirLoader(dir), Embedded()}
	white, _ := catalog.LookupFrame(catalog.Layout1x1, "white-1x1")
	decorated, _ := catalog.LookupFrame(catalog.Layout1x1, "yeobooth-1x1")

	img, err := chain.Load(context.Background(), white)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if img.Bounds().Dx() != 3 {
		t.Errorf("expected override artwork, got bounds %v", img.Bounds())
	}

	img, err = chain.Load(context.Background(), decorated)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if img.Bounds().Dx() != 600 {
		t.Errorf("expected embedded artwork, got bounds %v", img.Bounds())
	}
}

func TestChainJoinsErrors(t *testing.T) {
	chain := Chain{NewFSLoader("a", fstest.MapFS{}), NewFSLoader("b", fstest.MapFS{})}
	_, err := chain.Load(context.Background(), catalog.Frame{ID: "x", Asset: "x.png"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist in joined error, got %v", err)
	}

	if _, err := (Chain{}).Load(context.Background(), catalog.Frame{ID: "x"}); err == nil {
		t.Error("expected error for empty chain")
	}
}

type countingLoader struct {
	calls int
	err   error
}

func (c *countingLoader) Load(ctx context.Context, frame catalog.Frame) (image.Image, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return image.NewRGBA(image.Rect(0, 0, 1, 1)), nil
}

func TestCache(t *testing.T) {
	next := &countingLoader{}
	cache := NewCache(next)
	frame := catalog.Frame{ID: "white-1x1"}

	for i := 0; i < 3; i++ {
		if _, err := cache.Load(context.Background(), frame); err != nil {
			t.Fatalf("Load failed: %v", err)
		}
	}
	if next.calls != 1 {
		t.Errorf("expected 1 underlying load, got %d", next.calls)
	}

	updated := make(chan bool, 1)
	updated <- true
	close(updated)
	cache.Watch(updated, nil)

	if _, err := cache.Load(context.Background(), frame); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if next.calls != 2 {
		t.Errorf("expected reload after invalidate, got %d calls", next.calls)
	}
}

func TestCacheSkipsFailures(t *testing.T) {
	next := &countingLoader{err: errors.New("boom")}
	cache := NewCache(next)
	frame := catalog.Frame{ID: "white-1x1"}

	for i := 0; i < 2; i++ {
		if _, err := cache.Load(context.Background(), frame); err == nil {
			t.Fatal("expected error")
		}
	}
	if next.calls != 2 {
		t.Errorf("failures should not be cached, got %d calls", next.calls)
	}
}
