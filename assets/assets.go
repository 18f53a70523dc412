// Package assets loads frame artwork from the bundled frames, a local
// override directory or a mirrored S3 bucket.
package assets

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"log/slog"
	"os"
	"sync"

	"github.com/aouyang1/photobooth/catalog"
	"github.com/aouyang1/photobooth/util"
)

var ErrUnsupportedAsset = errors.New("unsupported frame asset")

// Loader resolves a frame to its decoded artwork.
type Loader interface {
	Load(ctx context.Context, frame catalog.Frame) (image.Image, error)
}

//go:embed frames
var bundled embed.FS

// FSLoader decodes frame assets from a file system rooted at the frames root.
type FSLoader struct {
	name string
	fsys fs.FS
}

func NewFSLoader(name string, fsys fs.FS) *FSLoader {
	return &FSLoader{name: name, fsys: fsys}
}

// Embedded serves the artwork compiled into the binary.
func Embedded() *FSLoader {
	sub, err := fs.Sub(bundled, "frames")
	if err != nil {
		panic(fmt.Sprintf("bundled frames: %v", err))
	}
	return NewFSLoader("embedded", sub)
}

// NewDirLoader serves artwork from dir, laid out as <layout>/<frame>.png.
func NewDirLoader(dir string) *FSLoader {
	return NewFSLoader(dir, os.DirFS(dir))
}

func (l *FSLoader) Load(ctx context.Context, frame catalog.Frame) (image.Image, error) {
	if !util.IsSupportedImage(frame.Asset) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAsset, frame.Asset)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := l.fsys.Open(frame.Asset)
	if err != nil {
		return nil, fmt.Errorf("failed to open frame asset %s from %s: %w", frame.Asset, l.name, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame asset %s from %s: %w", frame.Asset, l.name, err)
	}
	return img, nil
}

// Chain tries each loader in order and returns the first artwork that loads.
type Chain []Loader

func (c Chain) Load(ctx context.Context, frame catalog.Frame) (image.Image, error) {
	var errs []error
	for _, l := range c {
		img, err := l.Load(ctx, frame)
		if err == nil {
			return img, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, fmt.Errorf("no loader configured for frame %s", frame.ID)
	}
	return nil, errors.Join(errs...)
}

// Cache memoises decoded artwork per frame id. Failed loads are not cached.
type Cache struct {
	next Loader

	mu     sync.RWMutex
	images map[string]image.Image
}

func NewCache(next Loader) *Cache {
	return &Cache{
		next:   next,
		images: make(map[string]image.Image),
	}
}

func (c *Cache) Load(ctx context.Context, frame catalog.Frame) (image.Image, error) {
	c.mu.RLock()
	img, ok := c.images[frame.ID]
	c.mu.RUnlock()
	if ok {
		return img, nil
	}

	img, err := c.next.Load(ctx, frame)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.images[frame.ID] = img
	c.mu.Unlock()
	return img, nil
}

// Invalidate drops every cached image.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	n := len(c.images)
	c.images = make(map[string]image.Image)
	c.mu.Unlock()
	slog.Debug("frame cache invalidated", "dropped", n)
}

// Watch invalidates the cache each time updated fires until it is closed.
// onUpdate, when set, runs after each invalidation.
func (c *Cache) Watch(updated <-chan bool, onUpdate func()) {
	for range updated {
		c.Invalidate()
		if onUpdate != nil {
			onUpdate()
		}
	}
}
