package capture

import (
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/aouyang1/photobooth/util"
)

// DirSource replays the images of a directory in name order, one per Frame
// call. It stands in for a camera when composing offline.
type DirSource struct {
	dir string
}

func NewDirSource(dir string) *DirSource {
	return &DirSource{dir: dir}
}

func (d *DirSource) Open(ctx context.Context) (Handle, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, &UnavailableError{Reason: "unable to read stills directory " + d.dir, Err: err}
	}

	var paths []string
	for entry := range slices.Values(entries) {
		if entry.IsDir() || !util.IsSupportedImage(entry.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(d.dir, entry.Name()))
	}
	if len(paths) == 0 {
		return nil, &UnavailableError{Reason: "no images found in " + d.dir}
	}
	slices.Sort(paths)
	return &dirHandle{paths: paths}, nil
}

type dirHandle struct {
	mu     sync.Mutex
	paths  []string
	next   int
	closed bool
}

func (h *dirHandle) Frame() (image.Image, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrHandleClosed
	}
	if h.next >= len(h.paths) {
		return nil, io.EOF
	}
	path := h.paths[h.next]
	h.next++

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open still %s: %w", path, err)
	}
	defer f.Close()
	return DecodeFrame(f)
}

func (h *dirHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return nil
}
