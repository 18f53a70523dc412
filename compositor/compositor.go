// Package compositor renders captured stills, frame artwork and a caption
// into the collage of a layout.
package compositor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"

	"github.com/aouyang1/photobooth/assets"
	"github.com/aouyang1/photobooth/capture"
	"github.com/aouyang1/photobooth/catalog"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"
)

var (
	ErrFrameLoadFailed   = errors.New("frame load failed")
	ErrStillDecodeFailed = errors.New("still decode failed")
	ErrTooManyStills     = errors.New("more stills than the layout has shots")
	ErrFrameMismatch     = errors.New("frame does not belong to layout")
)

type Options struct {
	// CornerRadius rounds the clip of every still slot. Zero clips to the
	// plain rectangle.
	CornerRadius int
}

type Request struct {
	Layout  catalog.Layout
	Frame   catalog.Frame
	Stills  []capture.Still
	Caption string
}

// Result is a rendered collage sized exactly to the layout canvas. Warnings
// hold the recovered failures, each matching ErrFrameLoadFailed or
// ErrStillDecodeFailed.
type Result struct {
	Image     *image.RGBA
	Layout    catalog.Layout
	Frame     catalog.Frame
	Framed    bool
	Captioned bool
	Warnings  []error
}

type Compositor struct {
	loader assets.Loader
	opts   Options
}

func New(loader assets.Loader, opts Options) *Compositor {
	return &Compositor{loader: loader, opts: opts}
}

// Render draws the frame, then the stills in capture order, then the caption.
// The frame and every still are decoded before anything is drawn. A frame
// that fails to load produces an unframed collage of the stills instead; a
// still that fails to decode leaves its slot showing the frame.
func (c *Compositor) Render(ctx context.Context, req Request) (*Result, error) {
	layout := req.Layout
	if layout.CanvasWidth <= 0 || layout.CanvasHeight <= 0 {
		return nil, fmt.Errorf("layout %s has an empty canvas", layout.ID)
	}
	if req.Frame.LayoutID != layout.ID {
		return nil, fmt.Errorf("%w: %s is not a %s frame", ErrFrameMismatch, req.Frame.ID, layout.ID)
	}
	if len(req.Stills) > layout.Shots {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyStills, len(req.Stills), layout.Shots)
	}

	var (
		frameImg  image.Image
		frameErr  error
		decoded   = make([]image.Image, len(req.Stills))
		decodeErr = make([]error, len(req.Stills))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		frameImg, frameErr = c.loader.Load(gctx, req.Frame)
		return nil
	})
	for i, still := range req.Stills {
		g.Go(func() error {
			decoded[i], decodeErr[i] = still.Decode()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &Result{
		Image:  image.NewRGBA(layout.Canvas()),
		Layout: layout,
		Frame:  req.Frame,
	}
	for i, err := range decodeErr {
		if err != nil {
			slog.Warn("skipping still that failed to decode", "index", i, "error", err)
			res.Warnings = append(res.Warnings, fmt.Errorf("%w: still %d: %w", ErrStillDecodeFailed, i, err))
		}
	}

	if frameErr != nil {
		slog.Warn("frame failed to load, rendering without frame", "frame", req.Frame.ID, "error", frameErr)
		res.Warnings = append(res.Warnings, fmt.Errorf("%w: %s: %w", ErrFrameLoadFailed, req.Frame.ID, frameErr))
		c.drawUnframed(res.Image, layout, decoded)
		return res, nil
	}

	res.Framed = true
	drawStretched(res.Image, frameImg)
	for i, img := range decoded {
		if img == nil {
			continue
		}
		slot, ok := Slot(layout, i)
		if !ok {
			continue
		}
		c.drawCover(res.Image, slot, img)
	}

	if text, ok := CaptionText(req.Caption); ok {
		if err := drawCaption(res.Image, text, CaptionY(layout)); err != nil {
			return nil, err
		}
		res.Captioned = true
	}
	return res, nil
}

func drawStretched(dst *image.RGBA, src image.Image) {
	if src.Bounds().Size() == dst.Bounds().Size() {
		xdraw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, xdraw.Src)
		return
	}
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
}

func (c *Compositor) drawCover(dst *image.RGBA, slot image.Rectangle, img image.Image) {
	var opts *xdraw.Options
	if c.opts.CornerRadius > 0 {
		opts = &xdraw.Options{DstMask: roundedMask{rect: slot, radius: c.opts.CornerRadius}}
	}
	xdraw.CatmullRom.Scale(dst, slot, img, CoverCrop(img.Bounds(), slot), xdraw.Over, opts)
}

// drawUnframed lays the stills out in a uniform grid over a white canvas,
// each contained in its cell.
func (c *Compositor) drawUnframed(dst *image.RGBA, layout catalog.Layout, decoded []image.Image) {
	xdraw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, xdraw.Src)
	for i, img := range decoded {
		if img == nil {
			continue
		}
		r := ContainRect(img.Bounds(), fallbackCell(layout, i))
		if r.Empty() {
			continue
		}
		xdraw.CatmullRom.Scale(dst, r, img, img.Bounds(), xdraw.Over, nil)
	}
}

// roundedMask is opaque inside rect with corners rounded to radius.
type roundedMask struct {
	rect   image.Rectangle
	radius int
}

func (m roundedMask) ColorModel() color.Model { return color.AlphaModel }

func (m roundedMask) Bounds() image.Rectangle { return m.rect }

func (m roundedMask) At(x, y int) color.Color {
	if !image.Pt(x, y).In(m.rect) {
		return color.Transparent
	}
	r := min(m.radius, m.rect.Dx()/2, m.rect.Dy()/2)
	cx, cy := x, y
	switch {
	case x < m.rect.Min.X+r:
		cx = m.rect.Min.X + r
	case x >= m.rect.Max.X-r:
		cx = m.rect.Max.X - r - 1
	}
	switch {
	case y < m.rect.Min.Y+r:
		cy = m.rect.Min.Y + r
	case y >= m.rect.Max.Y-r:
		cy = m.rect.Max.Y - r - 1
	}
	dx, dy := x-cx, y-cy
	if dx*dx+dy*dy > r*r {
		return color.Transparent
	}
	return color.Opaque
}
