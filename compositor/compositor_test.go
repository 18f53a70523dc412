package compositor

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/aouyang1/photobooth/assets"
	"github.com/aouyang1/photobooth/capture"
	"github.com/aouyang1/photobooth/catalog"
)

var (
	blue  = color.RGBA{0, 0, 255, 255}
	red   = color.RGBA{255, 0, 0, 255}
	green = color.RGBA{0, 255, 0, 255}
)

type stubLoader struct {
	img image.Image
	err error
}

func (s stubLoader) Load(ctx context.Context, frame catalog.Frame) (image.Image, error) {
	return s.img, s.err
}

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func solidStill(t *testing.T, w, h int, c color.Color) capture.Still {
	t.Helper()
	s, err := capture.NewStill(solid(w, h, c))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func near(a, b color.RGBA) bool {
	d := func(x, y uint8) int {
		if x > y {
			return int(x - y)
		}
		return int(y - x)
	}
	return d(a.R, b.R) <= 4 && d(a.G, b.G) <= 4 && d(a.B, b.B) <= 4
}

func request(t *testing.T, id catalog.LayoutID, frameID string, n int, c color.Color) Request {
	t.Helper()
	layout, ok := catalog.LookupLayout(id)
	if !ok {
		t.Fatalf("unknown layout %s", id)
	}
	frame, ok := catalog.LookupFrame(id, frameID)
	if !ok {
		t.Fatalf("unknown frame %s", frameID)
	}
	req := Request{Layout: layout, Frame: frame}
	for i := 0; i < n; i++ {
		req.Stills = append(req.Stills, solidStill(t, 64, 64, c))
	}
	return req
}

func TestSlot(t *testing.T) {
	tests := []struct {
		layout catalog.LayoutID
		index  int
		want   image.Rectangle
	}{
		{catalog.Layout1x1, 0, image.Rect(30, 45, 570, 655)},
		{catalog.Layout1x3, 0, image.Rect(30, 40, 570, 510)},
		{catalog.Layout1x3, 1, image.Rect(30, 525, 570, 995)},
		{catalog.Layout1x3, 2, image.Rect(30, 1010, 570, 1480)},
		{catalog.Layout2x2, 0, image.Rect(140, 140, 590, 590)},
		{catalog.Layout2x2, 1, image.Rect(610, 140, 1060, 590)},
		{catalog.Layout2x2, 2, image.Rect(140, 610, 590, 1060)},
		{catalog.Layout2x2, 3, image.Rect(610, 610, 1060, 1060)},
	}

	for _, tt := range tests {
		t.Run(string(tt.layout), func(t *testing.T) {
			layout, _ := catalog.LookupLayout(tt.layout)
			got, ok := Slot(layout, tt.index)
			if !ok {
				t.Fatalf("no slot %d", tt.index)
			}
			if got != tt.want {
				t.Errorf("Slot(%s, %d) = %v, want %v", tt.layout, tt.index, got, tt.want)
			}
			if !got.In(layout.Canvas()) {
				t.Errorf("slot %v outside canvas", got)
			}
		})
	}

	layout, _ := catalog.LookupLayout(catalog.Layout2x2)
	if _, ok := Slot(layout, 4); ok {
		t.Error("expected no slot past the shot count")
	}
	if _, ok := Slot(catalog.Layout{ID: "3x3", Shots: 9}, 0); ok {
		t.Error("expected no slot for unknown layout")
	}
}

func TestCaptionY(t *testing.T) {
	tests := []struct {
		layout catalog.LayoutID
		want   int
	}{
		{catalog.Layout1x1, 710},
		{catalog.Layout1x3, 1610},
		{catalog.Layout2x2, 1080},
	}
	for _, tt := range tests {
		layout, _ := catalog.LookupLayout(tt.layout)
		if got := CaptionY(layout); got != tt.want {
			t.Errorf("CaptionY(%s) = %d, want %d", tt.layout, got, tt.want)
		}
	}
}

func TestCoverCrop(t *testing.T) {
	tests := []struct {
		name string
		src  image.Rectangle
		dst  image.Rectangle
		want image.Rectangle
	}{
		{"wide into portrait", image.Rect(0, 0, 1280, 720), image.Rect(0, 0, 540, 610), image.Rect(321, 0, 958, 720)},
		{"square into landscape", image.Rect(0, 0, 720, 720), image.Rect(0, 0, 540, 470), image.Rect(0, 47, 720, 673)},
		{"square into square", image.Rect(0, 0, 720, 720), image.Rect(0, 0, 450, 450), image.Rect(0, 0, 720, 720)},
		{"offset source", image.Rect(10, 10, 110, 60), image.Rect(0, 0, 50, 50), image.Rect(35, 10, 85, 60)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CoverCrop(tt.src, tt.dst)
			if got != tt.want {
				t.Fatalf("CoverCrop = %v, want %v", got, tt.want)
			}
			if !got.In(tt.src) {
				t.Errorf("crop %v escapes source %v", got, tt.src)
			}
		})
	}
}

func TestContainRect(t *testing.T) {
	tests := []struct {
		name string
		src  image.Rectangle
		cell image.Rectangle
		want image.Rectangle
	}{
		{"square in wide cell", image.Rect(0, 0, 100, 100), image.Rect(0, 0, 600, 300), image.Rect(150, 0, 450, 300)},
		{"square in tall cell", image.Rect(0, 0, 100, 100), image.Rect(0, 0, 600, 900), image.Rect(0, 150, 600, 750)},
		{"offset cell", image.Rect(0, 0, 50, 50), image.Rect(600, 600, 1200, 1200), image.Rect(600, 600, 1200, 1200)},
		{"empty", image.Rect(0, 0, 0, 10), image.Rect(0, 0, 10, 10), image.Rectangle{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ContainRect(tt.src, tt.cell); got != tt.want {
				t.Errorf("ContainRect = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCaptionText(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		want   string
		wantOK bool
	}{
		{"eighty chars", strings.Repeat("x", 80), strings.Repeat("x", 50) + "...", true},
		{"fifty chars verbatim", strings.Repeat("y", 50), strings.Repeat("y", 50), true},
		{"short", "family trip!!", "family trip!!", true},
		{"padded kept verbatim", "  hi  ", "  hi  ", true},
		{"all whitespace", " \t\n ", "", false},
		{"empty", "", "", false},
		{"runes not bytes", strings.Repeat("한", 51), strings.Repeat("한", 50) + "...", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := CaptionText(tt.raw)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("CaptionText(%q) = %q, %v; want %q, %v", tt.raw, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestRenderSizePerLayout(t *testing.T) {
	for _, l := range catalog.Layouts() {
		t.Run(string(l.ID), func(t *testing.T) {
			c := New(stubLoader{img: solid(l.CanvasWidth, l.CanvasHeight, blue)}, Options{})
			req := request(t, l.ID, catalog.FramesFor(l.ID)[0].ID, l.Shots, red)
			req.Caption = "hello"

			res, err := c.Render(context.Background(), req)
			if err != nil {
				t.Fatalf("Render failed: %v", err)
			}
			if res.Image.Bounds() != l.Canvas() {
				t.Errorf("bounds %v, want %v", res.Image.Bounds(), l.Canvas())
			}
			if !res.Framed || !res.Captioned || len(res.Warnings) != 0 {
				t.Errorf("framed=%v captioned=%v warnings=%v", res.Framed, res.Captioned, res.Warnings)
			}
		})
	}
}

func TestRenderIsIdempotent(t *testing.T) {
	c := New(assets.Embedded(), Options{})
	req := request(t, catalog.Layout1x3, "yeobooth-1x3", 3, green)
	req.Stills[1] = solidStill(t, 90, 40, red)
	req.Caption = "same input, same output"

	first, err := c.Render(context.Background(), req)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	second, err := c.Render(context.Background(), req)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !bytes.Equal(first.Image.Pix, second.Image.Pix) {
		t.Error("renders of identical input differ")
	}
}

func TestRenderCoverFillsSlot(t *testing.T) {
	c := New(stubLoader{img: solid(600, 900, blue)}, Options{})
	req := request(t, catalog.Layout1x1, "white-1x1", 0, red)
	// wide still must be cropped, never letterboxed
	req.Stills = []capture.Still{solidStill(t, 128, 72, red)}

	res, err := c.Render(context.Background(), req)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	slot, _ := Slot(req.Layout, 0)
	for y := slot.Min.Y; y < slot.Max.Y; y += 7 {
		for x := slot.Min.X; x < slot.Max.X; x += 7 {
			if got := res.Image.RGBAAt(x, y); !near(got, red) {
				t.Fatalf("pixel (%d,%d) = %v inside slot, want still", x, y, got)
			}
		}
	}
	outside := []image.Point{{slot.Min.X - 1, slot.Min.Y}, {slot.Max.X, slot.Max.Y - 1}, {300, slot.Max.Y}}
	for _, p := range outside {
		if got := res.Image.RGBAAt(p.X, p.Y); got != blue {
			t.Errorf("pixel %v = %v outside slot, want frame", p, got)
		}
	}
}

func TestRenderCornerRadius(t *testing.T) {
	c := New(stubLoader{img: solid(600, 900, blue)}, Options{CornerRadius: 40})
	req := request(t, catalog.Layout1x1, "white-1x1", 1, red)

	res, err := c.Render(context.Background(), req)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	slot, _ := Slot(req.Layout, 0)
	if got := res.Image.RGBAAt(slot.Min.X, slot.Min.Y); got != blue {
		t.Errorf("rounded corner pixel = %v, want frame", got)
	}
	center := image.Pt((slot.Min.X+slot.Max.X)/2, (slot.Min.Y+slot.Max.Y)/2)
	if got := res.Image.RGBAAt(center.X, center.Y); !near(got, red) {
		t.Errorf("center pixel = %v, want still", got)
	}
	if got := res.Image.RGBAAt(slot.Min.X, center.Y); !near(got, red) {
		t.Errorf("edge midpoint = %v, want still", got)
	}
}

func TestRenderFrameLoadFailure(t *testing.T) {
	c := New(stubLoader{err: errors.New("missing artwork")}, Options{})
	req := request(t, catalog.Layout1x1, "yeobooth-1x1", 1, red)
	req.Caption = "not drawn"

	res, err := c.Render(context.Background(), req)
	if err != nil {
		t.Fatalf("frame failure must not fail the render: %v", err)
	}
	if res.Image.Bounds() != req.Layout.Canvas() {
		t.Errorf("bounds %v, want full canvas", res.Image.Bounds())
	}
	if res.Framed || res.Captioned {
		t.Errorf("framed=%v captioned=%v, want unframed and uncaptioned", res.Framed, res.Captioned)
	}
	if len(res.Warnings) != 1 || !errors.Is(res.Warnings[0], ErrFrameLoadFailed) {
		t.Fatalf("warnings = %v, want one FrameLoadFailed", res.Warnings)
	}
	if got := res.Image.RGBAAt(300, 450); !near(got, red) {
		t.Errorf("still not visible, center = %v", got)
	}
	if got := res.Image.RGBAAt(300, 50); got != (color.RGBA{255, 255, 255, 255}) {
		t.Errorf("background = %v, want white", got)
	}
}

func TestRenderFrameLoadFailureShowsAllStills(t *testing.T) {
	c := New(stubLoader{err: errors.New("missing artwork")}, Options{})
	req := request(t, catalog.Layout2x2, "yeobooth-2x2", 0, red)
	colors := []color.RGBA{red, green, blue, {255, 255, 0, 255}}
	for _, col := range colors {
		req.Stills = append(req.Stills, solidStill(t, 32, 32, col))
	}

	res, err := c.Render(context.Background(), req)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	for i, col := range colors {
		cell := fallbackCell(req.Layout, i)
		mid := image.Pt((cell.Min.X+cell.Max.X)/2, (cell.Min.Y+cell.Max.Y)/2)
		if got := res.Image.RGBAAt(mid.X, mid.Y); !near(got, col) {
			t.Errorf("still %d center = %v, want %v", i, got, col)
		}
	}
}

func TestRenderStillDecodeFailure(t *testing.T) {
	c := New(stubLoader{img: solid(600, 1800, blue)}, Options{})
	req := request(t, catalog.Layout1x3, "white-1x3", 3, red)
	req.Stills[1] = capture.Still{Data: []byte("corrupt"), Width: 10, Height: 10}

	res, err := c.Render(context.Background(), req)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if len(res.Warnings) != 1 || !errors.Is(res.Warnings[0], ErrStillDecodeFailed) {
		t.Fatalf("warnings = %v, want one StillDecodeFailed", res.Warnings)
	}
	for i, want := range []color.RGBA{red, blue, red} {
		slot, _ := Slot(req.Layout, i)
		mid := image.Pt((slot.Min.X+slot.Max.X)/2, (slot.Min.Y+slot.Max.Y)/2)
		if got := res.Image.RGBAAt(mid.X, mid.Y); !near(got, want) {
			t.Errorf("slot %d center = %v, want %v", i, got, want)
		}
	}
}

func TestRenderPartialSession(t *testing.T) {
	c := New(stubLoader{img: solid(1200, 1200, blue)}, Options{})
	req := request(t, catalog.Layout2x2, "white-2x2", 2, red)

	res, err := c.Render(context.Background(), req)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	slot, _ := Slot(req.Layout, 3)
	if got := res.Image.RGBAAt(slot.Min.X+10, slot.Min.Y+10); got != blue {
		t.Errorf("empty slot = %v, want frame", got)
	}
}

func TestRenderWhitespaceCaption(t *testing.T) {
	c := New(stubLoader{img: solid(600, 900, blue)}, Options{})
	req := request(t, catalog.Layout1x1, "white-1x1", 1, red)

	plain, err := c.Render(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	req.Caption = "    "
	blank, err := c.Render(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if blank.Captioned {
		t.Error("whitespace caption should not be drawn")
	}
	if !bytes.Equal(plain.Image.Pix, blank.Image.Pix) {
		t.Error("whitespace caption changed the output")
	}
}

func TestRenderRejectsInvalidRequests(t *testing.T) {
	c := New(stubLoader{img: solid(600, 900, blue)}, Options{})

	req := request(t, catalog.Layout1x1, "white-1x1", 2, red)
	if _, err := c.Render(context.Background(), req); !errors.Is(err, ErrTooManyStills) {
		t.Errorf("expected ErrTooManyStills, got %v", err)
	}

	req = request(t, catalog.Layout1x1, "white-1x1", 1, red)
	req.Frame, _ = catalog.LookupFrame(catalog.Layout2x2, "white-2x2")
	if _, err := c.Render(context.Background(), req); !errors.Is(err, ErrFrameMismatch) {
		t.Errorf("expected ErrFrameMismatch, got %v", err)
	}
}

func TestRenderFamilyTripGrid(t *testing.T) {
	c := New(assets.Embedded(), Options{})
	req := request(t, catalog.Layout2x2, "yeobooth-2x2", 0, red)
	// landscape and portrait stills mixed in one grid
	stills := []struct {
		w, h int
		col  color.RGBA
	}{
		{1280, 720, red},
		{720, 1280, green},
		{720, 720, blue},
		{1920, 1080, color.RGBA{255, 255, 0, 255}},
	}
	for _, s := range stills {
		req.Stills = append(req.Stills, solidStill(t, s.w, s.h, s.col))
	}
	req.Caption = "family trip!!"

	res, err := c.Render(context.Background(), req)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if res.Image.Bounds() != image.Rect(0, 0, 1200, 1200) {
		t.Fatalf("bounds %v, want 1200x1200", res.Image.Bounds())
	}
	if !res.Framed || !res.Captioned || len(res.Warnings) != 0 {
		t.Fatalf("framed=%v captioned=%v warnings=%v", res.Framed, res.Captioned, res.Warnings)
	}

	for i, s := range stills {
		slot, _ := Slot(req.Layout, i)
		points := []image.Point{
			{(slot.Min.X + slot.Max.X) / 2, (slot.Min.Y + slot.Max.Y) / 2},
			slot.Min,
			{slot.Max.X - 1, slot.Min.Y},
			{slot.Min.X, slot.Max.Y - 1},
			{slot.Max.X - 1, slot.Max.Y - 1},
		}
		for _, p := range points {
			if got := res.Image.RGBAAt(p.X, p.Y); !near(got, s.col) {
				t.Errorf("still %d (%dx%d) pixel %v = %v, want %v", i, s.w, s.h, p, got, s.col)
			}
		}
	}

	captionY := CaptionY(req.Layout)
	dark := color.RGBA{0x33, 0x33, 0x33, 0xff}
	minX, maxX := 1200, 0
	for y := captionY - 20; y <= captionY+20; y++ {
		for x := 0; x < 1200; x++ {
			if res.Image.RGBAAt(x, y) == dark {
				minX, maxX = min(minX, x), max(maxX, x)
			}
		}
	}
	if minX > maxX {
		t.Fatal("caption not drawn near its baseline")
	}
	if center := (minX + maxX) / 2; center < 580 || center > 620 {
		t.Errorf("caption centered at x=%d, want near 600", center)
	}
}
