package compositor

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

const (
	captionMaxRunes = 50
	captionEllipsis = "..."
	captionSize     = 28
)

var captionColor = color.RGBA{R: 0x33, G: 0x33, B: 0x33, A: 0xff}

var captionFont = sync.OnceValues(func() (*opentype.Font, error) {
	return opentype.Parse(gobold.TTF)
})

// CaptionText returns the text to draw for raw. Blank captions are not drawn.
// Longer captions are cut to 50 characters followed by an ellipsis.
func CaptionText(raw string) (string, bool) {
	if strings.TrimSpace(raw) == "" {
		return "", false
	}
	runes := []rune(raw)
	if len(runes) > captionMaxRunes {
		return string(runes[:captionMaxRunes]) + captionEllipsis, true
	}
	return raw, true
}

// drawCaption draws text horizontally centered on dst with its vertical
// middle at centerY.
func drawCaption(dst draw.Image, text string, centerY int) error {
	f, err := captionFont()
	if err != nil {
		return fmt.Errorf("failed to parse caption font: %w", err)
	}
	// faces keep a glyph buffer so each render gets its own
	face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: captionSize, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return fmt.Errorf("failed to create caption face: %w", err)
	}
	defer face.Close()

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(captionColor),
		Face: face,
	}
	b := dst.Bounds()
	width := d.MeasureString(text)
	m := face.Metrics()
	d.Dot = fixed.Point26_6{
		X: fixed.I(b.Min.X) + (fixed.I(b.Dx())-width)/2,
		Y: fixed.I(centerY) + (m.Ascent-m.Descent)/2,
	}
	d.DrawString(text)
	return nil
}
