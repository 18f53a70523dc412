package capture

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	xdraw "golang.org/x/image/draw"
)

// Still is one captured frame, PNG encoded.
type Still struct {
	Data   []byte
	Width  int
	Height int
}

func NewStill(img image.Image) (Still, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return Still{}, fmt.Errorf("failed to encode still: %w", err)
	}
	b := img.Bounds()
	return Still{Data: buf.Bytes(), Width: b.Dx(), Height: b.Dy()}, nil
}

func (s Still) Decode() (image.Image, error) {
	img, err := png.Decode(bytes.NewReader(s.Data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode still: %w", err)
	}
	return img, nil
}

// CropSquare copies the largest centered square of img.
func CropSquare(img image.Image) *image.RGBA {
	b := img.Bounds()
	side := min(b.Dx(), b.Dy())
	sr := image.Rect(0, 0, side, side).Add(image.Pt(
		b.Min.X+(b.Dx()-side)/2,
		b.Min.Y+(b.Dy()-side)/2,
	))

	dst := image.NewRGBA(image.Rect(0, 0, side, side))
	xdraw.Copy(dst, image.Point{}, img, sr, xdraw.Src, nil)
	return dst
}

// CaptureStill grabs the current frame of h, crops it square and encodes it.
// flash is invoked once the frame has been taken.
func CaptureStill(h Handle, flash func()) (Still, error) {
	frame, err := h.Frame()
	if err != nil {
		return Still{}, err
	}
	if flash != nil {
		flash()
	}
	return NewStill(CropSquare(frame))
}
