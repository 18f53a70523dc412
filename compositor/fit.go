package compositor

import "image"

// CoverCrop returns the centered region of src with the aspect ratio of dst.
// Scaling that region into dst fills dst completely; the overflow of src is
// cropped equally from both sides.
func CoverCrop(src, dst image.Rectangle) image.Rectangle {
	sw, sh := src.Dx(), src.Dy()
	dw, dh := dst.Dx(), dst.Dy()
	if sw <= 0 || sh <= 0 || dw <= 0 || dh <= 0 {
		return src
	}

	if sw*dh > sh*dw {
		cw := max(sh*dw/dh, 1)
		x := src.Min.X + (sw-cw)/2
		return image.Rect(x, src.Min.Y, x+cw, src.Max.Y)
	}
	ch := max(sw*dh/dw, 1)
	y := src.Min.Y + (sh-ch)/2
	return image.Rect(src.Min.X, y, src.Max.X, y+ch)
}

// ContainRect returns the largest rectangle with the aspect ratio of src that
// fits inside cell, centered in it.
func ContainRect(src, cell image.Rectangle) image.Rectangle {
	sw, sh := src.Dx(), src.Dy()
	cw, ch := cell.Dx(), cell.Dy()
	if sw <= 0 || sh <= 0 || cw <= 0 || ch <= 0 {
		return image.Rectangle{}
	}

	w, h := cw, ch
	if sw*ch > sh*cw {
		h = max(sh*cw/sw, 1)
	} else {
		w = max(sw*ch/sh, 1)
	}
	x := cell.Min.X + (cw-w)/2
	y := cell.Min.Y + (ch-h)/2
	return image.Rect(x, y, x+w, y+h)
}
