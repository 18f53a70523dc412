// Package util is a set of utility variables or methods
package util

import (
	"path/filepath"

	mapset "github.com/deckarep/golang-set/v2"
)

// SupportedExt lists the image extensions accepted for frame artwork and
// directory capture sources.
var SupportedExt = mapset.NewSet(
	".jpeg", ".jpg", ".JPEG", ".JPG",
	".png", ".PNG",
)

// SupportedContentTypes lists the content types accepted for pushed camera frames.
var SupportedContentTypes = mapset.NewSet(
	"image/png", "image/jpeg",
)

// IsSupportedImage reports whether name has a supported image extension.
func IsSupportedImage(name string) bool {
	return SupportedExt.Contains(filepath.Ext(name))
}
