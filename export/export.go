// Package export writes rendered collages as downloadable PNG files
package export

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/aouyang1/photobooth/catalog"
	"github.com/aouyang1/photobooth/compositor"
	qrcode "github.com/skip2/go-qrcode"
)

// NoFrame replaces the frame id in the name of an unframed export.
const NoFrame = "no-frame"

var ErrInvalidName = errors.New("invalid export name")

// FileName is <product>-<layout>-<frame>-<unix millis>.png.
func FileName(product string, layoutID catalog.LayoutID, frameID string, t time.Time) string {
	return fmt.Sprintf("%s-%s-%s-%d.png", product, layoutID, frameID, t.UnixMilli())
}

// ParseFileName recovers the layout, frame and creation time from a name
// produced by FileName for product.
func ParseFileName(product, name string) (catalog.LayoutID, string, time.Time, bool) {
	rest, ok := strings.CutPrefix(name, product+"-")
	if !ok {
		return "", "", time.Time{}, false
	}
	rest, ok = strings.CutSuffix(rest, ".png")
	if !ok {
		return "", "", time.Time{}, false
	}

	layout, rest, ok := strings.Cut(rest, "-")
	if !ok {
		return "", "", time.Time{}, false
	}
	i := strings.LastIndex(rest, "-")
	if i <= 0 {
		return "", "", time.Time{}, false
	}
	millis, err := strconv.ParseInt(rest[i+1:], 10, 64)
	if err != nil {
		return "", "", time.Time{}, false
	}
	return catalog.LayoutID(layout), rest[:i], time.UnixMilli(millis), true
}

// Encode writes img as a lossless PNG.
func Encode(w io.Writer, img image.Image) error {
	enc := png.Encoder{CompressionLevel: png.DefaultCompression}
	if err := enc.Encode(w, img); err != nil {
		return fmt.Errorf("failed to encode png: %w", err)
	}
	return nil
}

// ValidName reports whether name is a bare export file name.
func ValidName(name string) bool {
	return name != "" &&
		filepath.Base(name) == name &&
		!strings.ContainsAny(name, `/\`) &&
		filepath.Ext(name) == ".png"
}

// QRCode renders url as a PNG QR code of size x size pixels.
func QRCode(url string, size int) ([]byte, error) {
	data, err := qrcode.Encode(url, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("failed to encode qr code: %w", err)
	}
	return data, nil
}

type Artifact struct {
	Name      string
	Path      string
	LayoutID  catalog.LayoutID
	FrameID   string
	Framed    bool
	SizeBytes int64
	CreatedAt time.Time
}

type Exporter struct {
	dir     string
	product string
	now     func() time.Time
}

func NewExporter(dir, product string) *Exporter {
	return &Exporter{dir: dir, product: product, now: time.Now}
}

func (e *Exporter) Dir() string {
	return e.dir
}

func (e *Exporter) Product() string {
	return e.product
}

// Export writes res into the exports directory. The file appears under its
// final name only once fully written.
func (e *Exporter) Export(res *compositor.Result) (Artifact, error) {
	if res == nil || res.Image == nil {
		return Artifact{}, errors.New("nothing to export")
	}
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return Artifact{}, fmt.Errorf("failed to create exports dir %s: %w", e.dir, err)
	}

	frameID := res.Frame.ID
	if !res.Framed {
		frameID = NoFrame
	}

	created := e.now()
	name := FileName(e.product, res.Layout.ID, frameID, created)
	for {
		if _, err := os.Stat(filepath.Join(e.dir, name)); errors.Is(err, os.ErrNotExist) {
			break
		}
		created = created.Add(time.Millisecond)
		name = FileName(e.product, res.Layout.ID, frameID, created)
	}

	tmp, err := os.CreateTemp(e.dir, ".export-*.png")
	if err != nil {
		return Artifact{}, fmt.Errorf("failed to create temp export: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Encode(tmp, res.Image); err != nil {
		tmp.Close()
		return Artifact{}, err
	}
	if err := tmp.Close(); err != nil {
		return Artifact{}, fmt.Errorf("failed to write export: %w", err)
	}

	path := filepath.Join(e.dir, name)
	if err := os.Rename(tmp.Name(), path); err != nil {
		return Artifact{}, fmt.Errorf("failed to move export into place: %w", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return Artifact{}, fmt.Errorf("failed to stat export: %w", err)
	}

	return Artifact{
		Name:      name,
		Path:      path,
		LayoutID:  res.Layout.ID,
		FrameID:   frameID,
		Framed:    res.Framed,
		SizeBytes: info.Size(),
		CreatedAt: created,
	}, nil
}

// Path returns the location of an exported file.
func (e *Exporter) Path(name string) (string, error) {
	if !ValidName(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(e.dir, name), nil
}

func (e *Exporter) Remove(name string) error {
	path, err := e.Path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to remove export %s: %w", name, err)
	}
	return nil
}
