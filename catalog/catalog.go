// Package catalog holds the static layout and frame tables of the booth
package catalog

import (
	_ "embed"
	"fmt"
	"image"

	"gopkg.in/yaml.v3"
)

type LayoutID string

const (
	Layout1x1 LayoutID = "1x1"
	Layout1x3 LayoutID = "1x3"
	Layout2x2 LayoutID = "2x2"
)

const (
	DefaultLayout = Layout1x1
	DefaultFrame  = "yeobooth-1x1"
)

type Layout struct {
	ID           LayoutID `yaml:"id" json:"id"`
	Name         string   `yaml:"name" json:"name"`
	Description  string   `yaml:"description" json:"description"`
	Shots        int      `yaml:"shots" json:"shots"`
	Cols         int      `yaml:"cols" json:"cols"`
	Rows         int      `yaml:"rows" json:"rows"`
	CanvasWidth  int      `yaml:"canvas_width" json:"canvas_width"`
	CanvasHeight int      `yaml:"canvas_height" json:"canvas_height"`
}

// Canvas returns the output surface of the layout anchored at the origin.
func (l Layout) Canvas() image.Rectangle {
	return image.Rect(0, 0, l.CanvasWidth, l.CanvasHeight)
}

// Frame is a decorative background tied to exactly one layout. Asset is a
// slash separated path relative to the frames root, e.g. "2x2/white-2x2.png".
type Frame struct {
	ID       string   `yaml:"id" json:"id"`
	LayoutID LayoutID `yaml:"-" json:"layout_id"`
	Name     string   `yaml:"name" json:"name"`
	Asset    string   `yaml:"asset" json:"asset"`
}

//go:embed catalog.yaml
var catalogYAML []byte

type catalogFile struct {
	Layouts []struct {
		Layout `yaml:",inline"`
		Frames []Frame `yaml:"frames"`
	} `yaml:"layouts"`
}

type table struct {
	layouts []Layout
	byID    map[LayoutID]Layout
	frames  map[LayoutID][]Frame
}

var defaultTable = mustParse(catalogYAML)

func mustParse(data []byte) *table {
	t, err := parse(data)
	if err != nil {
		panic(fmt.Sprintf("invalid embedded catalog: %v", err))
	}
	return t
}

func parse(data []byte) (*table, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal catalog: %w", err)
	}

	t := &table{
		byID:   make(map[LayoutID]Layout),
		frames: make(map[LayoutID][]Frame),
	}
	for _, entry := range file.Layouts {
		l := entry.Layout
		if l.Shots <= 0 || l.CanvasWidth <= 0 || l.CanvasHeight <= 0 {
			return nil, fmt.Errorf("layout %s has invalid geometry", l.ID)
		}
		if l.Rows*l.Cols < l.Shots {
			return nil, fmt.Errorf("layout %s grid %dx%d cannot hold %d shots", l.ID, l.Rows, l.Cols, l.Shots)
		}
		if _, exists := t.byID[l.ID]; exists {
			return nil, fmt.Errorf("duplicate layout %s", l.ID)
		}
		if len(entry.Frames) == 0 {
			return nil, fmt.Errorf("layout %s has no frames", l.ID)
		}

		t.layouts = append(t.layouts, l)
		t.byID[l.ID] = l
		for _, f := range entry.Frames {
			f.LayoutID = l.ID
			t.frames[l.ID] = append(t.frames[l.ID], f)
		}
	}
	if _, ok := t.byID[DefaultLayout]; !ok {
		return nil, fmt.Errorf("default layout %s missing", DefaultLayout)
	}
	return t, nil
}

// Layouts returns every layout in catalog order.
func Layouts() []Layout {
	out := make([]Layout, len(defaultTable.layouts))
	copy(out, defaultTable.layouts)
	return out
}

func LookupLayout(id LayoutID) (Layout, bool) {
	l, ok := defaultTable.byID[id]
	return l, ok
}

// FramesFor returns the frames owned by the layout, decorated variant first.
func FramesFor(id LayoutID) []Frame {
	frames := defaultTable.frames[id]
	out := make([]Frame, len(frames))
	copy(out, frames)
	return out
}

// LookupFrame finds a frame only among the frames owned by the layout.
func LookupFrame(layoutID LayoutID, frameID string) (Frame, bool) {
	for _, f := range defaultTable.frames[layoutID] {
		if f.ID == frameID {
			return f, true
		}
	}
	return Frame{}, false
}

// Resolve maps entry parameters to a valid layout/frame pair. An absent or
// unknown layout falls back to the default layout; an absent or unknown frame,
// or one owned by another layout, falls back to the layout's first frame.
func Resolve(layoutID, frameID string) (Layout, Frame) {
	layout, ok := LookupLayout(LayoutID(layoutID))
	if !ok {
		layout = defaultTable.byID[DefaultLayout]
	}
	frame, ok := LookupFrame(layout.ID, frameID)
	if !ok {
		frame = defaultTable.frames[layout.ID][0]
	}
	return layout, frame
}
