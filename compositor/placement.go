package compositor

import (
	"image"

	"github.com/aouyang1/photobooth/catalog"
)

type ruleKind int

const (
	// one slot centered horizontally, lifted above the vertical center
	ruleCentered ruleKind = iota
	// slots stacked top to bottom at a fixed pitch
	ruleStrip
	// square cells in a grid centered on the canvas
	ruleGrid
)

const (
	singleSlotWidth  = 540
	singleSlotHeight = 610
	singleLift       = 100

	stripSlotWidth  = 540
	stripSlotHeight = 470
	stripTop        = 40
	stripPitch      = 485

	gridCell = 450
	gridGap  = 20
	gridCols = 2
	gridRows = 2

	gridCaptionInset    = 120
	defaultCaptionInset = 190
)

// Placement describes where the stills of one layout go on its canvas.
type Placement struct {
	kind         ruleKind
	width        int
	height       int
	lift         int
	top          int
	pitch        int
	gap          int
	cols         int
	rows         int
	captionInset int
}

var placements = map[catalog.LayoutID]Placement{
	catalog.Layout1x1: {
		kind:         ruleCentered,
		width:        singleSlotWidth,
		height:       singleSlotHeight,
		lift:         singleLift,
		captionInset: defaultCaptionInset,
	},
	catalog.Layout1x3: {
		kind:         ruleStrip,
		width:        stripSlotWidth,
		height:       stripSlotHeight,
		top:          stripTop,
		pitch:        stripPitch,
		captionInset: defaultCaptionInset,
	},
	catalog.Layout2x2: {
		kind:         ruleGrid,
		width:        gridCell,
		height:       gridCell,
		gap:          gridGap,
		cols:         gridCols,
		rows:         gridRows,
		captionInset: gridCaptionInset,
	},
}

// Slot returns the destination rectangle of still i. It reports false for a
// layout without a placement rule or an index outside the shot count.
func Slot(layout catalog.Layout, i int) (image.Rectangle, bool) {
	p, ok := placements[layout.ID]
	if !ok || i < 0 || i >= layout.Shots {
		return image.Rectangle{}, false
	}

	w, h := layout.CanvasWidth, layout.CanvasHeight
	var x, y int
	switch p.kind {
	case ruleCentered:
		x = (w - p.width) / 2
		y = (h-p.height)/2 - p.lift
	case ruleStrip:
		x = (w - p.width) / 2
		y = p.top + i*p.pitch
	case ruleGrid:
		gridW := p.cols*p.width + (p.cols-1)*p.gap
		gridH := p.rows*p.height + (p.rows-1)*p.gap
		x = (w-gridW)/2 + (i%p.cols)*(p.width+p.gap)
		y = (h-gridH)/2 + (i/p.cols)*(p.height+p.gap)
	}
	return image.Rect(x, y, x+p.width, y+p.height), true
}

// CaptionY is the vertical center of the caption line.
func CaptionY(layout catalog.Layout) int {
	inset := defaultCaptionInset
	if p, ok := placements[layout.ID]; ok {
		inset = p.captionInset
	}
	return layout.CanvasHeight - inset
}

// fallbackCell is the uniform rows x cols cell of still i used when the
// frame could not be loaded.
func fallbackCell(layout catalog.Layout, i int) image.Rectangle {
	cols, rows := max(layout.Cols, 1), max(layout.Rows, 1)
	cw, ch := layout.CanvasWidth/cols, layout.CanvasHeight/rows
	x, y := (i%cols)*cw, (i/cols)*ch
	return image.Rect(x, y, x+cw, y+ch)
}
