package canvas

import (
	"drawza/internal/core/domain"
)

// Hit testing constants, in world pixels unless noted.
const (
	// HitTolerance expands every bounding box so thin lines and strokes
	// remain selectable.
	HitTolerance = 6.0

	// ResizeHandleSize is the edge of the resize hit square at the
	// bounding box's bottom-right corner, in screen pixels.
	ResizeHandleSize = 10.0
)

// HitTest resolves the topmost element whose expanded bounding box
// contains the world point. Elements are checked in reverse creation
// order.
func HitTest(elements []domain.Element, p domain.Point) (domain.Element, bool) {
	for i := len(elements) - 1; i >= 0; i-- {
		if elements[i].Bounds().Expand(HitTolerance).Contains(p) {
			return elements[i], true
		}
	}
	return domain.Element{}, false
}

// HitResizeHandle reports whether the world point falls on the element's
// resize handle. The handle is a fixed screen-size square, so its world
// size shrinks as zoom grows.
func HitResizeHandle(el domain.Element, p domain.Point, zoom float64) bool {
	if zoom <= 0 {
		return false
	}
	b := el.Bounds()
	size := ResizeHandleSize / zoom
	corner := domain.Point{X: b.X + b.Width, Y: b.Y + b.Height}
	return p.X >= corner.X-size && p.X <= corner.X+size &&
		p.Y >= corner.Y-size && p.Y <= corner.Y+size
}
