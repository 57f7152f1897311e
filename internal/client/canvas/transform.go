package canvas

import (
	"drawza/internal/client/store"
	"drawza/internal/core/domain"
)

// Viewport maps between screen and world coordinates. The world position
// of a screen point is (screen - pan) / zoom.
type Viewport struct {
	Zoom float64
	Pan  domain.Point
}

func (v Viewport) ScreenToWorld(p domain.Point) domain.Point {
	return domain.Point{
		X: (p.X - v.Pan.X) / v.Zoom,
		Y: (p.Y - v.Pan.Y) / v.Zoom,
	}
}

func (v Viewport) WorldToScreen(p domain.Point) domain.Point {
	return domain.Point{
		X: p.X*v.Zoom + v.Pan.X,
		Y: p.Y*v.Zoom + v.Pan.Y,
	}
}

// ZoomAt changes zoom while keeping the world point under the given screen
// point fixed. The factor multiplies the current zoom and the result is
// clamped to the store's zoom bounds.
func (v Viewport) ZoomAt(screen domain.Point, factor float64) Viewport {
	zoom := v.Zoom * factor
	if zoom < store.MinZoom {
		zoom = store.MinZoom
	}
	if zoom > store.MaxZoom {
		zoom = store.MaxZoom
	}

	world := v.ScreenToWorld(screen)
	return Viewport{
		Zoom: zoom,
		Pan: domain.Point{
			X: screen.X - world.X*zoom,
			Y: screen.Y - world.Y*zoom,
		},
	}
}

// PanBy shifts the viewport by a screen-space delta.
func (v Viewport) PanBy(dx, dy float64) Viewport {
	return Viewport{
		Zoom: v.Zoom,
		Pan:  domain.Point{X: v.Pan.X + dx, Y: v.Pan.Y + dy},
	}
}
