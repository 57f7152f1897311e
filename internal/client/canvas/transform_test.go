package canvas

import (
	"testing"

	"drawza/internal/client/store"
	"drawza/internal/core/domain"

	"github.com/stretchr/testify/assert"
)

func TestScreenWorldRoundTrip(t *testing.T) {
	vp := Viewport{Zoom: 2, Pan: domain.Point{X: 100, Y: 50}}

	world := vp.ScreenToWorld(domain.Point{X: 300, Y: 250})
	assert.Equal(t, domain.Point{X: 100, Y: 100}, world)

	back := vp.WorldToScreen(world)
	assert.Equal(t, domain.Point{X: 300, Y: 250}, back)
}

func TestZoomAtKeepsPointerFixed(t *testing.T) {
	vp := Viewport{Zoom: 1, Pan: domain.Point{X: 20, Y: -10}}
	pointer := domain.Point{X: 400, Y: 300}

	worldBefore := vp.ScreenToWorld(pointer)
	next := vp.ZoomAt(pointer, 1.5)
	worldAfter := next.ScreenToWorld(pointer)

	assert.InDelta(t, worldBefore.X, worldAfter.X, 1e-9)
	assert.InDelta(t, worldBefore.Y, worldAfter.Y, 1e-9)
	assert.InDelta(t, 1.5, next.Zoom, 1e-9)
}

func TestZoomAtClamps(t *testing.T) {
	vp := Viewport{Zoom: 3.5, Pan: domain.Point{}}
	assert.Equal(t, store.MaxZoom, vp.ZoomAt(domain.Point{}, 2).Zoom)

	vp = Viewport{Zoom: 0.25, Pan: domain.Point{}}
	assert.Equal(t, store.MinZoom, vp.ZoomAt(domain.Point{}, 0.5).Zoom)
}

func TestPanBy(t *testing.T) {
	vp := Viewport{Zoom: 1, Pan: domain.Point{X: 5, Y: 5}}
	next := vp.PanBy(-3, 7)
	assert.Equal(t, domain.Point{X: 2, Y: 12}, next.Pan)
	assert.Equal(t, 1.0, next.Zoom)
}
