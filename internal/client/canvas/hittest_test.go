package canvas

import (
	"testing"

	"drawza/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHitTestTopmostFirst(t *testing.T) {
	bottom := domain.Element{ID: "bottom", Type: domain.ElementRectangle, X: 0, Y: 0, Width: 100, Height: 100}
	top := domain.Element{ID: "top", Type: domain.ElementRectangle, X: 40, Y: 40, Width: 100, Height: 100}

	hit, ok := HitTest([]domain.Element{bottom, top}, domain.Point{X: 50, Y: 50})
	require.True(t, ok)
	assert.Equal(t, domain.ElementID("top"), hit.ID)

	hit, ok = HitTest([]domain.Element{bottom, top}, domain.Point{X: 10, Y: 10})
	require.True(t, ok)
	assert.Equal(t, domain.ElementID("bottom"), hit.ID)
}

func TestHitTestTolerance(t *testing.T) {
	el := domain.Element{ID: "r", Type: domain.ElementRectangle, X: 10, Y: 10, Width: 20, Height: 20}
	elements := []domain.Element{el}

	// Just inside the expanded box.
	_, ok := HitTest(elements, domain.Point{X: 10 - HitTolerance, Y: 20})
	assert.True(t, ok)

	// Just outside.
	_, ok = HitTest(elements, domain.Point{X: 10 - HitTolerance - 1, Y: 20})
	assert.False(t, ok)
}

func TestHitTestNegativeSizeShape(t *testing.T) {
	// Dragged up-left: width and height are negative.
	el := domain.Element{ID: "r", Type: domain.ElementRectangle, X: 50, Y: 50, Width: -30, Height: -30}

	_, ok := HitTest([]domain.Element{el}, domain.Point{X: 35, Y: 35})
	assert.True(t, ok)
}

func TestHitTestPencilUsesPointExtent(t *testing.T) {
	el := domain.Element{
		ID:   "p",
		Type: domain.ElementPencil,
		Points: []domain.Point{
			{X: 10, Y: 10}, {X: 60, Y: 20}, {X: 30, Y: 80},
		},
	}

	_, ok := HitTest([]domain.Element{el}, domain.Point{X: 40, Y: 40})
	assert.True(t, ok)

	_, ok = HitTest([]domain.Element{el}, domain.Point{X: 200, Y: 200})
	assert.False(t, ok)
}

func TestHitResizeHandleScalesWithZoom(t *testing.T) {
	el := domain.Element{ID: "r", Type: domain.ElementRectangle, X: 0, Y: 0, Width: 100, Height: 100}
	corner := domain.Point{X: 100, Y: 100}

	assert.True(t, HitResizeHandle(el, corner, 1))
	assert.True(t, HitResizeHandle(el, domain.Point{X: 108, Y: 108}, 1))
	assert.False(t, HitResizeHandle(el, domain.Point{X: 112, Y: 112}, 1))

	// At 4x zoom the handle covers a quarter of the world-space area.
	assert.True(t, HitResizeHandle(el, domain.Point{X: 102, Y: 102}, 4))
	assert.False(t, HitResizeHandle(el, domain.Point{X: 104, Y: 104}, 4))
}
