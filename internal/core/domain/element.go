package domain

import "time"

type RoomID string
type ConnID string
type UserID string
type ElementID string

type ElementType string

const (
	ElementRectangle ElementType = "rectangle"
	ElementLine      ElementType = "line"
	ElementPencil    ElementType = "pencil"
	ElementText      ElementType = "text"
)

// Point is a world-space coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Element is one drawing primitive in a room's shared collection.
// Width and height may be negative for shapes; Bounds normalizes them.
type Element struct {
	ID          ElementID   `json:"id"`
	Type        ElementType `json:"type"`
	X           float64     `json:"x"`
	Y           float64     `json:"y"`
	Width       float64     `json:"width"`
	Height      float64     `json:"height"`
	Points      []Point     `json:"points,omitempty"`
	StrokeColor string      `json:"strokeColor"`
	FillColor   string      `json:"fillColor"`
	StrokeWidth float64     `json:"strokeWidth"`
	Opacity     float64     `json:"opacity"`
	Text        string      `json:"text,omitempty"`
	FontSize    float64     `json:"fontSize,omitempty"`
	CreatedBy   UserID      `json:"createdBy"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// Bounds is an axis-aligned bounding box with non-negative size.
type Bounds struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Bounds returns the element's axis-aligned bounding box using the
// type-specific rules: min/max over points for pencil strokes, normalized
// origin plus absolute size for shapes, font-size fallback height for text.
func (e Element) Bounds() Bounds {
	switch e.Type {
	case ElementText:
		height := e.Height
		if height == 0 {
			height = e.FontSize
			if height == 0 {
				height = DefaultFontSize
			}
		}
		return Bounds{X: e.X, Y: e.Y, Width: e.Width, Height: height}

	case ElementPencil:
		if len(e.Points) == 0 {
			return Bounds{X: e.X, Y: e.Y}
		}
		minX, minY := e.Points[0].X, e.Points[0].Y
		maxX, maxY := minX, minY
		for _, p := range e.Points[1:] {
			if p.X < minX {
				minX = p.X
			}
			if p.X > maxX {
				maxX = p.X
			}
			if p.Y < minY {
				minY = p.Y
			}
			if p.Y > maxY {
				maxY = p.Y
			}
		}
		return Bounds{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}

	default:
		x, w := e.X, e.Width
		if w < 0 {
			x, w = x+w, -w
		}
		y, h := e.Y, e.Height
		if h < 0 {
			y, h = y+h, -h
		}
		return Bounds{X: x, Y: y, Width: w, Height: h}
	}
}

// Expand grows the bounds by tol on every side.
func (b Bounds) Expand(tol float64) Bounds {
	return Bounds{
		X:      b.X - tol,
		Y:      b.Y - tol,
		Width:  b.Width + 2*tol,
		Height: b.Height + 2*tol,
	}
}

// Contains reports whether the point lies inside the bounds.
func (b Bounds) Contains(p Point) bool {
	return p.X >= b.X && p.X <= b.X+b.Width && p.Y >= b.Y && p.Y <= b.Y+b.Height
}

// DefaultFontSize is the font size assigned to new text elements.
const DefaultFontSize = 24.0
