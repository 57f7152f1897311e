package canvas

import (
	"sync"
	"time"

	"drawza/internal/client/store"
	"drawza/internal/core/domain"
)

// DefaultFrameInterval approximates a 60 Hz redraw cadence.
const DefaultFrameInterval = 16 * time.Millisecond

// Frame is the display list handed to the renderer each tick. It is
// rebuilt from scratch every frame; nothing is diffed.
type Frame struct {
	Viewport    Viewport
	GridSpacing float64
	Elements    []domain.Element
	Draft       *domain.Element
	Selection   []domain.Bounds
	Cursors     map[domain.UserID]domain.Cursor
	Editing     string
	IsEditing   bool
}

// Renderer consumes frames. Implementations draw to whatever surface the
// host provides.
type Renderer interface {
	RenderFrame(Frame)
}

// Loop redraws at a fixed cadence regardless of whether anything changed.
type Loop struct {
	machine  *Machine
	store    *store.Store
	renderer Renderer
	interval time.Duration

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func NewLoop(m *Machine, st *store.Store, r Renderer, interval time.Duration) *Loop {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	return &Loop{
		machine:  m,
		store:    st,
		renderer: r,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (l *Loop) Start() {
	go l.run()
}

func (l *Loop) run() {
	defer close(l.done)
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.renderer.RenderFrame(l.BuildFrame())
		case <-l.stop:
			return
		}
	}
}

// Stop halts the loop and waits for the in-flight frame to finish. Safe to
// call more than once.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
	<-l.done
}

// BuildFrame snapshots the current interaction and element state.
func (l *Loop) BuildFrame() Frame {
	vp := Viewport{Zoom: l.store.Zoom(), Pan: l.store.Pan()}

	elements := l.store.Elements()
	var selection []domain.Bounds
	for _, el := range elements {
		if l.store.IsSelected(el.ID) {
			selection = append(selection, el.Bounds())
		}
	}

	editing, isEditing := l.machine.EditingText()

	return Frame{
		Viewport:    vp,
		GridSpacing: gridSpacing(vp.Zoom),
		Elements:    elements,
		Draft:       l.machine.Draft(),
		Selection:   selection,
		Cursors:     l.store.Cursors(),
		Editing:     editing,
		IsEditing:   isEditing,
	}
}

// gridSpacing doubles the base pitch until a cell is readable at the
// current zoom.
func gridSpacing(zoom float64) float64 {
	spacing := GridSpacing
	for spacing*zoom < MinGridScreenPx {
		spacing *= 2
	}
	return spacing
}
