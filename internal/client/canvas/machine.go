// Package canvas turns pointer and keyboard input into element store
// mutations and draft previews. It owns hit-testing, the screen/world
// transform and the frame loop; the network side only sees the hook
// callbacks.
package canvas

import (
	"sync"
	"time"

	"drawza/internal/client/store"
	"drawza/internal/core/domain"

	"github.com/google/uuid"
)

// State is the interaction mode the machine is currently in.
type State string

const (
	StateIdle        State = "idle"
	StateDrawing     State = "drawing"
	StateMoving      State = "moving"
	StateResizing    State = "resizing"
	StatePanning     State = "panning"
	StateTextEditing State = "textEditing"
)

// Button identifies the pointer button of a press.
type Button int

const (
	ButtonLeft Button = iota
	ButtonMiddle
	ButtonRight
)

// DoubleClickWindow is the longest gap between two presses still treated
// as a double click.
const DoubleClickWindow = 400 * time.Millisecond

// GridSpacing is the base background grid pitch in world pixels; the
// render loop doubles it until a cell spans at least MinGridScreenPx on
// screen.
const (
	GridSpacing     = 24.0
	MinGridScreenPx = 8.0
)

// Hooks carry local mutations out to the session for broadcast. Nil hooks
// are skipped, so the machine works offline.
type Hooks struct {
	OnCreate func(domain.Element)
	OnUpdate func(domain.Element)
	OnDelete func(domain.ElementID)
	OnClear  func()
	OnCursor func(domain.Cursor)
}

type textEdit struct {
	id       domain.ElementID
	isNew    bool
	original domain.Element
	origin   domain.Point
	buffer   []rune
}

// Machine is the canvas interaction state machine. The render loop reads
// it from its own goroutine, so all entry points serialize on one mutex.
type Machine struct {
	mu sync.Mutex

	store  *store.Store
	hooks  Hooks
	author domain.UserID

	state State
	draft *domain.Element

	dragOrigin  domain.Point   // world point at pointer-down
	dragBefore  domain.Element // geometry before the drag started
	dragCurrent domain.Element
	dragged     bool
	panStart    domain.Point // screen point at pan start
	panBefore   domain.Point

	edit *textEdit

	spaceHeld bool

	width  float64
	height float64

	lastClickAt time.Time
	lastClickID domain.ElementID

	now func() time.Time
}

func NewMachine(st *store.Store, author domain.UserID, hooks Hooks) *Machine {
	return &Machine{
		store:  st,
		hooks:  hooks,
		author: author,
		state:  StateIdle,
		now:    time.Now,
	}
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Draft returns the element being interactively created, if any.
func (m *Machine) Draft() *domain.Element {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.draft == nil {
		return nil
	}
	d := *m.draft
	return &d
}

// Resize records the viewport size in screen pixels.
func (m *Machine) Resize(width, height float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.width = width
	m.height = height
}

func (m *Machine) viewport() Viewport {
	return Viewport{Zoom: m.store.Zoom(), Pan: m.store.Pan()}
}

// PointerDown starts a gesture according to the active tool.
func (m *Machine) PointerDown(screen domain.Point, button Button) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateTextEditing {
		m.commitText()
	}

	tool := m.store.Tool()
	if button == ButtonMiddle || m.spaceHeld || tool == store.ToolPan {
		m.startPan(screen)
		return
	}
	if button != ButtonLeft {
		return
	}

	world := m.viewport().ScreenToWorld(screen)

	switch tool {
	case store.ToolRectangle, store.ToolLine, store.ToolPencil:
		m.startDrawing(tool, world)

	case store.ToolText:
		m.startTextEdit(world)

	case store.ToolSelect:
		m.pointerDownSelect(world)
	}
}

func (m *Machine) startPan(screen domain.Point) {
	m.state = StatePanning
	m.panStart = screen
	m.panBefore = m.store.Pan()
}

func (m *Machine) startDrawing(tool store.Tool, world domain.Point) {
	style := m.store.StyleState()
	el := domain.Element{
		ID:          domain.ElementID(uuid.New().String()),
		X:           world.X,
		Y:           world.Y,
		StrokeColor: style.StrokeColor,
		FillColor:   style.FillColor,
		StrokeWidth: style.StrokeWidth,
		Opacity:     style.Opacity,
		CreatedBy:   m.author,
		CreatedAt:   m.now(),
	}
	switch tool {
	case store.ToolRectangle:
		el.Type = domain.ElementRectangle
	case store.ToolLine:
		el.Type = domain.ElementLine
	case store.ToolPencil:
		el.Type = domain.ElementPencil
		el.Points = []domain.Point{world}
	}
	m.draft = &el
	m.state = StateDrawing
}

func (m *Machine) pointerDownSelect(world domain.Point) {
	hit, ok := HitTest(m.store.Elements(), world)
	if !ok {
		m.store.ClearSelection()
		m.lastClickID = ""
		m.state = StateIdle
		return
	}

	// Double click on a text element opens it for editing.
	if hit.Type == domain.ElementText &&
		hit.ID == m.lastClickID &&
		m.now().Sub(m.lastClickAt) <= DoubleClickWindow {
		m.openTextEdit(hit)
		return
	}
	m.lastClickAt = m.now()
	m.lastClickID = hit.ID

	m.store.Select(hit.ID)
	m.dragOrigin = world
	m.dragBefore = hit
	m.dragCurrent = hit
	m.dragged = false
	if HitResizeHandle(hit, world, m.store.Zoom()) {
		m.state = StateResizing
	} else {
		m.state = StateMoving
	}
}

// PointerMove advances the active gesture and reports the cursor position
// to peers.
func (m *Machine) PointerMove(screen domain.Point) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.hooks.OnCursor != nil {
		m.hooks.OnCursor(domain.Cursor{X: screen.X, Y: screen.Y})
	}

	switch m.state {
	case StatePanning:
		m.store.SetPan(domain.Point{
			X: m.panBefore.X + screen.X - m.panStart.X,
			Y: m.panBefore.Y + screen.Y - m.panStart.Y,
		})

	case StateDrawing:
		world := m.viewport().ScreenToWorld(screen)
		if m.draft.Type == domain.ElementPencil {
			m.draft.Points = append(m.draft.Points, world)
		} else {
			m.draft.Width = world.X - m.draft.X
			m.draft.Height = world.Y - m.draft.Y
		}

	case StateMoving:
		world := m.viewport().ScreenToWorld(screen)
		m.dragCurrent = translate(m.dragBefore, world.X-m.dragOrigin.X, world.Y-m.dragOrigin.Y)
		m.dragged = true
		m.store.Patch(m.dragCurrent)
		if m.hooks.OnUpdate != nil {
			m.hooks.OnUpdate(m.dragCurrent)
		}

	case StateResizing:
		world := m.viewport().ScreenToWorld(screen)
		el := m.dragBefore
		el.Width = world.X - el.X
		el.Height = world.Y - el.Y
		m.dragCurrent = el
		m.dragged = true
		m.store.Patch(el)
		if m.hooks.OnUpdate != nil {
			m.hooks.OnUpdate(el)
		}
	}
}

// PointerUp ends the active gesture. A drawing draft is committed with a
// single history entry; a move or resize likewise collapses the drag into
// one entry.
func (m *Machine) PointerUp(screen domain.Point) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case StateDrawing:
		el := *m.draft
		m.draft = nil
		m.store.Create(el)
		if m.hooks.OnCreate != nil {
			m.hooks.OnCreate(el)
		}
		m.state = StateIdle

	case StateMoving, StateResizing:
		if m.dragged {
			// Put the pre-drag geometry back so the history snapshot
			// taken by Update holds it; undo then restores the drag
			// start.
			m.store.Patch(m.dragBefore)
			m.store.Update(m.dragCurrent)
			if m.hooks.OnUpdate != nil {
				m.hooks.OnUpdate(m.dragCurrent)
			}
		}
		m.state = StateIdle

	case StatePanning:
		m.state = StateIdle
	}
}

func translate(el domain.Element, dx, dy float64) domain.Element {
	el.X += dx
	el.Y += dy
	if el.Type == domain.ElementPencil {
		pts := make([]domain.Point, len(el.Points))
		for i, p := range el.Points {
			pts[i] = domain.Point{X: p.X + dx, Y: p.Y + dy}
		}
		el.Points = pts
	}
	return el
}

// Wheel pans the viewport, or zooms about the pointer when the modifier
// is held.
func (m *Machine) Wheel(screen domain.Point, dx, dy float64, zoomModifier bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	vp := m.viewport()
	if zoomModifier {
		factor := 1.1
		if dy > 0 {
			factor = 1 / 1.1
		}
		next := vp.ZoomAt(screen, factor)
		m.store.SetZoom(next.Zoom)
		m.store.SetPan(next.Pan)
		return
	}
	next := vp.PanBy(-dx, -dy)
	m.store.SetPan(next.Pan)
}

// KeyDown handles non-text keys. Key names follow the DOM convention
// ("Escape", "Enter", "Delete", " ").
func (m *Machine) KeyDown(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateTextEditing {
		switch key {
		case "Enter":
			m.commitText()
		case "Escape":
			m.cancelText()
		case "Backspace":
			if len(m.edit.buffer) > 0 {
				m.edit.buffer = m.edit.buffer[:len(m.edit.buffer)-1]
			}
		}
		return
	}

	switch key {
	case " ":
		m.spaceHeld = true
	case "Delete", "Backspace":
		m.deleteSelection()
	}
}

func (m *Machine) KeyUp(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if key == " " {
		m.spaceHeld = false
	}
}

// InputText appends typed characters to the active text edit.
func (m *Machine) InputText(s string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateTextEditing {
		return
	}
	m.edit.buffer = append(m.edit.buffer, []rune(s)...)
}

// Blur commits any in-progress text edit, matching commit-on-focus-loss.
func (m *Machine) Blur() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateTextEditing {
		m.commitText()
	}
}

// EditingText returns the current text edit buffer while editing.
func (m *Machine) EditingText() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateTextEditing {
		return "", false
	}
	return string(m.edit.buffer), true
}

func (m *Machine) startTextEdit(world domain.Point) {
	if hit, ok := HitTest(m.store.Elements(), world); ok && hit.Type == domain.ElementText {
		m.openTextEdit(hit)
		return
	}
	m.edit = &textEdit{
		id:     domain.ElementID(uuid.New().String()),
		isNew:  true,
		origin: world,
	}
	m.state = StateTextEditing
}

func (m *Machine) openTextEdit(el domain.Element) {
	m.edit = &textEdit{
		id:       el.ID,
		original: el,
		origin:   domain.Point{X: el.X, Y: el.Y},
		buffer:   []rune(el.Text),
	}
	m.state = StateTextEditing
}

// commitText closes the edit. Empty text discards a new element but keeps
// an existing one as a zero-size placeholder.
func (m *Machine) commitText() {
	edit := m.edit
	m.edit = nil
	m.state = StateIdle

	text := string(edit.buffer)
	if text == "" {
		if edit.isNew {
			return
		}
		el := edit.original
		el.Text = ""
		el.Width = 0
		el.Height = 0
		m.store.Update(el)
		if m.hooks.OnUpdate != nil {
			m.hooks.OnUpdate(el)
		}
		return
	}

	if edit.isNew {
		style := m.store.StyleState()
		el := domain.Element{
			ID:          edit.id,
			Type:        domain.ElementText,
			X:           edit.origin.X,
			Y:           edit.origin.Y,
			StrokeColor: style.StrokeColor,
			Opacity:     style.Opacity,
			Text:        text,
			FontSize:    domain.DefaultFontSize,
			CreatedBy:   m.author,
			CreatedAt:   m.now(),
		}
		el.Width, el.Height = MeasureText(text, el.FontSize)
		m.store.Create(el)
		if m.hooks.OnCreate != nil {
			m.hooks.OnCreate(el)
		}
		return
	}

	el := edit.original
	el.Text = text
	el.Width, el.Height = MeasureText(text, el.FontSize)
	m.store.Update(el)
	if m.hooks.OnUpdate != nil {
		m.hooks.OnUpdate(el)
	}
}

func (m *Machine) cancelText() {
	m.edit = nil
	m.state = StateIdle
}

// DeleteSelection removes every selected element.
func (m *Machine) DeleteSelection() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteSelection()
}

func (m *Machine) deleteSelection() {
	for _, id := range m.store.SelectedIDs() {
		m.store.Delete(id)
		if m.hooks.OnDelete != nil {
			m.hooks.OnDelete(id)
		}
	}
}

// DuplicateSelection copies the selected elements offset down-right and
// selects the copies.
func (m *Machine) DuplicateSelection() {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := m.store.SelectedIDs()
	copies := make([]domain.ElementID, 0, len(ids))
	for _, id := range ids {
		el, ok := m.store.Get(id)
		if !ok {
			continue
		}
		dup := translate(el, store.DuplicateOffset, store.DuplicateOffset)
		dup.ID = domain.ElementID(uuid.New().String())
		dup.CreatedBy = m.author
		dup.CreatedAt = m.now()
		m.store.Create(dup)
		if m.hooks.OnCreate != nil {
			m.hooks.OnCreate(dup)
		}
		copies = append(copies, dup.ID)
	}
	m.store.Select(copies...)
}

// ClearBoard empties the collection locally and broadcasts the clear.
func (m *Machine) ClearBoard() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.store.Clear()
	if m.hooks.OnClear != nil {
		m.hooks.OnClear()
	}
}

// ScrollToContent recenters the viewport on the element collection's
// bounding box without changing zoom. A no-op on an empty board or before
// the viewport size is known.
func (m *Machine) ScrollToContent() {
	m.mu.Lock()
	defer m.mu.Unlock()

	elements := m.store.Elements()
	if len(elements) == 0 || m.width == 0 || m.height == 0 {
		return
	}

	b := elements[0].Bounds()
	minX, minY := b.X, b.Y
	maxX, maxY := b.X+b.Width, b.Y+b.Height
	for _, el := range elements[1:] {
		eb := el.Bounds()
		if eb.X < minX {
			minX = eb.X
		}
		if eb.Y < minY {
			minY = eb.Y
		}
		if eb.X+eb.Width > maxX {
			maxX = eb.X + eb.Width
		}
		if eb.Y+eb.Height > maxY {
			maxY = eb.Y + eb.Height
		}
	}

	zoom := m.store.Zoom()
	center := domain.Point{X: (minX + maxX) / 2, Y: (minY + maxY) / 2}
	m.store.SetPan(domain.Point{
		X: m.width/2 - center.X*zoom,
		Y: m.height/2 - center.Y*zoom,
	})
}
