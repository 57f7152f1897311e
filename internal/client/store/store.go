// Package store holds a client's replica of the room's element collection
// together with the local undo/redo history and the transient canvas state
// (selection, tool, style, zoom, pan, remote cursors). Remote-origin
// mutations bypass history so an undo only ever reverses local edits.
package store

import (
	"sync"

	"drawza/internal/core/domain"
)

// Tool is the active drawing tool.
type Tool string

const (
	ToolSelect    Tool = "select"
	ToolRectangle Tool = "rectangle"
	ToolLine      Tool = "line"
	ToolPencil    Tool = "pencil"
	ToolText      Tool = "text"
	ToolPan       Tool = "pan"
)

// Zoom bounds and the offset applied when duplicating a selection.
const (
	MinZoom         = 0.2
	MaxZoom         = 4.0
	DuplicateOffset = 24.0
)

// Style is the stroke/fill state applied to newly created elements.
type Style struct {
	StrokeColor string
	FillColor   string
	StrokeWidth float64
	Opacity     float64
}

// Store is safe for concurrent use; the session's network reader, render
// ticker and input path all touch it.
type Store struct {
	mu sync.RWMutex

	elements []domain.Element
	past     [][]domain.Element
	future   [][]domain.Element

	selected map[domain.ElementID]struct{}
	tool     Tool
	style    Style

	zoom float64
	pan  domain.Point

	cursors map[domain.UserID]domain.Cursor

	onChange func()
}

func New() *Store {
	return &Store{
		selected: make(map[domain.ElementID]struct{}),
		cursors:  make(map[domain.UserID]domain.Cursor),
		tool:     ToolSelect,
		style: Style{
			StrokeColor: "#1e1e1e",
			FillColor:   "transparent",
			StrokeWidth: 2,
			Opacity:     100,
		},
		zoom: 1,
	}
}

// SetOnChange registers a hook invoked after every local element-collection
// mutation. The session uses it to schedule the debounced save. Remote
// patches fire it too so the save captures peer edits as well.
func (s *Store) SetOnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

func (s *Store) notify() {
	s.mu.RLock()
	fn := s.onChange
	s.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

// snapshot copies the current collection for a history entry.
func snapshot(elements []domain.Element) []domain.Element {
	out := make([]domain.Element, len(elements))
	copy(out, elements)
	return out
}

func (s *Store) pushHistory() {
	s.past = append(s.past, snapshot(s.elements))
	s.future = nil
}

// Elements returns a copy of the collection in creation order.
func (s *Store) Elements() []domain.Element {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshot(s.elements)
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.elements)
}

// Get returns the element with the given id, if present.
func (s *Store) Get(id domain.ElementID) (domain.Element, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, el := range s.elements {
		if el.ID == id {
			return el, true
		}
	}
	return domain.Element{}, false
}

// Create appends a new element and pushes a history entry.
func (s *Store) Create(el domain.Element) {
	s.mu.Lock()
	s.pushHistory()
	s.elements = append(s.elements, el)
	s.mu.Unlock()
	s.notify()
}

// Update replaces the element with el's id and pushes a history entry.
// Updating an unknown id is a no-op, like deleting one: a delete that
// raced ahead of the update wins, and a late sample must not resurrect
// the element.
func (s *Store) Update(el domain.Element) {
	s.mu.Lock()
	idx := s.indexOf(el.ID)
	if idx < 0 {
		s.mu.Unlock()
		return
	}
	s.pushHistory()
	s.elements[idx] = el
	s.mu.Unlock()
	s.notify()
}

// Patch replaces the element without touching history. Used for remote
// edits and for intermediate drag samples. Patching an unknown id is a
// no-op.
func (s *Store) Patch(el domain.Element) {
	s.mu.Lock()
	if !s.replace(el) {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.notify()
}

func (s *Store) indexOf(id domain.ElementID) int {
	for i := range s.elements {
		if s.elements[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) replace(el domain.Element) bool {
	idx := s.indexOf(el.ID)
	if idx < 0 {
		return false
	}
	s.elements[idx] = el
	return true
}

// Delete removes the element and pushes a history entry. Deleting an
// unknown id is a no-op. The element leaves the selection either way.
func (s *Store) Delete(id domain.ElementID) {
	s.mu.Lock()
	idx := s.indexOf(id)
	if idx < 0 {
		delete(s.selected, id)
		s.mu.Unlock()
		return
	}
	s.pushHistory()
	s.elements = append(s.elements[:idx], s.elements[idx+1:]...)
	delete(s.selected, id)
	s.mu.Unlock()
	s.notify()
}

// Clear empties the collection and pushes a history entry.
func (s *Store) Clear() {
	s.mu.Lock()
	s.pushHistory()
	s.elements = nil
	s.selected = make(map[domain.ElementID]struct{})
	s.mu.Unlock()
	s.notify()
}

// ApplyRemoteCreate mirrors a peer's create without a history entry.
// A duplicate create overwrites in place.
func (s *Store) ApplyRemoteCreate(el domain.Element) {
	s.mu.Lock()
	if !s.replace(el) {
		s.elements = append(s.elements, el)
	}
	s.mu.Unlock()
	s.notify()
}

// ApplyRemotePatch mirrors a peer's update without a history entry.
// Like Patch, an unknown id changes nothing.
func (s *Store) ApplyRemotePatch(el domain.Element) {
	s.mu.Lock()
	if !s.replace(el) {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.notify()
}

// ApplyRemoteDelete mirrors a peer's delete without a history entry.
func (s *Store) ApplyRemoteDelete(id domain.ElementID) {
	s.mu.Lock()
	for i := range s.elements {
		if s.elements[i].ID == id {
			s.elements = append(s.elements[:i], s.elements[i+1:]...)
			break
		}
	}
	delete(s.selected, id)
	s.mu.Unlock()
	s.notify()
}

// ApplyRemoteClear mirrors a peer's clear without a history entry.
func (s *Store) ApplyRemoteClear() {
	s.mu.Lock()
	s.elements = nil
	s.selected = make(map[domain.ElementID]struct{})
	s.mu.Unlock()
	s.notify()
}

// ReplaceAll installs a freshly loaded collection, resetting history.
// Used when entering a room with a persisted board.
func (s *Store) ReplaceAll(elements []domain.Element) {
	s.mu.Lock()
	s.elements = snapshot(elements)
	s.past = nil
	s.future = nil
	s.selected = make(map[domain.ElementID]struct{})
	s.mu.Unlock()
	s.notify()
}

// Undo restores the most recent history entry, moving the current
// collection to the redo stack. Returns false when there is nothing to
// undo.
func (s *Store) Undo() bool {
	s.mu.Lock()
	if len(s.past) == 0 {
		s.mu.Unlock()
		return false
	}
	s.future = append(s.future, snapshot(s.elements))
	s.elements = s.past[len(s.past)-1]
	s.past = s.past[:len(s.past)-1]
	s.selected = make(map[domain.ElementID]struct{})
	s.mu.Unlock()
	s.notify()
	return true
}

// Redo is the mirror of Undo.
func (s *Store) Redo() bool {
	s.mu.Lock()
	if len(s.future) == 0 {
		s.mu.Unlock()
		return false
	}
	s.past = append(s.past, snapshot(s.elements))
	s.elements = s.future[len(s.future)-1]
	s.future = s.future[:len(s.future)-1]
	s.selected = make(map[domain.ElementID]struct{})
	s.mu.Unlock()
	s.notify()
	return true
}

func (s *Store) CanUndo() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.past) > 0
}

func (s *Store) CanRedo() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.future) > 0
}

// Select replaces the selection with the given ids.
func (s *Store) Select(ids ...domain.ElementID) {
	s.mu.Lock()
	s.selected = make(map[domain.ElementID]struct{}, len(ids))
	for _, id := range ids {
		s.selected[id] = struct{}{}
	}
	s.mu.Unlock()
}

func (s *Store) ClearSelection() {
	s.mu.Lock()
	s.selected = make(map[domain.ElementID]struct{})
	s.mu.Unlock()
}

func (s *Store) IsSelected(id domain.ElementID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.selected[id]
	return ok
}

// SelectedIDs returns the selection in creation order.
func (s *Store) SelectedIDs() []domain.ElementID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]domain.ElementID, 0, len(s.selected))
	for _, el := range s.elements {
		if _, ok := s.selected[el.ID]; ok {
			ids = append(ids, el.ID)
		}
	}
	return ids
}

func (s *Store) Tool() Tool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tool
}

func (s *Store) SetTool(tool Tool) {
	s.mu.Lock()
	s.tool = tool
	s.mu.Unlock()
}

func (s *Store) StyleState() Style {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.style
}

func (s *Store) SetStyle(style Style) {
	s.mu.Lock()
	s.style = style
	s.mu.Unlock()
}

func (s *Store) Zoom() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.zoom
}

// SetZoom clamps to [MinZoom, MaxZoom] and returns the applied value.
func (s *Store) SetZoom(zoom float64) float64 {
	if zoom < MinZoom {
		zoom = MinZoom
	}
	if zoom > MaxZoom {
		zoom = MaxZoom
	}
	s.mu.Lock()
	s.zoom = zoom
	s.mu.Unlock()
	return zoom
}

func (s *Store) Pan() domain.Point {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pan
}

func (s *Store) SetPan(offset domain.Point) {
	s.mu.Lock()
	s.pan = offset
	s.mu.Unlock()
}

// SetCursor records a peer's last-known pointer position.
func (s *Store) SetCursor(userID domain.UserID, cursor domain.Cursor) {
	s.mu.Lock()
	s.cursors[userID] = cursor
	s.mu.Unlock()
}

// RemoveCursor drops a departed peer's pointer.
func (s *Store) RemoveCursor(userID domain.UserID) {
	s.mu.Lock()
	delete(s.cursors, userID)
	s.mu.Unlock()
}

// Cursors returns a copy of the remote cursor map.
func (s *Store) Cursors() map[domain.UserID]domain.Cursor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[domain.UserID]domain.Cursor, len(s.cursors))
	for id, c := range s.cursors {
		out[id] = c
	}
	return out
}
