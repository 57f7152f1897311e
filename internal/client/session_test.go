package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"drawza/internal/core/domain"
	"drawza/internal/protocol"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	mu        sync.Mutex
	sent      []protocol.Envelope
	in        chan protocol.Envelope
	closeOnce sync.Once
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{in: make(chan protocol.Envelope, 16)}
}

func (f *fakeTransport) Send(env protocol.Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, env)
	return nil
}

func (f *fakeTransport) Receive() (protocol.Envelope, error) {
	env, ok := <-f.in
	if !ok {
		return protocol.Envelope{}, io.EOF
	}
	return env, nil
}

func (f *fakeTransport) Close() error {
	f.closeOnce.Do(func() { close(f.in) })
	return nil
}

func (f *fakeTransport) sentTypes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	types := make([]string, len(f.sent))
	for i, env := range f.sent {
		types[i] = env.Type
	}
	return types
}

// deliver pushes an inbound event and waits a beat for dispatch.
func (f *fakeTransport) deliver(t *testing.T, eventType string, payload interface{}) {
	t.Helper()
	env, err := protocol.NewEnvelope(eventType, payload)
	require.NoError(t, err)
	f.in <- env
}

type fakeBoard struct {
	mu    sync.Mutex
	board *domain.Board
	saves []int // element count per save
	fail  bool
}

func (f *fakeBoard) LoadBoard(_ context.Context, roomID domain.RoomID, _ domain.UserID) (*domain.Board, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.board != nil {
		return f.board, nil
	}
	return &domain.Board{RoomID: roomID}, nil
}

func (f *fakeBoard) SaveBoard(_ context.Context, roomID domain.RoomID, elements []domain.Element, _ domain.UserID) (*domain.Board, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, fmt.Errorf("persistence down")
	}
	f.saves = append(f.saves, len(elements))
	return &domain.Board{RoomID: roomID, Elements: elements}, nil
}

func (f *fakeBoard) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saves)
}

func startSession(t *testing.T, board *fakeBoard, debounce time.Duration) (*Session, *fakeTransport) {
	t.Helper()
	tr := newFakeTransport()
	s := NewSession(Config{
		RoomID:       "room-AB12CD34",
		UserID:       "u1",
		UserName:     "Ada",
		Transport:    tr,
		Board:        board,
		SaveDebounce: debounce,
	})
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(s.Close)
	return s, tr
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if cond() {
			return
		}
		select {
		case <-deadline:
			t.Fatal("condition not met in time")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestStartLoadsBoardAndJoins(t *testing.T) {
	board := &fakeBoard{board: &domain.Board{
		RoomID:   "room-AB12CD34",
		Elements: []domain.Element{{ID: "e1", Type: domain.ElementRectangle}},
	}}
	s, tr := startSession(t, board, time.Hour)

	assert.Equal(t, 1, s.Store().Len())
	require.NotEmpty(t, tr.sentTypes())
	assert.Equal(t, protocol.EventJoinRoom, tr.sentTypes()[0])

	var join protocol.JoinRoom
	require.NoError(t, json.Unmarshal(tr.sent[0].Payload, &join))
	assert.Equal(t, "Ada", join.UserName)
}

func TestInboundElementEventsPatchStoreWithoutHistory(t *testing.T) {
	s, tr := startSession(t, &fakeBoard{}, time.Hour)

	tr.deliver(t, protocol.EventElementCreate, &protocol.ElementCreate{
		RoomID:  "room-AB12CD34",
		Element: domain.Element{ID: "e1", Type: domain.ElementRectangle, Width: 10, Height: 10},
	})
	waitFor(t, func() bool { return s.Store().Len() == 1 })

	tr.deliver(t, protocol.EventElementUpdate, &protocol.ElementUpdate{
		RoomID:  "room-AB12CD34",
		Element: domain.Element{ID: "e1", Type: domain.ElementRectangle, X: 5, Width: 10, Height: 10},
	})
	waitFor(t, func() bool {
		el, ok := s.Store().Get("e1")
		return ok && el.X == 5
	})

	assert.False(t, s.Store().CanUndo())

	tr.deliver(t, protocol.EventElementDelete, &protocol.ElementDelete{
		RoomID: "room-AB12CD34", ElementID: "e1",
	})
	waitFor(t, func() bool { return s.Store().Len() == 0 })
	assert.False(t, s.Store().CanUndo())
}

func TestMalformedEventIsDropped(t *testing.T) {
	s, tr := startSession(t, &fakeBoard{}, time.Hour)

	tr.in <- protocol.Envelope{Type: protocol.EventElementCreate, Payload: json.RawMessage(`{"bogus":true}`)}
	tr.deliver(t, protocol.EventRoomUsers, &protocol.RoomUsers{RoomID: "room-AB12CD34", Count: 2})

	waitFor(t, func() bool { return s.RoomCount() == 2 })
	assert.Equal(t, 0, s.Store().Len())
}

func TestChatLogKeepsLast80(t *testing.T) {
	s, tr := startSession(t, &fakeBoard{}, time.Hour)

	for i := 0; i < 90; i++ {
		tr.deliver(t, protocol.EventChatMessage, &protocol.ChatMessage{
			ID:       fmt.Sprintf("m%d", i),
			RoomID:   "room-AB12CD34",
			Message:  "hi",
			UserID:   "u2",
			UserName: "Bea",
		})
	}
	waitFor(t, func() bool {
		c := s.Chat()
		return len(c) == 80 && c[79].ID == "m89"
	})

	chat := s.Chat()
	assert.Equal(t, "m10", chat[0].ID)
	assert.Equal(t, "m89", chat[79].ID)
}

func TestCursorMoveUpdatesCursorMap(t *testing.T) {
	s, tr := startSession(t, &fakeBoard{}, time.Hour)

	tr.deliver(t, protocol.EventCursorMove, &protocol.CursorMove{
		UserID: "u2", Cursor: domain.Cursor{X: 7, Y: 9},
	})
	waitFor(t, func() bool {
		c, ok := s.Store().Cursors()["u2"]
		return ok && c.X == 7 && c.Y == 9
	})
}

func TestDebouncedSaveCoalesces(t *testing.T) {
	board := &fakeBoard{}
	s, _ := startSession(t, board, 50*time.Millisecond)

	// A burst of edits inside the quiet period produces one save.
	for i := 0; i < 5; i++ {
		s.Store().Create(domain.Element{ID: domain.ElementID(fmt.Sprintf("e%d", i))})
		time.Sleep(5 * time.Millisecond)
	}

	waitFor(t, func() bool { return board.saveCount() == 1 })
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, board.saveCount())

	board.mu.Lock()
	assert.Equal(t, 5, board.saves[0])
	board.mu.Unlock()
}

func TestSaveFailureIsSwallowedAndRetriedOnNextEdit(t *testing.T) {
	board := &fakeBoard{fail: true}
	s, _ := startSession(t, board, 20*time.Millisecond)

	s.Store().Create(domain.Element{ID: "e1"})
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 0, board.saveCount())

	board.mu.Lock()
	board.fail = false
	board.mu.Unlock()

	s.Store().Create(domain.Element{ID: "e2"})
	waitFor(t, func() bool { return board.saveCount() == 1 })
}

func TestSendChatCarriesOnlyRoomAndMessage(t *testing.T) {
	s, tr := startSession(t, &fakeBoard{}, time.Hour)

	s.SendChat("hello there")

	types := tr.sentTypes()
	require.Equal(t, protocol.EventChatMessage, types[len(types)-1])

	var msg protocol.ChatMessage
	require.NoError(t, json.Unmarshal(tr.sent[len(tr.sent)-1].Payload, &msg))
	assert.Equal(t, "hello there", msg.Message)
	assert.Empty(t, msg.UserID) // stamped by the relay, not the client
}

func TestLocalEditsAreBroadcast(t *testing.T) {
	s, tr := startSession(t, &fakeBoard{}, time.Hour)

	s.Store().SetTool("rectangle")
	s.Machine().PointerDown(domain.Point{X: 0, Y: 0}, 0)
	s.Machine().PointerMove(domain.Point{X: 10, Y: 10})
	s.Machine().PointerUp(domain.Point{X: 10, Y: 10})

	types := tr.sentTypes()
	assert.Contains(t, types, protocol.EventElementCreate)
	assert.Contains(t, types, protocol.EventCursorMove)
}

func TestCloseIsIdempotent(t *testing.T) {
	s, _ := startSession(t, &fakeBoard{}, time.Hour)
	s.Close()
	s.Close()
}

func TestTransportErrorTriggersTeardown(t *testing.T) {
	s, tr := startSession(t, &fakeBoard{}, time.Hour)

	tr.Close() // reader sees EOF
	waitFor(t, func() bool {
		select {
		case <-s.closed:
			return true
		default:
			return false
		}
	})
}
