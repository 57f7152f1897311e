// Package client binds the element store, the canvas machine, the voice
// coordinator and the relay transport into one room session with a single
// teardown path.
package client

import (
	"context"
	"sync"
	"time"

	"drawza/internal/client/canvas"
	"drawza/internal/client/store"
	"drawza/internal/client/voice"
	"drawza/internal/core/domain"
	"drawza/internal/core/ports"
	"drawza/internal/protocol"

	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

const (
	// DefaultSaveDebounce is the quiet period before an edit burst is
	// persisted.
	DefaultSaveDebounce = 900 * time.Millisecond

	// chatLogLimit bounds the in-memory chat history.
	chatLogLimit = 80

	saveTimeout = 10 * time.Second
)

// Config assembles a session's collaborators.
type Config struct {
	RoomID   domain.RoomID
	UserID   domain.UserID
	UserName string

	Transport Transport
	Board     ports.BoardService
	Renderer  canvas.Renderer

	ICEServers    []webrtc.ICEServer
	OnRemoteTrack voice.RemoteTrackHandler

	SaveDebounce  time.Duration
	FrameInterval time.Duration

	Logger *zap.Logger
}

// Session is one client's presence in a room.
type Session struct {
	cfg   Config
	store *store.Store

	machine *canvas.Machine
	loop    *canvas.Loop
	voice   *voice.Coordinator

	mu        sync.Mutex
	roomCount int
	chat      []protocol.ChatMessage
	saveTimer *time.Timer

	closeOnce sync.Once
	closed    chan struct{}

	logger *zap.SugaredLogger
}

func NewSession(cfg Config) *Session {
	if cfg.SaveDebounce <= 0 {
		cfg.SaveDebounce = DefaultSaveDebounce
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	s := &Session{
		cfg:    cfg,
		store:  store.New(),
		closed: make(chan struct{}),
		logger: cfg.Logger.Sugar(),
	}

	s.machine = canvas.NewMachine(s.store, cfg.UserID, canvas.Hooks{
		OnCreate: func(el domain.Element) {
			s.send(protocol.EventElementCreate, &protocol.ElementCreate{RoomID: cfg.RoomID, Element: el})
		},
		OnUpdate: func(el domain.Element) {
			s.send(protocol.EventElementUpdate, &protocol.ElementUpdate{RoomID: cfg.RoomID, Element: el})
		},
		OnDelete: func(id domain.ElementID) {
			s.send(protocol.EventElementDelete, &protocol.ElementDelete{RoomID: cfg.RoomID, ElementID: id})
		},
		OnClear: func() {
			s.send(protocol.EventElementClear, &protocol.ElementClear{RoomID: cfg.RoomID})
		},
		OnCursor: func(c domain.Cursor) {
			s.send(protocol.EventCursorMove, &protocol.CursorMove{RoomID: cfg.RoomID, Cursor: c})
		},
	})

	s.voice = voice.NewCoordinator(cfg.RoomID, cfg.ICEServers, func(target domain.ConnID, sig protocol.Signal) error {
		return s.sendErr(protocol.EventVoiceSignal, &protocol.VoiceSignal{
			RoomID:         cfg.RoomID,
			TargetSocketID: target,
			Signal:         sig,
		})
	}, cfg.OnRemoteTrack, cfg.Logger)

	if cfg.Renderer != nil {
		s.loop = canvas.NewLoop(s.machine, s.store, cfg.Renderer, cfg.FrameInterval)
	}

	s.store.SetOnChange(s.scheduleSave)
	return s
}

// Store exposes the element collection for UI reads and undo/redo.
func (s *Session) Store() *store.Store { return s.store }

// Machine exposes the interaction state machine for input delivery.
func (s *Session) Machine() *canvas.Machine { return s.machine }

// Voice exposes the mesh coordinator roster.
func (s *Session) Voice() *voice.Coordinator { return s.voice }

// Start loads the persisted board, joins the room and begins dispatching
// inbound events. It returns once joined; event dispatch continues until
// Close or a transport error.
func (s *Session) Start(ctx context.Context) error {
	board, err := s.cfg.Board.LoadBoard(ctx, s.cfg.RoomID, s.cfg.UserID)
	if err != nil {
		return err
	}
	s.store.ReplaceAll(board.Elements)
	// The load fires the change hook; nothing was edited yet.
	s.cancelPendingSave()

	if err := s.sendErr(protocol.EventJoinRoom, &protocol.JoinRoom{
		RoomID:   s.cfg.RoomID,
		UserName: s.cfg.UserName,
	}); err != nil {
		return err
	}

	if s.loop != nil {
		s.loop.Start()
	}
	go s.readLoop()
	return nil
}

func (s *Session) readLoop() {
	for {
		env, err := s.cfg.Transport.Receive()
		if err != nil {
			select {
			case <-s.closed:
			default:
				s.logger.Infow("relay connection lost", "error", err)
				s.Close()
			}
			return
		}
		s.dispatch(env)
	}
}

// dispatch applies one inbound event. Schema mismatches are dropped.
func (s *Session) dispatch(env protocol.Envelope) {
	switch env.Type {
	case protocol.EventRoomUsers:
		var p protocol.RoomUsers
		if env.Decode(&p) != nil {
			return
		}
		s.mu.Lock()
		s.roomCount = p.Count
		s.mu.Unlock()

	case protocol.EventChatMessage:
		var p protocol.ChatMessage
		if env.Decode(&p) != nil {
			return
		}
		s.mu.Lock()
		s.chat = append(s.chat, p)
		if len(s.chat) > chatLogLimit {
			s.chat = s.chat[len(s.chat)-chatLogLimit:]
		}
		s.mu.Unlock()

	case protocol.EventElementCreate:
		var p protocol.ElementCreate
		if env.Decode(&p) != nil {
			return
		}
		s.store.ApplyRemoteCreate(p.Element)

	case protocol.EventElementUpdate:
		var p protocol.ElementUpdate
		if env.Decode(&p) != nil {
			return
		}
		s.store.ApplyRemotePatch(p.Element)

	case protocol.EventElementDelete:
		var p protocol.ElementDelete
		if env.Decode(&p) != nil {
			return
		}
		s.store.ApplyRemoteDelete(p.ElementID)

	case protocol.EventElementClear:
		var p protocol.ElementClear
		if env.Decode(&p) != nil {
			return
		}
		s.store.ApplyRemoteClear()

	case protocol.EventCursorMove:
		var p protocol.CursorMove
		if env.Decode(&p) != nil {
			return
		}
		s.store.SetCursor(p.UserID, p.Cursor)

	case protocol.EventVoiceUsers:
		var p protocol.VoiceUsers
		if env.Decode(&p) != nil {
			return
		}
		s.voice.HandleRoster(p.Users)

	case protocol.EventVoiceUserJoined:
		var p protocol.VoiceUserJoined
		if env.Decode(&p) != nil {
			return
		}
		s.voice.HandleUserJoined(p)

	case protocol.EventVoiceUserLeft:
		var p protocol.VoiceUserLeft
		if env.Decode(&p) != nil {
			return
		}
		s.voice.HandleUserLeft(p.SocketID)
		if p.UserID != "" {
			s.store.RemoveCursor(p.UserID)
		}

	case protocol.EventVoiceUserMuted:
		var p protocol.VoiceUserMuted
		if env.Decode(&p) != nil {
			return
		}
		s.voice.HandleUserMuted(p.SocketID, p.Muted)

	case protocol.EventVoiceSignal:
		var p protocol.VoiceSignal
		if env.Decode(&p) != nil {
			return
		}
		s.voice.HandleSignal(p)

	default:
		s.logger.Debugw("dropped unknown event", "type", env.Type)
	}
}

func (s *Session) send(eventType string, payload interface{}) {
	if err := s.sendErr(eventType, payload); err != nil {
		s.logger.Debugw("send failed", "type", eventType, "error", err)
	}
}

func (s *Session) sendErr(eventType string, payload interface{}) error {
	env, err := protocol.NewEnvelope(eventType, payload)
	if err != nil {
		return err
	}
	return s.cfg.Transport.Send(env)
}

// SendChat submits a chat line; identity and timestamp are stamped by the
// relay.
func (s *Session) SendChat(message string) {
	s.send(protocol.EventChatMessage, &protocol.ChatMessage{
		RoomID:  s.cfg.RoomID,
		Message: message,
	})
}

// Chat returns a copy of the retained chat log, oldest first.
func (s *Session) Chat() []protocol.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]protocol.ChatMessage, len(s.chat))
	copy(out, s.chat)
	return out
}

// RoomCount is the last presence count received.
func (s *Session) RoomCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomCount
}

// JoinVoice starts local capture and requests the room's voice roster.
func (s *Session) JoinVoice(source voice.Source, muted bool) error {
	if err := s.voice.Start(source, muted); err != nil {
		return err
	}
	return s.sendErr(protocol.EventVoiceJoin, &protocol.VoiceJoin{
		RoomID: s.cfg.RoomID,
		Muted:  muted,
	})
}

// LeaveVoice notifies the room and tears down every peer link.
func (s *Session) LeaveVoice() {
	s.send(protocol.EventVoiceLeave, &protocol.VoiceLeave{RoomID: s.cfg.RoomID})
	s.voice.Close()
}

// SetMuted toggles the local track flag and broadcasts it.
func (s *Session) SetMuted(muted bool) {
	s.voice.SetMuted(muted)
	s.send(protocol.EventVoiceMute, &protocol.VoiceMute{RoomID: s.cfg.RoomID, Muted: muted})
}

// scheduleSave (re)arms the debounce timer on every collection change.
func (s *Session) scheduleSave() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveTimer != nil {
		s.saveTimer.Stop()
	}
	s.saveTimer = time.AfterFunc(s.cfg.SaveDebounce, s.saveNow)
}

func (s *Session) cancelPendingSave() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveTimer != nil {
		s.saveTimer.Stop()
		s.saveTimer = nil
	}
}

// saveNow persists the collection. Failures are swallowed; the next edit
// reschedules.
func (s *Session) saveNow() {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	if _, err := s.cfg.Board.SaveBoard(ctx, s.cfg.RoomID, s.store.Elements(), s.cfg.UserID); err != nil {
		s.logger.Warnw("board save failed", "room_id", s.cfg.RoomID, "error", err)
	}
}

// Close is the single teardown path: stop rendering, stop the debounce
// timer, close peer links and capture, close the transport. Safe to call
// from any trigger, any number of times.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.cancelPendingSave()
		if s.loop != nil {
			s.loop.Stop()
		}
		s.voice.Close()
		if err := s.cfg.Transport.Close(); err != nil {
			s.logger.Debugw("transport close", "error", err)
		}
	})
}
