package relay

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"drawza/internal/core/domain"
	"drawza/internal/core/services"
	"drawza/internal/infrastructure/distributed"
	"drawza/internal/infrastructure/monitoring"
	"drawza/internal/protocol"
	"drawza/pkg/tracing"
	"drawza/pkg/utils"
	"drawza/pkg/validation"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// connection is one relay client. Writes are serialized through mu so the
// fanout path can run from any goroutine; gorilla connections allow only
// one concurrent writer.
type connection struct {
	id      domain.ConnID
	ws      *websocket.Conn
	mu      sync.Mutex
	limiter *rate.Limiter
}

func (c *connection) write(env protocol.Envelope, timeout time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(timeout))
	return c.ws.WriteJSON(env)
}

// WebSocketServer is the room relay. It authenticates connections before
// the upgrade, tracks room membership through the registry and fans events
// out to room members. Malformed or unknown events are dropped without a
// reply so older clients degrade silently.
type WebSocketServer struct {
	registry *Registry
	auth     services.AuthService
	metrics  *monitoring.PrometheusCollector
	bus      *distributed.EventBus

	connections map[domain.ConnID]*connection
	mu          sync.RWMutex

	pingInterval time.Duration
	pongTimeout  time.Duration
	writeTimeout time.Duration

	messagesPerSecond float64
	burst             int
	maxMessageSize    int64

	allowedOrigins []string

	logger *zap.SugaredLogger
}

type Option func(*WebSocketServer)

func WithTimeouts(ping, pong, write time.Duration) Option {
	return func(s *WebSocketServer) {
		s.pingInterval = ping
		s.pongTimeout = pong
		s.writeTimeout = write
	}
}

func WithRateLimit(messagesPerSecond float64, burst int, maxMessageSize int64) Option {
	return func(s *WebSocketServer) {
		s.messagesPerSecond = messagesPerSecond
		s.burst = burst
		s.maxMessageSize = maxMessageSize
	}
}

func WithAllowedOrigins(origins []string) Option {
	return func(s *WebSocketServer) {
		s.allowedOrigins = origins
	}
}

func WithMetrics(collector *monitoring.PrometheusCollector) Option {
	return func(s *WebSocketServer) {
		s.metrics = collector
	}
}

// WithBus connects the relay to a cross-instance event bus. Room
// broadcasts are mirrored to the bus and remote events are delivered
// through DeliverRemote. Presence counts stay per-instance; route all
// connections of a room to one instance when exact counts matter.
func WithBus(bus *distributed.EventBus) Option {
	return func(s *WebSocketServer) {
		s.bus = bus
	}
}

func NewWebSocketServer(registry *Registry, auth services.AuthService, logger *zap.Logger, opts ...Option) *WebSocketServer {
	s := &WebSocketServer{
		registry:       registry,
		auth:           auth,
		connections:    make(map[domain.ConnID]*connection),
		pingInterval:   30 * time.Second,
		pongTimeout:    60 * time.Second,
		writeTimeout:   10 * time.Second,
		allowedOrigins: []string{"*"},
		logger:         logger.Sugar(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *WebSocketServer) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, allowed := range s.allowedOrigins {
				if allowed == "*" || strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// bearerToken extracts the access token from the Authorization header or,
// for browser clients that cannot set headers on WebSocket dials, from the
// token query parameter.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

func (s *WebSocketServer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		http.Error(w, "missing access token", http.StatusUnauthorized)
		return
	}

	claims, err := s.auth.ValidateToken(token)
	if err != nil {
		s.logger.Infow("rejected connection with invalid token", "error", err)
		http.Error(w, "invalid access token", http.StatusUnauthorized)
		return
	}

	upgrader := s.upgrader()
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Errorw("websocket upgrade failed", "error", err)
		return
	}
	defer ws.Close()

	conn := &connection{
		id: domain.ConnID(uuid.New().String()),
		ws: ws,
	}
	if s.messagesPerSecond > 0 {
		conn.limiter = rate.NewLimiter(rate.Limit(s.messagesPerSecond), s.burst)
	}
	if s.maxMessageSize > 0 {
		ws.SetReadLimit(s.maxMessageSize)
	}

	s.mu.Lock()
	s.connections[conn.id] = conn
	s.mu.Unlock()

	s.registry.SetProfile(conn.id, claims.UserID, claims.Name)
	s.metrics.RecordConnect()

	s.logger.Infow("client connected", "conn_id", conn.id, "user_id", claims.UserID)

	ws.SetReadDeadline(time.Now().Add(s.pongTimeout))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(s.pongTimeout))
		return nil
	})

	pingTicker := time.NewTicker(s.pingInterval)
	defer pingTicker.Stop()

	messageChan := make(chan protocol.Envelope, 16)
	errorChan := make(chan error, 1)

	go func() {
		for {
			var env protocol.Envelope
			if err := ws.ReadJSON(&env); err != nil {
				errorChan <- err
				return
			}
			ws.SetReadDeadline(time.Now().Add(s.pongTimeout))
			messageChan <- env
		}
	}()

loop:
	for {
		select {
		case env := <-messageChan:
			if conn.limiter != nil && !conn.limiter.Allow() {
				s.metrics.RecordEventDropped(env.Type, "rate_limited")
				continue
			}
			s.handleMessage(context.Background(), conn, env)

		case <-pingTicker.C:
			conn.mu.Lock()
			ws.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			err := ws.WriteMessage(websocket.PingMessage, nil)
			conn.mu.Unlock()
			if err != nil {
				s.logger.Infow("ping failed", "conn_id", conn.id, "error", err)
				break loop
			}

		case err := <-errorChan:
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Infow("read failed", "conn_id", conn.id, "error", err)
			}
			break loop
		}
	}

	s.disconnect(conn)
}

// disconnect removes the connection from every room it joined and tells
// the survivors: a voice-user-left for rooms where it was in voice, then
// the refreshed presence count.
func (s *WebSocketServer) disconnect(conn *connection) {
	s.mu.Lock()
	delete(s.connections, conn.id)
	s.mu.Unlock()

	profile := s.registry.Profile(conn.id)
	departures := s.registry.Disconnect(conn.id)

	for _, dep := range departures {
		if dep.WasVoice {
			s.broadcast(dep.RoomID, conn.id, protocol.EventVoiceUserLeft, &protocol.VoiceUserLeft{
				SocketID: conn.id,
				UserID:   profile.UserID,
			})
			s.refreshVoiceGauge(dep.RoomID)
		}
		s.broadcast(dep.RoomID, "", protocol.EventRoomUsers, &protocol.RoomUsers{
			RoomID: dep.RoomID,
			Count:  dep.Count,
		})
		s.metrics.SetRoomMembers(string(dep.RoomID), dep.Count)
	}

	s.metrics.RecordDisconnect()
	s.metrics.SetRoomsActive(s.registry.RoomCount())
	s.logger.Infow("client disconnected", "conn_id", conn.id, "rooms", len(departures))
}

func (s *WebSocketServer) handleMessage(ctx context.Context, conn *connection, env protocol.Envelope) {
	ctx, span := tracing.TraceRelayEvent(ctx, env.Type, string(conn.id), "")
	defer span.End()

	var err error
	switch env.Type {
	case protocol.EventJoinRoom:
		err = s.handleJoinRoom(conn, env)
	case protocol.EventChatMessage:
		err = s.handleChatMessage(conn, env)
	case protocol.EventElementCreate:
		err = s.handleElementCreate(conn, env)
	case protocol.EventElementUpdate:
		err = s.handleElementUpdate(conn, env)
	case protocol.EventElementDelete:
		err = s.handleElementDelete(conn, env)
	case protocol.EventElementClear:
		err = s.handleElementClear(conn, env)
	case protocol.EventCursorMove:
		err = s.handleCursorMove(conn, env)
	case protocol.EventVoiceJoin:
		err = s.handleVoiceJoin(conn, env)
	case protocol.EventVoiceLeave:
		err = s.handleVoiceLeave(conn, env)
	case protocol.EventVoiceMute:
		err = s.handleVoiceMute(conn, env)
	case protocol.EventVoiceSignal:
		err = s.handleVoiceSignal(ctx, conn, env)
	default:
		s.metrics.RecordEventDropped(env.Type, "unknown")
		s.logger.Debugw("dropped unknown event", "conn_id", conn.id, "type", env.Type)
		return
	}

	if err != nil {
		s.metrics.RecordEventDropped(env.Type, "malformed")
		s.logger.Debugw("dropped malformed event", "conn_id", conn.id, "type", env.Type, "error", err)
	}
}

func (s *WebSocketServer) handleJoinRoom(conn *connection, env protocol.Envelope) error {
	var p protocol.JoinRoom
	if err := env.Decode(&p); err != nil {
		return err
	}
	if err := validation.ValidateRoomID(string(p.RoomID)); err != nil {
		return err
	}
	// An absent name is fine; the registry defaults it to Guest.
	p.UserName = utils.SanitizeText(p.UserName)
	if p.UserName != "" {
		if err := validation.ValidateDisplayName(p.UserName); err != nil {
			return err
		}
	}

	profile := s.registry.Profile(conn.id)
	s.registry.SetProfile(conn.id, profile.UserID, p.UserName)
	count := s.registry.Join(p.RoomID, conn.id)

	// Everyone in the room, the joiner included, gets the new count.
	s.broadcast(p.RoomID, "", protocol.EventRoomUsers, &protocol.RoomUsers{
		RoomID: p.RoomID,
		Count:  count,
	})

	s.metrics.SetRoomMembers(string(p.RoomID), count)
	s.metrics.SetRoomsActive(s.registry.RoomCount())
	s.logger.Infow("joined room", "conn_id", conn.id, "room_id", p.RoomID, "count", count)
	return nil
}

func (s *WebSocketServer) handleChatMessage(conn *connection, env protocol.Envelope) error {
	var p protocol.ChatMessage
	if err := env.Decode(&p); err != nil {
		return err
	}

	p.Message = utils.SanitizeText(p.Message)
	if err := validation.ValidateChatMessage(p.Message); err != nil {
		return err
	}
	if !s.registry.IsMember(p.RoomID, conn.id) {
		return domain.ErrRoomNotFound
	}

	profile := s.registry.Profile(conn.id)
	p.ID = uuid.New().String()
	p.UserID = profile.UserID
	p.UserName = profile.Name
	p.Timestamp = protocol.Timestamp(time.Now())

	s.broadcast(p.RoomID, conn.id, protocol.EventChatMessage, &p)
	return nil
}

func (s *WebSocketServer) handleElementCreate(conn *connection, env protocol.Envelope) error {
	var p protocol.ElementCreate
	if err := env.Decode(&p); err != nil {
		return err
	}
	if !s.registry.IsMember(p.RoomID, conn.id) {
		return domain.ErrRoomNotFound
	}
	s.broadcast(p.RoomID, conn.id, protocol.EventElementCreate, &p)
	return nil
}

func (s *WebSocketServer) handleElementUpdate(conn *connection, env protocol.Envelope) error {
	var p protocol.ElementUpdate
	if err := env.Decode(&p); err != nil {
		return err
	}
	if !s.registry.IsMember(p.RoomID, conn.id) {
		return domain.ErrRoomNotFound
	}
	s.broadcast(p.RoomID, conn.id, protocol.EventElementUpdate, &p)
	return nil
}

func (s *WebSocketServer) handleElementDelete(conn *connection, env protocol.Envelope) error {
	var p protocol.ElementDelete
	if err := env.Decode(&p); err != nil {
		return err
	}
	if !s.registry.IsMember(p.RoomID, conn.id) {
		return domain.ErrRoomNotFound
	}
	s.broadcast(p.RoomID, conn.id, protocol.EventElementDelete, &p)
	return nil
}

func (s *WebSocketServer) handleElementClear(conn *connection, env protocol.Envelope) error {
	var p protocol.ElementClear
	if err := env.Decode(&p); err != nil {
		return err
	}
	if !s.registry.IsMember(p.RoomID, conn.id) {
		return domain.ErrRoomNotFound
	}
	s.broadcast(p.RoomID, conn.id, protocol.EventElementClear, &p)
	return nil
}

// handleCursorMove rewrites the inbound room-scoped sample to the sender's
// identity before fanout. Every sample goes out; interested clients can
// throttle rendering on their side.
func (s *WebSocketServer) handleCursorMove(conn *connection, env protocol.Envelope) error {
	var p protocol.CursorMove
	if err := env.Decode(&p); err != nil {
		return err
	}
	if !s.registry.IsMember(p.RoomID, conn.id) {
		return domain.ErrRoomNotFound
	}

	roomID := p.RoomID
	out := protocol.CursorMove{
		UserID: s.registry.Profile(conn.id).UserID,
		Cursor: p.Cursor,
	}
	s.broadcast(roomID, conn.id, protocol.EventCursorMove, &out)
	return nil
}

func (s *WebSocketServer) handleVoiceJoin(conn *connection, env protocol.Envelope) error {
	var p protocol.VoiceJoin
	if err := env.Decode(&p); err != nil {
		return err
	}
	if !s.registry.IsMember(p.RoomID, conn.id) {
		return domain.ErrRoomNotFound
	}

	roster := s.registry.VoiceJoin(p.RoomID, conn.id)
	profile := s.registry.Profile(conn.id)

	// The joiner gets the existing roster and will offer to each entry;
	// existing participants just learn about the newcomer and wait.
	s.sendTo(conn.id, protocol.EventVoiceUsers, &protocol.VoiceUsers{
		RoomID: p.RoomID,
		Users:  roster,
	})
	s.broadcast(p.RoomID, conn.id, protocol.EventVoiceUserJoined, &protocol.VoiceUserJoined{
		RoomID:   p.RoomID,
		SocketID: conn.id,
		UserID:   profile.UserID,
		UserName: profile.Name,
		Muted:    p.Muted,
	})

	s.refreshVoiceGauge(p.RoomID)
	s.logger.Infow("joined voice", "conn_id", conn.id, "room_id", p.RoomID, "peers", len(roster))
	return nil
}

func (s *WebSocketServer) handleVoiceLeave(conn *connection, env protocol.Envelope) error {
	var p protocol.VoiceLeave
	if err := env.Decode(&p); err != nil {
		return err
	}
	if !s.registry.VoiceLeave(p.RoomID, conn.id) {
		return domain.ErrNotInVoice
	}

	s.broadcast(p.RoomID, conn.id, protocol.EventVoiceUserLeft, &protocol.VoiceUserLeft{
		SocketID: conn.id,
		UserID:   s.registry.Profile(conn.id).UserID,
	})
	s.refreshVoiceGauge(p.RoomID)
	return nil
}

func (s *WebSocketServer) handleVoiceMute(conn *connection, env protocol.Envelope) error {
	var p protocol.VoiceMute
	if err := env.Decode(&p); err != nil {
		return err
	}
	if !s.registry.IsMember(p.RoomID, conn.id) {
		return domain.ErrRoomNotFound
	}

	s.broadcast(p.RoomID, conn.id, protocol.EventVoiceUserMuted, &protocol.VoiceUserMuted{
		SocketID: conn.id,
		Muted:    p.Muted,
	})
	return nil
}

// handleVoiceSignal routes a negotiation payload to its target only. The
// From* fields are stamped here so clients cannot spoof each other.
func (s *WebSocketServer) handleVoiceSignal(ctx context.Context, conn *connection, env protocol.Envelope) error {
	var p protocol.VoiceSignal
	if err := env.Decode(&p); err != nil {
		return err
	}
	if !s.registry.IsMember(p.RoomID, conn.id) {
		return domain.ErrRoomNotFound
	}
	if !s.registry.IsMember(p.RoomID, p.TargetSocketID) {
		return domain.ErrPeerNotFound
	}

	_, span := tracing.TraceVoiceSignal(ctx, p.Signal.Type, string(conn.id), string(p.TargetSocketID))
	defer span.End()

	profile := s.registry.Profile(conn.id)
	out := protocol.VoiceSignal{
		RoomID:       p.RoomID,
		FromSocketID: conn.id,
		FromUserID:   profile.UserID,
		FromUserName: profile.Name,
		Signal:       p.Signal,
	}
	return s.sendTo(p.TargetSocketID, protocol.EventVoiceSignal, &out)
}

// broadcast fans an event out to every member of the room except the
// excluded connection. An empty exclude sends to the whole room.
func (s *WebSocketServer) broadcast(roomID domain.RoomID, exclude domain.ConnID, eventType string, payload interface{}) {
	env, err := protocol.NewEnvelope(eventType, payload)
	if err != nil {
		s.logger.Errorw("failed to encode event", "type", eventType, "error", err)
		return
	}

	start := time.Now()
	for _, id := range s.registry.Members(roomID, exclude) {
		s.mu.RLock()
		target := s.connections[id]
		s.mu.RUnlock()
		if target == nil {
			continue
		}
		if err := target.write(env, s.writeTimeout); err != nil {
			s.logger.Debugw("write failed during fanout", "conn_id", id, "type", eventType, "error", err)
		}
	}
	s.metrics.ObserveFanout(time.Since(start))
	s.metrics.RecordEventRelayed(eventType)

	// Presence counts only cover this instance, so they stay local.
	if s.bus != nil && eventType != protocol.EventRoomUsers {
		if err := s.bus.Publish(context.Background(), roomID, env); err != nil {
			s.logger.Warnw("failed to mirror event to bus", "type", eventType, "error", err)
		}
	}
}

// DeliverRemote fans an envelope published by another instance out to
// this instance's members of the room. The exclusion already happened
// where the event originated.
func (s *WebSocketServer) DeliverRemote(roomID domain.RoomID, env protocol.Envelope) {
	for _, id := range s.registry.Members(roomID, "") {
		s.mu.RLock()
		target := s.connections[id]
		s.mu.RUnlock()
		if target == nil {
			continue
		}
		if err := target.write(env, s.writeTimeout); err != nil {
			s.logger.Debugw("write failed during remote fanout", "conn_id", id, "type", env.Type, "error", err)
		}
	}
	s.metrics.RecordEventRelayed(env.Type)
}

func (s *WebSocketServer) sendTo(connID domain.ConnID, eventType string, payload interface{}) error {
	s.mu.RLock()
	target := s.connections[connID]
	s.mu.RUnlock()
	if target == nil {
		return domain.ErrConnNotFound
	}

	env, err := protocol.NewEnvelope(eventType, payload)
	if err != nil {
		return err
	}
	if err := target.write(env, s.writeTimeout); err != nil {
		return err
	}
	s.metrics.RecordEventRelayed(eventType)
	return nil
}

func (s *WebSocketServer) refreshVoiceGauge(roomID domain.RoomID) {
	room := s.registry.room(roomID, false)
	if room == nil {
		s.metrics.SetVoiceParticipants(string(roomID), 0)
		return
	}
	room.mu.Lock()
	count := len(room.voice)
	room.mu.Unlock()
	s.metrics.SetVoiceParticipants(string(roomID), count)
}

// ConnectionCount reports live connections for health checks.
func (s *WebSocketServer) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.connections)
}
