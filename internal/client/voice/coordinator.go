// Package voice coordinates the full-mesh audio topology for one room.
// Each participant keeps one direct peer link per other participant; the
// room relay is used only as a blind signaling channel.
package voice

import (
	"fmt"
	"sync"

	"drawza/internal/core/domain"
	"drawza/internal/protocol"

	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

// SignalSender relays a negotiation payload to one target connection.
type SignalSender func(target domain.ConnID, sig protocol.Signal) error

// RemoteTrackHandler receives a peer's audio track for playback.
type RemoteTrackHandler func(remote domain.ConnID, track *webrtc.TrackRemote)

type linkFactory func(remote domain.ConnID) (link, error)

// Coordinator owns the local capture pipeline and all peer links for one
// room's voice session.
type Coordinator struct {
	mu sync.Mutex

	roomID     domain.RoomID
	iceServers []webrtc.ICEServer
	sendSignal SignalSender
	onTrack    RemoteTrackHandler

	newLink linkFactory

	links        map[domain.ConnID]link
	participants map[domain.ConnID]domain.VoiceParticipant

	localTrack *webrtc.TrackLocalStaticRTP
	pump       *pump
	muted      bool
	started    bool

	logger *zap.SugaredLogger
}

func NewCoordinator(
	roomID domain.RoomID,
	iceServers []webrtc.ICEServer,
	sendSignal SignalSender,
	onTrack RemoteTrackHandler,
	logger *zap.Logger,
) *Coordinator {
	c := &Coordinator{
		roomID:       roomID,
		iceServers:   iceServers,
		sendSignal:   sendSignal,
		onTrack:      onTrack,
		links:        make(map[domain.ConnID]link),
		participants: make(map[domain.ConnID]domain.VoiceParticipant),
		logger:       logger.Sugar(),
	}
	c.newLink = c.newPionLink
	return c
}

func (c *Coordinator) newPionLink(remote domain.ConnID) (link, error) {
	return newPeerLink(
		remote,
		webrtc.Configuration{ICEServers: c.iceServers},
		c.localTrack,
		linkCallbacks{
			onSignal: func(remote domain.ConnID, sig protocol.Signal) {
				if err := c.sendSignal(remote, sig); err != nil {
					c.logger.Debugw("failed to relay signal", "remote", remote, "error", err)
				}
			},
			onClosed: c.dropPeer,
			onTrack:  c.onTrack,
		},
		c.logger,
	)
}

// Start brings up the local capture pipeline. It must run before Join is
// signaled to the relay; signals arriving before it are dropped.
func (c *Coordinator) Start(source Source, muted bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return fmt.Errorf("voice already started")
	}

	track, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
		"audio",
		"drawza-audio",
	)
	if err != nil {
		return fmt.Errorf("create local track: %w", err)
	}

	c.localTrack = track
	c.pump = newPump(track, source, muted, c.logger)
	c.muted = muted
	c.started = true
	go c.pump.run()
	return nil
}

// HandleRoster reacts to the relay's voice-users reply: the joiner offers
// toward every existing member.
func (c *Coordinator) HandleRoster(users []protocol.VoiceUser) {
	for _, user := range users {
		c.mu.Lock()
		if !c.started {
			c.mu.Unlock()
			c.logger.Debugw("dropping roster before local stream", "room_id", c.roomID)
			return
		}
		if _, exists := c.links[user.SocketID]; exists {
			c.mu.Unlock()
			continue
		}

		l, err := c.newLink(user.SocketID)
		if err != nil {
			c.mu.Unlock()
			c.logger.Warnw("failed to create peer link", "remote", user.SocketID, "error", err)
			continue
		}
		c.links[user.SocketID] = l
		c.participants[user.SocketID] = domain.VoiceParticipant{
			ConnID:   user.SocketID,
			UserName: user.UserName,
		}
		c.mu.Unlock()

		offer, err := l.CreateOffer()
		if err != nil {
			c.logger.Warnw("failed to create offer", "remote", user.SocketID, "error", err)
			c.dropPeer(user.SocketID)
			continue
		}
		if err := c.sendSignal(user.SocketID, offer); err != nil {
			c.logger.Debugw("failed to relay offer", "remote", user.SocketID, "error", err)
		}
	}
}

// HandleUserJoined records a newcomer. The newcomer is the offerer, so
// this side only waits for its offer to arrive.
func (c *Coordinator) HandleUserJoined(p protocol.VoiceUserJoined) {
	c.mu.Lock()
	c.participants[p.SocketID] = domain.VoiceParticipant{
		ConnID:   p.SocketID,
		UserID:   p.UserID,
		UserName: p.UserName,
		Muted:    p.Muted,
	}
	c.mu.Unlock()
}

// HandleSignal routes an inbound negotiation payload to the peer link it
// belongs to. Signals arriving before the local stream is ready are
// dropped, not buffered.
func (c *Coordinator) HandleSignal(p protocol.VoiceSignal) {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		c.logger.Debugw("dropping early signal", "from", p.FromSocketID, "type", p.Signal.Type)
		return
	}
	l, exists := c.links[p.FromSocketID]
	if !exists && p.Signal.Type == protocol.SignalOffer {
		var err error
		l, err = c.newLink(p.FromSocketID)
		if err != nil {
			c.mu.Unlock()
			c.logger.Warnw("failed to create peer link", "remote", p.FromSocketID, "error", err)
			return
		}
		c.links[p.FromSocketID] = l
		if _, ok := c.participants[p.FromSocketID]; !ok {
			c.participants[p.FromSocketID] = domain.VoiceParticipant{
				ConnID:   p.FromSocketID,
				UserID:   p.FromUserID,
				UserName: p.FromUserName,
			}
		}
		exists = true
	}
	c.mu.Unlock()

	if !exists {
		c.logger.Debugw("signal for unknown peer", "from", p.FromSocketID, "type", p.Signal.Type)
		return
	}

	switch p.Signal.Type {
	case protocol.SignalOffer:
		answer, err := l.HandleOffer(p.Signal)
		if err != nil {
			c.logger.Warnw("failed to answer offer", "remote", p.FromSocketID, "error", err)
			c.dropPeer(p.FromSocketID)
			return
		}
		if err := c.sendSignal(p.FromSocketID, answer); err != nil {
			c.logger.Debugw("failed to relay answer", "remote", p.FromSocketID, "error", err)
		}

	case protocol.SignalAnswer:
		if err := l.HandleAnswer(p.Signal); err != nil {
			c.logger.Warnw("failed to apply answer", "remote", p.FromSocketID, "error", err)
			c.dropPeer(p.FromSocketID)
		}

	case protocol.SignalCandidate:
		if err := l.AddCandidate(p.Signal); err != nil {
			c.logger.Debugw("failed to apply candidate", "remote", p.FromSocketID, "error", err)
		}
	}
}

// HandleUserLeft tears down the link to a departed participant.
func (c *Coordinator) HandleUserLeft(socketID domain.ConnID) {
	c.dropPeer(socketID)
}

// HandleUserMuted updates the roster's presentation flag only; the media
// flow is untouched.
func (c *Coordinator) HandleUserMuted(socketID domain.ConnID, muted bool) {
	c.mu.Lock()
	if p, ok := c.participants[socketID]; ok {
		p.Muted = muted
		c.participants[socketID] = p
	}
	c.mu.Unlock()
}

// dropPeer closes and forgets one peer link. Called on leave, failure and
// teardown; the peer simply disappears from the roster.
func (c *Coordinator) dropPeer(socketID domain.ConnID) {
	c.mu.Lock()
	l, exists := c.links[socketID]
	delete(c.links, socketID)
	delete(c.participants, socketID)
	c.mu.Unlock()

	if exists {
		if err := l.Close(); err != nil {
			c.logger.Debugw("peer link close", "remote", socketID, "error", err)
		}
	}
}

// SetMuted toggles the local track without stopping capture.
func (c *Coordinator) SetMuted(muted bool) {
	c.mu.Lock()
	c.muted = muted
	p := c.pump
	c.mu.Unlock()
	if p != nil {
		p.setMuted(muted)
	}
}

func (c *Coordinator) Muted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.muted
}

// Participants returns a copy of the current roster.
func (c *Coordinator) Participants() []domain.VoiceParticipant {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.VoiceParticipant, 0, len(c.participants))
	for _, p := range c.participants {
		out = append(out, p)
	}
	return out
}

// LinkState reports the negotiation state toward one peer.
func (c *Coordinator) LinkState(socketID domain.ConnID) (domain.PeerLinkState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.links[socketID]
	if !ok {
		return "", false
	}
	return l.State(), true
}

func (c *Coordinator) LinkCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.links)
}

// Close stops capture and closes every peer link. Safe to call on a
// coordinator that never started.
func (c *Coordinator) Close() {
	c.mu.Lock()
	links := c.links
	c.links = make(map[domain.ConnID]link)
	c.participants = make(map[domain.ConnID]domain.VoiceParticipant)
	p := c.pump
	c.pump = nil
	c.localTrack = nil
	c.started = false
	c.mu.Unlock()

	for id, l := range links {
		if err := l.Close(); err != nil {
			c.logger.Debugw("peer link close", "remote", id, "error", err)
		}
	}
	if p != nil {
		p.close()
	}
}
