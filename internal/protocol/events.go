// Package protocol defines the tagged event catalog exchanged between
// clients and the room relay. Every payload carries a fixed schema and a
// Validate method; events that fail validation are dropped by the receiver
// rather than surfaced as errors, so partial or older clients degrade
// silently instead of crashing a session.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"drawza/internal/core/domain"
)

// Event types relayed through a room. Client-originated events carry the
// originating roomId; relay-stamped events add sender identity.
const (
	EventJoinRoom        = "join-room"
	EventRoomUsers       = "room-users"
	EventChatMessage     = "chat-message"
	EventElementCreate   = "element-create"
	EventElementUpdate   = "element-update"
	EventElementDelete   = "element-delete"
	EventElementClear    = "element-clear"
	EventCursorMove      = "cursor-move"
	EventVoiceJoin       = "voice-join"
	EventVoiceUsers      = "voice-users"
	EventVoiceUserJoined = "voice-user-joined"
	EventVoiceLeave      = "voice-leave"
	EventVoiceUserLeft   = "voice-user-left"
	EventVoiceMute       = "voice-mute"
	EventVoiceUserMuted  = "voice-user-muted"
	EventVoiceSignal     = "voice-signal"
)

// Envelope is the wire framing for every relay event.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope marshals a payload into an envelope. It panics only on
// unmarshalable payloads, which would be a programming error.
func NewEnvelope(eventType string, payload interface{}) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Envelope{Type: eventType, Payload: raw}, nil
}

// Decode unmarshals the envelope payload into dst and validates it.
func (e Envelope) Decode(dst Validator) error {
	if err := json.Unmarshal(e.Payload, dst); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return dst.Validate()
}

// Validator is implemented by every payload type.
type Validator interface {
	Validate() error
}

type JoinRoom struct {
	RoomID   domain.RoomID `json:"roomId"`
	UserName string        `json:"userName"`
}

func (p *JoinRoom) Validate() error {
	if p.RoomID == "" {
		return fmt.Errorf("roomId is required")
	}
	return nil
}

type RoomUsers struct {
	RoomID domain.RoomID `json:"roomId"`
	Count  int           `json:"count"`
}

func (p *RoomUsers) Validate() error {
	if p.RoomID == "" {
		return fmt.Errorf("roomId is required")
	}
	if p.Count < 0 {
		return fmt.Errorf("count must be >= 0")
	}
	return nil
}

// ChatMessage is sent by clients with only RoomID and Message set; the
// relay stamps ID, UserID, UserName and Timestamp before fanout. Client
// supplied identity fields are ignored.
type ChatMessage struct {
	ID        string        `json:"id,omitempty"`
	RoomID    domain.RoomID `json:"roomId"`
	Message   string        `json:"message"`
	UserID    domain.UserID `json:"userId,omitempty"`
	UserName  string        `json:"userName,omitempty"`
	Timestamp string        `json:"timestamp,omitempty"`
}

func (p *ChatMessage) Validate() error {
	if p.RoomID == "" {
		return fmt.Errorf("roomId is required")
	}
	if p.Message == "" {
		return fmt.Errorf("message is required")
	}
	return nil
}

type ElementCreate struct {
	RoomID  domain.RoomID  `json:"roomId"`
	Element domain.Element `json:"element"`
}

func (p *ElementCreate) Validate() error {
	if p.RoomID == "" {
		return fmt.Errorf("roomId is required")
	}
	if p.Element.ID == "" {
		return fmt.Errorf("element.id is required")
	}
	return nil
}

type ElementUpdate struct {
	RoomID  domain.RoomID  `json:"roomId"`
	Element domain.Element `json:"element"`
}

func (p *ElementUpdate) Validate() error {
	if p.RoomID == "" {
		return fmt.Errorf("roomId is required")
	}
	if p.Element.ID == "" {
		return fmt.Errorf("element.id is required")
	}
	return nil
}

type ElementDelete struct {
	RoomID    domain.RoomID    `json:"roomId"`
	ElementID domain.ElementID `json:"elementId"`
}

func (p *ElementDelete) Validate() error {
	if p.RoomID == "" {
		return fmt.Errorf("roomId is required")
	}
	if p.ElementID == "" {
		return fmt.Errorf("elementId is required")
	}
	return nil
}

type ElementClear struct {
	RoomID domain.RoomID `json:"roomId"`
}

func (p *ElementClear) Validate() error {
	if p.RoomID == "" {
		return fmt.Errorf("roomId is required")
	}
	return nil
}

// CursorMove carries RoomID inbound; the relay rewrites it to the sender's
// user id on the way out.
type CursorMove struct {
	RoomID domain.RoomID `json:"roomId,omitempty"`
	UserID domain.UserID `json:"userId,omitempty"`
	Cursor domain.Cursor `json:"cursor"`
}

func (p *CursorMove) Validate() error {
	if p.RoomID == "" && p.UserID == "" {
		return fmt.Errorf("roomId or userId is required")
	}
	return nil
}

type VoiceJoin struct {
	RoomID domain.RoomID `json:"roomId"`
	Muted  bool          `json:"muted"`
}

func (p *VoiceJoin) Validate() error {
	if p.RoomID == "" {
		return fmt.Errorf("roomId is required")
	}
	return nil
}

// VoiceUser is one roster entry sent to a new voice participant.
type VoiceUser struct {
	SocketID domain.ConnID `json:"socketId"`
	UserName string        `json:"userName"`
}

type VoiceUsers struct {
	RoomID domain.RoomID `json:"roomId"`
	Users  []VoiceUser   `json:"users"`
}

func (p *VoiceUsers) Validate() error {
	if p.RoomID == "" {
		return fmt.Errorf("roomId is required")
	}
	return nil
}

type VoiceUserJoined struct {
	RoomID   domain.RoomID `json:"roomId"`
	SocketID domain.ConnID `json:"socketId"`
	UserID   domain.UserID `json:"userId"`
	UserName string        `json:"userName"`
	Muted    bool          `json:"muted"`
}

func (p *VoiceUserJoined) Validate() error {
	if p.RoomID == "" {
		return fmt.Errorf("roomId is required")
	}
	if p.SocketID == "" {
		return fmt.Errorf("socketId is required")
	}
	return nil
}

type VoiceLeave struct {
	RoomID domain.RoomID `json:"roomId"`
}

func (p *VoiceLeave) Validate() error {
	if p.RoomID == "" {
		return fmt.Errorf("roomId is required")
	}
	return nil
}

type VoiceUserLeft struct {
	SocketID domain.ConnID `json:"socketId"`
	UserID   domain.UserID `json:"userId,omitempty"`
}

func (p *VoiceUserLeft) Validate() error {
	if p.SocketID == "" {
		return fmt.Errorf("socketId is required")
	}
	return nil
}

type VoiceMute struct {
	RoomID domain.RoomID `json:"roomId"`
	Muted  bool          `json:"muted"`
}

func (p *VoiceMute) Validate() error {
	if p.RoomID == "" {
		return fmt.Errorf("roomId is required")
	}
	return nil
}

type VoiceUserMuted struct {
	SocketID domain.ConnID `json:"socketId"`
	Muted    bool          `json:"muted"`
}

func (p *VoiceUserMuted) Validate() error {
	if p.SocketID == "" {
		return fmt.Errorf("socketId is required")
	}
	return nil
}

// Signal is the opaque WebRTC negotiation payload carried inside a
// voice-signal event: an SDP offer/answer or a trickle ICE candidate.
type Signal struct {
	Type      string          `json:"type"` // offer | answer | candidate
	SDP       json.RawMessage `json:"sdp,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

const (
	SignalOffer     = "offer"
	SignalAnswer    = "answer"
	SignalCandidate = "candidate"
)

// VoiceSignal is targeted: the relay routes it to TargetSocketID only and
// stamps the From* fields on the way through.
type VoiceSignal struct {
	RoomID         domain.RoomID `json:"roomId"`
	TargetSocketID domain.ConnID `json:"targetSocketId,omitempty"`
	FromSocketID   domain.ConnID `json:"fromSocketId,omitempty"`
	FromUserID     domain.UserID `json:"fromUserId,omitempty"`
	FromUserName   string        `json:"fromUserName,omitempty"`
	Signal         Signal        `json:"signal"`
}

func (p *VoiceSignal) Validate() error {
	if p.RoomID == "" {
		return fmt.Errorf("roomId is required")
	}
	if p.TargetSocketID == "" && p.FromSocketID == "" {
		return fmt.Errorf("targetSocketId is required")
	}
	switch p.Signal.Type {
	case SignalOffer, SignalAnswer:
		if len(p.Signal.SDP) == 0 {
			return fmt.Errorf("signal.sdp is required for %s", p.Signal.Type)
		}
	case SignalCandidate:
		if len(p.Signal.Candidate) == 0 {
			return fmt.Errorf("signal.candidate is required")
		}
	default:
		return fmt.Errorf("unknown signal type: %s", p.Signal.Type)
	}
	return nil
}

// Timestamp formats relay-stamped times the way the wire expects.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
