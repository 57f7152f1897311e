package domain

// Profile is the display identity attached to a connection.
type Profile struct {
	UserID UserID
	Name   string
}

// Cursor is an ephemeral last-known pointer position in room-local
// screen coordinates.
type Cursor struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// VoiceParticipant is one member of a room's voice set as seen by peers.
type VoiceParticipant struct {
	ConnID   ConnID
	UserID   UserID
	UserName string
	Muted    bool
}

// PeerLinkState tracks the lifecycle of one direct audio connection.
type PeerLinkState string

const (
	LinkNew       PeerLinkState = "new"
	LinkOffering  PeerLinkState = "offering"
	LinkAnswering PeerLinkState = "answering"
	LinkConnected PeerLinkState = "connected"
	LinkFailed    PeerLinkState = "failed"
	LinkClosed    PeerLinkState = "closed"
)
