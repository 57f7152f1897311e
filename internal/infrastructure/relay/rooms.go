package relay

import (
	"sync"

	"drawza/internal/core/domain"
	"drawza/internal/protocol"
)

// roomState holds one room's membership. Its mutex is the exclusive
// section for that roomId: join/leave/broadcast snapshots for the same
// room never interleave.
type roomState struct {
	mu      sync.Mutex
	members map[domain.ConnID]struct{}
	voice   map[domain.ConnID]struct{}
}

// Registry is the process-wide room and voice membership state. It is
// initialized empty at process start and never torn down; individual rooms
// are removed once their member set empties.
type Registry struct {
	mu       sync.RWMutex
	rooms    map[domain.RoomID]*roomState
	profiles map[domain.ConnID]domain.Profile
	joined   map[domain.ConnID]map[domain.RoomID]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		rooms:    make(map[domain.RoomID]*roomState),
		profiles: make(map[domain.ConnID]domain.Profile),
		joined:   make(map[domain.ConnID]map[domain.RoomID]struct{}),
	}
}

func (r *Registry) room(roomID domain.RoomID, create bool) *roomState {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok && create {
		room = &roomState{
			members: make(map[domain.ConnID]struct{}),
			voice:   make(map[domain.ConnID]struct{}),
		}
		r.rooms[roomID] = room
	}
	return room
}

func (r *Registry) dropIfEmpty(roomID domain.RoomID, room *roomState) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room.mu.Lock()
	empty := len(room.members) == 0 && len(room.voice) == 0
	room.mu.Unlock()
	if empty {
		delete(r.rooms, roomID)
	}
}

// SetProfile records the display identity for a connection. A later join
// without a userName keeps the previous name.
func (r *Registry) SetProfile(connID domain.ConnID, userID domain.UserID, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name == "" {
		if prev, ok := r.profiles[connID]; ok && prev.Name != "" {
			name = prev.Name
		} else {
			name = "Guest"
		}
	}
	r.profiles[connID] = domain.Profile{UserID: userID, Name: name}
}

// Profile returns the display identity for a connection, defaulting the
// name to Guest for connections that never joined with one.
func (r *Registry) Profile(connID domain.ConnID) domain.Profile {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if p, ok := r.profiles[connID]; ok {
		if p.Name == "" {
			p.Name = "Guest"
		}
		return p
	}
	return domain.Profile{Name: "Guest"}
}

// Join adds the connection to the room's member set and returns the new
// member count.
func (r *Registry) Join(roomID domain.RoomID, connID domain.ConnID) int {
	room := r.room(roomID, true)
	room.mu.Lock()
	room.members[connID] = struct{}{}
	count := len(room.members)
	room.mu.Unlock()

	r.mu.Lock()
	if r.joined[connID] == nil {
		r.joined[connID] = make(map[domain.RoomID]struct{})
	}
	r.joined[connID][roomID] = struct{}{}
	r.mu.Unlock()

	return count
}

// Count returns the room's current member count.
func (r *Registry) Count(roomID domain.RoomID) int {
	room := r.room(roomID, false)
	if room == nil {
		return 0
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	return len(room.members)
}

// Members returns the room's member connections excluding the given one.
func (r *Registry) Members(roomID domain.RoomID, exclude domain.ConnID) []domain.ConnID {
	room := r.room(roomID, false)
	if room == nil {
		return nil
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	out := make([]domain.ConnID, 0, len(room.members))
	for id := range room.members {
		if id != exclude {
			out = append(out, id)
		}
	}
	return out
}

// IsMember reports whether the connection has joined the room.
func (r *Registry) IsMember(roomID domain.RoomID, connID domain.ConnID) bool {
	room := r.room(roomID, false)
	if room == nil {
		return false
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	_, ok := room.members[connID]
	return ok
}

// VoiceJoin adds the connection to the room's voice set and returns the
// roster that existed before the join, excluding the joiner.
func (r *Registry) VoiceJoin(roomID domain.RoomID, connID domain.ConnID) []protocol.VoiceUser {
	room := r.room(roomID, true)

	room.mu.Lock()
	existing := make([]domain.ConnID, 0, len(room.voice))
	for id := range room.voice {
		if id != connID {
			existing = append(existing, id)
		}
	}
	room.voice[connID] = struct{}{}
	room.mu.Unlock()

	roster := make([]protocol.VoiceUser, 0, len(existing))
	for _, id := range existing {
		roster = append(roster, protocol.VoiceUser{
			SocketID: id,
			UserName: r.Profile(id).Name,
		})
	}
	return roster
}

// VoiceLeave removes the connection from the room's voice set; it reports
// whether the connection was actually a voice participant.
func (r *Registry) VoiceLeave(roomID domain.RoomID, connID domain.ConnID) bool {
	room := r.room(roomID, false)
	if room == nil {
		return false
	}

	room.mu.Lock()
	_, present := room.voice[connID]
	delete(room.voice, connID)
	room.mu.Unlock()

	if present {
		r.dropIfEmpty(roomID, room)
	}
	return present
}

// RoomDeparture is one room a disconnecting connection was removed from.
type RoomDeparture struct {
	RoomID   domain.RoomID
	Count    int
	WasVoice bool
}

// Disconnect removes the connection from every room and voice set it
// belonged to and forgets its profile. The returned departures carry the
// refreshed member counts used for presence rebroadcast.
func (r *Registry) Disconnect(connID domain.ConnID) []RoomDeparture {
	r.mu.Lock()
	roomIDs := make([]domain.RoomID, 0, len(r.joined[connID]))
	for roomID := range r.joined[connID] {
		roomIDs = append(roomIDs, roomID)
	}
	delete(r.joined, connID)
	delete(r.profiles, connID)
	r.mu.Unlock()

	departures := make([]RoomDeparture, 0, len(roomIDs))
	for _, roomID := range roomIDs {
		room := r.room(roomID, false)
		if room == nil {
			continue
		}

		room.mu.Lock()
		delete(room.members, connID)
		_, wasVoice := room.voice[connID]
		delete(room.voice, connID)
		count := len(room.members)
		room.mu.Unlock()

		departures = append(departures, RoomDeparture{
			RoomID:   roomID,
			Count:    count,
			WasVoice: wasVoice,
		})
		r.dropIfEmpty(roomID, room)
	}
	return departures
}

// RoomCount returns the number of live rooms, used by health reporting.
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
