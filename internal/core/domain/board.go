package domain

import "time"

// Board is the externally persisted element collection for one room.
type Board struct {
	RoomID    RoomID
	Elements  []Element
	CreatedBy UserID
	CreatedAt time.Time
	UpdatedAt time.Time
}
