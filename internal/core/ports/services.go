package ports

import (
	"context"

	"drawza/internal/core/domain"
)

// BoardService is the persistence collaborator contract consumed by the
// sync core: an initial fetch plus a debounced full-collection save.
type BoardService interface {
	LoadBoard(ctx context.Context, roomID domain.RoomID, requester domain.UserID) (*domain.Board, error)
	SaveBoard(ctx context.Context, roomID domain.RoomID, elements []domain.Element, requester domain.UserID) (*domain.Board, error)
}
