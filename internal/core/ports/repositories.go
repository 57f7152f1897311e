package ports

import (
	"context"

	"drawza/internal/core/domain"
)

// BoardRepository persists the element collection for each room. Get and
// Put are idempotent; Get of an unknown room returns
// domain.ErrBoardNotFound. List exists for the backup scheduler and makes
// no ordering promise.
type BoardRepository interface {
	Get(ctx context.Context, roomID domain.RoomID) (*domain.Board, error)
	Put(ctx context.Context, board *domain.Board) error
	List(ctx context.Context) ([]*domain.Board, error)
}
