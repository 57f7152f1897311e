package memory

import (
	"context"
	"sync"

	"drawza/internal/core/domain"
	"drawza/internal/core/ports"
)

type MemoryBoardRepository struct {
	boards map[domain.RoomID]*domain.Board
	mu     sync.RWMutex
}

func NewMemoryBoardRepository() ports.BoardRepository {
	return &MemoryBoardRepository{
		boards: make(map[domain.RoomID]*domain.Board),
	}
}

func (r *MemoryBoardRepository) Get(ctx context.Context, roomID domain.RoomID) (*domain.Board, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	board, exists := r.boards[roomID]
	if !exists {
		return nil, domain.ErrBoardNotFound
	}

	// Copy so callers cannot mutate the stored collection in place.
	out := *board
	out.Elements = append([]domain.Element(nil), board.Elements...)
	return &out, nil
}

func (r *MemoryBoardRepository) Put(ctx context.Context, board *domain.Board) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *board
	stored.Elements = append([]domain.Element(nil), board.Elements...)
	r.boards[board.RoomID] = &stored
	return nil
}

func (r *MemoryBoardRepository) List(ctx context.Context) ([]*domain.Board, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Board, 0, len(r.boards))
	for _, board := range r.boards {
		copied := *board
		copied.Elements = append([]domain.Element(nil), board.Elements...)
		out = append(out, &copied)
	}
	return out, nil
}
