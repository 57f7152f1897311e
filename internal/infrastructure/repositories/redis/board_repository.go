package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"drawza/internal/core/domain"
	"drawza/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

const boardKeyPrefix = "drawza:board:"

// storedBoard is the JSON shape kept under one key per room.
type storedBoard struct {
	RoomID    domain.RoomID    `json:"roomId"`
	Elements  []domain.Element `json:"elements"`
	CreatedBy domain.UserID    `json:"createdBy"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

type RedisBoardRepository struct {
	client *redis.Client
}

func NewRedisBoardRepository(client *redis.Client) ports.BoardRepository {
	return &RedisBoardRepository{client: client}
}

func boardKey(roomID domain.RoomID) string {
	return boardKeyPrefix + string(roomID)
}

func (r *RedisBoardRepository) Get(ctx context.Context, roomID domain.RoomID) (*domain.Board, error) {
	data, err := r.client.Get(ctx, boardKey(roomID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrBoardNotFound
		}
		return nil, fmt.Errorf("redis get board: %w", err)
	}

	var stored storedBoard
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("unmarshal board %s: %w", roomID, err)
	}

	return &domain.Board{
		RoomID:    stored.RoomID,
		Elements:  stored.Elements,
		CreatedBy: stored.CreatedBy,
		CreatedAt: stored.CreatedAt,
		UpdatedAt: stored.UpdatedAt,
	}, nil
}

func (r *RedisBoardRepository) Put(ctx context.Context, board *domain.Board) error {
	stored := storedBoard{
		RoomID:    board.RoomID,
		Elements:  board.Elements,
		CreatedBy: board.CreatedBy,
		CreatedAt: board.CreatedAt,
		UpdatedAt: board.UpdatedAt,
	}
	if stored.Elements == nil {
		stored.Elements = []domain.Element{}
	}

	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("marshal board %s: %w", board.RoomID, err)
	}

	if err := r.client.Set(ctx, boardKey(board.RoomID), data, 0).Err(); err != nil {
		return fmt.Errorf("redis put board: %w", err)
	}
	return nil
}

func (r *RedisBoardRepository) List(ctx context.Context) ([]*domain.Board, error) {
	var boards []*domain.Board

	iter := r.client.Scan(ctx, 0, boardKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		roomID := domain.RoomID(iter.Val()[len(boardKeyPrefix):])
		board, err := r.Get(ctx, roomID)
		if err != nil {
			if errors.Is(err, domain.ErrBoardNotFound) {
				// Deleted between SCAN and GET.
				continue
			}
			return nil, err
		}
		boards = append(boards, board)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan boards: %w", err)
	}
	return boards, nil
}
