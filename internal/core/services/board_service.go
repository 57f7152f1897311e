package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"drawza/internal/core/domain"
	"drawza/internal/core/ports"
	"drawza/pkg/cache"
	"drawza/pkg/tracing"
	"drawza/pkg/validation"

	"go.uber.org/zap"
)

// boardCacheTTL keeps repeated loads of a busy room off the backend. It is
// short because saves from another instance bypass this cache.
const boardCacheTTL = 2 * time.Second

type boardService struct {
	repo        ports.BoardRepository
	cache       *cache.Cache[*domain.Board]
	maxElements int
	logger      *zap.SugaredLogger
}

func NewBoardService(repo ports.BoardRepository, maxElements int, logger *zap.SugaredLogger) ports.BoardService {
	return &boardService{
		repo:        repo,
		cache:       cache.New[*domain.Board](boardCacheTTL),
		maxElements: maxElements,
		logger:      logger,
	}
}

// LoadBoard fetches the persisted collection for a room, creating an empty
// board on first access.
func (s *boardService) LoadBoard(ctx context.Context, roomID domain.RoomID, requester domain.UserID) (*domain.Board, error) {
	ctx, span := tracing.TraceBoardOperation(ctx, "load", string(roomID))
	defer span.End()

	if err := validation.ValidateRoomID(string(roomID)); err != nil {
		return nil, fmt.Errorf("invalid room id: %w", err)
	}

	if board, ok := s.cache.Get(string(roomID)); ok {
		return board, nil
	}

	board, err := s.repo.Get(ctx, roomID)
	if err == nil {
		s.cache.Set(string(roomID), board)
		return board, nil
	}
	if !errors.Is(err, domain.ErrBoardNotFound) {
		tracing.RecordError(ctx, err)
		return nil, fmt.Errorf("load board %s: %w", roomID, err)
	}

	board = &domain.Board{
		RoomID:    roomID,
		Elements:  []domain.Element{},
		CreatedBy: requester,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := s.repo.Put(ctx, board); err != nil {
		tracing.RecordError(ctx, err)
		return nil, fmt.Errorf("create board %s: %w", roomID, err)
	}

	s.cache.Set(string(roomID), board)
	s.logger.Infow("created empty board", "room_id", roomID, "created_by", requester)
	return board, nil
}

// SaveBoard replaces the persisted collection; the write is idempotent and
// upserts on first save.
func (s *boardService) SaveBoard(ctx context.Context, roomID domain.RoomID, elements []domain.Element, requester domain.UserID) (*domain.Board, error) {
	ctx, span := tracing.TraceBoardOperation(ctx, "save", string(roomID))
	defer span.End()

	if err := validation.ValidateRoomID(string(roomID)); err != nil {
		return nil, fmt.Errorf("invalid room id: %w", err)
	}
	if len(elements) > s.maxElements {
		return nil, fmt.Errorf("board %s exceeds element limit (%d > %d)", roomID, len(elements), s.maxElements)
	}
	if elements == nil {
		elements = []domain.Element{}
	}

	board, err := s.repo.Get(ctx, roomID)
	if err != nil {
		if !errors.Is(err, domain.ErrBoardNotFound) {
			tracing.RecordError(ctx, err)
			return nil, fmt.Errorf("save board %s: %w", roomID, err)
		}
		board = &domain.Board{
			RoomID:    roomID,
			CreatedBy: requester,
			CreatedAt: time.Now(),
		}
	}

	board.Elements = elements
	board.UpdatedAt = time.Now()

	if err := s.repo.Put(ctx, board); err != nil {
		tracing.RecordError(ctx, err)
		return nil, fmt.Errorf("save board %s: %w", roomID, err)
	}

	s.cache.Set(string(roomID), board)
	s.logger.Debugw("saved board", "room_id", roomID, "elements", len(elements))
	return board, nil
}
