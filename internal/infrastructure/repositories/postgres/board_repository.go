package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"drawza/internal/core/domain"
	"drawza/internal/core/ports"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// boardRow is the gorm model backing one board per room.
type boardRow struct {
	RoomID    string `gorm:"primaryKey;size:100"`
	Elements  []byte `gorm:"type:jsonb;not null"`
	CreatedBy string `gorm:"size:64"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (boardRow) TableName() string {
	return "boards"
}

// NewDB opens a gorm postgres connection and migrates the boards table.
func NewDB(dsn string, logger *zap.SugaredLogger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}

	if err := db.AutoMigrate(&boardRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate boards table: %w", err)
	}

	if logger != nil {
		logger.Infow("connected to Postgres")
	}
	return db, nil
}

type PostgresBoardRepository struct {
	db *gorm.DB
}

func NewPostgresBoardRepository(db *gorm.DB) ports.BoardRepository {
	return &PostgresBoardRepository{db: db}
}

func (r *PostgresBoardRepository) Get(ctx context.Context, roomID domain.RoomID) (*domain.Board, error) {
	var row boardRow
	err := r.db.WithContext(ctx).First(&row, "room_id = ?", string(roomID)).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrBoardNotFound
		}
		return nil, fmt.Errorf("postgres get board: %w", err)
	}

	var elements []domain.Element
	if err := json.Unmarshal(row.Elements, &elements); err != nil {
		return nil, fmt.Errorf("unmarshal board %s: %w", roomID, err)
	}

	return &domain.Board{
		RoomID:    domain.RoomID(row.RoomID),
		Elements:  elements,
		CreatedBy: domain.UserID(row.CreatedBy),
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}, nil
}

func (r *PostgresBoardRepository) Put(ctx context.Context, board *domain.Board) error {
	elements := board.Elements
	if elements == nil {
		elements = []domain.Element{}
	}
	data, err := json.Marshal(elements)
	if err != nil {
		return fmt.Errorf("marshal board %s: %w", board.RoomID, err)
	}

	row := boardRow{
		RoomID:    string(board.RoomID),
		Elements:  data,
		CreatedBy: string(board.CreatedBy),
		CreatedAt: board.CreatedAt,
		UpdatedAt: board.UpdatedAt,
	}

	err = r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "room_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"elements", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("postgres put board: %w", err)
	}
	return nil
}

func (r *PostgresBoardRepository) List(ctx context.Context) ([]*domain.Board, error) {
	var rows []boardRow
	if err := r.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("postgres list boards: %w", err)
	}

	boards := make([]*domain.Board, 0, len(rows))
	for _, row := range rows {
		var elements []domain.Element
		if err := json.Unmarshal(row.Elements, &elements); err != nil {
			return nil, fmt.Errorf("unmarshal board %s: %w", row.RoomID, err)
		}
		boards = append(boards, &domain.Board{
			RoomID:    domain.RoomID(row.RoomID),
			Elements:  elements,
			CreatedBy: domain.UserID(row.CreatedBy),
			CreatedAt: row.CreatedAt,
			UpdatedAt: row.UpdatedAt,
		})
	}
	return boards, nil
}
