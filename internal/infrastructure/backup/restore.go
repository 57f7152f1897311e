package backup

import (
	"context"
	"fmt"

	"drawza/internal/core/ports"
	"drawza/pkg/backup"
	"drawza/pkg/validation"

	"go.uber.org/zap"
)

// Restorer writes a snapshot's boards back into the repository. Rooms not
// present in the snapshot are left untouched.
type Restorer struct {
	backupService *backup.Service
	boardRepo     ports.BoardRepository
	logger        *zap.SugaredLogger
}

func NewRestorer(backupService *backup.Service, boardRepo ports.BoardRepository, logger *zap.SugaredLogger) *Restorer {
	return &Restorer{
		backupService: backupService,
		boardRepo:     boardRepo,
		logger:        logger,
	}
}

// Restore loads the named snapshot and upserts every board it contains.
// It returns the number of boards written.
func (r *Restorer) Restore(ctx context.Context, name string) (int, error) {
	snap, err := r.backupService.Read(ctx, name)
	if err != nil {
		return 0, err
	}

	restored := 0
	for _, board := range snap.Boards {
		if err := validation.ValidateRoomID(string(board.RoomID)); err != nil {
			r.logger.Warnw("skipping board with invalid room id", "room_id", board.RoomID, "error", err)
			continue
		}
		if err := r.boardRepo.Put(ctx, board); err != nil {
			return restored, fmt.Errorf("restore board %s: %w", board.RoomID, err)
		}
		restored++
	}

	r.logger.Infow("snapshot restored", "name", name, "boards", restored)
	return restored, nil
}

// RestoreLatest restores the most recent snapshot, if any exist.
func (r *Restorer) RestoreLatest(ctx context.Context) (int, error) {
	names, err := r.backupService.List(ctx)
	if err != nil {
		return 0, err
	}
	if len(names) == 0 {
		return 0, fmt.Errorf("no snapshots available")
	}

	latest := names[0]
	for _, name := range names[1:] {
		if name > latest {
			latest = name
		}
	}
	return r.Restore(ctx, latest)
}
