package backup

import (
	"context"
	"sort"
	"time"

	"drawza/internal/core/ports"
	"drawza/pkg/backup"
	"drawza/pkg/distributed"

	"go.uber.org/zap"
)

// Config contains scheduler settings.
type Config struct {
	Interval  time.Duration
	Retention int // snapshots to keep; 0 keeps everything
}

// Scheduler exports periodic snapshots of all persisted boards. With an
// optional distributed lock only one API instance runs each cycle.
type Scheduler struct {
	backupService *backup.Service
	boardRepo     ports.BoardRepository
	lock          *distributed.Lock
	interval      time.Duration
	retention     int
	logger        *zap.SugaredLogger
	stopChan      chan struct{}
}

func NewScheduler(
	backupService *backup.Service,
	boardRepo ports.BoardRepository,
	lock *distributed.Lock,
	cfg Config,
	logger *zap.SugaredLogger,
) *Scheduler {
	return &Scheduler{
		backupService: backupService,
		boardRepo:     boardRepo,
		lock:          lock,
		interval:      cfg.Interval,
		retention:     cfg.Retention,
		logger:        logger,
		stopChan:      make(chan struct{}),
	}
}

// Start blocks running backup cycles until Stop or context cancellation.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runBackup(ctx)

	for {
		select {
		case <-ticker.C:
			s.runBackup(ctx)
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) Stop() {
	close(s.stopChan)
}

func (s *Scheduler) runBackup(ctx context.Context) {
	if s.lock != nil {
		acquired, err := s.lock.TryLock(ctx)
		if err != nil {
			s.logger.Warnw("backup lock attempt failed", "error", err)
			return
		}
		if !acquired {
			s.logger.Debug("another instance holds the backup lock, skipping cycle")
			return
		}
		defer func() {
			if err := s.lock.Unlock(ctx); err != nil {
				s.logger.Warnw("backup lock release failed", "error", err)
			}
		}()
	}

	boards, err := s.boardRepo.List(ctx)
	if err != nil {
		s.logger.Errorw("backup failed to list boards", "error", err)
		return
	}

	name, err := s.backupService.Create(ctx, boards)
	if err != nil {
		s.logger.Errorw("backup failed", "error", err)
		return
	}
	s.logger.Infow("backup created", "name", name, "boards", len(boards))

	s.prune(ctx)
}

// prune deletes the oldest snapshots beyond the retention count.
func (s *Scheduler) prune(ctx context.Context) {
	if s.retention <= 0 {
		return
	}

	names, err := s.backupService.List(ctx)
	if err != nil {
		s.logger.Warnw("backup prune failed to list snapshots", "error", err)
		return
	}
	if len(names) <= s.retention {
		return
	}

	// Timestamped names sort oldest first.
	sort.Strings(names)
	for _, name := range names[:len(names)-s.retention] {
		if err := s.backupService.Delete(ctx, name); err != nil {
			s.logger.Warnw("backup prune failed to delete snapshot", "name", name, "error", err)
			continue
		}
		s.logger.Debugw("pruned old backup", "name", name)
	}
}
