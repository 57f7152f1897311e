package backup

import (
	"context"
	"testing"
	"time"

	"drawza/internal/core/domain"
	"drawza/internal/infrastructure/repositories/memory"
	"drawza/pkg/backup"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestBackup(t *testing.T) (*backup.Service, *Scheduler, *Restorer) {
	t.Helper()
	storage, err := backup.NewFileStorage(t.TempDir())
	require.NoError(t, err)
	svc := backup.NewService(storage, "test")

	repo := memory.NewMemoryBoardRepository()
	log := zap.NewNop().Sugar()
	sched := NewScheduler(svc, repo, nil, Config{Interval: time.Hour, Retention: 2}, log)
	restorer := NewRestorer(svc, repo, log)

	require.NoError(t, repo.Put(context.Background(), &domain.Board{
		RoomID:   "room-AB12CD34",
		Elements: []domain.Element{{ID: "e1", Type: domain.ElementRectangle}},
	}))
	return svc, sched, restorer
}

func TestRunBackupCreatesSnapshot(t *testing.T) {
	svc, sched, _ := newTestBackup(t)

	sched.runBackup(context.Background())

	names, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, names, 1)

	snap, err := svc.Read(context.Background(), names[0])
	require.NoError(t, err)
	require.Len(t, snap.Boards, 1)
	assert.Equal(t, domain.RoomID("room-AB12CD34"), snap.Boards[0].RoomID)
}

func TestPruneKeepsRetentionCount(t *testing.T) {
	svc, sched, _ := newTestBackup(t)

	for i := 0; i < 4; i++ {
		_, err := svc.Create(context.Background(), nil)
		require.NoError(t, err)
		time.Sleep(1100 * time.Millisecond)
	}

	sched.prune(context.Background())

	names, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, names, 2)
}

func TestRestoreWritesBoardsBack(t *testing.T) {
	svc, sched, restorer := newTestBackup(t)
	sched.runBackup(context.Background())

	names, err := svc.List(context.Background())
	require.NoError(t, err)

	count, err := restorer.Restore(context.Background(), names[0])
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRestoreLatestWithoutSnapshots(t *testing.T) {
	storage, err := backup.NewFileStorage(t.TempDir())
	require.NoError(t, err)
	svc := backup.NewService(storage, "test")
	restorer := NewRestorer(svc, memory.NewMemoryBoardRepository(), zap.NewNop().Sugar())

	_, err = restorer.RestoreLatest(context.Background())
	assert.Error(t, err)
}
