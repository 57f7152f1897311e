package backup

import (
	"context"
	"testing"

	"drawza/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	storage, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)
	return NewService(storage, "test")
}

func TestSnapshotRoundTrip(t *testing.T) {
	svc := newTestService(t)
	boards := []*domain.Board{
		{RoomID: "room-AB12CD34", Elements: []domain.Element{
			{ID: "e1", Type: domain.ElementRectangle, Width: 10, Height: 20},
		}},
		{RoomID: "room-EF56AB78", Elements: []domain.Element{}},
	}

	name, err := svc.Create(context.Background(), boards)
	require.NoError(t, err)

	snap, err := svc.Read(context.Background(), name)
	require.NoError(t, err)
	assert.Equal(t, "test", snap.Version)
	require.Len(t, snap.Boards, 2)
	assert.Equal(t, domain.RoomID("room-AB12CD34"), snap.Boards[0].RoomID)
	assert.Equal(t, domain.ElementID("e1"), snap.Boards[0].Elements[0].ID)
}

func TestListAndDelete(t *testing.T) {
	svc := newTestService(t)

	name, err := svc.Create(context.Background(), nil)
	require.NoError(t, err)

	names, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Contains(t, names, name)

	require.NoError(t, svc.Delete(context.Background(), name))
	names, err = svc.List(context.Background())
	require.NoError(t, err)
	assert.NotContains(t, names, name)
}

func TestReadMissingSnapshot(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.Read(context.Background(), "boards-missing.json")
	assert.Error(t, err)
}
