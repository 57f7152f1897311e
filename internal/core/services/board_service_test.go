package services

import (
	"context"
	"testing"
	"time"

	"drawza/internal/core/domain"
	"drawza/internal/core/ports"
	"drawza/internal/infrastructure/repositories/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testRoom = domain.RoomID("room-ab12cd34")

func newBoardService(t *testing.T, maxElements int) (*boardService, ports.BoardRepository) {
	t.Helper()
	repo := memory.NewMemoryBoardRepository()
	svc := NewBoardService(repo, maxElements, zaptest.NewLogger(t).Sugar()).(*boardService)
	return svc, repo
}

func TestLoadBoardCreatesEmptyOnFirstAccess(t *testing.T) {
	svc, _ := newBoardService(t, 100)

	board, err := svc.LoadBoard(context.Background(), testRoom, "u1")
	require.NoError(t, err)

	assert.Equal(t, testRoom, board.RoomID)
	assert.Equal(t, domain.UserID("u1"), board.CreatedBy)
	assert.NotNil(t, board.Elements)
	assert.Empty(t, board.Elements)
}

func TestLoadBoardRejectsInvalidRoomID(t *testing.T) {
	svc, _ := newBoardService(t, 100)

	_, err := svc.LoadBoard(context.Background(), "not a room!", "u1")
	assert.Error(t, err)
}

func TestSaveBoardRoundTrip(t *testing.T) {
	svc, _ := newBoardService(t, 100)

	elements := []domain.Element{
		{ID: "el-1", Type: domain.ElementRectangle, Width: 10, Height: 10, Opacity: 100},
		{ID: "el-2", Type: domain.ElementLine, Width: 5, Opacity: 100},
	}
	saved, err := svc.SaveBoard(context.Background(), testRoom, elements, "u1")
	require.NoError(t, err)
	assert.Len(t, saved.Elements, 2)
	assert.False(t, saved.UpdatedAt.IsZero())

	loaded, err := svc.LoadBoard(context.Background(), testRoom, "u2")
	require.NoError(t, err)
	assert.Len(t, loaded.Elements, 2)
	assert.Equal(t, domain.UserID("u1"), loaded.CreatedBy)
}

func TestSaveBoardNilElementsBecomesEmpty(t *testing.T) {
	svc, _ := newBoardService(t, 100)

	saved, err := svc.SaveBoard(context.Background(), testRoom, nil, "u1")
	require.NoError(t, err)
	assert.NotNil(t, saved.Elements)
	assert.Empty(t, saved.Elements)
}

func TestSaveBoardEnforcesElementLimit(t *testing.T) {
	svc, _ := newBoardService(t, 2)

	elements := []domain.Element{
		{ID: "a", Opacity: 100},
		{ID: "b", Opacity: 100},
		{ID: "c", Opacity: 100},
	}

	_, err := svc.SaveBoard(context.Background(), testRoom, elements, "u1")
	assert.ErrorContains(t, err, "element limit")
}

func TestLoadBoardServesCachedCopyAfterSave(t *testing.T) {
	svc, repo := newBoardService(t, 100)

	_, err := svc.SaveBoard(context.Background(), testRoom, []domain.Element{
		{ID: "el-1", Opacity: 100},
	}, "u1")
	require.NoError(t, err)

	// A direct backend write is invisible until the cache entry expires.
	require.NoError(t, repo.Put(context.Background(), &domain.Board{
		RoomID:   testRoom,
		Elements: []domain.Element{},
	}))

	board, err := svc.LoadBoard(context.Background(), testRoom, "u1")
	require.NoError(t, err)
	assert.Len(t, board.Elements, 1)
}

func TestGenerateAndValidateToken(t *testing.T) {
	auth := NewAuthService("test-secret", time.Hour)

	token, err := auth.GenerateToken("u1", "Ada")
	require.NoError(t, err)

	claims, err := auth.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("u1"), claims.UserID)
	assert.Equal(t, "Ada", claims.Name)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	token, err := NewAuthService("secret-a", time.Hour).GenerateToken("u1", "Ada")
	require.NoError(t, err)

	_, err = NewAuthService("secret-b", time.Hour).ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	auth := NewAuthService("test-secret", -time.Minute)

	token, err := auth.GenerateToken("u1", "Ada")
	require.NoError(t, err)

	_, err = auth.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	auth := NewAuthService("test-secret", time.Hour)

	_, err := auth.ValidateToken("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
