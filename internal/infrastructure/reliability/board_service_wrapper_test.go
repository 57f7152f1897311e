package reliability

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"drawza/internal/core/domain"
	"drawza/pkg/circuitbreaker"
	"drawza/pkg/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type flakyBoardService struct {
	mu       sync.Mutex
	calls    int
	failures int // fail this many calls before succeeding
}

func (f *flakyBoardService) LoadBoard(_ context.Context, roomID domain.RoomID, _ domain.UserID) (*domain.Board, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("backend down")
	}
	return &domain.Board{RoomID: roomID}, nil
}

func (f *flakyBoardService) SaveBoard(_ context.Context, roomID domain.RoomID, elements []domain.Element, _ domain.UserID) (*domain.Board, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("backend down")
	}
	return &domain.Board{RoomID: roomID, Elements: elements}, nil
}

func (f *flakyBoardService) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newWrapper(inner *flakyBoardService) *BoardServiceWrapper {
	retryCfg := retry.Config{
		Enabled:      true,
		MaxAttempts:  2,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
	cbCfg := circuitbreaker.Config{
		FailureThreshold:    5,
		SuccessThreshold:    1,
		Timeout:             time.Minute,
		MaxRequestsHalfOpen: 1,
	}
	return NewBoardServiceWrapper(inner, retryCfg, cbCfg, zap.NewNop().Sugar())
}

func TestRetriesTransientSaveFailure(t *testing.T) {
	inner := &flakyBoardService{failures: 1}
	w := newWrapper(inner)

	board, err := w.SaveBoard(context.Background(), "room-AB12CD34", nil, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.RoomID("room-AB12CD34"), board.RoomID)
	assert.Equal(t, 2, inner.callCount())
}

func TestGivesUpAfterMaxAttempts(t *testing.T) {
	inner := &flakyBoardService{failures: 100}
	w := newWrapper(inner)

	_, err := w.LoadBoard(context.Background(), "room-AB12CD34", "u1")
	require.Error(t, err)
	assert.Equal(t, 3, inner.callCount())
}

func TestOpenBreakerShortCircuits(t *testing.T) {
	inner := &flakyBoardService{failures: 100}
	w := newWrapper(inner)

	// Two runs of three attempts trip the threshold of five.
	w.LoadBoard(context.Background(), "room-AB12CD34", "u1")
	w.LoadBoard(context.Background(), "room-AB12CD34", "u1")
	require.Equal(t, circuitbreaker.StateOpen, w.GetCircuitBreakerStats().State)

	before := inner.callCount()
	_, err := w.SaveBoard(context.Background(), "room-AB12CD34", nil, "u1")
	require.ErrorIs(t, err, circuitbreaker.ErrOpen)
	assert.Equal(t, before, inner.callCount())
}
