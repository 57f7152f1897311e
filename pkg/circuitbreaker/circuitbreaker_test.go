package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		FailureThreshold:    3,
		SuccessThreshold:    2,
		Timeout:             50 * time.Millisecond,
		MaxRequestsHalfOpen: 2,
	}
}

var errDown = errors.New("backend down")

func fail() error    { return errDown }
func succeed() error { return nil }

func TestOpensAfterConsecutiveFailures(t *testing.T) {
	cb := New(testConfig())

	for i := 0; i < 3; i++ {
		require.ErrorIs(t, cb.Execute(fail), errDown)
	}
	assert.Equal(t, StateOpen, cb.GetState())

	err := cb.Execute(succeed)
	require.ErrorIs(t, err, ErrOpen)
}

func TestSuccessResetsFailureCount(t *testing.T) {
	cb := New(testConfig())

	cb.Execute(fail)
	cb.Execute(fail)
	require.NoError(t, cb.Execute(succeed))
	cb.Execute(fail)
	cb.Execute(fail)

	assert.Equal(t, StateClosed, cb.GetState())
}

func TestHalfOpenClosesAfterSuccesses(t *testing.T) {
	cb := New(testConfig())
	for i := 0; i < 3; i++ {
		cb.Execute(fail)
	}
	require.Equal(t, StateOpen, cb.GetState())

	time.Sleep(60 * time.Millisecond)

	require.NoError(t, cb.Execute(succeed))
	assert.Equal(t, StateHalfOpen, cb.GetState())
	require.NoError(t, cb.Execute(succeed))
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestHalfOpenFailureReopens(t *testing.T) {
	cb := New(testConfig())
	for i := 0; i < 3; i++ {
		cb.Execute(fail)
	}

	time.Sleep(60 * time.Millisecond)

	require.ErrorIs(t, cb.Execute(fail), errDown)
	assert.Equal(t, StateOpen, cb.GetState())
}

func TestExecuteWithResult(t *testing.T) {
	cb := New(testConfig())

	got, err := Execute(cb, func() (string, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", got)

	for i := 0; i < 3; i++ {
		cb.Execute(fail)
	}
	_, err = Execute(cb, func() (string, error) { return "ok", nil })
	assert.ErrorIs(t, err, ErrOpen)
}

func TestReset(t *testing.T) {
	cb := New(testConfig())
	for i := 0; i < 3; i++ {
		cb.Execute(fail)
	}
	require.Equal(t, StateOpen, cb.GetState())

	cb.Reset()
	assert.Equal(t, StateClosed, cb.GetState())
	assert.NoError(t, cb.Execute(succeed))
}
