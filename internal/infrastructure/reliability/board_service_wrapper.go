package reliability

import (
	"context"

	"drawza/internal/core/domain"
	"drawza/internal/core/ports"
	"drawza/pkg/circuitbreaker"
	"drawza/pkg/retry"

	"go.uber.org/zap"
)

// BoardServiceWrapper wraps a BoardService with retry logic and a circuit
// breaker so a flapping storage backend does not stall every room's save
// path. A rejected call while the breaker is open is not retried.
type BoardServiceWrapper struct {
	service ports.BoardService
	logger  *zap.SugaredLogger

	retryConfig    retry.Config
	circuitBreaker *circuitbreaker.CircuitBreaker
}

func NewBoardServiceWrapper(
	service ports.BoardService,
	retryConfig retry.Config,
	cbConfig circuitbreaker.Config,
	logger *zap.SugaredLogger,
) *BoardServiceWrapper {
	wrapper := &BoardServiceWrapper{
		service:        service,
		logger:         logger,
		retryConfig:    retryConfig,
		circuitBreaker: circuitbreaker.New(cbConfig),
	}

	wrapper.retryConfig.NonRetryable = append(
		wrapper.retryConfig.NonRetryable, circuitbreaker.ErrOpen,
	)

	wrapper.circuitBreaker.OnStateChange(func(from, to circuitbreaker.State) {
		logger.Infow("board persistence circuit breaker state changed",
			"from", from.String(),
			"to", to.String(),
		)
	})

	return wrapper
}

func (w *BoardServiceWrapper) LoadBoard(ctx context.Context, roomID domain.RoomID, requester domain.UserID) (*domain.Board, error) {
	if !w.retryConfig.Enabled {
		return w.service.LoadBoard(ctx, roomID, requester)
	}

	return retry.RetryWithResult(ctx, w.retryConfig, func() (*domain.Board, error) {
		return circuitbreaker.Execute(w.circuitBreaker, func() (*domain.Board, error) {
			return w.service.LoadBoard(ctx, roomID, requester)
		})
	})
}

func (w *BoardServiceWrapper) SaveBoard(ctx context.Context, roomID domain.RoomID, elements []domain.Element, requester domain.UserID) (*domain.Board, error) {
	if !w.retryConfig.Enabled {
		return w.service.SaveBoard(ctx, roomID, elements, requester)
	}

	return retry.RetryWithResult(ctx, w.retryConfig, func() (*domain.Board, error) {
		return circuitbreaker.Execute(w.circuitBreaker, func() (*domain.Board, error) {
			return w.service.SaveBoard(ctx, roomID, elements, requester)
		})
	})
}

// GetCircuitBreakerStats exposes breaker counters for health reporting.
func (w *BoardServiceWrapper) GetCircuitBreakerStats() circuitbreaker.Stats {
	return w.circuitBreaker.GetStats()
}
