package mail

import (
	"context"
	"errors"
	"time"

	retry "github.com/StirlingMarketingGroup/go-retry"
	"github.com/charmbracelet/log"
	"github.com/sony/gobreaker"
)

const (
	breakerThreshold = 5
	breakerCooldown  = 30 * time.Second
	maxBackoff       = 5 * time.Second
)

// guard runs mail operations against one endpoint with transient-failure
// retries and a circuit breaker.
type guard struct {
	breaker  *gobreaker.CircuitBreaker
	attempts int
	backoff  time.Duration
	log      *log.Logger
}

func newGuard(endpoint string, attempts int, logger *log.Logger) *guard {
	if attempts < 1 {
		attempts = 1
	}
	g := &guard{
		attempts: attempts,
		backoff:  250 * time.Millisecond,
		log:      logger,
	}
	g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    endpoint,
		Timeout: breakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerThreshold
		},
		// Only transient failures say anything about endpoint health.
		IsSuccessful: func(err error) bool {
			return err == nil || !IsTransient(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "endpoint", name, "from", from.String(), "to", to.String())
		},
	})
	return g
}

// do runs fn, retrying transient failures. Every error returned is a
// *ProtocolError for op.
func (g *guard) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var (
		attempt int
		final   error
	)
	err := retry.Retry(func() error {
		if final != nil {
			return final
		}
		attempt++
		_, err := g.breaker.Execute(func() (interface{}, error) {
			return nil, wrapProtocol(op, fn(ctx))
		})
		err = wrapProtocol(op, err)
		if err != nil && attempt >= g.attempts {
			final = err
		}
		return err
	}, g.attempts, func(err error) error {
		if final != nil {
			return final
		}
		if !IsTransient(err) || ctx.Err() != nil || errors.Is(err, gobreaker.ErrOpenState) {
			final = err
			return err
		}
		if attempt < g.attempts {
			g.log.Warn("transient mail failure, retrying", "op", op, "attempt", attempt, "error", err)
		}
		return nil
	}, func() error {
		if final != nil {
			return final
		}
		return sleepContext(ctx, g.delay(attempt))
	})
	return wrapProtocol(op, err)
}

func (g *guard) delay(attempt int) time.Duration {
	d := g.backoff << (attempt - 1)
	if d <= 0 || d > maxBackoff {
		return maxBackoff
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
