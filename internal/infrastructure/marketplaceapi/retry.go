package marketplaceapi

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sellerbridge/backend/internal/domain/marketplace"
)

// RetryPolicy is the single retry/backoff policy applied to outbound platform
// calls. Only errors the taxonomy classifies as transient (rate limiting,
// network/5xx) are retried; everything else surfaces immediately.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	logger      *zap.Logger
}

// DefaultRetryPolicy matches the bounded-backoff contract: 3 attempts,
// exponential delay.
func DefaultRetryPolicy(logger *zap.Logger) *RetryPolicy {
	return NewRetryPolicy(3, 500*time.Millisecond, 5*time.Second, logger)
}

// NewRetryPolicy creates a policy with explicit bounds
func NewRetryPolicy(maxAttempts int, baseDelay, maxDelay time.Duration, logger *zap.Logger) *RetryPolicy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetryPolicy{MaxAttempts: maxAttempts, BaseDelay: baseDelay, MaxDelay: maxDelay, logger: logger}
}

// Do runs op, retrying transient failures with exponential backoff. The last
// error is returned once attempts are exhausted; cancellation between waits
// is honored.
func (p *RetryPolicy) Do(ctx context.Context, name string, op func(ctx context.Context) error) error {
	var err error
	delay := p.BaseDelay

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err = op(ctx)
		if err == nil {
			return nil
		}
		if !marketplace.IsTransient(err) {
			return err
		}
		if attempt == p.MaxAttempts {
			break
		}

		p.logger.Warn("transient platform failure, backing off",
			zap.String("operation", name),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}

		delay *= 2
		if delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
	return err
}
