package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"receipts-backend/internal/shared/metrics"
	"receipts-backend/internal/shared/telemetry"
)

const defaultRetryDelay = 300 * time.Millisecond

// GuardOptions bounds how long and how often the classifier may be called.
type GuardOptions struct {
	Timeout         time.Duration
	MaxRetries      int
	RetryDelay      time.Duration
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

// Guard wraps a Completer with a per-call timeout, retries on transient errors and a circuit
// breaker. Every failure it returns wraps ErrUnavailable.
type Guard struct {
	base    Completer
	opts    GuardOptions
	breaker *gobreaker.CircuitBreaker[string]
}

// NewGuard constructs a Guard around base.
func NewGuard(base Completer, opts GuardOptions) *Guard {
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = defaultRetryDelay
	}
	if opts.BreakerFailures == 0 {
		opts.BreakerFailures = 3
	}
	if opts.BreakerCooldown <= 0 {
		opts.BreakerCooldown = 30 * time.Second
	}
	threshold := opts.BreakerFailures
	breaker := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "classifier",
		MaxRequests: 1,
		Timeout:     opts.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			telemetry.Warn("classifier.breaker", map[string]any{
				"name": name,
				"from": from.String(),
				"to":   to.String(),
			})
		},
	})
	return &Guard{base: base, opts: opts, breaker: breaker}
}

// Complete calls the wrapped Completer.
func (g *Guard) Complete(ctx context.Context, prompt string) (string, error) {
	purpose := PurposeFromContext(ctx)
	start := time.Now()

	out, err := g.breaker.Execute(func() (string, error) {
		return g.attempt(ctx, prompt)
	})

	outcome := "ok"
	if err != nil {
		outcome = "error"
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			outcome = "breaker_open"
		}
		err = fmt.Errorf("%w: %s: %v", ErrUnavailable, purpose, err)
	}
	metrics.ObserveClassifierRequest(purpose, outcome, time.Since(start))
	return out, err
}

func (g *Guard) attempt(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for i := 0; i <= g.opts.MaxRetries; i++ {
		if i > 0 {
			telemetry.Info("classifier.retry", map[string]any{
				"attempt": i,
				"purpose": PurposeFromContext(ctx),
				"error":   lastErr.Error(),
			})
			select {
			case <-time.After(g.opts.RetryDelay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
		out, err := g.call(ctx, prompt)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !shouldRetry(err) {
			break
		}
	}
	return "", lastErr
}

func (g *Guard) call(ctx context.Context, prompt string) (string, error) {
	if g.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.opts.Timeout)
		defer cancel()
	}
	return g.base.Complete(ctx, prompt)
}

// shouldRetry reports transient transport and 5xx failures. Timeouts are not retried: an
// expired call means the service is unavailable.
func shouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return false
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "timeout") {
		return false
	}
	if strings.Contains(msg, "http status 5") {
		return true
	}
	return strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection closed") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "eof")
}
