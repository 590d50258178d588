package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/time/rate"

	"github.com/onnwee/streamwatch/telemetry"
)

// Lookup answers whether a name is live on one provider.
//
// Implementations return LiveStatus{Live: false} with a nil error when the
// name does not exist on the provider. Any other failure is an error.
type Lookup interface {
	CheckLive(ctx context.Context, name string) (LiveStatus, error)
}

// LookupFunc adapts a function to Lookup.
type LookupFunc func(ctx context.Context, name string) (LiveStatus, error)

func (f LookupFunc) CheckLive(ctx context.Context, name string) (LiveStatus, error) {
	return f(ctx, name)
}

// RetryingLookup bounds every attempt with a timeout and retries transient
// failures. The final failure always wraps ErrLookupFailed.
type RetryingLookup struct {
	Provider string
	Inner    Lookup
	Retries  int
	Timeout  time.Duration
	Delay    time.Duration
}

func (r *RetryingLookup) CheckLive(ctx context.Context, name string) (LiveStatus, error) {
	attempt := 0
	op := func() (LiveStatus, error) {
		attempt++
		if attempt > 1 {
			telemetry.ObserveRetry(r.Provider)
		}
		actx := ctx
		if r.Timeout > 0 {
			var cancel context.CancelFunc
			actx, cancel = context.WithTimeout(ctx, r.Timeout)
			defer cancel()
		}
		st, err := r.Inner.CheckLive(actx, name)
		if err == nil {
			return st, nil
		}
		if ClassifyLookupError(err) == ErrorClassFatal {
			return LiveStatus{}, backoff.Permanent(err)
		}
		return LiveStatus{}, err
	}

	retries := r.Retries
	if retries < 0 {
		retries = 0
	}
	st, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(&backoff.ConstantBackOff{Interval: r.Delay}),
		backoff.WithMaxTries(uint(retries+1)),
		backoff.WithMaxElapsedTime(0),
	)
	if err != nil {
		return LiveStatus{}, fmt.Errorf("%w: %s %q after %d attempt(s): %w", ErrLookupFailed, r.Provider, name, attempt, err)
	}
	return st, nil
}

// RateLimitedLookup enforces a provider-wide request ceiling. One instance is
// shared by the scheduler and the interactive service.
type RateLimitedLookup struct {
	Inner   Lookup
	Limiter *rate.Limiter
}

// NewRateLimitedLookup wraps inner with a token bucket. perSec <= 0 disables the limit.
func NewRateLimitedLookup(inner Lookup, perSec float64, burst int) *RateLimitedLookup {
	limit := rate.Inf
	if perSec > 0 {
		limit = rate.Limit(perSec)
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedLookup{Inner: inner, Limiter: rate.NewLimiter(limit, burst)}
}

func (l *RateLimitedLookup) CheckLive(ctx context.Context, name string) (LiveStatus, error) {
	if err := l.Limiter.Wait(ctx); err != nil {
		return LiveStatus{}, fmt.Errorf("rate limit wait: %w", err)
	}
	return l.Inner.CheckLive(ctx, name)
}
