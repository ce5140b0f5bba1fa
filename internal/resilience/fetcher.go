package resilience

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/homescore/internal/model"
	"github.com/sells-group/homescore/pkg/amenity"
)

// Policy bundles the retry and breaker settings for a Fetcher.
type Policy struct {
	Retry   RetryConfig
	Breaker BreakerConfig
}

// PolicyFromConfig converts config values into a Policy. Zero values keep
// the single-attempt, no-breaker defaults.
func PolicyFromConfig(maxAttempts, breakerThreshold, breakerResetSecs int) Policy {
	p := Policy{Retry: DefaultRetryConfig()}
	if maxAttempts > 0 {
		p.Retry.MaxAttempts = maxAttempts
	}
	p.Breaker.FailureThreshold = breakerThreshold
	if breakerResetSecs > 0 {
		p.Breaker.ResetTimeout = time.Duration(breakerResetSecs) * time.Second
	}
	return p
}

// Fetcher decorates an amenity.Fetcher with retries and a circuit breaker.
// A breaker rejection surfaces as an *amenity.Failure so callers treat it
// like any other failed fetch.
type Fetcher struct {
	next    amenity.Fetcher
	retry   RetryConfig
	breaker *Breaker
}

// NewFetcher wraps next according to p.
func NewFetcher(next amenity.Fetcher, p Policy) *Fetcher {
	retry := p.Retry
	if retry.OnRetry == nil {
		retry.OnRetry = RetryLogger("amenity.fetch")
	}
	brk := p.Breaker
	if brk.OnStateChange == nil {
		brk.OnStateChange = func(from, to CircuitState) {
			zap.L().Warn("resilience: amenity breaker state change",
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		}
	}
	return &Fetcher{next: next, retry: retry, breaker: NewBreaker(brk)}
}

// Breaker exposes the breaker for status reporting; nil when disabled.
func (f *Fetcher) Breaker() *Breaker { return f.breaker }

// Fetch implements amenity.Fetcher.
func (f *Fetcher) Fetch(ctx context.Context, lat, lon float64, radiusMeters int) ([]model.Amenity, error) {
	return DoVal(ctx, f.retry, func(ctx context.Context) ([]model.Amenity, error) {
		if err := f.breaker.Allow(); err != nil {
			return nil, &amenity.Failure{Err: err}
		}
		out, err := f.next.Fetch(ctx, lat, lon, radiusMeters)
		f.breaker.Record(err)
		return out, err
	})
}
