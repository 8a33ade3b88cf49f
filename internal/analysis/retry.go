package analysis

import (
	"context"
	"time"

	"github.com/dlyoglab/ipcheck/internal/providers"
)

// RetryPolicy controls per-unit retries of rate-limited and server-side
// failures. Other failures are never retried.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// DefaultRetryPolicy retries twice with 1s, 2s backoff.
var DefaultRetryPolicy = RetryPolicy{MaxRetries: 2, BaseDelay: time.Second}

// callWithBackoff invokes the analyzer, retrying retryable failures while
// the backoff still leaves the safety margin intact.
func (r *Runner) callWithBackoff(ctx context.Context, req providers.Request) (providers.Response, int, error) {
	maxRetries := max(r.Retry.MaxRetries, 0)
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		resp, err := r.Analyzer.Analyze(ctx, req)
		if err == nil {
			return resp, attempt + 1, nil
		}
		lastErr = err

		if !providers.IsRetryable(err) || attempt == maxRetries {
			return providers.Response{}, attempt + 1, err
		}

		backoff := r.Retry.BaseDelay << uint(attempt)
		if r.Budget.Remaining()-backoff < r.margin() {
			return providers.Response{}, attempt + 1, err
		}
		if err := r.sleep(ctx, backoff); err != nil {
			return providers.Response{}, attempt + 1, lastErr
		}
	}
	return providers.Response{}, maxRetries + 1, lastErr
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
