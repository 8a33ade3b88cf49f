package analysis

import (
	"context"
	"time"
)

// Budget reports how much wall-clock time the invocation has left.
type Budget interface {
	Remaining() time.Duration
}

// Deadline is a Budget that counts down to a fixed instant.
type Deadline struct {
	At  time.Time
	Now func() time.Time
}

// Remaining returns the time until the deadline; it may be negative.
func (d Deadline) Remaining() time.Duration {
	now := time.Now
	if d.Now != nil {
		now = d.Now
	}
	return d.At.Sub(now())
}

// BudgetFromContext uses the context deadline when there is one, and
// otherwise allows fallback from now.
func BudgetFromContext(ctx context.Context, fallback time.Duration) Deadline {
	if dl, ok := ctx.Deadline(); ok {
		return Deadline{At: dl}
	}
	return Deadline{At: time.Now().Add(fallback)}
}

// Unlimited is a Budget that never runs out.
type Unlimited struct{}

func (Unlimited) Remaining() time.Duration { return time.Duration(1<<63 - 1) }
