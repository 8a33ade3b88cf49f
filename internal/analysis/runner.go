package analysis

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/dlyoglab/ipcheck/internal/providers"
)

const (
	// DefaultMargin is the remaining time below which no new unit starts.
	DefaultMargin = 60 * time.Second
	// DefaultCallTimeout bounds a single analyzer call.
	DefaultCallTimeout = 180 * time.Second
)

// SkipReason is recorded on the unit at which the budget ran out.
const SkipReason = "skipped: time budget exhausted before analysis"

// Runner drives units through an Analyzer one at a time under a time budget.
type Runner struct {
	Analyzer providers.Analyzer
	Budget   Budget
	// Margin is the safety threshold; zero means DefaultMargin.
	Margin time.Duration
	// CallTimeout bounds each analyzer call; zero means DefaultCallTimeout.
	CallTimeout time.Duration
	Retry       RetryPolicy
	MaxTokens   int

	// Sleep waits between retries; nil uses a timer.
	Sleep func(ctx context.Context, d time.Duration) error
	// Now is used for event timing; nil uses time.Now.
	Now func() time.Time
}

// AbortError reports a failure that escaped a unit step.
type AbortError struct {
	Unit  int
	Cause any
	Stack []byte
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("run aborted at unit %d: %v", e.Unit, e.Cause)
}

// Run processes units in order and returns the outcome. Per-unit failures
// become Failed entries; running out of budget adds one Skipped entry for
// the current unit and stops. The returned error is non-nil only when the
// run is aborted, in which case the outcome holds the entries made so far.
func (r *Runner) Run(ctx context.Context, units []Unit) (out Outcome, err error) {
	out = Outcome{TotalUnits: len(units), State: StateRunning}
	if r.Analyzer == nil || r.Budget == nil {
		out.State = StateAborted
		return out, errors.New("runner requires an analyzer and a budget")
	}

	current := -1
	defer func() {
		if rec := recover(); rec != nil {
			out.State = StateAborted
			err = &AbortError{Unit: current, Cause: rec, Stack: debug.Stack()}
		}
	}()

	for _, u := range units {
		current = u.Index
		if r.Budget.Remaining() < r.margin() {
			out.Entries = append(out.Entries, Entry{Unit: u, Result: Skipped(SkipReason)})
			out.Events = append(out.Events, Event{Unit: u.Index, Label: u.Label, Kind: KindSkipped})
			out.TruncatedForTime = true
			out.State = StateStoppedByBudget
			return out, nil
		}

		entry, ev := r.step(ctx, u)
		out.Entries = append(out.Entries, entry)
		out.Events = append(out.Events, ev)
	}

	out.State = StateCompleted
	return out, nil
}

// step analyzes a single unit.
func (r *Runner) step(ctx context.Context, u Unit) (Entry, Event) {
	start := r.now()
	req := providers.Request{
		SystemPrompt: SystemPrompt(),
		UserPrompt:   BuildPrompt(u),
		Timeout:      r.callTimeout(),
		MaxTokens:    r.MaxTokens,
	}

	resp, attempts, err := r.callWithBackoff(ctx, req)
	ev := Event{
		Unit:     u.Index,
		Label:    u.Label,
		Attempts: attempts,
		Elapsed:  r.now().Sub(start),
	}
	if err != nil {
		ev.Kind = KindFailed
		ev.Err = err.Error()
		return Entry{Unit: u, Result: Failed(err.Error())}, ev
	}

	res := Parse(resp.Content)
	ev.Kind = res.Kind
	ev.Cached = resp.Cached
	return Entry{Unit: u, Result: res}, ev
}

func (r *Runner) margin() time.Duration {
	if r.Margin > 0 {
		return r.Margin
	}
	return DefaultMargin
}

func (r *Runner) callTimeout() time.Duration {
	if r.CallTimeout > 0 {
		return r.CallTimeout
	}
	return DefaultCallTimeout
}

func (r *Runner) sleep(ctx context.Context, d time.Duration) error {
	if r.Sleep != nil {
		return r.Sleep(ctx, d)
	}
	return sleepContext(ctx, d)
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}
