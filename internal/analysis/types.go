package analysis

import "time"

// Unit is one bounded piece of a bundle submitted in a single request.
type Unit struct {
	Index     int    `json:"index"`
	Label     string `json:"label"`
	Text      string `json:"text"`
	Truncated bool   `json:"truncated,omitempty"`
}

// ResultKind discriminates the variants of Result.
type ResultKind string

const (
	// KindParsed means the response decoded into Findings.
	KindParsed ResultKind = "parsed"
	// KindRaw means the response was not structured and is kept verbatim.
	KindRaw ResultKind = "raw"
	// KindFailed means the analyzer call itself failed.
	KindFailed ResultKind = "failed"
	// KindSkipped marks the unit at which the time budget ran out.
	KindSkipped ResultKind = "skipped"
)

// Result is the outcome of submitting one unit. Exactly one of Findings,
// Text or Reason is meaningful, selected by Kind.
type Result struct {
	Kind     ResultKind `json:"kind"`
	Findings *Findings  `json:"findings,omitempty"`
	Text     string     `json:"text,omitempty"`
	Reason   string     `json:"reason,omitempty"`
}

// Parsed returns a Result holding structured findings.
func Parsed(f Findings) Result { return Result{Kind: KindParsed, Findings: &f} }

// Raw returns a Result holding unstructured response text.
func Raw(text string) Result { return Result{Kind: KindRaw, Text: text} }

// Failed returns a Result describing a per-unit failure.
func Failed(reason string) Result { return Result{Kind: KindFailed, Reason: reason} }

// Skipped returns the budget-exhausted marker.
func Skipped(reason string) Result { return Result{Kind: KindSkipped, Reason: reason} }

// Entry pairs a unit with its result.
type Entry struct {
	Unit   Unit   `json:"unit"`
	Result Result `json:"result"`
}

// State is the runner's state machine position.
type State string

const (
	StateRunning         State = "running"
	StateStoppedByBudget State = "stopped_by_budget"
	StateCompleted       State = "completed"
	StateAborted         State = "aborted"
)

// Outcome is everything a run produced, in unit order.
type Outcome struct {
	Entries          []Entry `json:"entries"`
	TotalUnits       int     `json:"totalUnits"`
	TruncatedForTime bool    `json:"truncatedForTime"`
	State            State   `json:"state"`
	Events           []Event `json:"events,omitempty"`
}

// Counts tallies entries by result kind.
func (o Outcome) Counts() map[ResultKind]int {
	m := make(map[ResultKind]int, 4)
	for _, e := range o.Entries {
		m[e.Result.Kind]++
	}
	return m
}

// Processed returns the number of entries that reached the analyzer.
func (o Outcome) Processed() int {
	n := 0
	for _, e := range o.Entries {
		if e.Result.Kind != KindSkipped {
			n++
		}
	}
	return n
}

// Event describes one unit step. The runner returns events instead of
// logging so the caller decides how to emit them.
type Event struct {
	Unit     int           `json:"unit"`
	Label    string        `json:"label"`
	Kind     ResultKind    `json:"kind"`
	Attempts int           `json:"attempts,omitempty"`
	Elapsed  time.Duration `json:"elapsed"`
	Err      string        `json:"error,omitempty"`
	Cached   bool          `json:"cached,omitempty"`
}
