// Package analysis contains the core of an ipcheck run: chunking a bundle
// into units, the budget-aware runner that submits units one at a time to an
// analyzer, and the tolerant parser that classifies each raw response.
//
// The runner processes units strictly in order. Before each unit it compares
// the remaining invocation time with a safety margin; once the margin is
// crossed it records a skipped marker for the current unit and stops, so the
// caller always has time left to render and deliver a partial report.
//
// A failure on one unit is recorded as that unit's result and never stops the
// run. Nothing in this package logs: every unit step yields an [Event] that
// the caller may emit however it likes.
package analysis
