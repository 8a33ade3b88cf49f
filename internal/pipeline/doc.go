// Package pipeline wires one invocation together: fetch the bundle, redact
// it, chunk it, run the units under the time budget, render the report and
// deliver it.
//
// Every path that gets past configuration ends in a delivered document:
// the run report on success or partial success, and an error report when a
// stage fails outside the per-unit path. Run itself never panics and never
// returns an error; callers inspect Status.
package pipeline
