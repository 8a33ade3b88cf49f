package pipeline

import (
	"fmt"

	"github.com/dlyoglab/ipcheck/internal/config"
)

// ConfigurationError reports required settings that are absent. The
// pipeline stops before any work and no report is sent.
type ConfigurationError = config.ConfigurationError

// EmptyInputError marks a bundle that produced no units. It is benign: a
// "nothing to analyze" report is still delivered.
type EmptyInputError struct {
	Source string
}

func (e *EmptyInputError) Error() string {
	return fmt.Sprintf("nothing to analyze in %s", e.Source)
}

// PipelineFault is anything that escapes the per-unit path. It triggers an
// error report.
type PipelineFault struct {
	Stage string
	Err   error
	// Stack is set when the fault was a recovered panic.
	Stack []byte
}

func (e *PipelineFault) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *PipelineFault) Unwrap() error { return e.Err }

// Stages named in faults and logs.
const (
	StageFetch   = "fetch"
	StageChunk   = "chunk"
	StageAnalyze = "analyze"
	StageDeliver = "deliver"
	StageRuntime = "runtime"
)
