package replay

import (
	"time"

	"github.com/example/autohttps/internal/ports/primary"
)

// Report is the outcome of one replay.
type Report struct {
	Name     string
	Results  []StepResult
	Failures int
}

// Passed reports whether every expectation held.
func (r *Report) Passed() bool {
	return r.Failures == 0
}

// StepResult records what happened at one step.
type StepResult struct {
	Step      int
	At        time.Duration
	Kind      string
	RequestID string            // Navigate steps only
	Decision  *primary.Decision // Navigate steps only
	Failure   string            // Empty when the step's expectations held
}
