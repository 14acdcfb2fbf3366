package benchmark

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/synthbench/internal/quantum"
)

// Run statuses.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// BranchResult is the outcome of one synthesis branch.
type BranchResult struct {
	Label        string
	Circuit      *quantum.Circuit
	GateSet      []string
	GateCount    int
	Distance     float64
	Elapsed      *float64 // seconds, nil when unknown
	ArtifactPath string
	Err          error
}

// OK reports whether the branch produced a scored, saved circuit.
func (b BranchResult) OK() bool {
	return b.Err == nil
}

// Summary formats the branch as
// "<label>: gates=<set> distance=<d> elapsed=<s|unknown>".
func (b BranchResult) Summary() string {
	if b.Err != nil {
		return fmt.Sprintf("%s: error=%v", b.Label, b.Err)
	}
	return fmt.Sprintf("%s: gates={%s} distance=%s elapsed=%s",
		b.Label, strings.Join(b.GateSet, ", "), FormatDistance(b.Distance), FormatElapsed(b.Elapsed))
}

// FormatDistance renders a distance score.
func FormatDistance(d float64) string {
	return strconv.FormatFloat(d, 'g', 6, 64)
}

// FormatElapsed renders seconds, or "unknown".
func FormatElapsed(elapsed *float64) string {
	if elapsed == nil {
		return "unknown"
	}
	return strconv.FormatFloat(*elapsed, 'f', 3, 64)
}

// RunResult aggregates both branches of one benchmark run.
type RunResult struct {
	ID        string
	Entry     string
	Problem   string
	Display   string
	Precision int
	NumQudits int
	StartedAt time.Time
	Branches  []BranchResult
}

// Err joins the branch errors. It is nil when every branch succeeded.
func (r *RunResult) Err() error {
	var errs []error
	for _, b := range r.Branches {
		if b.Err != nil {
			errs = append(errs, b.Err)
		}
	}
	return errors.Join(errs...)
}

// Status returns StatusSucceeded or StatusFailed.
func (r *RunResult) Status() string {
	if r.Err() != nil {
		return StatusFailed
	}
	return StatusSucceeded
}

// Branch returns the result with the given label.
func (r *RunResult) Branch(label string) (BranchResult, bool) {
	for _, b := range r.Branches {
		if b.Label == label {
			return b, true
		}
	}
	return BranchResult{}, false
}
