package events

import (
	"github.com/aristath/synthbench/internal/modules/benchmark"
)

// Publisher accepts progress events
type Publisher interface {
	Publish(e Event)
}

// ProgressReporter is a benchmark.Reporter that publishes run progress as
// events. A nil publisher discards everything.
type ProgressReporter struct {
	publisher Publisher
}

// NewProgressReporter creates a reporter publishing to p
func NewProgressReporter(p Publisher) *ProgressReporter {
	return &ProgressReporter{publisher: p}
}

func (pr *ProgressReporter) RunStarted(run *benchmark.RunResult) {
	if pr.publisher == nil {
		return
	}
	pr.publisher.Publish(NewEvent(run.ID, &RunStartedData{
		Entry:     run.Entry,
		Problem:   run.Problem,
		Display:   run.Display,
		Precision: run.Precision,
		NumQudits: run.NumQudits,
	}))
}

func (pr *ProgressReporter) BranchFinished(run *benchmark.RunResult, b benchmark.BranchResult) {
	if pr.publisher == nil {
		return
	}
	data := &BranchFinishedData{
		Label:          b.Label,
		Status:         benchmark.StatusSucceeded,
		GateSet:        b.GateSet,
		GateCount:      b.GateCount,
		ElapsedSeconds: b.Elapsed,
		ArtifactPath:   b.ArtifactPath,
	}
	if b.Err != nil {
		data.Status = benchmark.StatusFailed
		data.Error = b.Err.Error()
	} else {
		d := b.Distance
		data.Distance = &d
	}
	pr.publisher.Publish(NewEvent(run.ID, data))
}

func (pr *ProgressReporter) RunFinished(run *benchmark.RunResult) {
	if pr.publisher == nil {
		return
	}
	data := &RunFinishedData{
		Status:   run.Status(),
		Branches: len(run.Branches),
	}
	if err := run.Err(); err != nil {
		data.Error = err.Error()
	}
	pr.publisher.Publish(NewEvent(run.ID, data))
}
