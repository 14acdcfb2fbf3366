package benchmark

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/aristath/synthbench/internal/modules/synthesis"
	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog"
)

// Reporter receives run progress. The runner serializes calls, so
// implementations need no locking of their own.
type Reporter interface {
	RunStarted(run *RunResult)
	BranchFinished(run *RunResult, branch BranchResult)
	RunFinished(run *RunResult)
}

// branchTitle returns the human name of a branch label.
func branchTitle(label string) string {
	switch label {
	case synthesis.BranchRegular:
		return "Regular"
	case synthesis.BranchFaultTolerant:
		return "Fault-tolerant"
	default:
		return label
	}
}

func formatGateSet(gates []string) string {
	return "{" + strings.Join(gates, ", ") + "}"
}

// ConsoleReporter writes the human-readable report.
type ConsoleReporter struct {
	w io.Writer
	// Timing prints each branch's elapsed time as soon as it finishes.
	Timing bool
	// Table appends a summary table after the per-branch lines.
	Table bool
	// Brief leaves out the gate-set and distance report. The per-branch
	// summary lines are always written.
	Brief bool
}

// NewConsoleReporter creates a console reporter writing to w.
func NewConsoleReporter(w io.Writer) *ConsoleReporter {
	return &ConsoleReporter{w: w}
}

func (c *ConsoleReporter) RunStarted(run *RunResult) {
	fmt.Fprintf(c.w, "Starting synthesis for %s with precision 10^-%d...\n", run.Display, run.Precision)
}

func (c *ConsoleReporter) BranchFinished(_ *RunResult, b BranchResult) {
	if !c.Timing {
		return
	}
	fmt.Fprintf(c.w, "%s synthesis time: %s seconds\n", branchTitle(b.Label), FormatElapsed(b.Elapsed))
}

func (c *ConsoleReporter) RunFinished(run *RunResult) {
	if !c.Brief {
		c.renderDetails(run)
	}
	for _, b := range run.Branches {
		fmt.Fprintln(c.w, b.Summary())
	}
	if c.Table {
		c.renderTable(run)
	}
}

func (c *ConsoleReporter) renderDetails(run *RunResult) {
	fmt.Fprintln(c.w, "The Clifford+T gate set:")
	fmt.Fprintln(c.w, formatGateSet(synthesis.CliffordTGates.Gates()))
	for _, b := range run.Branches {
		if b.Err != nil {
			continue
		}
		fmt.Fprintf(c.w, "The %s circuit contains these gates:\n", strings.ToLower(branchTitle(b.Label)))
		fmt.Fprintln(c.w, formatGateSet(b.GateSet))
	}
	for _, b := range run.Branches {
		if b.Err != nil {
			continue
		}
		fmt.Fprintf(c.w, "%s circuit distance from target unitary: %s\n", branchTitle(b.Label), FormatDistance(b.Distance))
	}
}

func (c *ConsoleReporter) renderTable(run *RunResult) {
	table := tablewriter.NewWriter(c.w)
	table.SetHeader([]string{"Branch", "Gates", "Ops", "Distance", "Elapsed (s)", "Artifact"})
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	for _, b := range run.Branches {
		if b.Err != nil {
			table.Append([]string{b.Label, "-", "-", "-", FormatElapsed(b.Elapsed), "error: " + b.Err.Error()})
			continue
		}
		table.Append([]string{
			b.Label,
			strings.Join(b.GateSet, " "),
			strconv.Itoa(b.GateCount),
			FormatDistance(b.Distance),
			FormatElapsed(b.Elapsed),
			b.ArtifactPath,
		})
	}
	table.Render()
}

// ReportStats renders the per-branch statistics of repeated runs.
func (c *ConsoleReporter) ReportStats(stats []BranchStats) {
	table := tablewriter.NewWriter(c.w)
	table.SetHeader([]string{"Branch", "Runs", "Timed", "Mean (s)", "StdDev (s)", "Mean distance", "Max distance"})
	table.SetAutoFormatHeaders(false)
	for _, s := range stats {
		table.Append([]string{
			s.Label,
			strconv.Itoa(s.Runs),
			strconv.Itoa(s.Timed),
			formatStat(s.MeanSeconds, s.Timed > 0),
			formatStat(s.StdDevSeconds, s.Timed > 1),
			formatStat(s.MeanDistance, s.Scored > 0),
			formatStat(s.MaxDistance, s.Scored > 0),
		})
	}
	table.Render()
}

func formatStat(v float64, ok bool) string {
	if !ok {
		return "-"
	}
	return strconv.FormatFloat(v, 'g', 6, 64)
}

// LogReporter writes run progress to a zerolog logger.
type LogReporter struct {
	log zerolog.Logger
}

// NewLogReporter creates a log reporter.
func NewLogReporter(log zerolog.Logger) *LogReporter {
	return &LogReporter{log: log.With().Str("component", "benchmark").Logger()}
}

func (l *LogReporter) RunStarted(run *RunResult) {
	l.log.Info().
		Str("run_id", run.ID).
		Str("problem", run.Problem).
		Int("precision", run.Precision).
		Int("qudits", run.NumQudits).
		Msg("Benchmark run started")
}

func (l *LogReporter) BranchFinished(run *RunResult, b BranchResult) {
	if b.Err != nil {
		l.log.Error().
			Err(b.Err).
			Str("run_id", run.ID).
			Str("branch", b.Label).
			Msg("Branch failed")
		return
	}
	event := l.log.Info().
		Str("run_id", run.ID).
		Str("branch", b.Label).
		Strs("gates", b.GateSet).
		Int("gate_count", b.GateCount).
		Float64("distance", b.Distance).
		Str("artifact", b.ArtifactPath)
	if b.Elapsed != nil {
		event = event.Float64("elapsed_seconds", *b.Elapsed)
	}
	event.Msg("Branch finished")
}

func (l *LogReporter) RunFinished(run *RunResult) {
	l.log.Info().
		Str("run_id", run.ID).
		Str("status", run.Status()).
		Msg("Benchmark run finished")
}

// MultiReporter fans every call out to its reporters in order.
type MultiReporter []Reporter

func (m MultiReporter) RunStarted(run *RunResult) {
	for _, r := range m {
		r.RunStarted(run)
	}
}

func (m MultiReporter) BranchFinished(run *RunResult, b BranchResult) {
	for _, r := range m {
		r.BranchFinished(run, b)
	}
}

func (m MultiReporter) RunFinished(run *RunResult) {
	for _, r := range m {
		r.RunFinished(run)
	}
}

// NopReporter discards everything.
type NopReporter struct{}

func (NopReporter) RunStarted(*RunResult)                   {}
func (NopReporter) BranchFinished(*RunResult, BranchResult) {}
func (NopReporter) RunFinished(*RunResult)                  {}
