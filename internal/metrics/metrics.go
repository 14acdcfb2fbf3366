// Package metrics exports benchmark results as Prometheus metrics.
package metrics

import (
	"github.com/aristath/synthbench/internal/modules/benchmark"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "synthbench"

// Reporter is a benchmark.Reporter that updates Prometheus collectors.
type Reporter struct {
	synthesisSeconds *prometheus.HistogramVec
	distance         *prometheus.GaugeVec
	gateCount        *prometheus.GaugeVec
	branchesTotal    *prometheus.CounterVec
	runsTotal        *prometheus.CounterVec
	clockUnavailable prometheus.Counter
}

// NewReporter registers the collectors with reg.
func NewReporter(reg prometheus.Registerer) *Reporter {
	factory := promauto.With(reg)
	return &Reporter{
		synthesisSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "synthesis_seconds",
				Help:      "Wall time of one synthesis branch",
				Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10), // 10ms .. ~45min
			},
			[]string{"branch"},
		),
		distance: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "distance",
				Help:      "Distance of the last synthesized circuit from its target",
			},
			[]string{"branch"},
		),
		gateCount: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "gate_count",
				Help:      "Operation count of the last synthesized circuit",
			},
			[]string{"branch"},
		),
		branchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "branches_total",
				Help:      "Finished synthesis branches",
			},
			[]string{"branch", "status"},
		),
		runsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "runs_total",
				Help:      "Finished benchmark runs",
			},
			[]string{"status"}, // status: "succeeded", "failed"
		),
		clockUnavailable: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "clock_unavailable_total",
				Help:      "Branches whose elapsed time could not be measured",
			},
		),
	}
}

func (r *Reporter) RunStarted(*benchmark.RunResult) {}

func (r *Reporter) BranchFinished(_ *benchmark.RunResult, b benchmark.BranchResult) {
	if b.Elapsed != nil {
		r.synthesisSeconds.WithLabelValues(b.Label).Observe(*b.Elapsed)
	} else {
		r.clockUnavailable.Inc()
	}

	if b.Err != nil {
		r.branchesTotal.WithLabelValues(b.Label, benchmark.StatusFailed).Inc()
		return
	}
	r.branchesTotal.WithLabelValues(b.Label, benchmark.StatusSucceeded).Inc()
	r.distance.WithLabelValues(b.Label).Set(b.Distance)
	r.gateCount.WithLabelValues(b.Label).Set(float64(b.GateCount))
}

func (r *Reporter) RunFinished(run *benchmark.RunResult) {
	r.runsTotal.WithLabelValues(run.Status()).Inc()
}
