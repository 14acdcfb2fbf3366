package benchmark

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// BranchStats aggregates one branch over repeated runs.
type BranchStats struct {
	Label  string
	Runs   int
	Failed int
	// Timed counts runs whose elapsed time is known.
	Timed         int
	MeanSeconds   float64
	StdDevSeconds float64
	// Scored counts successful runs.
	Scored       int
	MeanDistance float64
	MaxDistance  float64
}

// Summarize computes per-branch statistics, in first-seen label order.
// StdDevSeconds is the sample standard deviation and is zero for fewer than
// two timed runs.
func Summarize(runs []*RunResult) []BranchStats {
	var order []string
	elapsed := map[string][]float64{}
	distances := map[string][]float64{}
	stats := map[string]*BranchStats{}

	for _, run := range runs {
		if run == nil {
			continue
		}
		for _, b := range run.Branches {
			s, ok := stats[b.Label]
			if !ok {
				s = &BranchStats{Label: b.Label}
				stats[b.Label] = s
				order = append(order, b.Label)
			}
			s.Runs++
			if b.Elapsed != nil {
				elapsed[b.Label] = append(elapsed[b.Label], *b.Elapsed)
			}
			if b.Err != nil {
				s.Failed++
				continue
			}
			distances[b.Label] = append(distances[b.Label], b.Distance)
		}
	}

	out := make([]BranchStats, 0, len(order))
	for _, label := range order {
		s := stats[label]
		if xs := elapsed[label]; len(xs) > 0 {
			s.Timed = len(xs)
			s.MeanSeconds = stat.Mean(xs, nil)
			if len(xs) > 1 {
				s.StdDevSeconds = stat.StdDev(xs, nil)
			}
		}
		if ds := distances[label]; len(ds) > 0 {
			s.Scored = len(ds)
			s.MeanDistance = stat.Mean(ds, nil)
			s.MaxDistance = floats.Max(ds)
		}
		if math.IsNaN(s.StdDevSeconds) {
			s.StdDevSeconds = 0
		}
		out = append(out, *s)
	}
	return out
}
