package benchmark

import (
	"time"

	"github.com/rs/zerolog"
)

const (
	slowInfoThreshold = 10 * time.Second
	slowWarnThreshold = 30 * time.Second
)

// Recorder measures how long an operation takes.
type Recorder struct {
	clock Clock
	log   zerolog.Logger
}

// NewRecorder creates a recorder. A nil clock means SystemClock.
func NewRecorder(clock Clock, log zerolog.Logger) *Recorder {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Recorder{
		clock: clock,
		log:   log.With().Str("component", "recorder").Logger(),
	}
}

// Measure runs fn and returns its elapsed wall time in seconds along with
// fn's error. When the clock cannot be read, fn still runs and the elapsed
// time is nil.
func (r *Recorder) Measure(label string, fn func() error) (*float64, error) {
	start, startErr := r.clock.Now()
	err := fn()
	if startErr != nil {
		r.log.Warn().Err(startErr).Str("operation", label).Msg("Clock unavailable, elapsed time unknown")
		return nil, err
	}
	end, endErr := r.clock.Now()
	if endErr != nil {
		r.log.Warn().Err(endErr).Str("operation", label).Msg("Clock unavailable, elapsed time unknown")
		return nil, err
	}

	duration := end.Sub(start)
	if duration < 0 {
		r.log.Warn().Str("operation", label).Dur("duration", duration).Msg("Clock went backwards, elapsed time unknown")
		return nil, err
	}

	r.log.Debug().
		Str("operation", label).
		Dur("duration_ms", duration).
		Float64("duration_seconds", duration.Seconds()).
		Msg("Performance measurement")

	if duration > slowWarnThreshold {
		r.log.Warn().
			Str("operation", label).
			Dur("duration", duration).
			Msg("Slow operation detected (>30s)")
	} else if duration > slowInfoThreshold {
		r.log.Info().
			Str("operation", label).
			Dur("duration", duration).
			Msg("Operation took longer than expected (>10s)")
	}

	elapsed := duration.Seconds()
	return &elapsed, err
}
