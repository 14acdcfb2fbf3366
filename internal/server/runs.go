package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/aristath/synthbench/internal/events"
	"github.com/aristath/synthbench/internal/modules/benchmark"
	"github.com/aristath/synthbench/internal/modules/ledger"
	"github.com/aristath/synthbench/internal/modules/synthesis"
	"github.com/aristath/synthbench/internal/modules/target"
	"github.com/aristath/synthbench/internal/scheduler"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
	// MaxQubits bounds the QFT size a client may request
	MaxQubits       = 6
	defaultQubits   = 2
	maxRequestBytes = 1 << 20
)

// CreateRunRequest is the body of POST /api/runs
type CreateRunRequest struct {
	Precision          int  `json:"precision"`
	NumQubits          *int `json:"num_qubits,omitempty"`
	ApproximationDepth int  `json:"approximation_depth,omitempty"`
}

// CreateRunResponse is returned when a run is accepted
type CreateRunResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Stream string `json:"stream"`
}

// handleListRuns handles GET /api/runs?limit=N
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Store == nil {
		s.writeError(w, http.StatusServiceUnavailable, "run ledger is disabled")
		return
	}

	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid limit %q", raw))
			return
		}
		limit = min(n, maxListLimit)
	}

	runs, err := s.cfg.Store.ListRuns(r.Context(), limit)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list runs")
		s.writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	s.writeJSON(w, http.StatusOK, runs)
}

// handleGetRun handles GET /api/runs/{id}
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Store == nil {
		s.writeError(w, http.StatusServiceUnavailable, "run ledger is disabled")
		return
	}

	id := chi.URLParam(r, "id")
	run, err := s.cfg.Store.GetRun(r.Context(), id)
	if errors.Is(err, ledger.ErrRunNotFound) {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("run %s not found", id))
		return
	}
	if err != nil {
		s.log.Error().Err(err).Str("run_id", id).Msg("Failed to get run")
		s.writeError(w, http.StatusInternalServerError, "failed to get run")
		return
	}
	s.writeJSON(w, http.StatusOK, run)
}

// handleCreateRun handles POST /api/runs. The QFT run executes in the
// background; progress is available on the returned stream.
func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Runner == nil || s.cfg.Builder == nil {
		s.writeError(w, http.StatusServiceUnavailable, "runs are not enabled")
		return
	}

	var body CreateRunRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if _, err := synthesis.NewPrecisionConfig(body.Precision); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	n := defaultQubits
	if body.NumQubits != nil {
		n = *body.NumQubits
	}
	if n < 1 || n > MaxQubits {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("num_qubits must be between 1 and %d, got %d", MaxQubits, n))
		return
	}
	if body.ApproximationDepth < 0 {
		s.writeError(w, http.StatusBadRequest, "approximation_depth must not be negative")
		return
	}

	problem, err := target.NewQFTProblem(s.cfg.Builder, n)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if !s.runSlots.TryAcquire(1) {
		s.writeError(w, http.StatusTooManyRequests, "too many runs in progress")
		return
	}

	depth := body.ApproximationDepth
	if depth == 0 {
		depth = s.cfg.ApproximationDepth
	}
	req := benchmark.Request{
		ID:                 uuid.NewString(),
		Entry:              "api",
		Problem:            problem,
		Precision:          body.Precision,
		ApproximationDepth: depth,
	}
	if s.cfg.Bus != nil {
		s.cfg.Bus.Track(req.ID)
	}
	s.launch(req)

	location := "/api/runs/" + req.ID
	w.Header().Set("Location", location)
	s.writeJSON(w, http.StatusAccepted, CreateRunResponse{
		ID:     req.ID,
		Status: "running",
		Stream: location + "/stream",
	})
}

// launch runs req in the background. The caller holds a run slot.
func (s *Server) launch(req benchmark.Request) {
	s.inflight.Add(1)
	s.active.Add(1)

	go func() {
		defer s.inflight.Done()
		defer s.active.Add(-1)
		defer s.runSlots.Release(1)

		log := s.log.With().Str("run_id", req.ID).Logger()
		log.Info().Int("precision", req.Precision).Msg("Run started")

		run, err := s.cfg.Runner.Run(s.baseCtx, req)
		switch {
		case run == nil:
			log.Error().Err(err).Msg("Run rejected")
			if s.cfg.Bus != nil {
				s.cfg.Bus.Publish(events.NewEvent(req.ID, &events.RunFinishedData{
					Status: benchmark.StatusFailed,
					Error:  err.Error(),
				}))
			}
		case err != nil:
			log.Warn().Err(err).Str("status", run.Status()).Msg("Run finished with errors")
		default:
			log.Info().Msg("Run finished")
		}
	}()
}

// handleTriggerJob runs a registered background job immediately
// POST /api/jobs/{name}
func (s *Server) handleTriggerJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var job scheduler.Job
	for _, j := range s.cfg.Jobs {
		if j.Name() == name {
			job = j
			break
		}
	}
	if job == nil {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("job %q not registered", name))
		return
	}

	s.log.Info().Str("job", name).Msg("Manual job triggered")
	if err := job.Run(); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "success", "message": fmt.Sprintf("%s completed", name)})
}
