package server

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/synthbench/internal/database"
)

// HealthResponse is returned by GET /api/health
type HealthResponse struct {
	Status   string          `json:"status"`
	Service  string          `json:"service"`
	Ledger   string          `json:"ledger"` // "ok", "error", "disabled"
	Error    string          `json:"error,omitempty"`
	Database *database.Stats `json:"database,omitempty"`
}

// SystemResponse is returned by GET /api/system
type SystemResponse struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	Goroutines    int     `json:"goroutines"`
	ActiveRuns    int32   `json:"active_runs"`
	MaxRuns       int     `json:"max_runs"`
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:  "healthy",
		Service: "synthbench",
		Ledger:  "disabled",
	}

	if s.cfg.DB == nil {
		s.writeJSON(w, http.StatusOK, response)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := s.cfg.DB.HealthCheck(ctx); err != nil {
		s.log.Error().Err(err).Msg("Ledger health check failed")
		response.Status = "unhealthy"
		response.Ledger = "error"
		response.Error = err.Error()
		s.writeJSON(w, http.StatusServiceUnavailable, response)
		return
	}
	response.Ledger = "ok"

	if stats, err := s.cfg.DB.GetStats(); err != nil {
		s.log.Warn().Err(err).Msg("Failed to get ledger stats")
	} else {
		response.Database = stats
	}

	s.writeJSON(w, http.StatusOK, response)
}

// handleSystem reports CPU and RAM usage alongside the run slots in use
func (s *Server) handleSystem(w http.ResponseWriter, r *http.Request) {
	cpuPercent, memPercent := s.getSystemStats()
	s.writeJSON(w, http.StatusOK, SystemResponse{
		CPUPercent:    cpuPercent,
		MemoryPercent: memPercent,
		Goroutines:    runtime.NumGoroutine(),
		ActiveRuns:    s.active.Load(),
		MaxRuns:       s.cfg.MaxRuns,
	})
}

// getSystemStats calculates CPU and RAM usage percentages over a short
// sampling interval
func (s *Server) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	respondJSON(w, status, data, s.log)
}

// writeError writes {"error": message} with the given status
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message}, s.log)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}, log zerolog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
