package server

import (
	"bufio"
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

const (
	defaultLogLines = 100
	maxLogLines     = 10000
)

// LogHandlers serves the tail of the server's log file
type LogHandlers struct {
	path string
	log  zerolog.Logger
}

// NewLogHandlers creates log handlers reading path. An empty path means file
// logging is off and every request answers 404.
func NewLogHandlers(path string, log zerolog.Logger) *LogHandlers {
	return &LogHandlers{
		path: path,
		log:  log.With().Str("component", "log_handlers").Logger(),
	}
}

// LogContentResponse represents log content
type LogContentResponse struct {
	Lines  []string `json:"lines"`
	Total  int      `json:"total"`
	Status string   `json:"status"`
}

// HandleGetLogs returns the last lines of the log file, optionally filtered
// GET /api/logs?lines=&level=&search=
func (h *LogHandlers) HandleGetLogs(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, strings.ToUpper(r.URL.Query().Get("level")), r.URL.Query().Get("search"), defaultLogLines)
}

// HandleGetErrors returns only error lines
// GET /api/logs/errors?lines=
func (h *LogHandlers) HandleGetErrors(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "ERROR", "", 500)
}

func (h *LogHandlers) serve(w http.ResponseWriter, r *http.Request, level, search string, lines int) {
	if h.path == "" {
		h.writeError(w, http.StatusNotFound, "file logging is disabled (set LOG_FILE)")
		return
	}

	if linesParam := r.URL.Query().Get("lines"); linesParam != "" {
		parsed, err := strconv.Atoi(linesParam)
		if err != nil || parsed <= 0 {
			h.writeError(w, http.StatusBadRequest, "lines must be a positive integer")
			return
		}
		lines = min(parsed, maxLogLines)
	}

	h.log.Debug().
		Int("lines", lines).
		Str("level", level).
		Str("search", search).
		Msg("Getting log content")

	logLines, err := tailFile(h.path, lines)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logLines = []string{}
		} else {
			h.log.Error().Err(err).Msg("Failed to read log file")
			h.writeError(w, http.StatusInternalServerError, "Failed to read logs")
			return
		}
	}

	respondJSON(w, http.StatusOK, LogContentResponse{
		Lines:  filterLogs(logLines, level, search),
		Total:  len(logLines),
		Status: "ok",
	}, h.log)
}

func (h *LogHandlers) writeError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message}, h.log)
}

// tailFile returns the last n lines of path. Log files are rotated at a few
// megabytes, so a single pass is fine.
func tailFile(path string, n int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ring := make([]string, 0, n)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if len(ring) == n {
			ring = ring[1:]
		}
		ring = append(ring, scanner.Text())
	}
	return ring, scanner.Err()
}

// filterLogs filters log lines by level and search term
func filterLogs(lines []string, level string, search string) []string {
	filtered := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if level != "" && !lineMatchesLevel(line, level) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(line), strings.ToLower(search)) {
			continue
		}
		filtered = append(filtered, line)
	}
	return filtered
}

// lineMatchesLevel checks if a log line matches the specified level
func lineMatchesLevel(line string, level string) bool {
	// zerolog JSON format: {"level":"error",...}
	if strings.Contains(line, `"level"`) {
		return strings.Contains(strings.ToLower(line), `"level":"`+strings.ToLower(level)+`"`)
	}

	// Console format: 12:00:00 ERR message
	upperLine := strings.ToUpper(line)
	upperLevel := strings.ToUpper(level)
	return strings.Contains(upperLine, " "+upperLevel+" ") ||
		strings.Contains(upperLine, " "+upperLevel[:min(3, len(upperLevel))]+" ")
}
