package server

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeLogFile(t *testing.T) string {
	t.Helper()
	var b strings.Builder
	for i := 1; i <= 10; i++ {
		level := "info"
		if i%4 == 0 {
			level = "error"
		}
		fmt.Fprintf(&b, `{"level":"%s","component":"runner","message":"line %d"}`+"\n", level, i)
	}
	path := filepath.Join(t.TempDir(), "synthbench.log")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func TestLogs(t *testing.T) {
	_, ts := startServer(t, Config{LogFile: writeLogFile(t)})

	var all LogContentResponse
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/logs", &all))
	assert.Equal(t, 10, all.Total)
	assert.Len(t, all.Lines, 10)

	var tail LogContentResponse
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/logs?lines=3", &tail))
	require.Len(t, tail.Lines, 3)
	assert.Contains(t, tail.Lines[0], "line 8")
	assert.Contains(t, tail.Lines[2], "line 10")

	var errs LogContentResponse
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/logs/errors", &errs))
	require.Len(t, errs.Lines, 2)
	assert.Contains(t, errs.Lines[0], "line 4")
	assert.Contains(t, errs.Lines[1], "line 8")

	var search LogContentResponse
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/logs?level=info&search=LINE%201", &search))
	require.Len(t, search.Lines, 2, "line 1 and line 10")

	assert.Equal(t, http.StatusBadRequest, getJSON(t, ts.URL+"/api/logs?lines=-5", nil))
}

func TestLogs_Disabled(t *testing.T) {
	_, ts := startServer(t, Config{})
	assert.Equal(t, http.StatusNotFound, getJSON(t, ts.URL+"/api/logs", nil))
}

func TestLogs_NotYetWritten(t *testing.T) {
	_, ts := startServer(t, Config{LogFile: filepath.Join(t.TempDir(), "later.log")})

	var resp LogContentResponse
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/logs", &resp))
	assert.Empty(t, resp.Lines)
	assert.Zero(t, resp.Total)
}

func TestLineMatchesLevel(t *testing.T) {
	assert.True(t, lineMatchesLevel(`{"level":"warn","message":"x"}`, "WARN"))
	assert.False(t, lineMatchesLevel(`{"level":"info","message":"warn"}`, "WARN"))
	assert.True(t, lineMatchesLevel("12:00:00 ERR run failed", "ERROR"))
	assert.False(t, lineMatchesLevel("12:00:00 INF run finished", "ERROR"))
}
