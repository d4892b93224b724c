package api

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Checker-Finance/capitol-watch/internal/snapshot"
	"github.com/Checker-Finance/capitol-watch/internal/watcher"
)

type staticReporter struct {
	res watcher.Result
	ok  bool
}

func (s staticReporter) LastResult() (watcher.Result, bool) { return s.res, s.ok }

func newApp(t *testing.T, runs RunReporter) (*fiber.App, *snapshot.FileStore) {
	t.Helper()
	st, err := snapshot.NewFileStore(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	app := fiber.New()
	RegisterRoutes(app, st, runs)
	return app, st
}

func decode(t *testing.T, body io.Reader) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(body).Decode(&out))
	return out
}

func TestHealth_OK(t *testing.T) {
	app, _ := newApp(t, staticReporter{
		ok: true,
		res: watcher.Result{
			RunID:      "run-1",
			Status:     watcher.StatusOK,
			StartedAt:  time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC),
			Duration:   1500 * time.Millisecond,
			Fetched:    20,
			New:        2,
			SnapshotID: "trades_20261016_090000.json",
		},
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decode(t, resp.Body)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "file", body["backend"])

	last, ok := body["last_run"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "run-1", last["run_id"])
	assert.Equal(t, "2026-10-16T09:00:00Z", last["started_at"])
	assert.EqualValues(t, 1500, last["duration_ms"])
	assert.EqualValues(t, 2, last["new"])
}

func TestHealth_NoRunYet(t *testing.T) {
	app, _ := newApp(t, staticReporter{})

	resp, err := app.Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)
	body := decode(t, resp.Body)
	_, has := body["last_run"]
	assert.False(t, has)
}

func TestHealth_StoreDown(t *testing.T) {
	app, st := newApp(t, staticReporter{})
	require.NoError(t, os.RemoveAll(st.Dir()))

	resp, err := app.Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)

	body := decode(t, resp.Body)
	assert.Equal(t, "degraded", body["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	app, _ := newApp(t, staticReporter{})

	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(raw), "go_goroutines"))
}
