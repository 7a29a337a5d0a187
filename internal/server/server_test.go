package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"github.com/aristath/qboost/internal/config"
	"github.com/aristath/qboost/internal/database"
	"github.com/aristath/qboost/internal/events"
	"github.com/aristath/qboost/internal/modules/results"
	"github.com/aristath/qboost/internal/services"
)

// newTestServer wires a full server against a temporary data directory.
// Archiving stays unconfigured, so archive endpoints respond 503.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	dataDir := t.TempDir()
	db, err := database.New(database.Config{
		Path:    filepath.Join(dataDir, "runs.db"),
		Profile: database.ProfileDurable,
		Name:    "runs",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store, err := results.NewStore(db, zerolog.Nop())
	require.NoError(t, err)

	bus := events.NewBus(zerolog.Nop())
	manager := events.NewManager(bus, zerolog.Nop())
	recorder := results.NewRecorder(zerolog.Nop())
	runService := services.NewRunService(dataDir, store, recorder, manager, zerolog.Nop())

	cfg := &config.Config{
		DataDir:  dataDir,
		LogLevel: "disabled",
		Port:     8001,
		Run: config.RunConfig{
			Backend:     "statevector",
			Threads:     1,
			Optimizer:   "neldermead",
			Tol:         1e-3,
			NQubits:     2,
			NLayers:     2,
			NBoost:      1,
			DBISteps:    1,
			DBIStepSize: 0.01,
			Hamiltonian: "xxz",
			Seed:        42,
		},
	}

	srv := New(Config{
		Log:          zerolog.Nop(),
		Config:       cfg,
		RunsDB:       db,
		Store:        store,
		RunService:   runService,
		EventBus:     bus,
		EventManager: manager,
		Port:         cfg.Port,
		DevMode:      true,
	})

	ts := httptest.NewServer(srv.router)
	t.Cleanup(ts.Close)
	return ts
}

func getInto(t *testing.T, url string, out interface{}) int {
	t.Helper()

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t)

	var body map[string]interface{}
	code := getInto(t, ts.URL+"/health", &body)

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "qboost", body["service"])
	assert.NotEmpty(t, body["version"])
}

func TestRunLifecycleViaAPI(t *testing.T) {
	ts := newTestServer(t)

	// Empty overlay launches with the configured defaults
	resp, err := http.Post(ts.URL+"/api/runs", "application/json", bytes.NewReader([]byte(`{}`)))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var launched struct {
		RunID  string `json:"run_id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&launched))
	require.NotEmpty(t, launched.RunID)
	assert.Equal(t, "started", launched.Status)

	// Wait for the background run to release the slot
	deadline := time.Now().Add(15 * time.Second)
	for {
		var status services.Status
		code := getInto(t, ts.URL+"/api/runs/active", &status)
		require.Equal(t, http.StatusOK, code)
		if !status.Running {
			break
		}
		require.True(t, time.Now().Before(deadline), "run did not finish in time")
		time.Sleep(50 * time.Millisecond)
	}

	// The finished run is browsable through the shared /runs prefix
	var list struct {
		Runs  []results.RunRow `json:"runs"`
		Count int              `json:"count"`
	}
	code := getInto(t, ts.URL+"/api/runs", &list)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, 1, list.Count)
	assert.Equal(t, launched.RunID, list.Runs[0].ID)

	var meta results.Metadata
	code = getInto(t, ts.URL+"/api/runs/"+launched.RunID, &meta)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, launched.RunID, meta.RunID)
	assert.InDelta(t, -5.0, meta.TrueGroundEnergy, 1e-9)
}

func TestLaunchRejectsInvalidOverlay(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/runs", "application/json",
		bytes.NewReader([]byte(`{"nqubits": 1}`)))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCancelWithoutActiveRun(t *testing.T) {
	ts := newTestServer(t)

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/runs/active", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestArchiveEndpointsUnconfigured(t *testing.T) {
	ts := newTestServer(t)

	code := getInto(t, ts.URL+"/api/archives", nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)

	resp, err := http.Post(ts.URL+"/api/archives/some-run", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestEventsStreamSendsConnectedMessage(t *testing.T) {
	ts := newTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/events/stream", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, line, "connected")
}

func TestLiveStreamSendsInitialStatus(t *testing.T) {
	ts := newTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/runs/live"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)

	var msg struct {
		Type string `json:"type"`
		Data struct {
			Running bool `json:"running"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "status", msg.Type)
	assert.False(t, msg.Data.Running)
}
