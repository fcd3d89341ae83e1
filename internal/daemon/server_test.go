package daemon

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"offload/internal/config"
	"offload/internal/db"
	"offload/internal/model"
	"offload/internal/repository"
	"offload/internal/scheduler"
	"offload/internal/task"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.txt"), []byte("a"), 0o644))

	tasks := []model.Task{{Label: "docs", Source: src, Target: t.TempDir()}}
	store := config.NewStore(filepath.Join(t.TempDir(), "tasks.yaml"), tasks)
	runner := task.New(store, config.Eviction{}, nil, nil)
	sched := scheduler.New(store, runner, 16)

	s := NewServer(sched, 0)
	t.Cleanup(func() {
		sched.Close()
		for range sched.Events() {
		}
		store.Close()
	})

	return s
}

func doRequest(s *Server, method, target, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}

	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func TestRunTaskUnknownLabel(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodPost, "/tasks/nope/run", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRunTaskAccepted(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodPost, "/tasks/docs/run", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "docs", body["task"])

	s.sched.Wait()
}

func TestRunTaskInvalidPhase(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodPost, "/tasks/docs/run", `{"phases":["purge"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunAllAccepted(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodPost, "/run-all", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(1), body["tasks"])

	s.sched.Wait()
}

func TestStatusListsTasks(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodGet, "/status", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Tasks []scheduler.Snapshot `json:"tasks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Tasks, 1)
	assert.Equal(t, "docs", body.Tasks[0].Label)
	assert.False(t, body.Tasks[0].Running)
}

func TestHistoryEndpoint(t *testing.T) {
	require.NoError(t, db.Init(filepath.Join(t.TempDir(), "test.db")))
	s := newTestServer(t)

	repo := repository.NewRunRepository()
	require.NoError(t, repo.Save(model.PhaseResult{
		TaskLabel: "docs",
		Phase:     model.PhaseCopy,
		Status:    model.StatusSuccess,
		StartedAt: time.Now().UTC(),
	}))

	rec := doRequest(s, http.MethodGet, "/history?task=docs", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	var records []model.RunRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "docs", records[0].TaskLabel)
}

func TestStopSignals(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodPost, "/stop", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	select {
	case <-s.StopCh():
	default:
		t.Fatal("stop signal not delivered")
	}
}

func TestParsePhases(t *testing.T) {
	phases, err := parsePhases(runRequest{Phases: []string{"scan", "evict"}})
	require.NoError(t, err)
	assert.Equal(t, []model.Phase{model.PhaseScan, model.PhaseEvict}, phases)

	_, err = parsePhases(runRequest{Phases: []string{"scan", "bogus"}})
	assert.Error(t, err)
}
