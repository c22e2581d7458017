package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/badge-comb/app/dom"
	"github.com/lysyi3m/badge-comb/app/store"
	"github.com/lysyi3m/badge-comb/app/tasks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeScheduler struct {
	mu       sync.Mutex
	triggers []tasks.Trigger
	status   tasks.Status
}

func (f *fakeScheduler) Start() {}
func (f *fakeScheduler) Stop()  {}

func (f *fakeScheduler) Request(trigger tasks.Trigger) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.triggers = append(f.triggers, trigger)
	return nil
}

func (f *fakeScheduler) Status() tasks.Status {
	return f.status
}

type fakePage struct {
	markup string
	err    error
}

func (f fakePage) HTML() (string, error) {
	return f.markup, f.err
}

type testServer struct {
	engine    *gin.Engine
	scheduler *fakeScheduler
	repo      *store.Store
}

func newTestServer(t *testing.T, apiKey string, page PageView) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := store.Open()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := store.NewStore(db)
	scheduler := &fakeScheduler{}
	engine := NewServer(NewHandler(scheduler, repo, page, "test"), apiKey)

	return &testServer{engine: engine, scheduler: scheduler, repo: repo}
}

func (s *testServer) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestPostMessage(t *testing.T) {
	s := newTestServer(t, "", fakePage{err: dom.ErrNoDocument})

	w := s.do(http.MethodPost, "/api/messages", `{"action":"refreshCounts"}`, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]interface{}{"status": "ok"}, decode(t, w))
	assert.Equal(t, []tasks.Trigger{tasks.TriggerManual}, s.scheduler.triggers)

	w = s.do(http.MethodPost, "/api/messages", `{"action":"somethingElse"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "error", decode(t, w)["status"])

	w = s.do(http.MethodPost, "/api/messages", `not json`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Len(t, s.scheduler.triggers, 1, "only recognised actions reach the scheduler")
}

func TestAuthMiddleware(t *testing.T) {
	s := newTestServer(t, "secret", fakePage{err: dom.ErrNoDocument})
	body := `{"action":"refreshCounts"}`

	tests := []struct {
		name    string
		headers map[string]string
		code    int
	}{
		{"missing key", nil, http.StatusUnauthorized},
		{"wrong key", map[string]string{"X-API-Key": "nope"}, http.StatusUnauthorized},
		{"header key", map[string]string{"X-API-Key": "secret"}, http.StatusOK},
		{"bearer token", map[string]string{"Authorization": "Bearer secret"}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(http.MethodPost, "/api/messages", body, tt.headers)
			assert.Equal(t, tt.code, w.Code)
		})
	}

	w := s.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code, "health is never protected")
}

func TestGetView(t *testing.T) {
	s := newTestServer(t, "", fakePage{err: dom.ErrNoDocument})
	w := s.do(http.MethodGet, "/view", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	s = newTestServer(t, "", fakePage{markup: `<head></head><body><span class="rounded border">5</span></body>`})
	w = s.do(http.MethodGet, "/view", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), `<span class="rounded border">5</span>`)
	assert.True(t, strings.HasPrefix(w.Body.String(), "<!DOCTYPE html><head>"))
}

func TestGetView_KeepsDocumentDoctype(t *testing.T) {
	tab := dom.NewTab(nil, "")
	doc, err := dom.Parse(strings.NewReader(`<!DOCTYPE html><html><body><span>5</span></body></html>`), nil)
	require.NoError(t, err)
	tab.Attach(doc)

	s := newTestServer(t, "", tab)
	w := s.do(http.MethodGet, "/view", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Equal(t, 1, strings.Count(strings.ToLower(body), "<!doctype"), body)
	assert.True(t, strings.HasPrefix(body, "<!DOCTYPE html><html>"), body)
}

func TestHealthAndStats(t *testing.T) {
	s := newTestServer(t, "", fakePage{markup: "<body></body>"})
	last := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	s.scheduler.status = tasks.Status{LastRun: last, Runs: 3, MinInterval: tasks.MinInterval, NextAllowed: last.Add(tasks.MinInterval)}

	resolved := 5
	require.NoError(t, s.repo.RecordRun(store.Run{ID: "run-1", Cause: "startup", StartedAt: last, FinishedAt: last}, []store.ListCount{
		{ListID: "xyz789", Name: "Later", Displayed: 8, Resolved: &resolved, Status: store.ListStatusReconciled, Source: "remote", CheckedAt: last, ChangedAt: &last},
		{ListID: "q1w2e3", Name: "Queue", Displayed: 2, Status: store.ListStatusSkipped, Source: "remote", CheckedAt: last},
	}))

	health := decode(t, s.do(http.MethodGet, "/health", "", nil))
	assert.Equal(t, true, health["page_loaded"])
	assert.Equal(t, float64(1), health["runs"])

	stats := decode(t, s.do(http.MethodGet, "/stats", "", nil))
	assert.Equal(t, float64(3), stats["runs"])
	assert.Equal(t, "10s", stats["min_interval"])
	assert.Equal(t, "2026-10-16T09:00:10Z", stats["next_allowed_at"])

	lists := stats["lists"].(map[string]interface{})
	assert.Equal(t, float64(2), lists["total"])
	assert.Equal(t, float64(1), lists["reconciled"])
	assert.Equal(t, float64(1), lists["skipped"])
}

func TestAPIListCountsAndRuns(t *testing.T) {
	s := newTestServer(t, "", fakePage{err: dom.ErrNoDocument})
	at := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	resolved := 12

	require.NoError(t, s.repo.RecordRun(store.Run{ID: "run-1", Cause: "manual", StartedAt: at, FinishedAt: at.Add(time.Second), Lists: 1}, []store.ListCount{
		{ListID: "abc123", Name: "Reading", Displayed: 12, Resolved: &resolved, Status: store.ListStatusUnchanged, Source: "live", CheckedAt: at},
	}))

	w := s.do(http.MethodGet, "/api/lists", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(1), body["total"])
	entry := body["lists"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "abc123", entry["id"])
	assert.Equal(t, float64(12), entry["resolved"])
	assert.Equal(t, "unchanged", entry["status"])
	assert.NotContains(t, entry, "changed_at")

	w = s.do(http.MethodGet, "/api/runs?limit=5", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	run := decode(t, w)["runs"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "run-1", run["id"])
	assert.Equal(t, "manual", run["trigger"])
	assert.Equal(t, "1s", run["duration"])

	w = s.do(http.MethodGet, "/api/runs?limit=zero", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, "secret", fakePage{})

	w := s.do(http.MethodOptions, "/api/messages", "", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
