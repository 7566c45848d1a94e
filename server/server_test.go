package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adaptive_task_generator/cache"
	"adaptive_task_generator/coverage"
	"adaptive_task_generator/pipeline"
	"adaptive_task_generator/profile"
	"adaptive_task_generator/task"
)

type stubPlanner struct {
	mu   sync.Mutex
	reqs []pipeline.Request
}

func (s *stubPlanner) Generate(ctx context.Context, req pipeline.Request) pipeline.Result {
	s.mu.Lock()
	s.reqs = append(s.reqs, req)
	s.mu.Unlock()
	return pipeline.Result{
		Coverage: coverage.Result{Score: 90, Tier: coverage.TierWellCovered, Strategy: coverage.StrategyTemplates},
		Tasks: []task.Task{{
			Title:            "Write the Loopline founder essay",
			DefinitionOfDone: []string{"Draft done"},
			TimeboxMinutes:   120,
			Source:           task.SourceCustom,
		}},
		Stages: []pipeline.Stage{pipeline.StageExtract, pipeline.StageDone},
		Cost:   decimal.RequireFromString("0.0105"),
	}
}

func newTestServer(t *testing.T) (*httptest.Server, *stubPlanner, *cache.Service) {
	t.Helper()
	svc, err := cache.NewService(cache.NewMemoryStore(), cache.StaticVersion("v1"))
	require.NoError(t, err)
	p := &stubPlanner{}
	s, err := New(p, WithCache(svc))
	require.NoError(t, err)
	ts := httptest.NewServer(s.Routes())
	t.Cleanup(ts.Close)
	return ts, p, svc
}

func createPlan(t *testing.T, ts *httptest.Server) Plan {
	t.Helper()
	body := `{"user_id":"ada","profile":{"field_of_study":"Computer Science"},"goal":{"category":"study","title":"MS in CS"}}`
	resp, err := http.Post(ts.URL+"/api/plans", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var p Plan
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&p))
	return p
}

func TestCreateAndFetchPlan(t *testing.T) {
	ts, planner, _ := newTestServer(t)
	p := createPlan(t, ts)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "ada", p.UserID)
	assert.Equal(t, "MS in CS", p.Title)
	assert.Equal(t, "Write the Loopline founder essay", p.Summary)
	require.Len(t, p.Result.Tasks, 1)
	require.Len(t, planner.reqs, 1)
	assert.Equal(t, "Computer Science", planner.reqs[0].Profile.FieldOfStudy)
	assert.Equal(t, task.CategoryStudy, planner.reqs[0].Goal.Category)

	resp, err := http.Get(ts.URL + "/api/plans/" + p.ID)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var got Plan
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, p.ID, got.ID)
	assert.True(t, decimal.RequireFromString("0.0105").Equal(got.Result.Cost))
}

func TestFetchPlanAsReport(t *testing.T) {
	ts, _, _ := newTestServer(t)
	p := createPlan(t, ts)

	tests := []struct {
		format, contentType, want string
	}{
		{"markdown", "text/markdown", "## 1. Write the Loopline founder essay"},
		{"html", "text/html", "<h2>1. Write the Loopline founder essay</h2>"},
		{"inline", "text/html", "font-size:22px"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			resp, err := http.Get(ts.URL + "/api/plans/" + p.ID + "?format=" + tt.format)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), tt.contentType))
			var sb strings.Builder
			_, err = sb.ReadFrom(resp.Body)
			require.NoError(t, err)
			assert.Contains(t, sb.String(), tt.want)
		})
	}

	resp, err := http.Get(ts.URL + "/api/plans/" + p.ID + "?format=pdf")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestBadRequests(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/plans", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Post(ts.URL+"/api/plans", "application/json", strings.NewReader(`{"goal":{"title":"x"}}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "user_id required")

	resp, err = http.Get(ts.URL + "/api/plans/missing")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/api/plans")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestCacheEndpoints(t *testing.T) {
	ts, _, svc := newTestServer(t)
	ctx := context.Background()
	c := profile.Extract(profile.Profile{Background: "designer", FieldOfStudy: "HCI"}, profile.Goal{Category: "study"})
	require.NoError(t, svc.Put(ctx, cache.GenUnique, c, []task.Task{{Title: "Write a note", Source: task.SourceUniqueGenerated}}, decimal.Zero))

	resp, err := http.Get(ts.URL + "/api/cache/stats")
	require.NoError(t, err)
	var st cache.Stats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	resp.Body.Close()
	assert.Equal(t, int64(1), st.Puts)

	resp, err = http.Post(ts.URL+"/api/cache/invalidate", "application/json", strings.NewReader(`{"version":"v1"}`))
	require.NoError(t, err)
	var out map[string]int
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	resp.Body.Close()
	assert.Equal(t, 1, out["removed"])

	_, ok := svc.Get(ctx, cache.GenUnique, c)
	assert.False(t, ok)
}

func TestNewRequiresPlanner(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}
