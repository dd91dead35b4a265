package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petrijr/auraflow/internal/engine"
	"github.com/petrijr/auraflow/pkg/api"
)

func newTestRouter(t *testing.T) (http.Handler, api.Orchestrator) {
	t.Helper()
	stages := api.Stages{
		Discovery: api.StageFunc(func(ctx context.Context, in api.StageInput) (any, error) {
			return api.NicheIdea{ChosenTopic: "Indoor herbs", TargetAudience: "renters", Reasoning: "steady demand"}, nil
		}),
		Production: api.StageFunc(func(ctx context.Context, in api.StageInput) (any, error) {
			return nil, errors.New("model unavailable")
		}),
		Deployment: api.StageFunc(func(ctx context.Context, in api.StageInput) (any, error) {
			return api.SalesDetails{}, nil
		}),
	}
	orch, err := engine.NewInMemoryOrchestrator(stages, nil)
	require.NoError(t, err)

	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("auraflow_runs_started_total 0\n"))
	})
	return NewRouter(Config{Orchestrator: orch, Metrics: metrics, Logger: zerolog.Nop()}), orch
}

func do(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestHealthAndMetrics(t *testing.T) {
	h, _ := newTestRouter(t)

	rec := do(t, h, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "auraflow_runs_started_total")
}

func TestVentureEndpoints(t *testing.T) {
	h, orch := newTestRouter(t)
	ctx := context.Background()

	v, err := orch.Create(ctx)
	require.NoError(t, err)
	_, err = orch.Run(ctx, v.ID)
	require.NoError(t, err)

	rec := do(t, h, http.MethodGet, "/ventures/"+v.ID)
	require.Equal(t, http.StatusOK, rec.Code)
	var got api.Venture
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, api.StateFailedProductGeneration, got.State)
	assert.NotEmpty(t, got.NicheIdea)

	rec = do(t, h, http.MethodGet, "/ventures?state=FAILED_PRODUCT_GENERATION")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []api.Venture
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)

	rec = do(t, h, http.MethodGet, "/ventures?state=LIVE")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/ventures/"+v.ID+"/history")
	require.Equal(t, http.StatusOK, rec.Code)
	var events []api.VentureEvent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	assert.NotEmpty(t, events)

	rec = do(t, h, http.MethodPost, "/ventures/"+v.ID+"/reset")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, api.StateProductGeneration, got.State)

	rec = do(t, h, http.MethodPost, "/ventures/"+v.ID+"/reset")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestErrorMapping(t *testing.T) {
	h, _ := newTestRouter(t)

	rec := do(t, h, http.MethodGet, "/ventures/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var body apiErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not_found", body.Code)

	rec = do(t, h, http.MethodGet, "/ventures?state=PAUSED")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
