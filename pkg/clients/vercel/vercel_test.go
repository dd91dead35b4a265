package vercel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petrijr/auraflow/pkg/clients"
	"github.com/petrijr/auraflow/pkg/api"
)

var fastRetry = api.RetryPolicy{MaxAttempts: 3, InitialBackoff: time.Millisecond}

func TestDeploy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v13/deployments", r.URL.Path)
		assert.Equal(t, "team_1", r.URL.Query().Get("teamId"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		var req deploymentRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "auraflow-venture-abcd1234", req.Name)
		assert.Equal(t, "production", req.Target)
		assert.Equal(t, "other", req.ProjectSettings["framework"])
		assert.Equal(t, []deploymentFile{
			{File: "index.html", Data: "<h1>hi</h1>"},
			{File: "style.css", Data: "body{}"},
		}, req.Files)

		_, _ = w.Write([]byte(`{"id":"dpl_1","url":"auraflow-venture-abcd1234.vercel.app"}`))
	}))
	t.Cleanup(srv.Close)

	c := New(Config{Token: "tok", TeamID: "team_1", APIBase: srv.URL, Retry: fastRetry})
	got, err := c.Deploy(context.Background(), "auraflow-venture-abcd1234", map[string]string{
		"style.css":  "body{}",
		"index.html": "<h1>hi</h1>",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://auraflow-venture-abcd1234.vercel.app", got)
}

func TestDeploy_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.Query().Get("teamId"))
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"id":"dpl_2","url":"x.vercel.app"}`))
	}))
	t.Cleanup(srv.Close)

	c := New(Config{Token: "tok", APIBase: srv.URL, Retry: fastRetry})
	got, err := c.Deploy(context.Background(), "p", map[string]string{"index.html": ""})
	require.NoError(t, err)
	assert.Equal(t, "https://x.vercel.app", got)
	assert.EqualValues(t, 3, calls.Load())
}

func TestDeploy_ForbiddenIsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":"forbidden"}}`))
	}))
	t.Cleanup(srv.Close)

	c := New(Config{Token: "bad", APIBase: srv.URL, Retry: fastRetry})
	_, err := c.Deploy(context.Background(), "p", map[string]string{"index.html": ""})
	require.Error(t, err)
	assert.EqualValues(t, 1, calls.Load())

	var se *clients.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusForbidden, se.StatusCode)
}
