package dify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchWorkflowRunDetail_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/workflows/run/run-1", r.URL.Path)
		assert.Equal(t, "Bearer app-token", r.Header.Get("Authorization"))
		w.Write([]byte(`{
			"id": "run-1",
			"status": "succeeded",
			"elapsed_time": 2.5,
			"total_tokens": 420,
			"inputs": "{\"query\": \"hi\"}",
			"outputs": {"text": "hello"}
		}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "app-token", fastRetry())
	detail, err := client.FetchWorkflowRunDetail(context.Background(), "run-1")

	require.NoError(t, err)
	require.NotNil(t, detail)
	assert.Equal(t, "succeeded", detail.Status)
	assert.Equal(t, 420, detail.TotalTokens)
	// inputs arrived as a JSON-encoded string and must decode on demand
	assert.Equal(t, "hi", detail.Inputs.Map()["query"])
	assert.Equal(t, "hello", detail.Outputs.Map()["text"])
}

func TestFetchWorkflowRunDetail_NotFound(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "app-token", fastRetry())
	detail, err := client.FetchWorkflowRunDetail(context.Background(), "gone")

	require.NoError(t, err)
	assert.Nil(t, detail)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchWorkflowRunDetail_RetriesThenFails(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "app-token", fastRetry())
	_, err := client.FetchWorkflowRunDetail(context.Background(), "run-1")

	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
}
