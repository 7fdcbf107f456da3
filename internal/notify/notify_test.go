package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWebhook_Notify(t *testing.T) {
	t.Parallel()

	var got Summary
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	w := NewWebhook(srv.URL, zap.NewNop())
	err := w.Notify(context.Background(), Summary{
		RunID:    "run-1",
		Format:   "csv",
		Records:  12,
		Reports:  []string{"/out/a.csv"},
		Duration: 3.2,
	})

	require.NoError(t, err)
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, 12, got.Records)
	assert.Equal(t, []string{"/out/a.csv"}, got.Reports)
}

func TestWebhook_NonSuccessStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	w := NewWebhook(srv.URL, zap.NewNop())
	err := w.Notify(context.Background(), Summary{RunID: "run-1"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestWebhook_TransportError(t *testing.T) {
	t.Parallel()

	w := NewWebhook("http://127.0.0.1:1", zap.NewNop())
	err := w.Notify(context.Background(), Summary{RunID: "run-1"})
	require.Error(t, err)
}
