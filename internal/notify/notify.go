// Package notify announces finished pipeline runs to an optional webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Summary describes a finished pipeline run.
type Summary struct {
	RunID    string   `json:"run_id"`
	Format   string   `json:"format"`
	Records  int      `json:"records"`
	Reports  []string `json:"reports"`
	Duration float64  `json:"duration_seconds"`
}

// Notifier delivers a run summary.
type Notifier interface {
	Notify(ctx context.Context, summary Summary) error
}

// Webhook posts run summaries as JSON to a fixed URL.
type Webhook struct {
	url    string
	http   *http.Client
	logger *zap.Logger
}

// NewWebhook creates a webhook notifier for the given URL.
func NewWebhook(url string, logger *zap.Logger) *Webhook {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Webhook{
		url:    url,
		http:   &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

func (w *Webhook) Notify(ctx context.Context, summary Summary) error {
	body, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "notify: marshal summary")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return eris.Wrap(err, "notify: build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "notify: post summary")
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return eris.Errorf("notify: webhook returned status %d", resp.StatusCode)
	}
	w.logger.Debug("run summary delivered",
		zap.String("run_id", summary.RunID),
		zap.Int("status", resp.StatusCode))
	return nil
}
