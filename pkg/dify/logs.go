package dify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/workflow-report-cli/internal/resilience"
)

// retryable decides whether a listing or run-detail call is worth retrying:
// transport-level failures and API errors other than 404 (a 404 is a valid
// not-found outcome, never retried).
func retryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode != http.StatusNotFound
	}
	return resilience.IsTransient(err)
}

func (c *httpClient) retryCfg(operation string) resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    c.retry.MaxAttempts,
		InitialBackoff: c.retry.InitialBackoff,
		MaxBackoff:     c.retry.MaxBackoff,
		ShouldRetry:    retryable,
		OnRetry:        resilience.RetryLogger("dify", operation),
	}
}

// FetchLogsPage issues one GET against the workflow logs listing with the
// given filter, page and limit, and returns the raw page payload.
func (c *httpClient) FetchLogsPage(ctx context.Context, filter LogFilter, page, limit int) (*LogPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	if filter.Keyword != "" {
		q.Set("keyword", filter.Keyword)
	}
	if filter.Status != "" {
		q.Set("status", filter.Status)
	}
	if filter.CreatedAtBefore != "" {
		q.Set("created_at__before", filter.CreatedAtBefore)
	}
	if filter.CreatedAtAfter != "" {
		q.Set("created_at__after", filter.CreatedAtAfter)
	}
	if filter.EndUserSessionID != "" {
		q.Set("created_by_end_user_session_id", filter.EndUserSessionID)
	}
	if filter.AccountEmail != "" {
		q.Set("created_by_account", filter.AccountEmail)
	}

	reqURL := c.baseURL + "/v1/workflows/logs?" + q.Encode()

	return resilience.DoVal(ctx, c.retryCfg("fetch_logs"), func(ctx context.Context) (*LogPage, error) {
		status, body, err := c.app.get(ctx, reqURL)
		if err != nil {
			return nil, err
		}
		if status < 200 || status >= 300 {
			return nil, &APIError{StatusCode: status, Body: string(body)}
		}

		var page LogPage
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, eris.Wrap(err, "dify: decode logs page")
		}
		return &page, nil
	})
}

// FetchAllLogs walks the listing from page 1, appending each page's data.
// It stops when a page returns no records, has_more is false, or maxPages
// is reached (0 means unlimited). Records are returned in server order
// with no deduplication.
func (c *httpClient) FetchAllLogs(ctx context.Context, filter LogFilter, limit, maxPages int) ([]LogRecord, error) {
	var all []LogRecord

	for page := 1; ; page++ {
		if maxPages > 0 && page > maxPages {
			break
		}

		result, err := c.FetchLogsPage(ctx, filter, page, limit)
		if err != nil {
			return nil, eris.Wrapf(err, "dify: fetch page %d", page)
		}

		if len(result.Data) == 0 {
			break
		}
		all = append(all, result.Data...)

		if !result.HasMore {
			break
		}
	}

	zap.L().Info("fetched workflow logs", zap.Int("records", len(all)))
	return all, nil
}
