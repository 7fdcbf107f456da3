// Package dify provides a client for the Dify workflow-logs API and the
// session-authenticated console API.
package dify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Client defines the Dify API operations used by the reporting pipeline.
type Client interface {
	// FetchLogsPage fetches one page of the workflow logs listing.
	FetchLogsPage(ctx context.Context, filter LogFilter, page, limit int) (*LogPage, error)
	// FetchAllLogs walks pages from 1 until a page is empty, has_more is
	// false, or maxPages is reached (0 means no page cap).
	FetchAllLogs(ctx context.Context, filter LogFilter, limit, maxPages int) ([]LogRecord, error)
	// FetchWorkflowRunDetail fetches extended run information by run id.
	// A 404 returns (nil, nil): absence of detail is a valid state.
	FetchWorkflowRunDetail(ctx context.Context, runID string) (*WorkflowRunDetail, error)
	// FetchNodeExecutions fetches all node executions of a run via the
	// console API. Node-execution detail is best effort: 404, persistent
	// 401 and transport failures return an empty list. The only error is
	// an unusable console session, so callers can annotate the record.
	FetchNodeExecutions(ctx context.Context, appID, runID string) ([]NodeExecution, error)
}

// APIError is returned when the API responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("dify: HTTP %d: %s", e.StatusCode, e.Body)
}

// session is one bearer-token authenticated handle against the API. The app
// session keeps its token for the life of the client; the console session's
// token is swapped on re-login without touching the app session.
type session struct {
	http  *http.Client
	token string
}

func (s *session) get(ctx context.Context, url string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, eris.Wrap(err, "dify: create request")
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return 0, nil, eris.Wrap(err, "dify: execute request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, eris.Wrap(err, "dify: read response body")
	}
	return resp.StatusCode, body, nil
}

// Option configures the httpClient.
type Option func(*httpClient)

// WithHTTPClient sets a custom *http.Client (for tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithConsoleToken installs an explicit console API token.
func WithConsoleToken(token string) Option {
	return func(c *httpClient) {
		c.consoleToken = token
	}
}

// WithConsoleCredentials installs email/password credentials used to mint
// (and re-mint on 401) a console token.
func WithConsoleCredentials(email, password string) Option {
	return func(c *httpClient) {
		c.consoleEmail = email
		c.consolePassword = password
	}
}

// WithConsoleRateLimit throttles console API calls to rps requests per
// second. Zero or negative disables throttling.
func WithConsoleRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithRetryConfig overrides the retry configuration for listing and
// run-detail calls (for tests).
func WithRetryConfig(maxAttempts int, initialBackoff, maxBackoff time.Duration) Option {
	return func(c *httpClient) {
		c.retry.MaxAttempts = maxAttempts
		c.retry.InitialBackoff = initialBackoff
		c.retry.MaxBackoff = maxBackoff
	}
}

// httpClient implements Client using net/http. A client instance is owned
// by a single pipeline run; it is not safe for concurrent use.
type httpClient struct {
	baseURL  string
	apiToken string

	consoleToken    string
	consoleEmail    string
	consolePassword string

	http    *http.Client
	app     *session
	console *session // nil until established
	limiter *rate.Limiter

	retry retryConfig
}

type retryConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// NewClient creates a Dify client authenticated with the given application
// API token. Console access (needed only for node-execution detail) is
// configured via WithConsoleToken or WithConsoleCredentials and established
// lazily on first use.
func NewClient(baseURL, apiToken string, opts ...Option) Client {
	c := &httpClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiToken: apiToken,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		retry: retryConfig{
			MaxAttempts:    3,
			InitialBackoff: time.Second,
			MaxBackoff:     10 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.app = &session{http: c.http, token: c.apiToken}
	if c.consoleToken != "" {
		c.console = &session{http: c.http, token: c.consoleToken}
	}
	return c
}

// login POSTs credentials to the console login endpoint and installs the
// returned access token as the console session's bearer credential. Every
// failure mode (transport, non-success result, malformed response) returns
// false without raising.
func (c *httpClient) login(ctx context.Context) bool {
	if c.consoleEmail == "" || c.consolePassword == "" {
		return false
	}

	payload, err := json.Marshal(map[string]string{
		"email":    c.consoleEmail,
		"password": c.consolePassword,
	})
	if err != nil {
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/console/api/login", bytes.NewReader(payload))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		zap.L().Warn("console login failed", zap.Error(err))
		return false
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil || resp.StatusCode < 200 || resp.StatusCode >= 300 {
		zap.L().Warn("console login rejected",
			zap.Int("status", resp.StatusCode))
		return false
	}

	var result struct {
		Result string          `json:"result"`
		Data   json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		zap.L().Warn("console login: malformed response", zap.Error(err))
		return false
	}
	if result.Result != "success" {
		zap.L().Warn("console login: non-success result",
			zap.String("result", result.Result),
			zap.String("data", string(result.Data)))
		return false
	}

	var data struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(result.Data, &data); err != nil || data.AccessToken == "" {
		zap.L().Warn("console login: no access_token in response")
		return false
	}

	c.consoleToken = data.AccessToken
	c.console = &session{http: c.http, token: data.AccessToken}
	zap.L().Info("console session established", zap.String("email", c.consoleEmail))
	return true
}

// ensureConsoleSession reports whether a console session is usable,
// performing the initial login when only credentials were provided.
func (c *httpClient) ensureConsoleSession(ctx context.Context) bool {
	if c.console != nil {
		return true
	}
	return c.login(ctx)
}

// handleAuthError is invoked after a console call returned 401. It re-logs
// in when credentials are available and reports whether a retry is
// warranted. Callers retry at most once per failed call.
func (c *httpClient) handleAuthError(ctx context.Context) bool {
	if c.consoleEmail == "" || c.consolePassword == "" {
		return false
	}
	zap.L().Warn("console token rejected, attempting re-login")
	return c.login(ctx)
}

func (c *httpClient) consoleGet(ctx context.Context, url string) (int, []byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, nil, eris.Wrap(err, "dify: rate limit wait")
		}
	}
	return c.console.get(ctx, url)
}
