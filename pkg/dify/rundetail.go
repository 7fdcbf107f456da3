package dify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rotisserie/eris"

	"github.com/sells-group/workflow-report-cli/internal/resilience"
)

// FetchWorkflowRunDetail fetches extended information for one workflow run.
// A 404 returns (nil, nil): "no detail available" is a valid state, not an
// error. Other failures are retried and then surfaced.
func (c *httpClient) FetchWorkflowRunDetail(ctx context.Context, runID string) (*WorkflowRunDetail, error) {
	reqURL := fmt.Sprintf("%s/v1/workflows/run/%s", c.baseURL, runID)

	return resilience.DoVal(ctx, c.retryCfg("fetch_run_detail"), func(ctx context.Context) (*WorkflowRunDetail, error) {
		status, body, err := c.app.get(ctx, reqURL)
		if err != nil {
			return nil, err
		}
		if status == http.StatusNotFound {
			return nil, nil
		}
		if status < 200 || status >= 300 {
			return nil, &APIError{StatusCode: status, Body: string(body)}
		}

		var detail WorkflowRunDetail
		if err := json.Unmarshal(body, &detail); err != nil {
			return nil, eris.Wrap(err, "dify: decode run detail")
		}
		return &detail, nil
	})
}
