package dify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// FetchNodeExecutions fetches all node executions for a run via the console
// API. Node-execution detail is always optional: a 404 returns an empty
// list, a 401 triggers exactly one re-login-then-retry and degrades to an
// empty list if still unauthorized, and any transport or decode failure is
// logged as a warning and returns an empty list. The only error returned is
// an unusable console session (no token and no credentials), which the
// enricher annotates on the record.
func (c *httpClient) FetchNodeExecutions(ctx context.Context, appID, runID string) ([]NodeExecution, error) {
	if !c.ensureConsoleSession(ctx) {
		return nil, eris.New("dify: console session unavailable")
	}

	reqURL := fmt.Sprintf("%s/console/api/apps/%s/workflow-runs/%s/node-executions",
		c.baseURL, appID, runID)

	status, body, err := c.consoleGet(ctx, reqURL)
	if err != nil {
		zap.L().Warn("node executions fetch failed",
			zap.String("run_id", runID), zap.Error(err))
		return nil, nil
	}

	if status == http.StatusUnauthorized {
		if !c.handleAuthError(ctx) {
			return nil, nil
		}
		status, body, err = c.consoleGet(ctx, reqURL)
		if err != nil {
			zap.L().Warn("node executions retry failed",
				zap.String("run_id", runID), zap.Error(err))
			return nil, nil
		}
		if status == http.StatusUnauthorized {
			zap.L().Warn("node executions still unauthorized after re-login",
				zap.String("run_id", runID))
			return nil, nil
		}
	}

	if status == http.StatusNotFound {
		return nil, nil
	}
	if status < 200 || status >= 300 {
		zap.L().Warn("node executions fetch returned error status",
			zap.String("run_id", runID), zap.Int("status", status))
		return nil, nil
	}

	var result struct {
		Data []NodeExecution `json:"data"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		zap.L().Warn("node executions: malformed response",
			zap.String("run_id", runID), zap.Error(err))
		return nil, nil
	}
	return result.Data, nil
}
