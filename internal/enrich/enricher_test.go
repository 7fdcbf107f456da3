package enrich

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/workflow-report-cli/pkg/dify"
)

type mockClient struct {
	details     map[string]*dify.WorkflowRunDetail
	detailErr   error
	nodes       map[string][]dify.NodeExecution
	nodesErr    error
	nodeCalls   []string
	detailCalls []string
}

func (m *mockClient) FetchLogsPage(ctx context.Context, filter dify.LogFilter, page, limit int) (*dify.LogPage, error) {
	return nil, errors.New("not implemented")
}

func (m *mockClient) FetchAllLogs(ctx context.Context, filter dify.LogFilter, limit, maxPages int) ([]dify.LogRecord, error) {
	return nil, errors.New("not implemented")
}

func (m *mockClient) FetchWorkflowRunDetail(ctx context.Context, runID string) (*dify.WorkflowRunDetail, error) {
	m.detailCalls = append(m.detailCalls, runID)
	if m.detailErr != nil {
		return nil, m.detailErr
	}
	return m.details[runID], nil
}

func (m *mockClient) FetchNodeExecutions(ctx context.Context, appID, runID string) ([]dify.NodeExecution, error) {
	m.nodeCalls = append(m.nodeCalls, appID+"/"+runID)
	if m.nodesErr != nil {
		return nil, m.nodesErr
	}
	return m.nodes[runID], nil
}

func record(id, runID, appID string) *Log {
	return &Log{LogRecord: dify.LogRecord{
		ID:          id,
		AppID:       appID,
		WorkflowRun: dify.WorkflowRunSummary{ID: runID},
	}}
}

func TestEnrich_NoRunID(t *testing.T) {
	t.Parallel()

	client := &mockClient{}
	e := New(client, "app-1", true)

	rec := record("log-1", "", "")
	got := e.Enrich(context.Background(), rec)

	assert.Same(t, rec, got)
	assert.Empty(t, client.detailCalls)
	assert.Empty(t, client.nodeCalls)
	assert.Nil(t, rec.WorkflowRunDetail)
	assert.Empty(t, rec.WorkflowRunDetailError)
}

func TestEnrich_DetailAttached(t *testing.T) {
	t.Parallel()

	client := &mockClient{
		details: map[string]*dify.WorkflowRunDetail{
			"run-1": {ID: "run-1", Status: "succeeded", TotalTokens: 10},
		},
	}
	e := New(client, "", false)

	rec := record("log-1", "run-1", "")
	e.Enrich(context.Background(), rec)

	require.NotNil(t, rec.WorkflowRunDetail)
	assert.Equal(t, 10, rec.WorkflowRunDetail.TotalTokens)
	assert.Empty(t, client.nodeCalls)
}

func TestEnrich_DetailNotFoundIsSilent(t *testing.T) {
	t.Parallel()

	// nil detail with nil error models the not-found case
	client := &mockClient{}
	e := New(client, "", false)

	rec := record("log-1", "run-1", "")
	e.Enrich(context.Background(), rec)

	assert.Nil(t, rec.WorkflowRunDetail)
	assert.Empty(t, rec.WorkflowRunDetailError)
}

func TestEnrich_DetailErrorRecorded(t *testing.T) {
	t.Parallel()

	client := &mockClient{
		detailErr: errors.New("dify: HTTP 500: boom"),
		nodes:     map[string][]dify.NodeExecution{"run-1": {{ID: "n1"}}},
	}
	e := New(client, "app-1", true)

	rec := record("log-1", "run-1", "")
	e.Enrich(context.Background(), rec)

	assert.Contains(t, rec.WorkflowRunDetailError, "HTTP 500")
	// node executions still fetched despite the detail failure
	require.Len(t, rec.NodeExecutions, 1)
}

func TestEnrich_AppIDPrecedence(t *testing.T) {
	t.Parallel()

	t.Run("record app id wins", func(t *testing.T) {
		client := &mockClient{}
		e := New(client, "default-app", true)
		e.Enrich(context.Background(), record("log-1", "run-1", "rec-app"))
		require.Equal(t, []string{"rec-app/run-1"}, client.nodeCalls)
	})

	t.Run("default app id fallback", func(t *testing.T) {
		client := &mockClient{}
		e := New(client, "default-app", true)
		e.Enrich(context.Background(), record("log-1", "run-1", ""))
		require.Equal(t, []string{"default-app/run-1"}, client.nodeCalls)
	})

	t.Run("detail app id fallback", func(t *testing.T) {
		client := &mockClient{
			details: map[string]*dify.WorkflowRunDetail{
				"run-1": {ID: "run-1", AppID: "detail-app"},
			},
		}
		e := New(client, "", true)
		e.Enrich(context.Background(), record("log-1", "run-1", ""))
		require.Equal(t, []string{"detail-app/run-1"}, client.nodeCalls)
	})

	t.Run("no app id anywhere", func(t *testing.T) {
		client := &mockClient{}
		e := New(client, "", true)
		rec := record("log-1", "run-1", "")
		e.Enrich(context.Background(), rec)
		assert.Empty(t, client.nodeCalls)
		assert.Equal(t, "unable to determine app id", rec.NodeExecutionsError)
	})
}

func TestEnrich_NodeErrorRecorded(t *testing.T) {
	t.Parallel()

	client := &mockClient{nodesErr: errors.New("dify: console session unavailable")}
	e := New(client, "app-1", true)

	rec := record("log-1", "run-1", "")
	e.Enrich(context.Background(), rec)

	assert.Contains(t, rec.NodeExecutionsError, "console session unavailable")
	assert.Empty(t, rec.NodeExecutions)
}

func TestEnrichAll_Sequential(t *testing.T) {
	t.Parallel()

	client := &mockClient{
		details: map[string]*dify.WorkflowRunDetail{
			"run-1": {ID: "run-1"},
			"run-2": {ID: "run-2"},
		},
	}
	e := New(client, "", false)

	logs := []*Log{
		record("log-1", "run-1", ""),
		record("log-2", "", ""),
		record("log-3", "run-2", ""),
	}
	got := e.EnrichAll(context.Background(), logs)

	require.Len(t, got, 3)
	assert.Equal(t, []string{"run-1", "run-2"}, client.detailCalls)
	assert.NotNil(t, got[0].WorkflowRunDetail)
	assert.Nil(t, got[1].WorkflowRunDetail)
	assert.NotNil(t, got[2].WorkflowRunDetail)
}

func TestWrap(t *testing.T) {
	t.Parallel()

	logs := Wrap([]dify.LogRecord{{ID: "a"}, {ID: "b"}})
	require.Len(t, logs, 2)
	assert.Equal(t, "a", logs[0].ID)
	assert.Empty(t, logs[0].EnrichmentError)
}
