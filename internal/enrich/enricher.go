// Package enrich attaches run-level and node-level detail to workflow log
// records, best effort: every failure is scoped to its own record.
package enrich

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sells-group/workflow-report-cli/pkg/dify"
)

// Log is one log record together with its enrichment results. The error
// fields carry failure descriptions instead of aborting the batch; their
// JSON names match the enriched payload shape consumed by the renderers.
type Log struct {
	dify.LogRecord

	WorkflowRunDetail      *dify.WorkflowRunDetail `json:"workflow_run_detail,omitempty"`
	WorkflowRunDetailError string                  `json:"workflow_run_detail_error,omitempty"`
	NodeExecutions         []dify.NodeExecution    `json:"node_executions,omitempty"`
	NodeExecutionsError    string                  `json:"node_executions_error,omitempty"`
	EnrichmentError        string                  `json:"enrichment_error,omitempty"`
}

// ResultSet is the full post-enrichment payload handed to the report
// builder and dumped verbatim as the JSON report.
type ResultSet struct {
	Total   int    `json:"total"`
	Page    int    `json:"page,omitempty"`
	Limit   int    `json:"limit,omitempty"`
	HasMore bool   `json:"has_more"`
	Data    []*Log `json:"data"`
}

// Wrap converts raw log records into enrichment carriers without fetching
// anything.
func Wrap(records []dify.LogRecord) []*Log {
	logs := make([]*Log, len(records))
	for i, rec := range records {
		logs[i] = &Log{LogRecord: rec}
	}
	return logs
}

// Enricher fetches run detail and, optionally, node executions for log
// records.
type Enricher struct {
	client                dify.Client
	defaultAppID          string
	includeNodeExecutions bool
}

// New creates an Enricher. defaultAppID is used when a record carries no
// app id of its own; includeNodeExecutions controls whether the console API
// is consulted per record.
func New(client dify.Client, defaultAppID string, includeNodeExecutions bool) *Enricher {
	return &Enricher{
		client:                client,
		defaultAppID:          defaultAppID,
		includeNodeExecutions: includeNodeExecutions,
	}
}

// Enrich attaches run detail and node executions to one record. A record
// without a run id is returned unchanged. A 404 on the run-detail fetch is
// silent: no detail field, no error field. Any other failure is recorded on
// the record and enrichment of the remaining steps continues.
func (e *Enricher) Enrich(ctx context.Context, rec *Log) *Log {
	runID := rec.WorkflowRun.ID
	if runID == "" {
		return rec
	}

	detail, err := e.client.FetchWorkflowRunDetail(ctx, runID)
	if err != nil {
		rec.WorkflowRunDetailError = err.Error()
	} else if detail != nil {
		rec.WorkflowRunDetail = detail
	}

	if e.includeNodeExecutions {
		appID := rec.AppID
		if appID == "" {
			appID = e.defaultAppID
		}
		if appID == "" && detail != nil {
			appID = detail.AppID
		}
		if appID == "" {
			rec.NodeExecutionsError = "unable to determine app id"
			return rec
		}

		nodes, err := e.client.FetchNodeExecutions(ctx, appID, runID)
		if err != nil {
			rec.NodeExecutionsError = err.Error()
		} else {
			rec.NodeExecutions = nodes
		}
	}

	return rec
}

// EnrichAll enriches records sequentially. Panics from a single record are
// recovered and recorded as enrichment_error on that record; the batch
// never aborts early because one record failed.
func (e *Enricher) EnrichAll(ctx context.Context, logs []*Log) []*Log {
	for i, rec := range logs {
		e.enrichSafe(ctx, rec)
		zap.L().Debug("enriched log record",
			zap.Int("index", i+1),
			zap.Int("total", len(logs)),
			zap.String("id", rec.ID))
	}
	return logs
}

func (e *Enricher) enrichSafe(ctx context.Context, rec *Log) {
	defer func() {
		if r := recover(); r != nil {
			rec.EnrichmentError = fmt.Sprint(r)
			zap.L().Warn("enrichment panic recovered",
				zap.String("id", rec.ID),
				zap.Any("panic", r))
		}
	}()
	e.Enrich(ctx, rec)
}
