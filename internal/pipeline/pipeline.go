// Package pipeline orchestrates one report run: fetch workflow logs,
// enrich them, render the requested report format and persist the output.
package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/workflow-report-cli/internal/enrich"
	"github.com/sells-group/workflow-report-cli/internal/notify"
	"github.com/sells-group/workflow-report-cli/internal/report"
	"github.com/sells-group/workflow-report-cli/internal/runlog"
	"github.com/sells-group/workflow-report-cli/internal/storage"
	"github.com/sells-group/workflow-report-cli/pkg/dify"
)

// Report formats accepted by Params.Format.
const (
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
	FormatCSV      = "csv"
	FormatXLSX     = "xlsx"
)

// ValidFormat reports whether f names a supported report format.
func ValidFormat(f string) bool {
	switch f {
	case FormatMarkdown, FormatJSON, FormatCSV, FormatXLSX:
		return true
	}
	return false
}

// Params is the full parameter bundle of one run.
type Params struct {
	BaseURL  string
	APIToken string
	AppID    string

	ConsoleEmail    string
	ConsolePassword string
	ConsoleToken    string

	Page     int
	Limit    int
	FetchAll bool
	MaxPages int

	Keyword          string
	Status           string
	CreatedAtBefore  string
	CreatedAtAfter   string
	EndUserSessionID string
	AccountEmail     string

	WithDetails        bool
	WithNodeExecutions bool

	Format           string
	SaveData         bool
	NotifyOnComplete bool
}

// Validate checks the parameter bundle before any network call is made.
func (p *Params) Validate() error {
	if p.BaseURL == "" {
		return eris.New("pipeline: base URL is required")
	}
	if p.APIToken == "" {
		return eris.New("pipeline: API token is required")
	}
	if p.Limit < 1 || p.Limit > 100 {
		return eris.Errorf("pipeline: limit must be between 1 and 100, got %d", p.Limit)
	}
	if p.Status != "" && !dify.ValidStatus(p.Status) {
		return eris.Errorf("pipeline: invalid status %q", p.Status)
	}
	if !ValidFormat(p.Format) {
		return eris.Errorf("pipeline: invalid format %q", p.Format)
	}
	if p.WithNodeExecutions && p.ConsoleToken == "" && (p.ConsoleEmail == "" || p.ConsolePassword == "") {
		return eris.New("pipeline: node executions require console credentials or a console token")
	}
	return nil
}

func (p *Params) filter() dify.LogFilter {
	return dify.LogFilter{
		Keyword:          p.Keyword,
		Status:           p.Status,
		CreatedAtBefore:  p.CreatedAtBefore,
		CreatedAtAfter:   p.CreatedAtAfter,
		EndUserSessionID: p.EndUserSessionID,
		AccountEmail:     p.AccountEmail,
	}
}

// Result summarizes a finished run.
type Result struct {
	RunID       string
	Records     int
	Total       int
	ReportPaths []string
	DataPath    string
	Duration    time.Duration
}

// Pipeline wires the client, storage, ledger and optional notifier.
type Pipeline struct {
	client   dify.Client
	store    storage.Store
	ledger   *runlog.Ledger
	notifier notify.Notifier
	logger   *zap.Logger
}

// New creates a pipeline. Ledger and notifier may be nil.
func New(client dify.Client, store storage.Store, ledger *runlog.Ledger, notifier notify.Notifier, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.L()
	}
	return &Pipeline{
		client:   client,
		store:    store,
		ledger:   ledger,
		notifier: notifier,
		logger:   logger,
	}
}

// Run executes one fetch-enrich-report cycle.
func (p *Pipeline) Run(ctx context.Context, params Params) (*Result, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	started := time.Now()
	log := p.logger.With(zap.String("run_id", runID), zap.String("format", params.Format))
	log.Info("pipeline: starting run")

	if p.ledger != nil {
		if err := p.ledger.Start(ctx, runID, params.Format); err != nil {
			return nil, err
		}
	}

	res, err := p.run(ctx, runID, params, log)
	if p.ledger != nil {
		if err != nil {
			if lerr := p.ledger.Fail(ctx, runID, err.Error()); lerr != nil {
				log.Warn("pipeline: record failure", zap.Error(lerr))
			}
		} else {
			if lerr := p.ledger.Complete(ctx, runID, res.Records, strings.Join(res.ReportPaths, "\n")); lerr != nil {
				log.Warn("pipeline: record completion", zap.Error(lerr))
			}
		}
	}
	if err != nil {
		return nil, err
	}

	res.Duration = time.Since(started)
	log.Info("pipeline: run finished",
		zap.Int("records", res.Records),
		zap.Duration("duration", res.Duration))

	if p.notifier != nil && params.NotifyOnComplete {
		summary := notify.Summary{
			RunID:    runID,
			Format:   params.Format,
			Records:  res.Records,
			Reports:  res.ReportPaths,
			Duration: res.Duration.Seconds(),
		}
		if nerr := p.notifier.Notify(ctx, summary); nerr != nil {
			log.Warn("pipeline: notify webhook", zap.Error(nerr))
		}
	}
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, runID string, params Params, log *zap.Logger) (*Result, error) {
	filter := params.filter()

	var rs *enrich.ResultSet
	if params.FetchAll {
		records, err := p.client.FetchAllLogs(ctx, filter, params.Limit, params.MaxPages)
		if err != nil {
			return nil, err
		}
		rs = &enrich.ResultSet{
			Total:   len(records),
			Page:    1,
			Limit:   params.Limit,
			HasMore: false,
			Data:    enrich.Wrap(records),
		}
	} else {
		page, err := p.client.FetchLogsPage(ctx, filter, params.Page, params.Limit)
		if err != nil {
			return nil, err
		}
		rs = &enrich.ResultSet{
			Total:   page.Total,
			Page:    page.Page,
			Limit:   page.Limit,
			HasMore: page.HasMore,
			Data:    enrich.Wrap(page.Data),
		}
	}
	log.Info("pipeline: logs fetched",
		zap.Int("records", len(rs.Data)),
		zap.Int("total", rs.Total))

	if params.WithDetails || params.WithNodeExecutions {
		enricher := enrich.New(p.client, params.AppID, params.WithNodeExecutions)
		enricher.EnrichAll(ctx, rs.Data)
	}

	files, err := p.render(rs, params)
	if err != nil {
		return nil, err
	}

	paths, err := p.store.SaveReport(runID, params.Format, files)
	if err != nil {
		return nil, err
	}

	res := &Result{
		RunID:       runID,
		Records:     len(rs.Data),
		Total:       rs.Total,
		ReportPaths: paths,
	}

	if params.SaveData {
		dump, err := report.RenderJSON(rs)
		if err != nil {
			return nil, err
		}
		res.DataPath, err = p.store.SaveData(runID, dump)
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (p *Pipeline) render(rs *enrich.ResultSet, params Params) ([]report.File, error) {
	switch params.Format {
	case FormatMarkdown:
		includeDetails := params.WithDetails || params.WithNodeExecutions
		return []report.File{report.RenderMarkdown(rs, includeDetails)}, nil
	case FormatJSON:
		f, err := report.RenderJSON(rs)
		if err != nil {
			return nil, err
		}
		return []report.File{f}, nil
	case FormatCSV:
		return report.RenderCSV(rs)
	case FormatXLSX:
		f, err := report.RenderXLSX(rs)
		if err != nil {
			return nil, err
		}
		return []report.File{f}, nil
	}
	return nil, eris.Errorf("pipeline: invalid format %q", params.Format)
}
