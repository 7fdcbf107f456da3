// Package runlog keeps a local SQLite ledger of pipeline runs so past
// invocations can be listed and failed ones diagnosed.
package runlog

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// Run statuses recorded in the ledger.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// Run is one recorded pipeline invocation.
type Run struct {
	ID          string
	Format      string
	Status      string
	Records     int
	ReportPaths string
	Error       string
	StartedAt   time.Time
	FinishedAt  *time.Time
}

// Ledger records pipeline runs in a SQLite database.
type Ledger struct {
	db *sql.DB
}

// Open opens the ledger database at the given path and configures WAL mode.
func Open(dsn string) (*Ledger, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "runlog: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "runlog: exec %s", pragma)
		}
	}
	return &Ledger{db: db}, nil
}

const ledgerMigration = `
CREATE TABLE IF NOT EXISTS pipeline_runs (
	id           TEXT PRIMARY KEY,
	format       TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'running',
	records      INTEGER NOT NULL DEFAULT 0,
	report_paths TEXT,
	error        TEXT,
	started_at   DATETIME NOT NULL,
	finished_at  DATETIME
);

CREATE INDEX IF NOT EXISTS idx_pipeline_runs_status ON pipeline_runs(status);
CREATE INDEX IF NOT EXISTS idx_pipeline_runs_started_at ON pipeline_runs(started_at);
`

func (l *Ledger) Migrate(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, ledgerMigration)
	return eris.Wrap(err, "runlog: migrate")
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

// Start records a new run in the running state.
func (l *Ledger) Start(ctx context.Context, runID, format string) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO pipeline_runs (id, format, status, started_at) VALUES (?, ?, ?, ?)`,
		runID, format, RunStatusRunning, time.Now().UTC(),
	)
	return eris.Wrapf(err, "runlog: insert run %s", runID)
}

// Complete marks a run as completed with its record count and output paths.
func (l *Ledger) Complete(ctx context.Context, runID string, records int, reportPaths string) error {
	res, err := l.db.ExecContext(ctx,
		`UPDATE pipeline_runs SET status = ?, records = ?, report_paths = ?, finished_at = ? WHERE id = ?`,
		RunStatusCompleted, records, reportPaths, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "runlog: complete run %s", runID)
	}
	return checkRowsAffected(res, runID)
}

// Fail marks a run as failed with the error message.
func (l *Ledger) Fail(ctx context.Context, runID, errMsg string) error {
	res, err := l.db.ExecContext(ctx,
		`UPDATE pipeline_runs SET status = ?, error = ?, finished_at = ? WHERE id = ?`,
		RunStatusFailed, errMsg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "runlog: fail run %s", runID)
	}
	return checkRowsAffected(res, runID)
}

// Recent returns the latest runs, newest first.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, format, status, records, COALESCE(report_paths, ''), COALESCE(error, ''), started_at, finished_at
		 FROM pipeline_runs ORDER BY started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "runlog: query recent runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var finished sql.NullTime
		if err := rows.Scan(&r.ID, &r.Format, &r.Status, &r.Records, &r.ReportPaths, &r.Error, &r.StartedAt, &finished); err != nil {
			return nil, eris.Wrap(err, "runlog: scan run")
		}
		if finished.Valid {
			t := finished.Time
			r.FinishedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "runlog: iterate runs")
}

func checkRowsAffected(res sql.Result, runID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "runlog: rows affected")
	}
	if n == 0 {
		return eris.Errorf("runlog: run %s not found", runID)
	}
	return nil
}
