// Package migrate copies the catalog tables from the source store into the
// target store, one transaction per table, in dependency order.
package migrate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tordrt/footstats/internal/db"
	"github.com/tordrt/footstats/internal/schema"
)

// Source reads whole tables from the origin store.
type Source interface {
	ReadTable(ctx context.Context, table string, columns []string) ([][]any, error)
	Close() error
}

// Target starts per-table transactions on the destination store.
type Target interface {
	Begin(ctx context.Context) (db.TableWriter, error)
	Close(ctx context.Context) error
}

// Stage names the step of a table load that failed.
type Stage string

const (
	StageRead   Stage = "read"
	StageBegin  Stage = "begin"
	StageWrite  Stage = "write"
	StageCommit Stage = "commit"
)

// TableError reports the table whose load failed and why. The transaction
// for that table has been rolled back and later tables were not attempted.
type TableError struct {
	Table string
	Stage Stage
	Err   error
}

func (e *TableError) Error() string {
	return fmt.Sprintf("failed to load %s (%s): %v", e.Table, e.Stage, e.Err)
}

func (e *TableError) Unwrap() error {
	return e.Err
}

// TableResult summarizes one committed table load.
type TableResult struct {
	Table    string
	Read     int
	Inserted int64
}

// Skipped returns the rows left untouched because their key already existed.
func (r TableResult) Skipped() int64 {
	return int64(r.Read) - r.Inserted
}

// Report describes a migration run. Tables holds only committed loads.
type Report struct {
	RunID    uuid.UUID
	Planned  []string
	Tables   []TableResult
	Duration time.Duration
}

// Complete reports whether every planned table was committed.
func (r *Report) Complete() bool {
	return len(r.Tables) == len(r.Planned)
}

// Plan resolves s into load order.
func Plan(s *schema.Schema) ([]schema.Table, error) {
	tables, err := schema.LoadOrder(s)
	if err != nil {
		return nil, fmt.Errorf("failed to plan migration: %w", err)
	}
	return tables, nil
}

// Orchestrator runs migrations. It holds no state between runs; every run
// opens and releases its own connections.
type Orchestrator struct {
	tables     []schema.Table
	openSource func(ctx context.Context) (Source, error)
	openTarget func(ctx context.Context) (Target, error)
	logger     logrus.FieldLogger
}

// New creates an orchestrator that loads tables in the given order.
func New(
	tables []schema.Table,
	openSource func(ctx context.Context) (Source, error),
	openTarget func(ctx context.Context) (Target, error),
	logger logrus.FieldLogger,
) *Orchestrator {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Orchestrator{
		tables:     tables,
		openSource: openSource,
		openTarget: openTarget,
		logger:     logger,
	}
}

// Run loads every table. On failure it returns the report of the tables
// committed so far together with a *TableError.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	started := time.Now()
	report := &Report{RunID: uuid.New()}
	for _, table := range o.tables {
		report.Planned = append(report.Planned, table.Name)
	}
	log := o.logger.WithField("run_id", report.RunID.String())
	defer func() {
		report.Duration = time.Since(started)
	}()

	source, err := o.openSource(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to open source: %w", err)
	}
	defer func() {
		if cerr := source.Close(); cerr != nil {
			log.WithError(cerr).Warn("failed to close source connection")
		}
	}()

	target, err := o.openTarget(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to open target: %w", err)
	}
	defer func() {
		if cerr := target.Close(ctx); cerr != nil {
			log.WithError(cerr).Warn("failed to close target connection")
		}
	}()

	log.WithField("tables", len(o.tables)).Info("migration started")
	for _, table := range o.tables {
		result, err := o.loadTable(ctx, source, target, table)
		if err != nil {
			var tableErr *TableError
			if errors.As(err, &tableErr) {
				log.WithError(tableErr.Err).WithFields(logrus.Fields{
					"table": tableErr.Table,
					"stage": tableErr.Stage,
				}).Error("table load failed, migration aborted")
			}
			return report, err
		}

		report.Tables = append(report.Tables, result)
		log.WithFields(logrus.Fields{
			"table":    result.Table,
			"read":     result.Read,
			"inserted": result.Inserted,
			"skipped":  result.Skipped(),
		}).Info("table loaded")
	}

	log.WithField("duration", time.Since(started).Round(time.Millisecond)).Info("migration finished")
	return report, nil
}

func (o *Orchestrator) loadTable(ctx context.Context, source Source, target Target, table schema.Table) (TableResult, error) {
	result := TableResult{Table: table.Name}
	fail := func(stage Stage, err error) (TableResult, error) {
		return result, &TableError{Table: table.Name, Stage: stage, Err: err}
	}

	rows, err := source.ReadTable(ctx, table.Name, table.ColumnNames())
	if err != nil {
		return fail(StageRead, err)
	}
	result.Read = len(rows)

	tx, err := target.Begin(ctx)
	if err != nil {
		return fail(StageBegin, err)
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if rerr := tx.Rollback(ctx); rerr != nil {
			o.logger.WithError(rerr).WithField("table", table.Name).Warn("rollback failed")
		}
	}()

	inserted, err := tx.InsertOrSkip(ctx, table, rows)
	if err != nil {
		return fail(StageWrite, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fail(StageCommit, err)
	}
	committed = true

	result.Inserted = inserted
	return result, nil
}
