package migrate

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/tordrt/footstats/internal/db"
	"github.com/tordrt/footstats/internal/schema"
)

// fakeSource serves rows from memory and records the tables it was asked for.
type fakeSource struct {
	rows   map[string][][]any
	reads  []string
	closed int
}

func (s *fakeSource) ReadTable(_ context.Context, table string, columns []string) ([][]any, error) {
	s.reads = append(s.reads, table)
	rows, ok := s.rows[table]
	if !ok {
		return nil, fmt.Errorf("%w: no such table: %s", db.ErrQuery, table)
	}
	for _, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("%w: fixture for %s has wrong width", db.ErrQuery, table)
		}
	}
	return rows, nil
}

func (s *fakeSource) Close() error {
	s.closed++
	return nil
}

// fakeTarget is an in-memory target store that enforces primary keys with
// insert-or-skip and foreign keys against the catalog relations.
type fakeTarget struct {
	committed map[string]map[string][]any
	writes    []string
	rollbacks []string
	closed    int

	commitErr map[string]error
}

func newFakeTarget() *fakeTarget {
	return &fakeTarget{
		committed: make(map[string]map[string][]any),
		commitErr: make(map[string]error),
	}
}

func (t *fakeTarget) Begin(context.Context) (db.TableWriter, error) {
	return &fakeTx{target: t, pending: make(map[string]map[string][]any)}, nil
}

func (t *fakeTarget) Close(context.Context) error {
	t.closed++
	return nil
}

func (t *fakeTarget) count(table string) int {
	return len(t.committed[table])
}

func (t *fakeTarget) row(table string, key any) []any {
	return t.committed[table][keyOf(key)]
}

func (t *fakeTarget) seed(table string, row []any) {
	if t.committed[table] == nil {
		t.committed[table] = make(map[string][]any)
	}
	t.committed[table][keyOf(row[0])] = row
}

type fakeTx struct {
	target  *fakeTarget
	pending map[string]map[string][]any
	table   string
	done    bool
}

func (tx *fakeTx) InsertOrSkip(_ context.Context, table schema.Table, rows [][]any) (int64, error) {
	tx.table = table.Name
	tx.target.writes = append(tx.target.writes, table.Name)
	columns := table.ColumnNames()

	var inserted int64
	for _, row := range rows {
		key := keyOf(row[0])
		if tx.exists(table.Name, key) {
			continue
		}
		for _, rel := range table.Relations {
			value := row[indexOf(columns, rel.SourceColumn)]
			if value == nil {
				continue
			}
			if !tx.exists(rel.TargetTable, keyOf(value)) {
				return inserted, fmt.Errorf("%w: %s.%s = %v has no matching %s", db.ErrIntegrity, table.Name, rel.SourceColumn, value, rel.TargetTable)
			}
		}
		if tx.pending[table.Name] == nil {
			tx.pending[table.Name] = make(map[string][]any)
		}
		tx.pending[table.Name][key] = row
		inserted++
	}
	return inserted, nil
}

func (tx *fakeTx) exists(table, key string) bool {
	if _, ok := tx.target.committed[table][key]; ok {
		return true
	}
	_, ok := tx.pending[table][key]
	return ok
}

func (tx *fakeTx) Commit(context.Context) error {
	if err := tx.target.commitErr[tx.table]; err != nil {
		return err
	}
	for table, rows := range tx.pending {
		if tx.target.committed[table] == nil {
			tx.target.committed[table] = make(map[string][]any)
		}
		for key, row := range rows {
			tx.target.committed[table][key] = row
		}
	}
	tx.done = true
	return nil
}

func (tx *fakeTx) Rollback(context.Context) error {
	if tx.done {
		return nil
	}
	tx.target.rollbacks = append(tx.target.rollbacks, tx.table)
	tx.pending = nil
	tx.done = true
	return nil
}

func keyOf(v any) string {
	return fmt.Sprint(v)
}

func indexOf(columns []string, name string) int {
	for i, col := range columns {
		if col == name {
			return i
		}
	}
	panic("unknown column " + name)
}

// footballSource returns a small consistent source dataset.
func footballSource() *fakeSource {
	return &fakeSource{rows: map[string][][]any{
		"Country": {
			{int64(1), "Belgium"},
			{int64(1729), "England"},
		},
		"League": {
			{int64(1), "Belgium Jupiler League", int64(1)},
			{int64(1729), "England Premier League", int64(1729)},
		},
		"Team": {
			{int64(9987), "KRC Genk", "GEN"},
			{int64(9993), "Beerschot AC", "BAC"},
			{int64(8650), "Liverpool", "LIV"},
		},
		"Player": {
			{int64(30981), "Lionel Messi", "1987-06-24 00:00:00", 170.18, int64(159)},
			{int64(30893), "Cristiano Ronaldo", "1985-02-05 00:00:00", 185.42, int64(176)},
		},
		"Match": {
			{int64(492473), int64(1), "2008/2009", "2008-08-17 00:00:00", int64(1), int64(9987), int64(9993), int64(1), int64(1)},
			{int64(492474), int64(1), "2008/2009", "2008-08-24 00:00:00", int64(2), int64(9993), int64(9987), int64(0), int64(2)},
		},
	}}
}

func newTestOrchestrator(source *fakeSource, target *fakeTarget, tables []schema.Table) *Orchestrator {
	return New(
		tables,
		func(context.Context) (Source, error) { return source, nil },
		func(context.Context) (Target, error) { return target, nil },
		nullLogger(),
	)
}

var errBoom = errors.New("boom")

func nullLogger() logrus.FieldLogger {
	logger, _ := test.NewNullLogger()
	return logger
}
