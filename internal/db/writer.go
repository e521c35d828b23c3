package db

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/tordrt/footstats/internal/schema"
)

const (
	// maxParams is the bind parameter limit of the PostgreSQL wire protocol.
	maxParams       = 65535
	maxRowsPerChunk = 1000
)

// TableWriter loads rows into the target store inside one transaction.
type TableWriter interface {
	// InsertOrSkip inserts rows into table, skipping rows whose primary key
	// already exists. It returns the number of rows actually inserted.
	InsertOrSkip(ctx context.Context, table schema.Table, rows [][]any) (int64, error)
	Commit(ctx context.Context) error
	// Rollback discards the transaction. It is a no-op after Commit.
	Rollback(ctx context.Context) error
}

type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

type txWriter struct {
	tx pgx.Tx
}

func (w *txWriter) InsertOrSkip(ctx context.Context, table schema.Table, rows [][]any) (int64, error) {
	return insertOrSkip(ctx, w.tx, table, rows)
}

func (w *txWriter) Commit(ctx context.Context) error {
	if err := w.tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit: %w", classify(err, ErrIntegrity))
	}
	return nil
}

func (w *txWriter) Rollback(ctx context.Context) error {
	err := w.tx.Rollback(ctx)
	if err == nil || errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return fmt.Errorf("failed to roll back: %w", classify(err, ErrConnection))
}

func insertOrSkip(ctx context.Context, ex execer, table schema.Table, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	columns := table.ColumnNames()
	if len(columns) == 0 {
		return 0, fmt.Errorf("%w: table %s has no columns to insert", ErrQuery, table.Name)
	}
	if len(table.PrimaryKey) == 0 {
		return 0, fmt.Errorf("%w: table %s has no primary key to skip on", ErrQuery, table.Name)
	}
	for i, row := range rows {
		if len(row) != len(columns) {
			return 0, fmt.Errorf("%w: %s row %d has %d values, want %d", ErrQuery, table.Name, i, len(row), len(columns))
		}
	}

	chunkSize := maxParams / len(columns)
	if chunkSize > maxRowsPerChunk {
		chunkSize = maxRowsPerChunk
	}

	var inserted int64
	for start := 0; start < len(rows); start += chunkSize {
		end := min(start+chunkSize, len(rows))
		chunk := rows[start:end]

		query := buildInsert(table.Name, columns, table.PrimaryKey, len(chunk))
		args := make([]any, 0, len(chunk)*len(columns))
		for _, row := range chunk {
			args = append(args, row...)
		}

		tag, err := ex.Exec(ctx, query, args...)
		if err != nil {
			return inserted, fmt.Errorf("failed to insert into %s: %w", table.Name, classify(err, ErrQuery))
		}
		inserted += tag.RowsAffected()
	}

	return inserted, nil
}

// buildInsert renders a multi-row insert that leaves existing primary keys
// untouched.
func buildInsert(table string, columns, primaryKey []string, rowCount int) string {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(targetIdent(table))
	b.WriteString(" (")
	b.WriteString(joinIdents(columns))
	b.WriteString(") VALUES ")

	param := 1
	for r := 0; r < rowCount; r++ {
		if r > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for c := range columns {
			if c > 0 {
				b.WriteString(", ")
			}
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(param))
			param++
		}
		b.WriteByte(')')
	}

	b.WriteString(" ON CONFLICT (")
	b.WriteString(joinIdents(primaryKey))
	b.WriteString(") DO NOTHING")
	return b.String()
}

// targetIdent quotes a catalog name for the target store, where tables were
// created unquoted and therefore folded to lower case.
func targetIdent(name string) string {
	return pgx.Identifier{strings.ToLower(name)}.Sanitize()
}

func joinIdents(names []string) string {
	quoted := make([]string, len(names))
	for i, name := range names {
		quoted[i] = targetIdent(name)
	}
	return strings.Join(quoted, ", ")
}
