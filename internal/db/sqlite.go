package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteClient holds a read-only connection to the source database
type SQLiteClient struct {
	db *sql.DB
}

// NewSQLiteClient opens the SQLite file at path in read-only mode
func NewSQLiteClient(ctx context.Context, path string) (*SQLiteClient, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: source path is required", ErrConnection)
	}

	db, err := sql.Open("sqlite3", readOnlyDSN(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", withKind(ErrConnection, err))
	}

	// sql.Open is lazy; a missing file only shows up here
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database %s: %w", path, withKind(ErrConnection, err))
	}

	return &SQLiteClient{db: db}, nil
}

func readOnlyDSN(path string) string {
	return "file:" + (&url.URL{Path: path}).EscapedPath() + "?mode=ro"
}

// Close closes the database connection
func (c *SQLiteClient) Close() error {
	return c.db.Close()
}

// GetDB returns the underlying database connection
func (c *SQLiteClient) GetDB() *sql.DB {
	return c.db
}

// ReadTable returns every row of table projected onto columns, in the
// store's row order.
func (c *SQLiteClient) ReadTable(ctx context.Context, table string, columns []string) ([][]any, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: no columns requested for %s", ErrQuery, table)
	}

	if err := c.checkColumns(ctx, table, columns); err != nil {
		return nil, err
	}

	quoted := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = quoteSQLite(col)
	}
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(quoted, ", "), quoteSQLite(table))

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, classify(err, ErrQuery))
	}
	defer rows.Close()

	var result [][]any
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", table, classify(err, ErrQuery))
		}
		for i, v := range values {
			// BLOB affinity leaks []byte for text stored without a declared type
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		result = append(result, values)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", table, classify(err, ErrQuery))
	}
	return result, nil
}

// checkColumns fails unless table exists and has every one of columns.
// SQLite reads a double-quoted name matching no column as a string literal,
// so the projection alone would not catch a missing column.
func (c *SQLiteClient) checkColumns(ctx context.Context, table string, columns []string) error {
	rows, err := c.db.QueryContext(ctx, `SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		return fmt.Errorf("failed to describe %s: %w", table, classify(err, ErrQuery))
	}
	defer rows.Close()

	present := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("failed to describe %s: %w", table, classify(err, ErrQuery))
		}
		present[strings.ToLower(name)] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to describe %s: %w", table, classify(err, ErrQuery))
	}

	if len(present) == 0 {
		return fmt.Errorf("%w: no such table: %s", ErrQuery, table)
	}
	var missing []string
	for _, col := range columns {
		// column names are case-insensitive in SQLite
		if !present[strings.ToLower(col)] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: table %s has no column %s", ErrQuery, table, strings.Join(missing, ", "))
	}
	return nil
}

func quoteSQLite(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}
