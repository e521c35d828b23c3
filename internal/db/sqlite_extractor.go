package db

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/tordrt/footstats/internal/schema"
)

// SQLiteExtractor discovers the tables of a SQLite database
type SQLiteExtractor struct {
	client *SQLiteClient
}

// NewSQLiteExtractor creates a new SQLite schema extractor
func NewSQLiteExtractor(client *SQLiteClient) *SQLiteExtractor {
	return &SQLiteExtractor{
		client: client,
	}
}

// ExtractSchema extracts the specified tables.
// If tables is empty, extracts all tables in the database
func (e *SQLiteExtractor) ExtractSchema(ctx context.Context, tables []string) (*schema.Schema, error) {
	tableNames, err := e.getTableNames(ctx, tables)
	if err != nil {
		return nil, fmt.Errorf("failed to get table names: %w", classify(err, ErrQuery))
	}

	extracted := make([]schema.Table, 0, len(tableNames))
	for _, tableName := range tableNames {
		table, err := e.extractTable(ctx, tableName)
		if err != nil {
			return nil, fmt.Errorf("failed to extract table %s: %w", tableName, classify(err, ErrQuery))
		}
		extracted = append(extracted, *table)
	}

	return &schema.Schema{Tables: extracted}, nil
}

func (e *SQLiteExtractor) getTableNames(ctx context.Context, requestedTables []string) ([]string, error) {
	if len(requestedTables) > 0 {
		return requestedTables, nil
	}

	query := `
		SELECT name
		FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tableList []string
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			return nil, err
		}
		tableList = append(tableList, tableName)
	}

	return tableList, rows.Err()
}

func (e *SQLiteExtractor) extractTable(ctx context.Context, tableName string) (*schema.Table, error) {
	table := &schema.Table{Name: tableName}

	if err := e.extractColumns(ctx, table); err != nil {
		return nil, fmt.Errorf("failed to extract columns: %w", err)
	}
	if len(table.Columns) == 0 {
		return nil, fmt.Errorf("%w: no such table: %s", ErrQuery, tableName)
	}

	relations, err := e.extractRelations(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to extract relations: %w", err)
	}
	table.Relations = relations

	return table, nil
}

// extractColumns fills in the columns and primary key of table
func (e *SQLiteExtractor) extractColumns(ctx context.Context, table *schema.Table) error {
	query := `SELECT name, type, "notnull", dflt_value, pk FROM pragma_table_info(?) ORDER BY cid`

	rows, err := e.client.GetDB().QueryContext(ctx, query, table.Name)
	if err != nil {
		return err
	}
	defer rows.Close()

	type pkColumn struct {
		name  string
		order int
	}
	var pkColumns []pkColumn

	for rows.Next() {
		var col schema.Column
		var notNull, pkOrder int
		var defaultValue sql.NullString

		if err := rows.Scan(&col.Name, &col.Type, &notNull, &defaultValue, &pkOrder); err != nil {
			return err
		}

		col.Nullable = notNull == 0
		if defaultValue.Valid {
			col.DefaultValue = &defaultValue.String
		}
		if pkOrder > 0 {
			pkColumns = append(pkColumns, pkColumn{name: col.Name, order: pkOrder})
		}
		table.Columns = append(table.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	// pk holds the 1-based position within the key, not the column position
	sort.Slice(pkColumns, func(i, j int) bool { return pkColumns[i].order < pkColumns[j].order })
	for _, pk := range pkColumns {
		table.PrimaryKey = append(table.PrimaryKey, pk.name)
	}
	return nil
}

func (e *SQLiteExtractor) extractRelations(ctx context.Context, tableName string) ([]schema.Relation, error) {
	query := `SELECT "table", "from", COALESCE("to", '') FROM pragma_foreign_key_list(?) ORDER BY id, seq`

	rows, err := e.client.GetDB().QueryContext(ctx, query, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var relations []schema.Relation
	for rows.Next() {
		rel := schema.Relation{Cardinality: "N:1"}
		if err := rows.Scan(&rel.TargetTable, &rel.SourceColumn, &rel.TargetColumn); err != nil {
			return nil, err
		}
		relations = append(relations, rel)
	}

	return relations, rows.Err()
}
