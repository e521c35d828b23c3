package db

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5"
)

//go:embed sql/target_schema.sql
var targetSchemaDDL string

// PostgresClient manages the connection to the target PostgreSQL database
type PostgresClient struct {
	conn *pgx.Conn
}

// NewPostgresClient connects to PostgreSQL using cfg
func NewPostgresClient(ctx context.Context, cfg *pgx.ConnConfig) (*PostgresClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: connection config is required", ErrConnection)
	}

	conn, err := pgx.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", withKind(ErrConnection, err))
	}

	// Test the connection
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("failed to ping database: %w", withKind(ErrConnection, err))
	}

	return &PostgresClient{conn: conn}, nil
}

// Close closes the database connection
func (c *PostgresClient) Close(ctx context.Context) error {
	return c.conn.Close(ctx)
}

// GetConnection returns the underlying connection
func (c *PostgresClient) GetConnection() *pgx.Conn {
	return c.conn
}

// Begin starts a transaction and returns a writer bound to it.
func (c *PostgresClient) Begin(ctx context.Context) (TableWriter, error) {
	tx, err := c.conn.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", classify(err, ErrConnection))
	}
	return &txWriter{tx: tx}, nil
}

// ApplyTargetSchema creates the target tables and the total_points trigger
// when they do not exist yet. Safe to run repeatedly.
func (c *PostgresClient) ApplyTargetSchema(ctx context.Context) error {
	// Simple protocol allows the multi-statement script in one round trip
	if _, err := c.conn.Exec(ctx, targetSchemaDDL, pgx.QueryExecModeSimpleProtocol); err != nil {
		return fmt.Errorf("failed to apply target schema: %w", classify(err, ErrQuery))
	}
	return nil
}
