package db

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

// Error kinds shared by both stores. Driver errors are wrapped so that
// errors.Is matches the kind as well as the original driver error.
var (
	// ErrConnection means a store is unreachable or rejected the credentials.
	ErrConnection = errors.New("connection error")
	// ErrQuery means a query was malformed or does not match the schema.
	ErrQuery = errors.New("query error")
	// ErrIntegrity means a write violated a constraint other than the
	// primary key conflicts that insert-or-skip absorbs.
	ErrIntegrity = errors.New("integrity error")
)

// Kind returns the error kind wrapped in err, or nil when err is unclassified.
func Kind(err error) error {
	for _, kind := range []error{ErrConnection, ErrQuery, ErrIntegrity} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// classify wraps err with its error kind. Errors the drivers do not
// describe precisely fall back to the given kind.
func classify(err error, fallback error) error {
	if err == nil || Kind(err) != nil {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", kindOf(err, fallback), err)
}

// withKind wraps err with kind regardless of what the driver reports.
func withKind(kind error, err error) error {
	if err == nil || errors.Is(err, kind) {
		return err
	}
	return fmt.Errorf("%w: %w", kind, err)
}

func kindOf(err error, fallback error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgKind(pgErr.Code, fallback)
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return ErrConnection
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrCantOpen, sqlite3.ErrAuth, sqlite3.ErrNotADB, sqlite3.ErrPerm:
			return ErrConnection
		case sqlite3.ErrConstraint:
			return ErrIntegrity
		default:
			return ErrQuery
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) || pgconn.Timeout(err) {
		return ErrConnection
	}

	return fallback
}

// pgKind maps a SQLSTATE code to an error kind by its class.
func pgKind(code string, fallback error) error {
	switch {
	case strings.HasPrefix(code, "08"), strings.HasPrefix(code, "28"), strings.HasPrefix(code, "3D"):
		return ErrConnection
	case strings.HasPrefix(code, "23"):
		return ErrIntegrity
	case strings.HasPrefix(code, "42"), strings.HasPrefix(code, "22"):
		return ErrQuery
	default:
		return fallback
	}
}
