// Package store holds the PostgreSQL-backed record stores the personalization
// engine reads its history from, plus a Redis read-through cache for product
// hydration.
package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is returned when a single record lookup matches nothing.
var ErrNotFound = errors.New("store: record not found")

// Querier is the subset of pgxpool.Pool the stores use. pgxmock pools
// satisfy it in tests.
type Querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}
