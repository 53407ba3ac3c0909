// Package db is the hand-written equivalent of this codebase's generated
// sqlc layer: a DBTX-backed Queries struct plus one Querier interface per
// aggregate, so service code can depend on the interface and the caller
// decides whether it runs against the pool or an open transaction.
package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx, letting Queries run
// either directly against the pool or inside a caller-managed transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// Queries implements Querier against a DBTX.
type Queries struct {
	db DBTX
}

// New builds a Queries bound to pool or an open transaction.
func New(dbtx DBTX) *Queries {
	return &Queries{db: dbtx}
}
