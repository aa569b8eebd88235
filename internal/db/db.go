// Package db provides PostgreSQL-backed repository implementations for the
// bot's record store. All repositories accept a DBTX interface that is
// satisfied by both *pgxpool.Pool (for normal queries) and pgx.Tx (for
// transactional execution), enabling clean transaction support.
//
// The store holds three independent keyed collections (users, payments,
// subscriptions). There is no foreign-key enforcement between them;
// referential integrity is a soft invariant maintained by the lifecycle
// managers, not the store. Every mutation that participates in the
// reconciliation flow is expressed as a single conditional UPDATE so the
// read-modify-write is atomic per key.
package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the minimal interface shared by *pgxpool.Pool and pgx.Tx.
// Repositories accept this so the same code works inside or outside a
// transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}
