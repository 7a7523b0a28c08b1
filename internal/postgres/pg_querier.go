// SPDX-License-Identifier: Apache-2.0

package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgconn"
)

type Querier interface {
	Query(ctx context.Context, query string, args ...any) (Rows, error)
	QueryRow(ctx context.Context, dest []any, query string, args ...any) error
	Exec(ctx context.Context, query string, args ...any) (CommandTag, error)
	ExecInTxWithOptions(ctx context.Context, fn func(Tx) error, opts TxOptions) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Rows is the subset of pgx.Rows used by the callers.
type Rows interface {
	Close()
	Err() error
	Next() bool
	Scan(dest ...any) error
}

type CommandTag struct {
	pgconn.CommandTag
}
