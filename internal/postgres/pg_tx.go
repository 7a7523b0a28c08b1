// SPDX-License-Identifier: Apache-2.0

package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
)

type Tx interface {
	Query(ctx context.Context, query string, args ...any) (Rows, error)
	QueryRow(ctx context.Context, dest []any, query string, args ...any) error
	Exec(ctx context.Context, query string, args ...any) (CommandTag, error)
}

type TxIsolationLevel string

const (
	Serializable    TxIsolationLevel = "serializable"
	RepeatableRead  TxIsolationLevel = "repeatable read"
	ReadCommitted   TxIsolationLevel = "read committed"
	ReadUncommitted TxIsolationLevel = "read uncommitted"
)

type TxAccessMode string

const (
	ReadWrite TxAccessMode = "read write"
	ReadOnly  TxAccessMode = "read only"
)

type TxOptions struct {
	IsolationLevel TxIsolationLevel
	AccessMode     TxAccessMode
}

// Txn wraps a pgx transaction, mapping the errors it returns.
type Txn struct {
	pgx.Tx
}

func (t *Txn) QueryRow(ctx context.Context, dest []any, query string, args ...any) error {
	row := t.Tx.QueryRow(ctx, query, args...)
	return MapError(row.Scan(dest...))
}

func (t *Txn) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	rows, err := t.Tx.Query(ctx, query, args...)
	return rows, MapError(err)
}

func (t *Txn) Exec(ctx context.Context, query string, args ...any) (CommandTag, error) {
	tag, err := t.Tx.Exec(ctx, query, args...)
	return CommandTag{tag}, MapError(err)
}

func (t *Txn) Commit(ctx context.Context) error {
	return MapError(t.Tx.Commit(ctx))
}

func (t *Txn) Rollback(ctx context.Context) error {
	return MapError(t.Tx.Rollback(ctx))
}

func toTxOptions(opts TxOptions) pgx.TxOptions {
	return pgx.TxOptions{
		IsoLevel:   pgx.TxIsoLevel(opts.IsolationLevel),
		AccessMode: pgx.TxAccessMode(opts.AccessMode),
	}
}

func execInTx(ctx context.Context, tx pgx.Tx, fn func(Tx) error) error {
	if err := fn(&Txn{Tx: tx}); err != nil {
		tx.Rollback(ctx)
		return MapError(err)
	}
	return MapError(tx.Commit(ctx))
}

// Savepoint starts a nested transaction. Rolling it back only discards the
// statements run since the savepoint, leaving the outer transaction usable.
func (t *Txn) Savepoint(ctx context.Context) (*Txn, error) {
	tx, err := t.Tx.Begin(ctx)
	if err != nil {
		return nil, MapError(err)
	}
	return &Txn{Tx: tx}, nil
}
