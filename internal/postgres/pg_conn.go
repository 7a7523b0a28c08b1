// SPDX-License-Identifier: Apache-2.0

package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Conn is a single postgres connection. It is not safe for concurrent use.
type Conn struct {
	conn *pgx.Conn
}

func NewConn(ctx context.Context, url string) (*Conn, error) {
	pgCfg, err := ParseConfig(url)
	if err != nil {
		return nil, err
	}

	conn, err := pgx.ConnectConfig(ctx, pgCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", MapError(err))
	}

	return &Conn{conn: conn}, nil
}

func (c *Conn) QueryRow(ctx context.Context, dest []any, query string, args ...any) error {
	row := c.conn.QueryRow(ctx, query, args...)
	return MapError(row.Scan(dest...))
}

func (c *Conn) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	rows, err := c.conn.Query(ctx, query, args...)
	return rows, MapError(err)
}

func (c *Conn) Exec(ctx context.Context, query string, args ...any) (CommandTag, error) {
	tag, err := c.conn.Exec(ctx, query, args...)
	return CommandTag{tag}, MapError(err)
}

// Begin starts a transaction that outlives the call. The caller is
// responsible for committing or rolling it back.
func (c *Conn) Begin(ctx context.Context, opts TxOptions) (*Txn, error) {
	tx, err := c.conn.BeginTx(ctx, toTxOptions(opts))
	if err != nil {
		return nil, MapError(err)
	}
	return &Txn{Tx: tx}, nil
}

func (c *Conn) ExecInTxWithOptions(ctx context.Context, fn func(Tx) error, opts TxOptions) error {
	tx, err := c.conn.BeginTx(ctx, toTxOptions(opts))
	if err != nil {
		return MapError(err)
	}
	return execInTx(ctx, tx, fn)
}

func (c *Conn) Ping(ctx context.Context) error {
	return MapError(c.conn.Ping(ctx))
}

func (c *Conn) Close(ctx context.Context) error {
	return MapError(c.conn.Close(ctx))
}
