// SPDX-License-Identifier: Apache-2.0

package mocks

import (
	"context"

	"github.com/datavapte/ecctransform/internal/postgres"
)

type Querier struct {
	QueryRowFn            func(ctx context.Context, dest []any, query string, args ...any) error
	QueryFn               func(ctx context.Context, query string, args ...any) (postgres.Rows, error)
	ExecFn                func(ctx context.Context, query string, args ...any) (postgres.CommandTag, error)
	ExecInTxWithOptionsFn func(ctx context.Context, fn func(tx postgres.Tx) error, opts postgres.TxOptions) error
	PingFn                func(context.Context) error
	CloseFn               func(context.Context) error
}

func (m *Querier) QueryRow(ctx context.Context, dest []any, query string, args ...any) error {
	return m.QueryRowFn(ctx, dest, query, args...)
}

func (m *Querier) Query(ctx context.Context, query string, args ...any) (postgres.Rows, error) {
	return m.QueryFn(ctx, query, args...)
}

func (m *Querier) Exec(ctx context.Context, query string, args ...any) (postgres.CommandTag, error) {
	return m.ExecFn(ctx, query, args...)
}

func (m *Querier) ExecInTxWithOptions(ctx context.Context, fn func(tx postgres.Tx) error, opts postgres.TxOptions) error {
	return m.ExecInTxWithOptionsFn(ctx, fn, opts)
}

func (m *Querier) Ping(ctx context.Context) error {
	if m.PingFn != nil {
		return m.PingFn(ctx)
	}
	return nil
}

func (m *Querier) Close(ctx context.Context) error {
	if m.CloseFn != nil {
		return m.CloseFn(ctx)
	}
	return nil
}
