// SPDX-License-Identifier: Apache-2.0

package retrier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/datavapte/ecctransform/internal/backoff"
	"github.com/datavapte/ecctransform/internal/postgres"
	loglib "github.com/datavapte/ecctransform/pkg/log"
)

// Querier retries the operations of the wrapped querier on transient errors,
// rebuilding the connection between attempts.
type Querier struct {
	connBuilder     ConnBuilder
	querier         postgres.Querier
	backoffProvider backoff.Provider
	logger          loglib.Logger
}

type ConnBuilder func(context.Context) (postgres.Querier, error)

type Option func(*Querier)

func WithLogger(l loglib.Logger) Option {
	return func(q *Querier) {
		q.logger = loglib.WithModule(l, "postgres_querier_retrier")
	}
}

func WithBackoffProvider(p backoff.Provider) Option {
	return func(q *Querier) {
		q.backoffProvider = p
	}
}

func NewQuerier(ctx context.Context, cfg *backoff.Config, connBuilder ConnBuilder, opts ...Option) (*Querier, error) {
	q := &Querier{
		connBuilder:     connBuilder,
		backoffProvider: backoff.NewProvider(cfg),
		logger:          loglib.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(q)
	}

	if err := q.withRetry(ctx, func() error {
		conn, err := connBuilder(ctx)
		if err != nil {
			return err
		}
		q.querier = conn
		return nil
	}); err != nil {
		return nil, err
	}

	return q, nil
}

func (q *Querier) Query(ctx context.Context, query string, args ...any) (postgres.Rows, error) {
	var rows postgres.Rows
	op := func() error {
		var err error
		rows, err = q.querier.Query(ctx, query, args...)
		return err
	}

	if err := q.withRetry(ctx, op); err != nil {
		return nil, err
	}
	return rows, nil
}

func (q *Querier) QueryRow(ctx context.Context, dest []any, query string, args ...any) error {
	return q.withRetry(ctx, func() error {
		return q.querier.QueryRow(ctx, dest, query, args...)
	})
}

func (q *Querier) Exec(ctx context.Context, query string, args ...any) (postgres.CommandTag, error) {
	var cmdTag postgres.CommandTag
	op := func() error {
		var err error
		cmdTag, err = q.querier.Exec(ctx, query, args...)
		return err
	}

	if err := q.withRetry(ctx, op); err != nil {
		return postgres.CommandTag{}, err
	}
	return cmdTag, nil
}

func (q *Querier) ExecInTxWithOptions(ctx context.Context, fn func(tx postgres.Tx) error, txOpts postgres.TxOptions) error {
	return q.withRetry(ctx, func() error {
		return q.querier.ExecInTxWithOptions(ctx, fn, txOpts)
	})
}

func (q *Querier) Ping(ctx context.Context) error {
	return q.querier.Ping(ctx)
}

func (q *Querier) Close(ctx context.Context) error {
	if q.querier == nil {
		return nil
	}
	return q.querier.Close(ctx)
}

func (q *Querier) withRetry(ctx context.Context, operation func() error) error {
	err := operation()
	if err == nil || !isRetriableError(err) {
		return err
	}

	// only initialise the backoff if the first attempt fails
	bo := q.backoffProvider(ctx)
	err = bo.RetryNotify(func() error {
		if q.querier != nil {
			if connErr := q.resetConn(ctx); connErr != nil {
				return connErr
			}
		}

		err := operation()
		if err != nil && !isRetriableError(err) {
			return fmt.Errorf("%w: %w", err, backoff.ErrPermanent)
		}
		return err
	}, func(err error, d time.Duration) {
		q.logger.Warn(err, "retrying postgres operation after error", loglib.Fields{
			"retry_delay": d.String(),
		})
	})

	if err == nil {
		q.logger.Info("retried postgres operation succeeded")
	}
	return err
}

func (q *Querier) resetConn(ctx context.Context) error {
	conn, err := q.connBuilder(ctx)
	if err != nil {
		return fmt.Errorf("unable to reset connection: %w", err)
	}
	q.querier.Close(ctx)
	q.querier = conn
	return nil
}

func isRetriableError(err error) bool {
	switch {
	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, postgres.ErrNoRows),
		errors.Is(err, postgres.ErrPermissionDenied),
		errors.Is(err, postgres.ErrInvalidAuthorization),
		errors.Is(err, postgres.ErrConstraintViolation),
		errors.Is(err, postgres.ErrSyntaxError),
		errors.Is(err, postgres.ErrRelationDoesNotExist),
		errors.Is(err, postgres.ErrColumnDoesNotExist),
		errors.Is(err, postgres.ErrProgramLimitExceeded):
		return false
	}
	return true
}
