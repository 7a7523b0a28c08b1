// SPDX-License-Identifier: Apache-2.0

package retrier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/datavapte/ecctransform/internal/backoff"
	backoffmocks "github.com/datavapte/ecctransform/internal/backoff/mocks"
	"github.com/datavapte/ecctransform/internal/postgres"
	pgmocks "github.com/datavapte/ecctransform/internal/postgres/mocks"
)

// retryN returns a backoff that retries the operation up to n times.
func retryN(n int) backoff.Provider {
	return func(ctx context.Context) backoff.Backoff {
		return &backoffmocks.Backoff{
			RetryNotifyFn: func(op backoff.Operation, notify backoff.Notify) error {
				var err error
				for i := 0; i < n; i++ {
					if err = op(); err == nil || errors.Is(err, backoff.ErrPermanent) {
						return err
					}
					notify(err, time.Millisecond)
				}
				return err
			},
		}
	}
}

func TestQuerier_QueryRow(t *testing.T) {
	t.Parallel()

	errTest := errors.New("oh noes")

	tests := []struct {
		name       string
		queryRowFn func(i uint) error

		wantErr        error
		wantCalls      uint
		wantConnBuilds int
	}{
		{
			name:           "ok",
			queryRowFn:     func(uint) error { return nil },
			wantCalls:      1,
			wantConnBuilds: 1,
		},
		{
			name: "ok - retried after transient error",
			queryRowFn: func(i uint) error {
				if i == 1 {
					return postgres.ErrConnTimeout
				}
				return nil
			},
			wantCalls:      2,
			wantConnBuilds: 2,
		},
		{
			name:           "error - permanent error not retried",
			queryRowFn:     func(uint) error { return postgres.ErrRelationDoesNotExist },
			wantErr:        postgres.ErrRelationDoesNotExist,
			wantCalls:      1,
			wantConnBuilds: 1,
		},
		{
			name:           "error - retries exhausted",
			queryRowFn:     func(uint) error { return errTest },
			wantErr:        errTest,
			wantCalls:      4,
			wantConnBuilds: 4,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var calls uint
			connBuilds := 0
			mockQuerier := &pgmocks.Querier{
				QueryRowFn: func(ctx context.Context, dest []any, query string, args ...any) error {
					calls++
					return tc.queryRowFn(calls)
				},
			}
			connBuilder := func(context.Context) (postgres.Querier, error) {
				connBuilds++
				return mockQuerier, nil
			}

			q, err := NewQuerier(t.Context(), nil, connBuilder, WithBackoffProvider(retryN(3)))
			require.NoError(t, err)

			err = q.QueryRow(t.Context(), []any{}, "SELECT 1")
			require.ErrorIs(t, err, tc.wantErr)
			require.Equal(t, tc.wantCalls, calls)
			require.Equal(t, tc.wantConnBuilds, connBuilds)
		})
	}
}

func TestNewQuerier_ConnBuilderRetried(t *testing.T) {
	t.Parallel()

	attempts := 0
	connBuilder := func(context.Context) (postgres.Querier, error) {
		attempts++
		if attempts < 3 {
			return nil, postgres.ErrConnection
		}
		return &pgmocks.Querier{}, nil
	}

	q, err := NewQuerier(t.Context(), nil, connBuilder, WithBackoffProvider(retryN(5)))
	require.NoError(t, err)
	require.NotNil(t, q)
	require.Equal(t, 3, attempts)
}
