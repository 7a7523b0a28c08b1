// SPDX-License-Identifier: Apache-2.0

package backoff

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestProvider_RetryNotify(t *testing.T) {
	t.Parallel()

	errTest := errors.New("oh noes")

	tests := []struct {
		name       string
		cfg        *Config
		failures   int
		permanent  bool
		wantCalls  int
		wantErr    error
		wantNotify int
	}{
		{
			name:      "no config does not retry",
			cfg:       nil,
			failures:  1,
			wantCalls: 1,
			wantErr:   errTest,
		},
		{
			name:       "constant retries until success",
			cfg:        &Config{Constant: &ConstantConfig{Interval: time.Millisecond, MaxRetries: 5}},
			failures:   2,
			wantCalls:  3,
			wantNotify: 2,
		},
		{
			name:       "exponential gives up after max retries",
			cfg:        &Config{Exponential: &ExponentialConfig{InitialInterval: time.Millisecond, MaxInterval: time.Millisecond, MaxRetries: 2}},
			failures:   10,
			wantCalls:  3,
			wantErr:    errTest,
			wantNotify: 2,
		},
		{
			name:      "permanent error stops retries",
			cfg:       &Config{Constant: &ConstantConfig{Interval: time.Millisecond, MaxRetries: 5}},
			failures:  10,
			permanent: true,
			wantCalls: 1,
			wantErr:   ErrPermanent,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			calls, notified := 0, 0
			op := func() error {
				calls++
				if calls <= tc.failures {
					if tc.permanent {
						return fmt.Errorf("%w: %w", errTest, ErrPermanent)
					}
					return errTest
				}
				return nil
			}

			bo := NewProvider(tc.cfg)(t.Context())
			err := bo.RetryNotify(op, func(error, time.Duration) { notified++ })
			require.ErrorIs(t, err, tc.wantErr)
			require.Equal(t, tc.wantCalls, calls)
			require.Equal(t, tc.wantNotify, notified)
		})
	}
}
