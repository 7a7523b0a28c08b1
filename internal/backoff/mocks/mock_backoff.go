// SPDX-License-Identifier: Apache-2.0

package mocks

import (
	"sync/atomic"

	"github.com/datavapte/ecctransform/internal/backoff"
)

type Backoff struct {
	// RetryNotifyFn defaults to running the operation once.
	RetryNotifyFn func(backoff.Operation, backoff.Notify) error
	calls         atomic.Uint64
}

func (m *Backoff) RetryNotify(op backoff.Operation, not backoff.Notify) error {
	m.calls.Add(1)
	if m.RetryNotifyFn == nil {
		return op()
	}
	return m.RetryNotifyFn(op, not)
}

func (m *Backoff) GetRetryNotifyCalls() uint64 {
	return m.calls.Load()
}
