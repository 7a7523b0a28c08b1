// SPDX-License-Identifier: Apache-2.0

package mocks

import "sync/atomic"

type Bar struct {
	AddFn      func(int) error
	DescribeFn func(string)
	CloseFn    func() error
	added      atomic.Int64
	closed     atomic.Bool
}

func (b *Bar) Add(n int) error {
	b.added.Add(int64(n))
	if b.AddFn != nil {
		return b.AddFn(n)
	}
	return nil
}

func (b *Bar) Describe(d string) {
	if b.DescribeFn != nil {
		b.DescribeFn(d)
	}
}

func (b *Bar) Close() error {
	b.closed.Store(true)
	if b.CloseFn != nil {
		return b.CloseFn()
	}
	return nil
}

func (b *Bar) GetAdded() int64 {
	return b.added.Load()
}

func (b *Bar) IsClosed() bool {
	return b.closed.Load()
}
