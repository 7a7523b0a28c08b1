// SPDX-License-Identifier: Apache-2.0

package mocks

import (
	"context"
	"sync/atomic"

	"github.com/datavapte/ecctransform/pkg/rfc"
)

type Source struct {
	OpenFn    func(ctx context.Context) (rfc.Session, error)
	openCalls atomic.Int64
}

func (m *Source) Open(ctx context.Context) (rfc.Session, error) {
	m.openCalls.Add(1)
	return m.OpenFn(ctx)
}

func (m *Source) GetOpenCalls() int64 {
	return m.openCalls.Load()
}

type Session struct {
	FieldsFn       func(ctx context.Context, table string) ([]rfc.FieldInfo, error)
	ReadRowsFn     func(ctx context.Context, i uint, req *rfc.ReadRequest) ([]string, error)
	CloseFn        func(ctx context.Context) error
	readRowsCalls  uint
	closeCallCount atomic.Int64
}

func (m *Session) Fields(ctx context.Context, table string) ([]rfc.FieldInfo, error) {
	return m.FieldsFn(ctx, table)
}

func (m *Session) ReadRows(ctx context.Context, req *rfc.ReadRequest) ([]string, error) {
	m.readRowsCalls++
	return m.ReadRowsFn(ctx, m.readRowsCalls, req)
}

func (m *Session) Close(ctx context.Context) error {
	m.closeCallCount.Add(1)
	if m.CloseFn == nil {
		return nil
	}
	return m.CloseFn(ctx)
}

func (m *Session) GetReadRowsCalls() uint {
	return m.readRowsCalls
}

func (m *Session) GetCloseCalls() int64 {
	return m.closeCallCount.Load()
}
