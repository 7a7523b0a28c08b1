// SPDX-License-Identifier: Apache-2.0

package extract

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/datavapte/ecctransform/internal/progress"
	progressmocks "github.com/datavapte/ecctransform/internal/progress/mocks"
	"github.com/datavapte/ecctransform/pkg/rfc"
	"github.com/datavapte/ecctransform/pkg/rfc/fixture"
	"github.com/datavapte/ecctransform/pkg/rfc/mocks"
	"github.com/datavapte/ecctransform/pkg/table"
)

type mockTableExtractor struct {
	extractTableFn func(ctx context.Context, session rfc.Session, tableName string, fields []string) (*Extraction, error)
	calls          atomic.Int64
}

func (m *mockTableExtractor) ExtractTable(ctx context.Context, session rfc.Session, tableName string, fields []string) (*Extraction, error) {
	m.calls.Add(1)
	return m.extractTableFn(ctx, session, tableName, fields)
}

func testExtraction(name string) *Extraction {
	tbl := table.New(name)
	_ = tbl.AddColumn("ID", table.Strings("1"))
	return &Extraction{Table: tbl}
}

func TestCoordinator_ExtractAll(t *testing.T) {
	t.Parallel()

	source, err := fixture.NewSource(map[string]*fixture.Table{
		"A": {
			Fields: []fixture.Field{{Name: "ID", Key: true}, {Name: "NAME"}},
			Rows:   [][]*string{{ptr("1"), ptr("foo")}, {ptr("2"), ptr("bar")}},
		},
		"B": {
			Fields: []fixture.Field{{Name: "ID", Key: true}},
			Rows:   [][]*string{{ptr("7")}},
		},
	})
	require.NoError(t, err)

	bar := &progressmocks.Bar{}
	c := NewCoordinator(&Config{}, source, func(c *Coordinator) {
		c.progressTracking = true
		c.progressBarBuilder = func(total int, description string) progress.Bar {
			require.Equal(t, 2, total)
			return bar
		}
	})

	results, err := c.ExtractAll(context.Background(), []Task{
		{Table: "A", Fields: []string{"ID", "NAME"}},
		{Table: "B", Fields: []string{"ID"}},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, 2, results["A"].Table.NumRows())
	require.Equal(t, []string{"ID", "NAME"}, results["A"].Table.Columns())
	require.Equal(t, 1, results["B"].Table.NumRows())

	require.Equal(t, int64(2), bar.GetAdded())
	require.True(t, bar.IsClosed())
}

func TestCoordinator_ExtractAll_FailFast(t *testing.T) {
	t.Parallel()

	errTest := errors.New("oh noes")

	t.Run("first failure is returned and sessions are closed", func(t *testing.T) {
		t.Parallel()

		sessions := sync.Map{}
		source := &mocks.Source{
			OpenFn: func(ctx context.Context) (rfc.Session, error) {
				s := &mocks.Session{}
				sessions.Store(s, struct{}{})
				return s, nil
			},
		}
		extractor := &mockTableExtractor{
			extractTableFn: func(ctx context.Context, session rfc.Session, tableName string, fields []string) (*Extraction, error) {
				if tableName == "B" {
					return nil, errTest
				}
				return testExtraction(tableName), nil
			},
		}

		c := NewCoordinator(&Config{Workers: 1}, source, WithTableExtractor(extractor))
		results, err := c.ExtractAll(context.Background(), []Task{
			{Table: "A", Fields: []string{"ID"}},
			{Table: "B", Fields: []string{"ID"}},
			{Table: "C", Fields: []string{"ID"}},
		})
		require.ErrorIs(t, err, errTest)
		require.Nil(t, results)

		var tableErr *TableError
		require.ErrorAs(t, err, &tableErr)
		require.Equal(t, "B", tableErr.Table)

		// with a single worker C is never started
		require.Equal(t, int64(2), extractor.calls.Load())
		require.Equal(t, int64(2), source.GetOpenCalls())
		sessions.Range(func(key, _ any) bool {
			require.Equal(t, int64(1), key.(*mocks.Session).GetCloseCalls())
			return true
		})
	})

	t.Run("tasks in flight finish and their results are discarded", func(t *testing.T) {
		t.Parallel()

		started := make(chan struct{})
		failed := make(chan struct{})
		var slowErr atomic.Value
		var slowDone atomic.Bool

		sessions := sync.Map{}
		source := &mocks.Source{
			OpenFn: func(ctx context.Context) (rfc.Session, error) {
				s := &mocks.Session{}
				sessions.Store(s, struct{}{})
				return s, nil
			},
		}
		extractor := &mockTableExtractor{
			extractTableFn: func(ctx context.Context, session rfc.Session, tableName string, fields []string) (*Extraction, error) {
				switch tableName {
				case "slow":
					close(started)
					<-failed
					// give the coordinator time to observe the failure
					time.Sleep(50 * time.Millisecond)
					slowErr.Store(fmt.Sprint(ctx.Err()))
					slowDone.Store(true)
					return testExtraction(tableName), nil
				default:
					<-started
					defer close(failed)
					return nil, errTest
				}
			},
		}

		c := NewCoordinator(&Config{Workers: 2}, source, WithTableExtractor(extractor))
		results, err := c.ExtractAll(context.Background(), []Task{
			{Table: "slow", Fields: []string{"ID"}},
			{Table: "failing", Fields: []string{"ID"}},
			{Table: "never", Fields: []string{"ID"}},
		})
		require.ErrorIs(t, err, errTest)
		require.Nil(t, results)

		var tableErr *TableError
		require.ErrorAs(t, err, &tableErr)
		require.Equal(t, "failing", tableErr.Table)

		// the slow task ran to completion without cancellation
		require.True(t, slowDone.Load())
		require.Equal(t, "<nil>", slowErr.Load())
		require.Equal(t, int64(2), extractor.calls.Load())
		sessions.Range(func(key, _ any) bool {
			require.Equal(t, int64(1), key.(*mocks.Session).GetCloseCalls())
			return true
		})
	})

	t.Run("error - open session", func(t *testing.T) {
		t.Parallel()

		source := &mocks.Source{
			OpenFn: func(ctx context.Context) (rfc.Session, error) {
				return nil, &rfc.ProtocolError{Category: rfc.ErrLogon, Details: "bad credentials"}
			},
		}
		extractor := &mockTableExtractor{
			extractTableFn: func(ctx context.Context, session rfc.Session, tableName string, fields []string) (*Extraction, error) {
				return nil, errors.New("extractTableFn: should not be called")
			},
		}

		c := NewCoordinator(&Config{}, source, WithTableExtractor(extractor))
		_, err := c.ExtractAll(context.Background(), []Task{{Table: "A", Fields: []string{"ID"}}})
		require.ErrorIs(t, err, rfc.ErrLogon)
		require.Equal(t, int64(0), extractor.calls.Load())
	})

	t.Run("error - parent context canceled", func(t *testing.T) {
		t.Parallel()

		source := &mocks.Source{
			OpenFn: func(ctx context.Context) (rfc.Session, error) {
				return &mocks.Session{}, nil
			},
		}
		extractor := &mockTableExtractor{
			extractTableFn: func(ctx context.Context, session rfc.Session, tableName string, fields []string) (*Extraction, error) {
				return testExtraction(tableName), nil
			},
		}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		c := NewCoordinator(&Config{}, source, WithTableExtractor(extractor))
		_, err := c.ExtractAll(ctx, []Task{{Table: "A", Fields: []string{"ID"}}})
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestCoordinator_ExtractAll_WorkerLimit(t *testing.T) {
	t.Parallel()

	var running, peak atomic.Int64
	source := &mocks.Source{
		OpenFn: func(ctx context.Context) (rfc.Session, error) {
			return &mocks.Session{}, nil
		},
	}
	extractor := &mockTableExtractor{
		extractTableFn: func(ctx context.Context, session rfc.Session, tableName string, fields []string) (*Extraction, error) {
			n := running.Add(1)
			defer running.Add(-1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			return testExtraction(tableName), nil
		},
	}

	tasks := []Task{}
	for _, name := range []string{"A", "B", "C", "D", "E", "F", "G"} {
		tasks = append(tasks, Task{Table: name, Fields: []string{"ID"}})
	}

	c := NewCoordinator(&Config{}, source, WithTableExtractor(extractor))
	results, err := c.ExtractAll(context.Background(), tasks)
	require.NoError(t, err)
	require.Len(t, results, len(tasks))
	require.LessOrEqual(t, peak.Load(), int64(defaultWorkers))
}
