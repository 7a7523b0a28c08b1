// SPDX-License-Identifier: Apache-2.0

package mocks

// Rows iterates over a fixed set of rows. Scan assigns the values of the
// current row to string, bool and integer pointers.
type Rows struct {
	Values  [][]any
	ErrFn   func() error
	current int
	closed  bool
}

func (m *Rows) Close() {
	m.closed = true
}

func (m *Rows) Err() error {
	if m.ErrFn == nil {
		return nil
	}
	return m.ErrFn()
}

func (m *Rows) Next() bool {
	if m.current >= len(m.Values) {
		return false
	}
	m.current++
	return true
}

func (m *Rows) Scan(dest ...any) error {
	row := m.Values[m.current-1]
	for i, d := range dest {
		switch v := d.(type) {
		case *string:
			*v, _ = row[i].(string)
		case **string:
			if s, ok := row[i].(string); ok {
				*v = &s
			} else {
				*v = nil
			}
		case *bool:
			*v, _ = row[i].(bool)
		case *int:
			*v, _ = row[i].(int)
		case *int64:
			*v, _ = row[i].(int64)
		}
	}
	return nil
}

func (m *Rows) IsClosed() bool {
	return m.closed
}
