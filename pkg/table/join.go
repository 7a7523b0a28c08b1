// SPDX-License-Identifier: Apache-2.0

package table

import (
	"fmt"
	"strings"
)

// LeftJoin joins right into left on the given columns, which must exist in
// both tables. Every left row is kept, in order. A left row matching several
// right rows is repeated once per match, in right order. Right only columns
// are null for unmatched rows. Null keys never match.
func LeftJoin(left, right *Table, on []string) (*Table, error) {
	for _, c := range on {
		if !left.HasColumn(c) {
			return nil, fmt.Errorf("join column %s missing from %s: %w", c, left.Name, ErrColumnNotFound)
		}
		if !right.HasColumn(c) {
			return nil, fmt.Errorf("join column %s missing from %s: %w", c, right.Name, ErrColumnNotFound)
		}
	}

	isKey := make(map[string]bool, len(on))
	for _, c := range on {
		isKey[c] = true
	}
	rightOnly := []string{}
	for _, c := range right.columns {
		if isKey[c] {
			continue
		}
		if left.HasColumn(c) {
			return nil, fmt.Errorf("column %s present in both %s and %s: %w", c, left.Name, right.Name, ErrDuplicateColumn)
		}
		rightOnly = append(rightOnly, c)
	}

	index := make(map[string][]int, right.rows)
	for i := 0; i < right.rows; i++ {
		if key, ok := joinKey(right, on, i); ok {
			index[key] = append(index[key], i)
		}
	}

	// pairs of (left row, right row), right row -1 when unmatched
	type match struct{ l, r int }
	matches := make([]match, 0, left.rows)
	for i := 0; i < left.rows; i++ {
		key, ok := joinKey(left, on, i)
		if rows := index[key]; ok && len(rows) > 0 {
			for _, r := range rows {
				matches = append(matches, match{l: i, r: r})
			}
			continue
		}
		matches = append(matches, match{l: i, r: -1})
	}

	joined := New(left.Name)
	for _, c := range left.columns {
		src := left.data[c]
		values := make([]Value, len(matches))
		for i, m := range matches {
			values[i] = src[m.l]
		}
		if err := joined.AddColumn(c, values); err != nil {
			return nil, err
		}
	}
	for _, c := range rightOnly {
		src := right.data[c]
		values := make([]Value, len(matches))
		for i, m := range matches {
			if m.r >= 0 {
				values[i] = src[m.r]
			}
		}
		if err := joined.AddColumn(c, values); err != nil {
			return nil, err
		}
	}
	// a left table without columns still defines the row count
	joined.rows = len(matches)
	return joined, nil
}

func joinKey(t *Table, on []string, row int) (string, bool) {
	var b strings.Builder
	for i, c := range on {
		v := t.data[c][row]
		if v.IsNull() {
			return "", false
		}
		if i > 0 {
			b.WriteByte(0)
		}
		b.WriteString(v.S)
	}
	return b.String(), true
}
