// SPDX-License-Identifier: Apache-2.0

// Package rfc defines the remote table read protocol used by the extractor: a
// field catalog lookup and delimited row reads with row offset and count.
package rfc

import (
	"context"
)

// Source opens read sessions against the remote system. Implementations must
// be safe for concurrent use, sessions are not.
type Source interface {
	Open(ctx context.Context) (Session, error)
}

type Session interface {
	// Fields returns the field catalog of the table.
	Fields(ctx context.Context, table string) ([]FieldInfo, error)
	// ReadRows returns up to RowCount rows starting at RowSkips. Each row is
	// the delimiter joined values of the requested fields, in request order.
	ReadRows(ctx context.Context, req *ReadRequest) ([]string, error)
	Close(ctx context.Context) error
}

type FieldInfo struct {
	Name     string
	Position int
	// Key is set for the fields of the table primary key.
	Key    bool
	Length int
}

type ReadRequest struct {
	Table  string
	Fields []string
	// OrderBy fields give a stable row order across reads of different field
	// chunks.
	OrderBy   []string
	RowSkips  int
	RowCount  int
	Delimiter string
}

// KeyFields returns the names of the key fields in the catalog, in position
// order.
func KeyFields(fields []FieldInfo) []string {
	keys := []string{}
	for _, f := range fields {
		if f.Key {
			keys = append(keys, f.Name)
		}
	}
	return keys
}
