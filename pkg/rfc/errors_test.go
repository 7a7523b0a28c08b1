// SPDX-License-Identifier: Apache-2.0

package rfc

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "application", err: &ProtocolError{Category: ErrApplication, Details: "DATA_BUFFER_EXCEEDED"}, want: true},
		{name: "wrapped runtime", err: fmt.Errorf("reading rows: %w", ErrRuntime), want: true},
		{name: "communication", err: ErrCommunication, want: true},
		{name: "logon", err: ErrLogon, want: true},
		{name: "unknown field", err: &UnknownFieldError{Table: "MARA", Fields: []string{"X"}}, want: false},
		{name: "unknown table", err: ErrUnknownTable, want: false},
		{name: "context canceled", err: context.Canceled, want: false},
		{name: "other", err: errors.New("oh noes"), want: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, IsRetryable(tc.err))
		})
	}
}

func TestUnknownFieldError(t *testing.T) {
	t.Parallel()

	err := &UnknownFieldError{Table: "MARA", Fields: []string{"FOO", "BAR"}}
	require.Equal(t, "fields not found in table MARA: FOO,BAR", err.Error())
}

func TestKeyFields(t *testing.T) {
	t.Parallel()

	fields := []FieldInfo{
		{Name: "MANDT", Position: 1, Key: true},
		{Name: "MATNR", Position: 2, Key: true},
		{Name: "MTART", Position: 3},
	}
	require.Equal(t, []string{"MANDT", "MATNR"}, KeyFields(fields))
	require.Empty(t, KeyFields(nil))
}
