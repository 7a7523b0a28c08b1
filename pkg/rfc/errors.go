// SPDX-License-Identifier: Apache-2.0

package rfc

import (
	"errors"
	"fmt"
	"strings"
)

// Error categories reported by the remote side. All of them can be caused by
// a read payload that is too large, so they are retried with a narrower field
// chunk.
var (
	ErrApplication   = errors.New("remote application error")
	ErrRuntime       = errors.New("remote runtime error")
	ErrCommunication = errors.New("remote communication error")
	ErrLogon         = errors.New("remote logon error")
)

var ErrUnknownTable = errors.New("unknown table")

// UnknownFieldError is returned when requested fields are not part of the
// table field catalog.
type UnknownFieldError struct {
	Table  string
	Fields []string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("fields not found in table %s: %s", e.Table, strings.Join(e.Fields, ","))
}

// IsRetryable returns true if the error belongs to one of the remote protocol
// error categories.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrApplication) ||
		errors.Is(err, ErrRuntime) ||
		errors.Is(err, ErrCommunication) ||
		errors.Is(err, ErrLogon)
}

// ProtocolError wraps a remote error with its category.
type ProtocolError struct {
	Category error
	Details  string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%v: %s", e.Category, e.Details)
}

func (e *ProtocolError) Unwrap() error {
	return e.Category
}
