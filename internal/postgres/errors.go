// SPDX-License-Identifier: Apache-2.0

package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrConnTimeout          = errors.New("connection timeout")
	ErrNoRows               = errors.New("no rows")
	ErrConnection           = errors.New("connection exception")
	ErrInvalidAuthorization = errors.New("invalid authorization")
	ErrPermissionDenied     = errors.New("permission denied")
	ErrRelationDoesNotExist = errors.New("relation does not exist")
	ErrColumnDoesNotExist   = errors.New("column does not exist")
	ErrSyntaxError          = errors.New("syntax error")
	ErrConstraintViolation  = errors.New("constraint violation")
	ErrProgramLimitExceeded = errors.New("program limit exceeded")
	ErrInsufficientResource = errors.New("insufficient resources")
	ErrOperatorIntervention = errors.New("operator intervention")
)

// MapError classifies postgres errors into the package sentinel errors. The
// original *pgconn.PgError is kept in the chain so callers can still inspect
// the SQLSTATE.
func MapError(err error) error {
	if err == nil {
		return nil
	}

	if pgconn.Timeout(err) {
		return fmt.Errorf("%w: %w", ErrConnTimeout, err)
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNoRows
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		var connectErr *pgconn.ConnectError
		if errors.As(err, &connectErr) {
			return fmt.Errorf("%w: %w", ErrConnection, err)
		}
		return err
	}

	var sentinel error
	switch {
	case pgErr.Code == pgerrcode.UndefinedTable:
		sentinel = ErrRelationDoesNotExist
	case pgErr.Code == pgerrcode.UndefinedColumn:
		sentinel = ErrColumnDoesNotExist
	case pgErr.Code == pgerrcode.InsufficientPrivilege:
		sentinel = ErrPermissionDenied
	case pgErr.Code == pgerrcode.SyntaxError:
		sentinel = ErrSyntaxError
	case pgerrcode.IsConnectionException(pgErr.Code):
		sentinel = ErrConnection
	case pgerrcode.IsInvalidAuthorizationSpecification(pgErr.Code):
		sentinel = ErrInvalidAuthorization
	case pgerrcode.IsIntegrityConstraintViolation(pgErr.Code):
		sentinel = ErrConstraintViolation
	case pgerrcode.IsProgramLimitExceeded(pgErr.Code):
		sentinel = ErrProgramLimitExceeded
	case pgerrcode.IsInsufficientResources(pgErr.Code):
		sentinel = ErrInsufficientResource
	case pgerrcode.IsOperatorIntervention(pgErr.Code):
		sentinel = ErrOperatorIntervention
	default:
		return err
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}
