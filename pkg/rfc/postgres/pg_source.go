// SPDX-License-Identifier: Apache-2.0

// Package postgres implements the remote read protocol over a postgres
// database holding a replica of the ERP tables.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/datavapte/ecctransform/internal/backoff"
	pglib "github.com/datavapte/ecctransform/internal/postgres"
	loglib "github.com/datavapte/ecctransform/pkg/log"
	"github.com/datavapte/ecctransform/pkg/rfc"
)

type Config struct {
	URL string
	// Schema used for unqualified table names. Defaults to public.
	Schema string
	// ConnectBackoff configures the retries when opening a session.
	ConnectBackoff *backoff.Config
}

// Source opens one connection per session. Every session reads inside a read
// only repeatable read transaction, so all the field chunks of a table are
// read from the same snapshot.
type Source struct {
	url             string
	schema          string
	backoffProvider backoff.Provider
	logger          loglib.Logger
}

type Option func(*Source)

func WithLogger(l loglib.Logger) Option {
	return func(s *Source) {
		s.logger = loglib.WithModule(l, "rfc_postgres_source")
	}
}

func NewSource(cfg *Config, opts ...Option) *Source {
	s := &Source{
		url:             cfg.URL,
		schema:          cfg.Schema,
		backoffProvider: backoff.NewProvider(cfg.ConnectBackoff),
		logger:          loglib.NewNoopLogger(),
	}
	if s.schema == "" {
		s.schema = pglib.DefaultSchema
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Source) Open(ctx context.Context) (rfc.Session, error) {
	sess := &session{source: s}
	err := s.backoffProvider(ctx).RetryNotify(func() error {
		err := sess.connect(ctx)
		if err != nil && !errors.Is(err, rfc.ErrCommunication) {
			return fmt.Errorf("%w: %w", err, backoff.ErrPermanent)
		}
		return err
	}, func(err error, d time.Duration) {
		s.logger.Warn(err, "retrying remote session open", loglib.Fields{"retry_delay": d.String()})
	})
	if err != nil {
		return nil, fmt.Errorf("opening session: %w", err)
	}
	return sess, nil
}

type session struct {
	source *Source
	conn   *pglib.Conn
	tx     *pglib.Txn
}

func (s *session) connect(ctx context.Context) error {
	conn, err := pglib.NewConn(ctx, s.source.url)
	if err != nil {
		return mapError(err)
	}
	tx, err := conn.Begin(ctx, pglib.TxOptions{
		IsolationLevel: pglib.RepeatableRead,
		AccessMode:     pglib.ReadOnly,
	})
	if err != nil {
		conn.Close(ctx)
		return mapError(err)
	}
	s.conn = conn
	s.tx = tx
	return nil
}

const fieldsQuery = `SELECT c.column_name, c.ordinal_position, COALESCE(c.character_maximum_length, 0),
	EXISTS (
		SELECT 1 FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage k
			ON k.constraint_schema = tc.constraint_schema AND k.constraint_name = tc.constraint_name
		WHERE tc.constraint_type = 'PRIMARY KEY'
			AND tc.table_schema = c.table_schema AND tc.table_name = c.table_name
			AND k.column_name = c.column_name
	)
	FROM information_schema.columns c
	WHERE c.table_schema = $1 AND c.table_name = $2
	ORDER BY c.ordinal_position`

func (s *session) Fields(ctx context.Context, table string) ([]rfc.FieldInfo, error) {
	qn, err := pglib.NewQualifiedName(table)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", err, rfc.ErrUnknownTable)
	}
	schema := s.source.schema
	if strings.Contains(table, ".") {
		schema = qn.Schema()
	}

	fields := []rfc.FieldInfo{}
	err = s.withSavepoint(ctx, func(tx *pglib.Txn) error {
		rows, err := tx.Query(ctx, fieldsQuery, schema, qn.Name())
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			f := rfc.FieldInfo{}
			if err := rows.Scan(&f.Name, &f.Position, &f.Length, &f.Key); err != nil {
				return fmt.Errorf("scanning field info: %w", err)
			}
			fields = append(fields, f)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%s: %w", table, rfc.ErrUnknownTable)
	}
	return fields, nil
}

func (s *session) ReadRows(ctx context.Context, req *rfc.ReadRequest) ([]string, error) {
	query, err := s.readRowsQuery(req)
	if err != nil {
		return nil, err
	}

	rows := make([]string, 0, req.RowCount)
	err = s.withSavepoint(ctx, func(tx *pglib.Txn) error {
		pgRows, err := tx.Query(ctx, query, req.Delimiter, req.RowCount, req.RowSkips)
		if err != nil {
			return err
		}
		defer pgRows.Close()

		for pgRows.Next() {
			var row string
			if err := pgRows.Scan(&row); err != nil {
				return fmt.Errorf("scanning row: %w", err)
			}
			rows = append(rows, row)
		}
		return pgRows.Err()
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// readRowsQuery builds the query returning the delimiter joined text values
// of the requested fields. Nulls are returned as empty strings, the same way
// the remote system returns initial values.
func (s *session) readRowsQuery(req *rfc.ReadRequest) (string, error) {
	qn, err := pglib.NewQualifiedName(req.Table)
	if err != nil {
		return "", fmt.Errorf("%w: %w", err, rfc.ErrUnknownTable)
	}
	tableName := pglib.QuoteQualifiedIdentifier(s.source.schema, qn.Name())
	if strings.Contains(req.Table, ".") {
		tableName = qn.String()
	}

	columns := make([]string, 0, len(req.Fields))
	for _, f := range pglib.QuoteIdentifiers(req.Fields) {
		columns = append(columns, f+"::text")
	}

	orderBy := "ctid"
	if len(req.OrderBy) > 0 {
		orderBy = strings.Join(pglib.QuoteIdentifiers(req.OrderBy), ", ")
	}

	return fmt.Sprintf("SELECT array_to_string(ARRAY[%s]::text[], $1, '') FROM %s ORDER BY %s LIMIT $2 OFFSET $3",
		strings.Join(columns, ", "), tableName, orderBy), nil
}

// withSavepoint runs fn in a savepoint of the session transaction, so that a
// failing read does not abort the snapshot used by the following reads. A
// broken connection is reopened on the next call.
func (s *session) withSavepoint(ctx context.Context, fn func(tx *pglib.Txn) error) error {
	if s.tx == nil {
		if err := s.connect(ctx); err != nil {
			return err
		}
		s.source.logger.Warn(nil, "remote session reconnected, reads use a new snapshot")
	}

	sp, err := s.tx.Savepoint(ctx)
	if err != nil {
		return s.fail(ctx, err)
	}
	if err := fn(sp); err != nil {
		if rbErr := sp.Rollback(ctx); rbErr != nil {
			return s.fail(ctx, errors.Join(err, rbErr))
		}
		return mapError(err)
	}
	if err := sp.Commit(ctx); err != nil {
		return s.fail(ctx, err)
	}
	return nil
}

// fail maps the error and drops the session transaction if the connection
// can no longer be used.
func (s *session) fail(ctx context.Context, err error) error {
	mapped := mapError(err)
	if errors.Is(mapped, rfc.ErrCommunication) {
		s.close(ctx)
	}
	return mapped
}

func (s *session) Close(ctx context.Context) error {
	return s.close(ctx)
}

func (s *session) close(ctx context.Context) error {
	if s.conn == nil {
		return nil
	}
	var errs error
	if s.tx != nil {
		// read only, nothing to commit
		if err := s.tx.Rollback(ctx); err != nil && !errors.Is(err, pglib.ErrConnection) {
			errs = errors.Join(errs, err)
		}
	}
	errs = errors.Join(errs, s.conn.Close(ctx))
	s.conn, s.tx = nil, nil
	return errs
}

// mapError classifies postgres errors into the remote protocol error
// categories.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	err = pglib.MapError(err)
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, pglib.ErrRelationDoesNotExist):
		return fmt.Errorf("%w: %w", rfc.ErrUnknownTable, err)
	case errors.Is(err, pglib.ErrConnection), errors.Is(err, pglib.ErrConnTimeout):
		return &rfc.ProtocolError{Category: rfc.ErrCommunication, Details: err.Error()}
	case errors.Is(err, pglib.ErrInvalidAuthorization), errors.Is(err, pglib.ErrPermissionDenied):
		return &rfc.ProtocolError{Category: rfc.ErrLogon, Details: err.Error()}
	case errors.Is(err, pglib.ErrInsufficientResource),
		errors.Is(err, pglib.ErrOperatorIntervention),
		errors.Is(err, pglib.ErrProgramLimitExceeded):
		return &rfc.ProtocolError{Category: rfc.ErrRuntime, Details: err.Error()}
	default:
		return &rfc.ProtocolError{Category: rfc.ErrApplication, Details: err.Error()}
	}
}
