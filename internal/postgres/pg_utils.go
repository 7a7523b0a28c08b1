// SPDX-License-Identifier: Apache-2.0

package postgres

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"
)

// QualifiedName is a table name with an optional schema.
type QualifiedName struct {
	schema string
	name   string
}

const DefaultSchema = "public"

var errUnexpectedQualifiedName = errors.New("unexpected qualified name format")

func NewQualifiedName(s string) (*QualifiedName, error) {
	qualifiedName := strings.Split(s, ".")
	switch len(qualifiedName) {
	case 1:
		return &QualifiedName{
			name: removeQuotes(s),
		}, nil
	case 2:
		return &QualifiedName{
			schema: removeQuotes(qualifiedName[0]),
			name:   removeQuotes(qualifiedName[1]),
		}, nil
	default:
		return nil, fmt.Errorf("%s: %w", s, errUnexpectedQualifiedName)
	}
}

// String returns the quoted name, qualified with the schema if present.
func (qn *QualifiedName) String() string {
	if qn.schema == "" {
		return QuoteIdentifier(qn.name)
	}
	return QuoteQualifiedIdentifier(qn.schema, qn.name)
}

// Schema returns the schema, or DefaultSchema if none was given.
func (qn *QualifiedName) Schema() string {
	if qn.schema == "" {
		return DefaultSchema
	}
	return qn.schema
}

func (qn *QualifiedName) Name() string {
	return qn.name
}

func QuoteIdentifier(s string) string {
	if IsQuotedIdentifier(s) {
		return s
	}
	return pq.QuoteIdentifier(s)
}

func QuoteQualifiedIdentifier(schema, table string) string {
	return QuoteIdentifier(schema) + "." + QuoteIdentifier(table)
}

func QuoteIdentifiers(ss []string) []string {
	quoted := make([]string, 0, len(ss))
	for _, s := range ss {
		quoted = append(quoted, QuoteIdentifier(s))
	}
	return quoted
}

func IsQuotedIdentifier(s string) bool {
	return len(s) > 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`)
}

func removeQuotes(s string) string {
	return strings.Trim(s, `"`)
}

// ApplicationName identifies the connections in pg_stat_activity unless the
// connection string sets its own.
const ApplicationName = "ecctransform"

func ParseConfig(pgurl string) (*pgx.ConnConfig, error) {
	pgCfg, err := pgx.ParseConfig(pgurl)
	if err != nil {
		return nil, fmt.Errorf("failed parsing postgres connection string: %w", MapError(err))
	}
	configureConn(pgCfg)
	return pgCfg, nil
}

func configureConn(cfg *pgx.ConnConfig) {
	if cfg.RuntimeParams == nil {
		cfg.RuntimeParams = map[string]string{}
	}
	if cfg.RuntimeParams["application_name"] == "" {
		cfg.RuntimeParams["application_name"] = ApplicationName
	}
	configureTCPKeepalive(cfg)
}

const (
	connectTimeout    = 30 * time.Second
	keepaliveIdle     = 15 * time.Second
	keepaliveInterval = 15 * time.Second
	keepaliveCount    = 9
)

// configureTCPKeepalive makes sure hung connections are detected within a
// few minutes instead of blocking an extraction worker forever.
func configureTCPKeepalive(cfg *pgx.ConnConfig) {
	cfg.ConnectTimeout = connectTimeout

	cfg.DialFunc = func(ctx context.Context, network, addr string) (net.Conn, error) {
		d := &net.Dialer{
			Timeout: connectTimeout,
			KeepAliveConfig: net.KeepAliveConfig{
				Enable:   true,
				Idle:     keepaliveIdle,
				Interval: keepaliveInterval,
				Count:    keepaliveCount,
			},
		}
		return d.DialContext(ctx, network, addr)
	}
}
