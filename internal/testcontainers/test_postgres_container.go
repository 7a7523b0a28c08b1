// SPDX-License-Identifier: Apache-2.0

package testcontainers

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

type cleanup func() error

const postgresImage = "postgres:17-alpine"

// Databases used by the integration tests. The remote source mirrors the
// ECC tables and the metadata database holds the mapping configuration.
const (
	SourceDatabase   = "ecc"
	MetadataDatabase = "transform_metadata"
)

// SetupPostgresContainer starts a postgres container serving database and
// writes its connection string to url. The returned cleanup terminates the
// container.
func SetupPostgresContainer(ctx context.Context, url *string, database string, initScripts ...string) (cleanup, error) {
	waitForLogs := wait.
		ForLog("database system is ready to accept connections").
		WithOccurrence(2).
		WithStartupTimeout(time.Minute)

	opts := []testcontainers.ContainerCustomizer{
		postgres.WithDatabase(database),
		postgres.WithUsername("ecctransform"),
		postgres.WithPassword("ecctransform"),
		testcontainers.WithWaitStrategy(waitForLogs),
	}
	if len(initScripts) > 0 {
		opts = append(opts, postgres.WithInitScripts(initScripts...))
	}

	ctr, err := postgres.Run(ctx, postgresImage, opts...)
	if err != nil {
		return nil, fmt.Errorf("starting %s postgres container: %w", database, err)
	}

	*url, err = ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = ctr.Terminate(ctx)
		return nil, fmt.Errorf("retrieving connection string for %s postgres container: %w", database, err)
	}

	return func() error {
		return ctr.Terminate(ctx)
	}, nil
}
