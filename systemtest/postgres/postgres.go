// Package postgres runs a throwaway Postgres for the status store system tests.
package postgres

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/EternisAI/zone-orchestrator/internal/db"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const defaultImage = "postgres:17-alpine"

// Instance is a running container plus the store config pointing at it.
type Instance struct {
	container *postgres.PostgresContainer
	Config    db.Config
}

// Start launches the container. ZONE_TEST_POSTGRES_IMAGE overrides the image.
func Start(ctx context.Context, database, schema string) (*Instance, error) {
	image := os.Getenv("ZONE_TEST_POSTGRES_IMAGE")
	if image == "" {
		image = defaultImage
	}

	container, err := postgres.Run(ctx, image,
		postgres.WithUsername("zone"),
		postgres.WithPassword("zone"),
		postgres.WithDatabase(database),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		return nil, fmt.Errorf("start status store container: %w", err)
	}

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(context.Background())
		return nil, fmt.Errorf("status store connection string: %w", err)
	}

	return &Instance{
		container: container,
		Config:    db.Config{Url: url, Schema: schema, MaxConns: 4},
	}, nil
}

func (i *Instance) Terminate(ctx context.Context) error {
	if err := i.container.Terminate(ctx); err != nil {
		return fmt.Errorf("terminate status store container: %w", err)
	}
	return nil
}
