package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ecommerce-app/ecommerce-api/internal/core/ports"
	"github.com/ecommerce-app/ecommerce-api/internal/infrastructure/db/memory"
	"github.com/ecommerce-app/ecommerce-api/internal/infrastructure/db/mongo"
	"github.com/ecommerce-app/ecommerce-api/internal/infrastructure/db/postgres"
	"github.com/ecommerce-app/ecommerce-api/internal/pkg/config"
)

// store bundles the repositories of one backend.
type store struct {
	name     string
	users    ports.UserRepository
	sessions ports.SessionStore
	audit    ports.AuditRepository
	ping     func(ctx context.Context) error
	close    func()
}

func openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*store, error) {
	switch cfg.StoreDriver {
	case config.DriverMongo:
		client, db, err := mongo.Connect(ctx, mongo.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
		if err != nil {
			return nil, err
		}
		users := mongo.NewUserRepository(db)
		if err := users.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, err
		}
		log.Info().Str("db", cfg.Mongo.Database).Msg("connected to mongodb")
		return &store{
			name:     "mongodb",
			users:    users,
			sessions: users,
			audit:    mongo.NewAuditRepository(db),
			ping:     func(ctx context.Context) error { return mongo.Ping(ctx, client) },
			close: func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = client.Disconnect(ctx)
			},
		}, nil

	case config.DriverPostgres:
		pool, err := postgres.Connect(ctx, postgres.Config{URL: cfg.Postgres.URL})
		if err != nil {
			return nil, err
		}
		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		log.Info().Msg("connected to postgres")
		users := postgres.NewUserRepository(pool)
		return &store{
			name:     "postgres",
			users:    users,
			sessions: users,
			audit:    postgres.NewAuditRepository(pool),
			ping:     pool.Ping,
			close:    pool.Close,
		}, nil

	case config.DriverMemory:
		log.Warn().Msg("using in-memory store; data is lost on restart")
		db := memory.New()
		return &store{
			name:     "memory",
			users:    db,
			sessions: db,
			audit:    db,
			ping:     func(context.Context) error { return nil },
			close:    func() {},
		}, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}
