package postgres

import (
	"context"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/faucetdb/sketch/internal/connector"
)

const defaultConnectTimeout = 10 * time.Second

// Introspector implements connector.Introspector for PostgreSQL databases.
type Introspector struct{}

// New creates a new Postgres introspector.
func New() connector.Introspector {
	return &Introspector{}
}

// connect opens a short-lived pool for one introspection run. It applies the
// pool settings from cfg and verifies the connection with a ping.
func connect(ctx context.Context, cfg connector.ConnectionConfig) (*sqlx.DB, error) {
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	db, err := sqlx.ConnectContext(connectCtx, "pgx", connector.SanitizeDSN(connector.DriverPostgres, cfg.DSN))
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	return db, nil
}
