package postgres

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tenantgrid/tenantgrid/internal/tenantrouter"
)

//go:embed migrations/001_platform_schema.up.sql
var PlatformSchema string

//go:embed migrations/002_tenant_schema.up.sql
var TenantSchema string

// DB wraps the platform PostgreSQL connection pool
type DB struct {
	pool *pgxpool.Pool
}

// Config holds database configuration
type Config struct {
	Host         string
	Port         string
	User         string
	Password     string
	Database     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

// New creates a new database connection
func New(ctx context.Context, cfg Config) (*DB, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s pool_max_conns=%d pool_min_conns=%d",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Database,
		cfg.SSLMode,
		cfg.MaxOpenConns,
		cfg.MaxIdleConns,
	)

	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the database connection
func (db *DB) Close() {
	db.pool.Close()
}

// Pool returns the underlying connection pool
func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

// Migrate runs a SQL script
func (db *DB) Migrate(ctx context.Context, script string) error {
	_, err := db.pool.Exec(ctx, script)
	return err
}

// tenantPool resolves the calling tenant's pool through the router. The
// router hands back an opaque pool; this package only ever opens pgx pools,
// so anything else is a wiring bug.
func tenantPool(ctx context.Context, router *tenantrouter.Router) (*pgxpool.Pool, error) {
	p, err := router.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	pool, ok := p.(*pgxpool.Pool)
	if !ok {
		return nil, fmt.Errorf("resolved pool is %T, not a pgx pool", p)
	}
	return pool, nil
}
