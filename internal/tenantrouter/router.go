// Copyright 2026 The TenantGrid Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package tenantrouter dispatches data-store access to the correct isolated
// per-tenant connection pool based on the ambient tenant context.
package tenantrouter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/singleflight"

	"github.com/tenantgrid/tenantgrid/internal/observability/logger"
	"github.com/tenantgrid/tenantgrid/internal/registry"
	"github.com/tenantgrid/tenantgrid/internal/tenantctx"
)

// Pool is the store handle the router hands out. It is satisfied by
// *pgxpool.Pool and narrowed here so tests can substitute a fake.
type Pool interface {
	Close()
}

// Opener builds a pool from a tenant's registry config. The production opener
// dials pgx; tests substitute an in-memory fake.
type Opener func(ctx context.Context, cfg *registry.TenantDBConfig) (Pool, error)

// PgxOpener is the production Opener: it builds a pooled pgx connection from
// the tenant's registry config. Per-tenant pools are deliberately small; the
// platform pool carries the bulk of traffic.
func PgxOpener(maxConns int32) Opener {
	return func(ctx context.Context, cfg *registry.TenantDBConfig) (Pool, error) {
		connStr := fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s pool_max_conns=%d search_path=%s",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode, maxConns, cfg.Schema,
		)
		poolConfig, err := pgxpool.ParseConfig(connStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse tenant pool config: %w", err)
		}
		pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create tenant pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to ping tenant database: %w", err)
		}
		return pool, nil
	}
}

// Router resolves the ambient tenant context to a cached per-tenant pool.
// Concurrent first-time resolutions for the same tenant are collapsed through
// singleflight so exactly one pool is ever built per tenant.
type Router struct {
	reg         registry.Registry
	open        Opener
	defaultPool Pool

	mu    sync.RWMutex
	pools map[string]Pool
	group singleflight.Group
}

// New creates a Router. defaultPool serves requests with no tenant context
// (health checks, pre-tenant operations) and may be nil when the deployment
// has no shared store.
func New(reg registry.Registry, open Opener, defaultPool Pool) *Router {
	return &Router{
		reg:         reg,
		open:        open,
		defaultPool: defaultPool,
		pools:       make(map[string]Pool),
	}
}

// Resolve returns the store handle for the tenant in ctx. With no tenant set
// it returns the shared default pool. A registry lookup failure is fatal for
// the request: there is no silent fallback to the default store.
func (r *Router) Resolve(ctx context.Context) (Pool, error) {
	tenantID := tenantctx.TenantID(ctx)
	if tenantID == "" {
		return r.defaultPool, nil
	}

	r.mu.RLock()
	pool, ok := r.pools[tenantID]
	r.mu.RUnlock()
	if ok {
		return pool, nil
	}

	v, err, _ := r.group.Do(tenantID, func() (any, error) {
		// Re-check under the flight: an Evict between the fast path and here
		// must not resurrect a stale entry.
		r.mu.RLock()
		existing, ok := r.pools[tenantID]
		r.mu.RUnlock()
		if ok {
			return existing, nil
		}

		cfg, err := r.reg.Load(ctx, tenantID)
		if err != nil {
			return nil, fmt.Errorf("failed to load tenant config for %q: %w", tenantID, err)
		}

		created, err := r.open(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open store for tenant %q: %w", tenantID, err)
		}

		r.mu.Lock()
		r.pools[tenantID] = created
		r.mu.Unlock()

		slog.InfoContext(ctx, "tenant_pool_created", logger.TenantID(tenantID))
		return created, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Pool), nil
}

// Evict removes and closes the cached pool for a tenant. Called on tenant
// deletion and credential rotation; the next Resolve rebuilds from the
// registry.
func (r *Router) Evict(tenantID string) {
	r.mu.Lock()
	pool, ok := r.pools[tenantID]
	delete(r.pools, tenantID)
	r.mu.Unlock()

	if ok {
		pool.Close()
		slog.Info("tenant_pool_evicted", logger.TenantID(tenantID))
	}
}

// Close closes every cached tenant pool. The default pool is owned by the
// caller and is not closed here.
func (r *Router) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, pool := range r.pools {
		pool.Close()
		delete(r.pools, id)
	}
}
