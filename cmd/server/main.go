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

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tenantgrid/tenantgrid/internal/account"
	"github.com/tenantgrid/tenantgrid/internal/audit"
	"github.com/tenantgrid/tenantgrid/internal/authz"
	"github.com/tenantgrid/tenantgrid/internal/config"
	"github.com/tenantgrid/tenantgrid/internal/groupmap"
	"github.com/tenantgrid/tenantgrid/internal/idp"
	"github.com/tenantgrid/tenantgrid/internal/observability/logger"
	"github.com/tenantgrid/tenantgrid/internal/observability/metrics"
	"github.com/tenantgrid/tenantgrid/internal/observability/tracing"
	"github.com/tenantgrid/tenantgrid/internal/rebac"
	"github.com/tenantgrid/tenantgrid/internal/signup"
	"github.com/tenantgrid/tenantgrid/internal/store/postgres"
	"github.com/tenantgrid/tenantgrid/internal/tenantrouter"
	transportHTTP "github.com/tenantgrid/tenantgrid/internal/transport/http"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.InitLogger(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})
	slog.Info("starting tenantgrid control plane")

	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := runMigrate(cfg); err != nil {
			fmt.Printf("Migration failed: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	// Initialize context
	ctx := context.Background()

	// Initialize tracer
	tracer, err := tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		SamplingRate:   1.0,
	})
	if err != nil {
		slog.Error("failed to initialize tracer", logger.Error(err))
	}
	defer tracer.Shutdown(ctx)

	// Initialize meter
	_, err = metrics.New(ctx, metrics.Config{
		Enabled: cfg.Observability.OTELEnabled,
	}, cfg.Observability.ServiceName)
	if err != nil {
		slog.Error("failed to initialize meter", logger.Error(err))
	}

	// Initialize platform database
	db, err := postgres.New(ctx, postgres.Config{
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		Database:     cfg.Database.Database,
		SSLMode:      cfg.Database.SSLMode,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		slog.Error("failed to connect to database", logger.Error(err))
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("connected to platform database")

	// Platform repositories
	registryRepo := postgres.NewRegistryRepository(db, postgres.TenantDefaults{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Database: cfg.Database.Database,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		SSLMode:  cfg.Database.SSLMode,
	})
	membershipRepo := postgres.NewMembershipRepository(db)

	// Tenant router and tenant-scoped repositories
	router := tenantrouter.New(
		registryRepo,
		tenantrouter.PgxOpener(int32(cfg.TenantPool.MaxConnsPerTenant)),
		db.Pool(),
	)
	defer router.Close()

	roleRepo := postgres.NewRoleRepository(router)
	assignmentRepo := postgres.NewAssignmentRepository(router)
	rolePermRepo := postgres.NewRolePermissionRepository(router)
	aclRepo := postgres.NewAclRepository(router)
	mappingRepo := postgres.NewGroupMappingRepository(router)
	orgSettingsRepo := postgres.NewOrgSettingsRepository(router)

	auditLogger := audit.NewSlogLogger()

	// Relationship store, optional
	var (
		tuples    authz.TupleWriter
		relations authz.RelationshipChecker
		health    []transportHTTP.HealthChecker
	)
	if cfg.ReBAC.Endpoint != "" {
		resolver := rebac.NewStoreResolver(registryRepo, cfg.ReBAC.DefaultStoreID)
		client := rebac.NewHTTPClient(cfg.ReBAC.Endpoint, &http.Client{Timeout: cfg.ReBAC.CallTimeout}, resolver)
		resilient := rebac.NewResilient(client, rebac.ResilienceConfig{
			MaxAttempts:          uint(cfg.ReBAC.MaxAttempts),
			InitialInterval:      cfg.ReBAC.RetryInterval,
			CallTimeout:          cfg.ReBAC.CallTimeout,
			FailureRateThreshold: cfg.ReBAC.FailureRate,
			MinimumCalls:         uint32(cfg.ReBAC.MinCalls),
			WindowInterval:       cfg.ReBAC.Window,
			OpenTimeout:          cfg.ReBAC.OpenDuration,
			HalfOpenMaxCalls:     uint32(cfg.ReBAC.HalfOpenProbes),
		})
		tuples = resilient
		relations = resilient
		health = append(health, transportHTTP.HealthChecker{Name: "rebac_breaker", Check: resilient.State})
		slog.Info("relationship store enabled", logger.Component("rebac"))
	}

	// Identity provider
	hasher := idp.NewPasswordHasher(
		cfg.IdP.Argon2Memory,
		cfg.IdP.Argon2Iterations,
		cfg.IdP.Argon2Parallelism,
		cfg.IdP.Argon2SaltLength,
		cfg.IdP.Argon2KeyLength,
	)
	provider := idp.NewMemoryProvider(hasher)
	if cfg.IdP.Mode != "memory" {
		slog.Warn("unknown idp mode, falling back to memory provider", "mode", cfg.IdP.Mode)
	}

	// Services
	permissions := authz.NewPermissionService(assignmentRepo, rolePermRepo, roleRepo, tuples, auditLogger)
	aclService := authz.NewAclService(aclRepo, auditLogger)
	guard := authz.NewGuard(permissions, relations, auditLogger)
	groups := groupmap.NewService(mappingRepo, roleRepo, assignmentRepo, auditLogger)

	pipeline := signup.NewPipeline(auditLogger,
		signup.NewGenerateTenantIDAction(signup.NewTenantIDGenerator(registryRepo)),
		signup.NewProvisionTenantAction(registryRepo),
		signup.NewCreateIdentityAction(provider, auditLogger),
		signup.NewCreateMembershipAction(membershipRepo),
		signup.NewAssignRolesAction(groups, permissions),
		signup.NewCreateOrgSettingsAction(orgSettingsRepo),
	)

	deletion := account.NewDeletionService(membershipRepo, provider, registryRepo, auditLogger)

	// Rate Limiter
	rateLimiter := transportHTTP.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)

	// Initialize HTTP handler
	handler := transportHTTP.NewHandler(
		pipeline,
		deletion,
		groups,
		aclService,
		permissions,
		guard,
		auditLogger,
		health...,
	)

	// Create router
	mux := transportHTTP.NewRouter(handler, rateLimiter)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server
	go func() {
		slog.Info("starting http server", logger.Component("server"), logger.Operation("listen"))
		slog.Info(fmt.Sprintf("listening on %s", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", logger.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", logger.Error(err))
	}

	slog.Info("server stopped")
}

func runMigrate(cfg *config.Config) error {
	ctx := context.Background()
	db, err := postgres.New(ctx, postgres.Config{
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		Database:     cfg.Database.Database,
		SSLMode:      cfg.Database.SSLMode,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Println("Applying platform schema...")
	if err := db.Migrate(ctx, postgres.PlatformSchema); err != nil {
		return err
	}
	fmt.Println("Migration successful.")
	return nil
}
