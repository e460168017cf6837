package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tenantgrid/tenantgrid/internal/account"
	"github.com/tenantgrid/tenantgrid/internal/audit"
	"github.com/tenantgrid/tenantgrid/internal/authz"
	"github.com/tenantgrid/tenantgrid/internal/groupmap"
	"github.com/tenantgrid/tenantgrid/internal/signup"
)

// Handler holds HTTP handlers and dependencies
type Handler struct {
	pipeline    *signup.Pipeline
	deletion    *account.DeletionService
	mappings    *groupmap.Service
	acl         *authz.AclService
	permissions *authz.PermissionService
	guard       *authz.Guard
	auditLogger audit.Logger
	health      []HealthChecker
}

// HealthChecker is a named readiness probe reported by the health endpoint.
type HealthChecker struct {
	Name  string
	Check func() string
}

// NewHandler creates a new HTTP handler
func NewHandler(
	pipeline *signup.Pipeline,
	deletion *account.DeletionService,
	mappings *groupmap.Service,
	acl *authz.AclService,
	permissions *authz.PermissionService,
	guard *authz.Guard,
	auditLogger audit.Logger,
	health ...HealthChecker,
) *Handler {
	return &Handler{
		pipeline:    pipeline,
		deletion:    deletion,
		mappings:    mappings,
		acl:         acl,
		permissions: permissions,
		guard:       guard,
		auditLogger: auditLogger,
		health:      health,
	}
}

// NewRouter creates a new HTTP router
func NewRouter(h *Handler, rateLimiter *RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(RateLimitMiddleware(rateLimiter))
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check
	r.Get("/health", h.HealthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(IdentityMiddleware)

		// Signup endpoints carry no tenant yet; identity comes from the
		// request body or the gateway-forwarded SSO token.
		r.Post("/signup", h.Signup)
		r.Post("/signup/sso", h.CompleteSSOSignup)

		// Tenant-scoped endpoints
		r.Group(func(r chi.Router) {
			r.Use(RequireTenant)
			r.Use(RequireUser)

			r.Delete("/account", h.DeleteAccount)

			r.Route("/mappings", func(r chi.Router) {
				r.With(h.RequirePermission("mappings", "read")).Get("/", h.ListMappings)
				r.With(h.RequirePermission("mappings", "write")).Post("/", h.CreateMapping)
				r.With(h.RequirePermission("mappings", "write")).Put("/{mappingID}", h.UpdateMapping)
				r.With(h.RequirePermission("mappings", "write")).Delete("/{mappingID}", h.DeleteMapping)
			})

			r.Route("/acl", func(r chi.Router) {
				r.Post("/grants", h.GrantAccess)
				r.Delete("/grants/{entryID}", h.RevokeAccess)
				r.Get("/resources/{resourceID}", h.ListResourceGrants)
				r.Get("/check", h.CheckCapability)
			})

			r.Route("/permissions", func(r chi.Router) {
				r.Get("/check", h.CheckPermission)
				r.Get("/me", h.ListMyPermissions)
				r.With(h.RequirePermission("roles", "write")).Post("/roles", h.AssignRole)
				r.With(h.RequirePermission("roles", "write")).Delete("/roles", h.RevokeRole)
			})
		})
	})

	return r
}

// HealthCheck returns the health status, including the state of downstream
// dependencies such as the relationship store's circuit breaker.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	body := map[string]string{
		"status":  "healthy",
		"service": "tenantgrid",
	}
	for _, probe := range h.health {
		body[probe.Name] = probe.Check()
	}
	respondJSON(w, http.StatusOK, body)
}

// Helper functions
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

func getIPAddress(r *http.Request) string {
	// Check X-Forwarded-For header first
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	// Check X-Real-IP header
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
