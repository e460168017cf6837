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

// Package tenantctx carries the request-scoped tenant and user identity
// through explicit context values. There is no process-global tenant state:
// the values live and die with the request context, so a pooled worker can
// never observe identity leaked from a previous request.
package tenantctx

import "context"

type contextKey string

const (
	tenantIDKey contextKey = "tenant_id"
	userIDKey   contextKey = "user_id"
)

// With returns a child context carrying the tenant and user identifiers.
// Identifiers are trusted upstream-verified values; no validation happens here.
func With(ctx context.Context, tenantID, userID string) context.Context {
	ctx = context.WithValue(ctx, tenantIDKey, tenantID)
	return context.WithValue(ctx, userIDKey, userID)
}

// WithTenant returns a child context carrying only a tenant identifier.
// Used by background flows (provisioning, cleanup) that act without a user.
func WithTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantIDKey, tenantID)
}

// TenantID retrieves the tenant ID from context, or "" when none is set.
func TenantID(ctx context.Context) string {
	if val, ok := ctx.Value(tenantIDKey).(string); ok {
		return val
	}
	return ""
}

// UserID retrieves the authenticated user ID from context, or "".
func UserID(ctx context.Context) string {
	if val, ok := ctx.Value(userIDKey).(string); ok {
		return val
	}
	return ""
}

// Clear returns a child context with the tenant and user identifiers removed.
// Callers that switch tenants mid-flow (e.g. the provisioning pipeline) use
// this between scopes rather than relying on an outer context being unset.
func Clear(ctx context.Context) context.Context {
	ctx = context.WithValue(ctx, tenantIDKey, "")
	return context.WithValue(ctx, userIDKey, "")
}
