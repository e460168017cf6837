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

package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tenantgrid/tenantgrid/internal/authz"
)

// CheckPermission reports whether the caller holds (resource, action) in the
// current tenant, including the per-resource relationship fallback when
// object parameters are supplied.
func (h *Handler) CheckPermission(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	resource := q.Get("resource")
	action := q.Get("action")
	if resource == "" || action == "" {
		respondError(w, http.StatusBadRequest, "resource and action are required")
		return
	}

	allowed, err := h.guard.Allow(r.Context(), resource, action,
		q.Get("relation"), q.Get("object_type"), q.Get("object_id"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "authorization check failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"resource": resource,
		"action":   action,
		"allowed":  allowed,
	})
}

// ListMyPermissions returns every "resource:action" the caller holds.
func (h *Handler) ListMyPermissions(w http.ResponseWriter, r *http.Request) {
	permissions, err := h.permissions.GetUserPermissions(r.Context(), GetUserID(r.Context()), GetTenantID(r.Context()))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list permissions")
		return
	}

	out := make([]string, 0, len(permissions))
	for p := range permissions {
		out = append(out, p)
	}
	respondJSON(w, http.StatusOK, map[string]any{"permissions": out})
}

// RoleAssignmentRequest represents a role grant or revocation
type RoleAssignmentRequest struct {
	UserID string `json:"user_id"`
	RoleID string `json:"role_id"`
}

// AssignRole grants a role to a user in the current tenant.
func (h *Handler) AssignRole(w http.ResponseWriter, r *http.Request) {
	var req RoleAssignmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" || req.RoleID == "" {
		respondError(w, http.StatusBadRequest, "user_id and role_id are required")
		return
	}

	err := h.permissions.AssignRole(r.Context(), req.UserID, GetTenantID(r.Context()), req.RoleID, GetUserID(r.Context()))
	if err != nil {
		if errors.Is(err, authz.ErrRoleNotFound) {
			respondError(w, http.StatusBadRequest, "role does not exist")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to assign role")
		return
	}

	respondJSON(w, http.StatusCreated, map[string]string{"message": "role assigned"})
}

// RevokeRole removes a role from a user in the current tenant.
func (h *Handler) RevokeRole(w http.ResponseWriter, r *http.Request) {
	var req RoleAssignmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" || req.RoleID == "" {
		respondError(w, http.StatusBadRequest, "user_id and role_id are required")
		return
	}

	err := h.permissions.RevokeRole(r.Context(), req.UserID, GetTenantID(r.Context()), req.RoleID, GetUserID(r.Context()))
	if err != nil {
		if errors.Is(err, authz.ErrAssignmentNotFound) {
			respondError(w, http.StatusNotFound, "assignment not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to revoke role")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "role revoked"})
}
