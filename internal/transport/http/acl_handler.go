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
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tenantgrid/tenantgrid/internal/authz"
)

// GrantRequest represents a resource-level access grant
type GrantRequest struct {
	ResourceID    string     `json:"resource_id"`
	ResourceType  string     `json:"resource_type,omitempty"`
	PrincipalType string     `json:"principal_type"` // USER or GROUP
	PrincipalID   string     `json:"principal_id"`
	RoleBundle    string     `json:"role_bundle"` // VIEWER, CONTRIBUTOR, EDITOR, MANAGER
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

// GrantAccess grants a role bundle on a resource to a user or group.
func (h *Handler) GrantAccess(w http.ResponseWriter, r *http.Request) {
	var req GrantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ResourceID == "" || req.PrincipalID == "" {
		respondError(w, http.StatusBadRequest, "resource_id and principal_id are required")
		return
	}

	principalType := authz.PrincipalType(req.PrincipalType)
	if principalType != authz.PrincipalUser && principalType != authz.PrincipalGroup {
		respondError(w, http.StatusBadRequest, "principal_type must be USER or GROUP")
		return
	}

	entry, err := h.acl.GrantAccess(r.Context(), authz.GrantAccessParams{
		ResourceID:    req.ResourceID,
		ResourceType:  req.ResourceType,
		PrincipalType: principalType,
		PrincipalID:   req.PrincipalID,
		RoleBundle:    authz.RoleBundle(req.RoleBundle),
		ExpiresAt:     req.ExpiresAt,
	}, GetUserID(r.Context()))
	if err != nil {
		if errors.Is(err, authz.ErrInvalidRoleBundle) {
			respondError(w, http.StatusBadRequest, "invalid role bundle")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to grant access")
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"entry_id":    entry.ID,
		"resource_id": entry.ResourceID,
		"role_bundle": entry.RoleBundle,
	})
}

// RevokeAccess removes a grant by entry id.
func (h *Handler) RevokeAccess(w http.ResponseWriter, r *http.Request) {
	entryID := chi.URLParam(r, "entryID")
	if err := h.acl.RevokeAccess(r.Context(), entryID, GetUserID(r.Context())); err != nil {
		if errors.Is(err, authz.ErrAclEntryNotFound) {
			respondError(w, http.StatusNotFound, "grant not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to revoke access")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "access revoked"})
}

// ListResourceGrants lists every grant on a resource.
func (h *Handler) ListResourceGrants(w http.ResponseWriter, r *http.Request) {
	entries, err := h.acl.ResourcePermissions(r.Context(), chi.URLParam(r, "resourceID"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list grants")
		return
	}

	out := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		out = append(out, map[string]any{
			"entry_id":       e.ID,
			"principal_type": e.PrincipalType,
			"principal_id":   e.PrincipalID,
			"role_bundle":    e.RoleBundle,
			"granted_at":     e.GrantedAt,
			"expires_at":     e.ExpiresAt,
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{"grants": out})
}

// CheckCapability reports whether the caller holds a capability on a
// resource. Absence of a grant is a plain negative answer, not an error.
func (h *Handler) CheckCapability(w http.ResponseWriter, r *http.Request) {
	resourceID := r.URL.Query().Get("resource_id")
	capability := r.URL.Query().Get("capability")
	if resourceID == "" || capability == "" {
		respondError(w, http.StatusBadRequest, "resource_id and capability are required")
		return
	}

	allowed, err := h.acl.HasCapability(r.Context(), GetUserID(r.Context()), resourceID, capability)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "capability check failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"resource_id": resourceID,
		"capability":  capability,
		"allowed":     allowed,
	})
}
