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

	"github.com/tenantgrid/tenantgrid/internal/groupmap"
)

// MappingRequest represents a group-to-role mapping create or update
type MappingRequest struct {
	ExternalGroupID string `json:"external_group_id"`
	GroupName       string `json:"group_name,omitempty"`
	RoleID          string `json:"role_id"`
	Priority        int    `json:"priority"`
}

// MappingResponse is the wire form of a mapping
type MappingResponse struct {
	ID              string    `json:"id"`
	ExternalGroupID string    `json:"external_group_id"`
	GroupName       string    `json:"group_name"`
	RoleID          string    `json:"role_id"`
	Priority        int       `json:"priority"`
	AutoAssign      bool      `json:"auto_assign"`
	CreatedAt       time.Time `json:"created_at"`
}

func toMappingResponse(m *groupmap.Mapping) MappingResponse {
	return MappingResponse{
		ID:              m.ID,
		ExternalGroupID: m.ExternalGroupID,
		GroupName:       m.GroupName,
		RoleID:          m.RoleID,
		Priority:        m.Priority,
		AutoAssign:      m.AutoAssign,
		CreatedAt:       m.CreatedAt,
	}
}

// ListMappings returns every mapping in the current tenant.
func (h *Handler) ListMappings(w http.ResponseWriter, r *http.Request) {
	mappings, err := h.mappings.ListMappings(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list mappings")
		return
	}
	out := make([]MappingResponse, 0, len(mappings))
	for _, m := range mappings {
		out = append(out, toMappingResponse(m))
	}
	respondJSON(w, http.StatusOK, map[string]any{"mappings": out})
}

// CreateMapping creates a new group-to-role mapping.
func (h *Handler) CreateMapping(w http.ResponseWriter, r *http.Request) {
	var req MappingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ExternalGroupID == "" || req.RoleID == "" {
		respondError(w, http.StatusBadRequest, "external_group_id and role_id are required")
		return
	}

	mapping, err := h.mappings.CreateMapping(r.Context(),
		req.ExternalGroupID, req.GroupName, req.RoleID, req.Priority, GetUserID(r.Context()))
	if err != nil {
		switch {
		case errors.Is(err, groupmap.ErrMappingExists):
			respondError(w, http.StatusConflict, "group is already mapped")
		case errors.Is(err, groupmap.ErrRoleNotFound):
			respondError(w, http.StatusBadRequest, "role does not exist")
		default:
			respondError(w, http.StatusInternalServerError, "failed to create mapping")
		}
		return
	}

	respondJSON(w, http.StatusCreated, toMappingResponse(mapping))
}

// UpdateMapping changes the role or priority of a mapping.
func (h *Handler) UpdateMapping(w http.ResponseWriter, r *http.Request) {
	var req MappingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.RoleID == "" {
		respondError(w, http.StatusBadRequest, "role_id is required")
		return
	}

	mapping, err := h.mappings.UpdateMapping(r.Context(), chi.URLParam(r, "mappingID"), req.RoleID, req.Priority)
	if err != nil {
		switch {
		case errors.Is(err, groupmap.ErrMappingNotFound):
			respondError(w, http.StatusNotFound, "mapping not found")
		case errors.Is(err, groupmap.ErrRoleNotFound):
			respondError(w, http.StatusBadRequest, "role does not exist")
		default:
			respondError(w, http.StatusInternalServerError, "failed to update mapping")
		}
		return
	}

	respondJSON(w, http.StatusOK, toMappingResponse(mapping))
}

// DeleteMapping removes a mapping.
func (h *Handler) DeleteMapping(w http.ResponseWriter, r *http.Request) {
	if err := h.mappings.DeleteMapping(r.Context(), chi.URLParam(r, "mappingID")); err != nil {
		if errors.Is(err, groupmap.ErrMappingNotFound) {
			respondError(w, http.StatusNotFound, "mapping not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to delete mapping")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "mapping deleted"})
}
