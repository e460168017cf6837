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
	"log/slog"
	"net/http"
	"strings"

	"github.com/tenantgrid/tenantgrid/internal/membership"
	"github.com/tenantgrid/tenantgrid/internal/observability/logger"
)

// DeleteAccountRequest identifies whose account to remove from the current
// tenant. Email must match the calling user; admins removing other members
// go through the membership management API instead.
type DeleteAccountRequest struct {
	Email string `json:"email"`
}

// DeleteAccount removes the caller's membership in the current tenant and,
// when it was their last one, their identity provider accounts.
func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	var req DeleteAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" {
		respondError(w, http.StatusBadRequest, "email is required")
		return
	}

	tenantID := GetTenantID(r.Context())
	email := strings.ToLower(strings.TrimSpace(req.Email))

	result, err := h.deletion.DeleteAccount(r.Context(), tenantID, email)
	if err != nil {
		if errors.Is(err, membership.ErrMembershipNotFound) {
			respondError(w, http.StatusNotFound, "membership not found")
			return
		}
		slog.ErrorContext(r.Context(), "account_deletion_failed",
			logger.TenantID(tenantID), logger.Email(email), logger.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to delete account")
		return
	}

	respondJSON(w, http.StatusOK, result)
}
