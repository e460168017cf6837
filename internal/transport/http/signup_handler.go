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

	"github.com/golang-jwt/jwt/v5"

	"github.com/tenantgrid/tenantgrid/internal/observability/logger"
	"github.com/tenantgrid/tenantgrid/internal/registry"
	"github.com/tenantgrid/tenantgrid/internal/signup"
)

// SignupRequest represents a password-based signup
type SignupRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	Name        string `json:"name"`
	Type        string `json:"type"` // PERSONAL or ORGANIZATION
	CompanyName string `json:"company_name,omitempty"`
	Tier        string `json:"tier,omitempty"`
}

// Signup runs the provisioning pipeline for a password-based signup.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	signupType, err := signup.ParseType(req.Type)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid signup type")
		return
	}
	if signupType.SSO() {
		respondError(w, http.StatusBadRequest, "SSO signups must use the sso endpoint")
		return
	}
	if signupType == signup.TypeOrganization && req.CompanyName == "" {
		respondError(w, http.StatusBadRequest, "company_name is required for organization signup")
		return
	}

	run := &signup.Context{
		Email:       strings.ToLower(strings.TrimSpace(req.Email)),
		Password:    req.Password,
		Name:        req.Name,
		Type:        signupType,
		CompanyName: req.CompanyName,
		Tier:        req.Tier,
	}

	h.runSignup(w, r, run)
}

// ssoClaims is the subset of the gateway-verified SSO token this service
// reads. The gateway has already validated the signature; the token is
// re-parsed here only to extract claims.
type ssoClaims struct {
	Email    string   `json:"email"`
	Name     string   `json:"name"`
	TenantID string   `json:"tenant_id"`
	Groups   []string `json:"groups"`
	jwt.RegisteredClaims
}

// CompleteSSOSignup provisions tenant-side state after a federated login.
func (h *Handler) CompleteSSOSignup(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		respondError(w, http.StatusUnauthorized, "bearer token is required")
		return
	}

	var claims ssoClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		respondError(w, http.StatusBadRequest, "malformed token")
		return
	}
	if claims.Email == "" || claims.Subject == "" {
		respondError(w, http.StatusBadRequest, "token is missing email or subject")
		return
	}

	signupType := signup.TypeSSOOIDC
	switch r.URL.Query().Get("provider") {
	case "saml":
		signupType = signup.TypeSSOSAML
	case "google":
		signupType = signup.TypeSSOGoogle
	}

	run := &signup.Context{
		Email:                  strings.ToLower(claims.Email),
		Name:                   claims.Name,
		Type:                   signupType,
		TenantID:               claims.TenantID,
		IdentityProviderUserID: claims.Subject,
		IdentityConfirmed:      true,
		SSOGroups:              claims.Groups,
	}

	h.runSignup(w, r, run)
}

func (h *Handler) runSignup(w http.ResponseWriter, r *http.Request, run *signup.Context) {
	result, err := h.pipeline.Run(r.Context(), run)
	if err != nil {
		slog.ErrorContext(r.Context(), "signup_failed",
			logger.Email(run.Email), logger.SignupType(run.Type.String()), logger.Error(err))

		status := http.StatusInternalServerError
		var actionErr *signup.ActionError
		if errors.As(err, &actionErr) {
			switch {
			case errors.Is(actionErr.Err, signup.ErrTenantIDTaken),
				errors.Is(actionErr.Err, signup.ErrEmailTaken),
				errors.Is(actionErr.Err, registry.ErrTenantAlreadyExists):
				status = http.StatusConflict
			case errors.Is(actionErr.Err, signup.ErrTenantIDRequired):
				status = http.StatusBadRequest
			}
		}
		respondJSON(w, status, result)
		return
	}

	respondJSON(w, http.StatusCreated, result)
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "Bearer ") {
		return auth[7:]
	}
	return ""
}
