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

package signup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tenantgrid/tenantgrid/internal/registry"
)

var (
	// ErrTenantIDRequired means an SSO organization signup arrived without a
	// pre-assigned tenant identifier.
	ErrTenantIDRequired = errors.New("signup: tenant id required for SSO organization signup")

	// ErrTenantIDTaken means the derived organization identifier already
	// exists in the registry.
	ErrTenantIDTaken = errors.New("signup: tenant id already taken")
)

// TenantIDGenerator derives the tenant identifier for a signup run.
type TenantIDGenerator struct {
	reg registry.Registry
	now func() time.Time
}

func NewTenantIDGenerator(reg registry.Registry) *TenantIDGenerator {
	return &TenantIDGenerator{reg: reg, now: time.Now}
}

// Generate returns the tenant identifier for the run. Personal signups get a
// synthetic identifier derived from the email local part plus a millisecond
// suffix, which makes collisions implausible without a registry round trip.
// Organization signups derive a slug from the company name and reject it if
// the registry already knows it. SSO organization signups must arrive with a
// tenant identifier already assigned during SSO provisioning.
func (g *TenantIDGenerator) Generate(ctx context.Context, run *Context) (string, error) {
	switch {
	case run.Type == TypePersonal:
		return g.personalID(run.Email), nil
	case run.Type.SSO():
		if run.TenantID == "" {
			return "", ErrTenantIDRequired
		}
		return run.TenantID, nil
	default:
		slug := Slugify(run.CompanyName)
		if slug == "" {
			slug = Slugify(localPart(run.Email))
		}
		exists, err := g.reg.Exists(ctx, slug)
		if err != nil {
			return "", fmt.Errorf("check tenant id availability: %w", err)
		}
		if exists {
			return "", fmt.Errorf("%w: %s", ErrTenantIDTaken, slug)
		}
		return slug, nil
	}
}

// personalID builds `user-<sanitized local part>-<millisecond suffix>`.
func (g *TenantIDGenerator) personalID(email string) string {
	sanitized := sanitizeAlnum(localPart(email))
	if sanitized == "" {
		sanitized = "user"
	}
	millis := g.now().UnixMilli()
	return fmt.Sprintf("user-%s-%d", sanitized, millis%1_000_000)
}

func localPart(email string) string {
	if i := strings.IndexByte(email, '@'); i >= 0 {
		return email[:i]
	}
	return email
}

func sanitizeAlnum(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Slugify lowercases the input and collapses every run of non-alphanumeric
// characters into a single hyphen.
func Slugify(s string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastHyphen = false
		case !lastHyphen:
			b.WriteByte('-')
			lastHyphen = true
		}
	}
	return strings.Trim(b.String(), "-")
}
