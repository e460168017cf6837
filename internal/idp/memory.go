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

package idp

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MemoryProvider is the development Provider: identities and federated
// connections held in process, passwords stored as Argon2id hashes.
type MemoryProvider struct {
	hasher *PasswordHasher

	mu        sync.RWMutex
	users     map[string]*memoryUser // keyed by id
	providers map[string]FederatedProviderConfig
}

type memoryUser struct {
	User
	passwordHash string
}

// NewMemoryProvider creates an empty in-memory provider.
func NewMemoryProvider(hasher *PasswordHasher) *MemoryProvider {
	if hasher == nil {
		hasher = DefaultHasher()
	}
	return &MemoryProvider{
		hasher:    hasher,
		users:     make(map[string]*memoryUser),
		providers: make(map[string]FederatedProviderConfig),
	}
}

// CreateOrGetUser registers the identity if absent; returns the existing
// primary identity otherwise.
func (p *MemoryProvider) CreateOrGetUser(ctx context.Context, email, password, name string, attrs map[string]string) (*CreateResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, u := range p.users {
		if strings.EqualFold(u.Email, email) && !u.Federated {
			return &CreateResult{ID: u.ID, Confirmed: u.Confirmed, AlreadyExists: true}, nil
		}
	}

	hash := ""
	if password != "" {
		var err error
		hash, err = p.hasher.Hash(password)
		if err != nil {
			return nil, err
		}
	}

	user := &memoryUser{
		User: User{
			ID:        uuid.NewString(),
			Email:     email,
			Name:      name,
			Confirmed: false,
			Federated: password == "",
		},
		passwordHash: hash,
	}
	p.users[user.ID] = user
	return &CreateResult{ID: user.ID, Confirmed: false, AlreadyExists: false}, nil
}

// AddFederatedIdentity records an identity created by a federated login.
// Test and dev helper; real providers create these during SSO callback.
func (p *MemoryProvider) AddFederatedIdentity(email, name string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	user := &memoryUser{
		User: User{
			ID:        uuid.NewString(),
			Email:     email,
			Name:      name,
			Confirmed: true,
			Federated: true,
		},
	}
	p.users[user.ID] = user
	return user.ID
}

// GetUserByEmail returns the primary (non-federated) identity for the email,
// or any identity when only federated ones exist.
func (p *MemoryProvider) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var federated *User
	for _, u := range p.users {
		if !strings.EqualFold(u.Email, email) {
			continue
		}
		if !u.Federated {
			user := u.User
			return &user, nil
		}
		user := u.User
		federated = &user
	}
	if federated != nil {
		return federated, nil
	}
	return nil, ErrUserNotFound
}

// ListUsersByEmail returns every identity id for the email.
func (p *MemoryProvider) ListUsersByEmail(ctx context.Context, email string) ([]string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var ids []string
	for _, u := range p.users {
		if strings.EqualFold(u.Email, email) {
			ids = append(ids, u.ID)
		}
	}
	return ids, nil
}

// DeleteUser removes one identity.
func (p *MemoryProvider) DeleteUser(ctx context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.users[id]; !ok {
		return ErrUserNotFound
	}
	delete(p.users, id)
	return nil
}

// VerifyPassword checks a password for dev login flows.
func (p *MemoryProvider) VerifyPassword(ctx context.Context, email, password string) (bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, u := range p.users {
		if strings.EqualFold(u.Email, email) && u.passwordHash != "" {
			return p.hasher.Verify(password, u.passwordHash)
		}
	}
	return false, ErrUserNotFound
}

// CreateOrUpdateFederatedProvider installs or replaces a connection.
func (p *MemoryProvider) CreateOrUpdateFederatedProvider(ctx context.Context, cfg FederatedProviderConfig) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.providers[cfg.Name] = cfg
	return nil
}

// DeleteFederatedProvider removes a connection by name.
func (p *MemoryProvider) DeleteFederatedProvider(ctx context.Context, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.providers[name]; !ok {
		return ErrProviderNotFound
	}
	delete(p.providers, name)
	return nil
}
