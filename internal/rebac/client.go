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

// Package rebac talks to the external fine-grained authorization store that
// evaluates relationship-based access checks. Each tenant has its own store;
// the store id comes from the tenant's registry config, with a shared default
// store for tenants that have none configured.
package rebac

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/tenantgrid/tenantgrid/internal/registry"
	"github.com/tenantgrid/tenantgrid/internal/tenantctx"
)

var (
	// ErrInvalidInput marks a validation failure in a tuple or check request.
	// Never retried by the resilience layer.
	ErrInvalidInput = errors.New("invalid relationship request")

	// ErrNoStore is returned when no store can be resolved for the request.
	ErrNoStore = errors.New("no authorization store configured")
)

// Tuple addresses one relationship edge in the store.
type Tuple struct {
	User       string `json:"user"`
	Relation   string `json:"relation"`
	ObjectType string `json:"object_type"`
	ObjectID   string `json:"object_id"`
}

// Client is the raw relationship-store surface, one logical store per tenant.
type Client interface {
	Check(ctx context.Context, tuple Tuple) (bool, error)
	WriteTuple(ctx context.Context, tuple Tuple) error
	DeleteTuple(ctx context.Context, tuple Tuple) error
	ListObjects(ctx context.Context, user, relation, objectType string) ([]string, error)
}

// StoreResolver maps the ambient tenant context to a store id.
type StoreResolver struct {
	reg            registry.Registry
	defaultStoreID string

	mu    sync.RWMutex
	cache map[string]string // tenant id -> store id
}

// NewStoreResolver creates a resolver. defaultStoreID may be "" when there is
// no shared store.
func NewStoreResolver(reg registry.Registry, defaultStoreID string) *StoreResolver {
	return &StoreResolver{
		reg:            reg,
		defaultStoreID: defaultStoreID,
		cache:          make(map[string]string),
	}
}

// StoreID returns the store id for the tenant in ctx, falling back to the
// shared default store when the tenant has none configured.
func (r *StoreResolver) StoreID(ctx context.Context) (string, error) {
	tenantID := tenantctx.TenantID(ctx)
	if tenantID == "" {
		if r.defaultStoreID == "" {
			return "", ErrNoStore
		}
		return r.defaultStoreID, nil
	}

	r.mu.RLock()
	id, ok := r.cache[tenantID]
	r.mu.RUnlock()
	if ok {
		return id, nil
	}

	cfg, err := r.reg.Load(ctx, tenantID)
	if err != nil {
		return "", fmt.Errorf("failed to resolve authorization store: %w", err)
	}
	id = cfg.AuthzStoreID
	if id == "" {
		id = r.defaultStoreID
	}
	if id == "" {
		return "", ErrNoStore
	}

	r.mu.Lock()
	r.cache[tenantID] = id
	r.mu.Unlock()
	return id, nil
}

// Evict drops the cached store id for a tenant.
func (r *StoreResolver) Evict(tenantID string) {
	r.mu.Lock()
	delete(r.cache, tenantID)
	r.mu.Unlock()
}

// HTTPClient implements Client against an OpenFGA-style HTTP API.
type HTTPClient struct {
	baseURL  string
	http     *http.Client
	resolver *StoreResolver
}

// NewHTTPClient creates a relationship-store client. httpClient carries the
// caller's timeout policy.
func NewHTTPClient(baseURL string, httpClient *http.Client, resolver *StoreResolver) *HTTPClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPClient{baseURL: baseURL, http: httpClient, resolver: resolver}
}

func (t Tuple) validate() error {
	if t.User == "" || t.Relation == "" || t.ObjectType == "" || t.ObjectID == "" {
		return fmt.Errorf("%w: user, relation, object type and object id are required", ErrInvalidInput)
	}
	return nil
}

func (t Tuple) object() string {
	return t.ObjectType + ":" + t.ObjectID
}

// Check asks the store whether the relationship holds.
func (c *HTTPClient) Check(ctx context.Context, tuple Tuple) (bool, error) {
	if err := tuple.validate(); err != nil {
		return false, err
	}
	storeID, err := c.resolver.StoreID(ctx)
	if err != nil {
		return false, err
	}

	body := map[string]any{
		"tuple_key": map[string]string{
			"user":     tuple.User,
			"relation": tuple.Relation,
			"object":   tuple.object(),
		},
	}
	var result struct {
		Allowed bool `json:"allowed"`
	}
	if err := c.post(ctx, fmt.Sprintf("/stores/%s/check", storeID), body, &result); err != nil {
		return false, err
	}
	return result.Allowed, nil
}

// WriteTuple adds a relationship edge.
func (c *HTTPClient) WriteTuple(ctx context.Context, tuple Tuple) error {
	return c.write(ctx, tuple, "writes")
}

// DeleteTuple removes a relationship edge.
func (c *HTTPClient) DeleteTuple(ctx context.Context, tuple Tuple) error {
	return c.write(ctx, tuple, "deletes")
}

func (c *HTTPClient) write(ctx context.Context, tuple Tuple, mode string) error {
	if err := tuple.validate(); err != nil {
		return err
	}
	storeID, err := c.resolver.StoreID(ctx)
	if err != nil {
		return err
	}

	body := map[string]any{
		mode: map[string]any{
			"tuple_keys": []map[string]string{{
				"user":     tuple.User,
				"relation": tuple.Relation,
				"object":   tuple.object(),
			}},
		},
	}
	return c.post(ctx, fmt.Sprintf("/stores/%s/write", storeID), body, nil)
}

// ListObjects returns the ids of objects of the given type the user has the
// relation to.
func (c *HTTPClient) ListObjects(ctx context.Context, user, relation, objectType string) ([]string, error) {
	if user == "" || relation == "" || objectType == "" {
		return nil, fmt.Errorf("%w: user, relation and object type are required", ErrInvalidInput)
	}
	storeID, err := c.resolver.StoreID(ctx)
	if err != nil {
		return nil, err
	}

	body := map[string]any{
		"user":     user,
		"relation": relation,
		"type":     objectType,
	}
	var result struct {
		Objects []string `json:"objects"`
	}
	if err := c.post(ctx, fmt.Sprintf("/stores/%s/list-objects", storeID), body, &result); err != nil {
		return nil, err
	}

	// Store returns "type:id" pairs; strip the type prefix.
	ids := make([]string, 0, len(result.Objects))
	prefix := objectType + ":"
	for _, obj := range result.Objects {
		if len(obj) > len(prefix) && obj[:len(prefix)] == prefix {
			ids = append(ids, obj[len(prefix):])
		} else {
			ids = append(ids, obj)
		}
	}
	return ids, nil
}

func (c *HTTPClient) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("authorization store unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusBadRequest {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%w: %s", ErrInvalidInput, string(msg))
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("authorization store returned status %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
