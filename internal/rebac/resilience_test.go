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

package rebac

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errStoreDown = errors.New("store down")

// fakeClient counts calls and fails until failures is exhausted.
type fakeClient struct {
	calls    atomic.Int64
	failures int64 // fail the first N calls
	err      error
	allowed  bool
	objects  []string
}

func (f *fakeClient) fail() bool {
	return f.calls.Add(1) <= f.failures
}

func (f *fakeClient) Check(ctx context.Context, tuple Tuple) (bool, error) {
	if f.fail() {
		return false, f.err
	}
	return f.allowed, nil
}

func (f *fakeClient) WriteTuple(ctx context.Context, tuple Tuple) error {
	if f.fail() {
		return f.err
	}
	return nil
}

func (f *fakeClient) DeleteTuple(ctx context.Context, tuple Tuple) error {
	if f.fail() {
		return f.err
	}
	return nil
}

func (f *fakeClient) ListObjects(ctx context.Context, user, relation, objectType string) ([]string, error) {
	if f.fail() {
		return nil, f.err
	}
	return f.objects, nil
}

// testConfig keeps retries fast so the suite stays quick.
func testConfig() ResilienceConfig {
	cfg := DefaultResilienceConfig()
	cfg.InitialInterval = time.Millisecond
	cfg.CallTimeout = 100 * time.Millisecond
	return cfg
}

func TestCheckAllowsOnHealthyStore(t *testing.T) {
	client := &fakeClient{allowed: true}
	r := NewResilient(client, testConfig())

	assert.True(t, r.Check(context.Background(), "user:u1", "viewer", "document", "d1"))
	assert.Equal(t, int64(1), client.calls.Load())
}

func TestCheckRetriesTransientFailure(t *testing.T) {
	client := &fakeClient{allowed: true, failures: 2, err: errStoreDown}
	r := NewResilient(client, testConfig())

	assert.True(t, r.Check(context.Background(), "user:u1", "viewer", "document", "d1"))
	assert.Equal(t, int64(3), client.calls.Load())
}

func TestCheckFailsClosedOnExhaustedRetries(t *testing.T) {
	client := &fakeClient{allowed: true, failures: 10, err: errStoreDown}
	r := NewResilient(client, testConfig())

	assert.False(t, r.Check(context.Background(), "user:u1", "viewer", "document", "d1"))
	// 3 attempts, then give up.
	assert.Equal(t, int64(3), client.calls.Load())
}

func TestCheckInvalidInputNotRetried(t *testing.T) {
	client := &fakeClient{failures: 10, err: ErrInvalidInput}
	r := NewResilient(client, testConfig())

	assert.False(t, r.Check(context.Background(), "user:u1", "viewer", "document", "d1"))
	assert.Equal(t, int64(1), client.calls.Load())
}

func TestListObjectsReturnsNilWhenUnavailable(t *testing.T) {
	client := &fakeClient{failures: 10, err: errStoreDown}
	r := NewResilient(client, testConfig())

	assert.Nil(t, r.ListObjects(context.Background(), "user:u1", "viewer", "document"))
}

func TestListObjectsPassesThrough(t *testing.T) {
	client := &fakeClient{objects: []string{"d1", "d2"}}
	r := NewResilient(client, testConfig())

	assert.Equal(t, []string{"d1", "d2"}, r.ListObjects(context.Background(), "user:u1", "viewer", "document"))
}

func TestWriteTupleSwallowsFailure(t *testing.T) {
	client := &fakeClient{failures: 10, err: errStoreDown}
	r := NewResilient(client, testConfig())

	// Must not panic or block; failure is logged only.
	r.WriteTuple(context.Background(), "user:u1", "assignee", "role", "editor")
	assert.Equal(t, int64(3), client.calls.Load())
}

func TestDeleteTupleSwallowsFailure(t *testing.T) {
	client := &fakeClient{failures: 10, err: errStoreDown}
	r := NewResilient(client, testConfig())

	r.DeleteTuple(context.Background(), "user:u1", "assignee", "role", "editor")
	assert.Equal(t, int64(3), client.calls.Load())
}

func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	client := &fakeClient{failures: 1000, err: errStoreDown}
	cfg := testConfig()
	r := NewResilient(client, cfg)

	assert.Equal(t, "closed", r.State())

	// Each Check burns 3 attempts; 5 failed calls trip the 50% threshold.
	for i := 0; i < int(cfg.MinimumCalls); i++ {
		r.Check(context.Background(), "user:u1", "viewer", "document", "d1")
	}
	assert.Equal(t, "open", r.State())

	// While open the client is not touched at all.
	before := client.calls.Load()
	assert.False(t, r.Check(context.Background(), "user:u1", "viewer", "document", "d1"))
	assert.Equal(t, before, client.calls.Load())
}

func TestBreakerIgnoresValidationErrors(t *testing.T) {
	client := &fakeClient{failures: 1000, err: ErrInvalidInput}
	cfg := testConfig()
	r := NewResilient(client, cfg)

	for i := 0; i < int(cfg.MinimumCalls)*2; i++ {
		r.Check(context.Background(), "user:u1", "viewer", "document", "d1")
	}
	assert.Equal(t, "closed", r.State())
}

func TestStoreResolverFallsBackToDefault(t *testing.T) {
	resolver := NewStoreResolver(nil, "store-default")

	id, err := resolver.StoreID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "store-default", id)
}

func TestStoreResolverNoStoreConfigured(t *testing.T) {
	resolver := NewStoreResolver(nil, "")

	_, err := resolver.StoreID(context.Background())
	assert.ErrorIs(t, err, ErrNoStore)
}
