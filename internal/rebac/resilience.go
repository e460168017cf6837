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
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tenantgrid/tenantgrid/internal/observability/logger"
)

// ResilienceConfig tunes the retry and circuit breaker wrapping every
// relationship-store call.
type ResilienceConfig struct {
	MaxAttempts     uint          // total attempts per call, retries included
	InitialInterval time.Duration // first backoff wait, doubled per attempt
	CallTimeout     time.Duration // per-attempt deadline

	// Breaker: trips when the failure rate reaches FailureRateThreshold over
	// a window of at least MinimumCalls, stays open for OpenTimeout, then
	// half-opens allowing HalfOpenMaxCalls probes.
	FailureRateThreshold float64
	MinimumCalls         uint32
	WindowInterval       time.Duration
	OpenTimeout          time.Duration
	HalfOpenMaxCalls     uint32
}

// DefaultResilienceConfig mirrors production tuning: 3 attempts with 100ms
// doubling backoff, breaker at 50% failures over at least 5 recent calls,
// 30s cooldown.
func DefaultResilienceConfig() ResilienceConfig {
	return ResilienceConfig{
		MaxAttempts:          3,
		InitialInterval:      100 * time.Millisecond,
		CallTimeout:          2 * time.Second,
		FailureRateThreshold: 0.5,
		MinimumCalls:         5,
		WindowInterval:       10 * time.Second,
		OpenTimeout:          30 * time.Second,
		HalfOpenMaxCalls:     3,
	}
}

// Resilient wraps a Client with bounded exponential-backoff retry inside a
// single process-wide circuit breaker. The breaker is shared across tenants:
// the dependency's availability is not tenant-specific.
//
// Failure semantics: reads fail closed (deny, nil error), writes fail silent
// (log only). The store being down must never crash or block a caller beyond
// the configured timeout.
type Resilient struct {
	client Client
	cfg    ResilienceConfig
	cb     *gobreaker.CircuitBreaker[any]
}

// NewResilient wraps client with retry and circuit breaking.
func NewResilient(client Client, cfg ResilienceConfig) *Resilient {
	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "rebac-store",
		MaxRequests: cfg.HalfOpenMaxCalls,
		Interval:    cfg.WindowInterval,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinimumCalls {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRateThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("rebac_breaker_state_change",
				logger.Component(name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
		IsSuccessful: func(err error) bool {
			// Validation failures are the caller's fault, not store health.
			return err == nil || errors.Is(err, ErrInvalidInput)
		},
	})
	return &Resilient{client: client, cfg: cfg, cb: cb}
}

// State returns the breaker state name for health reporting.
func (r *Resilient) State() string {
	return r.cb.State().String()
}

// execute runs op through the breaker with bounded retry. Validation errors
// are permanent and never retried.
func (r *Resilient) execute(ctx context.Context, op func(ctx context.Context) error) error {
	_, err := r.cb.Execute(func() (any, error) {
		policy := backoff.NewExponentialBackOff()
		policy.InitialInterval = r.cfg.InitialInterval
		retries := backoff.WithMaxRetries(policy, uint64(r.cfg.MaxAttempts-1))

		return nil, backoff.Retry(func() error {
			attemptCtx, cancel := context.WithTimeout(ctx, r.cfg.CallTimeout)
			defer cancel()

			err := op(attemptCtx)
			if errors.Is(err, ErrInvalidInput) {
				return backoff.Permanent(err)
			}
			return err
		}, backoff.WithContext(retries, ctx))
	})
	return err
}

// Check evaluates the relationship. On retry exhaustion, an open circuit, or
// any other failure the answer is deny: reads fail closed.
func (r *Resilient) Check(ctx context.Context, user, relation, objectType, objectID string) bool {
	tuple := Tuple{User: user, Relation: relation, ObjectType: objectType, ObjectID: objectID}

	var allowed bool
	err := r.execute(ctx, func(ctx context.Context) error {
		var err error
		allowed, err = r.client.Check(ctx, tuple)
		return err
	})
	if err != nil {
		slog.WarnContext(ctx, "rebac_check_failed_closed",
			logger.Relation(relation), logger.Resource(objectType+":"+objectID),
			slog.String("breaker_state", r.cb.State().String()),
			logger.Error(err))
		return false
	}
	return allowed
}

// ListObjects returns the object ids the user relates to, or nil when the
// store is unavailable.
func (r *Resilient) ListObjects(ctx context.Context, user, relation, objectType string) []string {
	var objects []string
	err := r.execute(ctx, func(ctx context.Context) error {
		var err error
		objects, err = r.client.ListObjects(ctx, user, relation, objectType)
		return err
	})
	if err != nil {
		slog.WarnContext(ctx, "rebac_list_failed_closed",
			logger.Relation(relation), logger.Resource(objectType),
			logger.Error(err))
		return nil
	}
	return objects
}

// WriteTuple records a relationship edge. Failures are logged and swallowed:
// a write must never surface an error to the caller.
func (r *Resilient) WriteTuple(ctx context.Context, user, relation, objectType, objectID string) {
	tuple := Tuple{User: user, Relation: relation, ObjectType: objectType, ObjectID: objectID}
	err := r.execute(ctx, func(ctx context.Context) error {
		return r.client.WriteTuple(ctx, tuple)
	})
	if err != nil {
		slog.WarnContext(ctx, "rebac_write_failed_silent",
			logger.Relation(relation), logger.Resource(objectType+":"+objectID),
			slog.String("breaker_state", r.cb.State().String()),
			logger.Error(err))
	}
}

// DeleteTuple removes a relationship edge, with the same silent-failure
// semantics as WriteTuple.
func (r *Resilient) DeleteTuple(ctx context.Context, user, relation, objectType, objectID string) {
	tuple := Tuple{User: user, Relation: relation, ObjectType: objectType, ObjectID: objectID}
	err := r.execute(ctx, func(ctx context.Context) error {
		return r.client.DeleteTuple(ctx, tuple)
	})
	if err != nil {
		slog.WarnContext(ctx, "rebac_delete_failed_silent",
			logger.Relation(relation), logger.Resource(objectType+":"+objectID),
			logger.Error(err))
	}
}
