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
	"log/slog"
	"sort"

	"github.com/tenantgrid/tenantgrid/internal/audit"
	"github.com/tenantgrid/tenantgrid/internal/observability/logger"
)

// Pipeline runs a statically ordered action list. The list is assembled once
// at startup; nothing is discovered at runtime.
//
// A run is not cancellable mid-flight: it either completes, or a failure
// triggers synchronous rollback of the executed actions before control
// returns to the caller.
type Pipeline struct {
	actions     []Action
	auditLogger audit.Logger
}

// NewPipeline creates a pipeline over the given actions, sorted ascending by
// Order.
func NewPipeline(auditLogger audit.Logger, actions ...Action) *Pipeline {
	sorted := make([]Action, len(actions))
	copy(sorted, actions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Order() < sorted[j].Order()
	})
	return &Pipeline{actions: sorted, auditLogger: auditLogger}
}

// Run executes the pipeline for one signup. For each action in ascending
// order: skip entirely when unsupported; record as completed without side
// effects when its target state already exists; otherwise execute. The first
// execute failure stops forward progress, rolls back every action that
// executed in this run in strict descending order, and returns the failure
// wrapped as an ActionError.
func (p *Pipeline) Run(ctx context.Context, run *Context) (*Result, error) {
	slog.InfoContext(ctx, "signup_pipeline_start",
		logger.Email(run.Email), logger.SignupType(run.Type.String()))

	var executed []Action

	for _, action := range p.actions {
		if !action.Supports(run) {
			slog.DebugContext(ctx, "signup_action_skipped",
				logger.PipelineAction(action.Name()), logger.SignupType(run.Type.String()))
			continue
		}

		done, err := action.AlreadyDone(ctx, run)
		if err != nil {
			return p.abort(ctx, run, action, err, executed)
		}
		if done {
			slog.InfoContext(ctx, "signup_action_already_done",
				logger.PipelineAction(action.Name()))
			continue
		}

		if err := action.Execute(ctx, run); err != nil {
			return p.abort(ctx, run, action, err, executed)
		}
		executed = append(executed, action)
		slog.InfoContext(ctx, "signup_action_executed",
			logger.PipelineAction(action.Name()), logger.TenantID(run.TenantID))
	}

	p.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeSignupCompleted,
		TenantID: run.TenantID,
		ActorID:  run.IdentityProviderUserID,
		Resource: run.Email,
		Metadata: map[string]any{"signup_type": run.Type.String()},
	})

	message := "Signup complete. Please verify your email."
	requiresVerification := !run.IdentityConfirmed && !run.Type.SSO()
	if run.IdentityAlreadyExisted {
		message = "New workspace created. Please log in to access it."
		requiresVerification = false
	}

	return &Result{
		Success:                   true,
		Message:                   message,
		TenantID:                  run.TenantID,
		RequiresEmailVerification: requiresVerification,
	}, nil
}

// abort rolls back the executed actions in descending order and returns the
// wrapped failure. Rollback failures are logged for operator follow-up and
// never retried.
func (p *Pipeline) abort(ctx context.Context, run *Context, failed Action, cause error, executed []Action) (*Result, error) {
	slog.ErrorContext(ctx, "signup_action_failed",
		logger.PipelineAction(failed.Name()), logger.Email(run.Email), logger.Error(cause))

	for i := len(executed) - 1; i >= 0; i-- {
		action := executed[i]
		if err := action.Rollback(ctx, run); err != nil {
			slog.ErrorContext(ctx, "signup_rollback_failed",
				logger.PipelineAction(action.Name()), logger.TenantID(run.TenantID), logger.Error(err))
		} else {
			slog.InfoContext(ctx, "signup_action_rolled_back",
				logger.PipelineAction(action.Name()))
		}
	}

	p.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeSignupRolledBack,
		TenantID: run.TenantID,
		Resource: run.Email,
		Metadata: map[string]any{
			"failed_action":     failed.Name(),
			"rolled_back_count": len(executed),
			"signup_type":       run.Type.String(),
		},
	})

	actionErr := &ActionError{Action: failed.Name(), Err: cause, RolledBack: len(executed) > 0}
	return &Result{Success: false, Message: actionErr.Error()}, actionErr
}
