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
	"fmt"
)

// Action is one step of the provisioning pipeline. Implementations must be
// idempotent: AlreadyDone checks the target system's current state and must
// not depend on state created by this exact call, so a retried run
// short-circuits instead of duplicating external side effects.
type Action interface {
	// Name identifies the action in errors and logs.
	Name() string

	// Order positions the action in the pipeline; actions run ascending.
	Order() int

	// Supports reports whether the action applies to this signup.
	Supports(run *Context) bool

	// AlreadyDone reports whether the action's target state already exists.
	AlreadyDone(ctx context.Context, run *Context) (bool, error)

	// Execute performs the effect, mutating run with results.
	Execute(ctx context.Context, run *Context) error

	// Rollback compensates a completed Execute, best effort. Actions whose
	// external effect cannot safely be reverted log for manual cleanup and
	// return nil.
	Rollback(ctx context.Context, run *Context) error
}

// ActionError wraps a failed pipeline step with the step's name and whether
// compensation ran before the error was returned.
type ActionError struct {
	Action     string
	Err        error
	RolledBack bool
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("signup action %s failed: %v", e.Action, e.Err)
}

func (e *ActionError) Unwrap() error {
	return e.Err
}
