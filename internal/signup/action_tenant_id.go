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

import "context"

// GenerateTenantIDAction derives the tenant identifier before anything is
// persisted. It runs first so every later action can rely on run.TenantID.
type GenerateTenantIDAction struct {
	gen *TenantIDGenerator
}

func NewGenerateTenantIDAction(gen *TenantIDGenerator) *GenerateTenantIDAction {
	return &GenerateTenantIDAction{gen: gen}
}

func (a *GenerateTenantIDAction) Name() string { return "generate-tenant-id" }
func (a *GenerateTenantIDAction) Order() int   { return 10 }

func (a *GenerateTenantIDAction) Supports(run *Context) bool { return true }

func (a *GenerateTenantIDAction) AlreadyDone(ctx context.Context, run *Context) (bool, error) {
	return run.TenantID != "", nil
}

func (a *GenerateTenantIDAction) Execute(ctx context.Context, run *Context) error {
	id, err := a.gen.Generate(ctx, run)
	if err != nil {
		return err
	}
	run.TenantID = id
	return nil
}

// Rollback only undoes in-memory state; no external system was touched.
func (a *GenerateTenantIDAction) Rollback(ctx context.Context, run *Context) error {
	run.TenantID = ""
	return nil
}
