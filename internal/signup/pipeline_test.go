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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tenantgrid/tenantgrid/internal/audit"
)

// fakeAction records calls into a shared trace so tests can assert ordering.
type fakeAction struct {
	name     string
	order    int
	supports bool
	done     bool

	doneErr     error
	executeErr  error
	rollbackErr error

	trace *[]string
}

func (a *fakeAction) Name() string               { return a.name }
func (a *fakeAction) Order() int                 { return a.order }
func (a *fakeAction) Supports(run *Context) bool { return a.supports }

func (a *fakeAction) AlreadyDone(ctx context.Context, run *Context) (bool, error) {
	return a.done, a.doneErr
}

func (a *fakeAction) Execute(ctx context.Context, run *Context) error {
	*a.trace = append(*a.trace, "execute:"+a.name)
	return a.executeErr
}

func (a *fakeAction) Rollback(ctx context.Context, run *Context) error {
	*a.trace = append(*a.trace, "rollback:"+a.name)
	return a.rollbackErr
}

func newFake(trace *[]string, name string, order int) *fakeAction {
	return &fakeAction{name: name, order: order, supports: true, trace: trace}
}

func TestPipelineRunsActionsInAscendingOrder(t *testing.T) {
	var trace []string
	// Registered out of order on purpose.
	p := NewPipeline(audit.NewSlogLogger(),
		newFake(&trace, "third", 30),
		newFake(&trace, "first", 10),
		newFake(&trace, "second", 20),
	)

	result, err := p.Run(context.Background(), &Context{Email: "a@b.com", Type: TypePersonal})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, []string{"execute:first", "execute:second", "execute:third"}, trace)
}

func TestPipelineSkipsUnsupportedActions(t *testing.T) {
	var trace []string
	skipped := newFake(&trace, "org-only", 20)
	skipped.supports = false

	p := NewPipeline(audit.NewSlogLogger(), newFake(&trace, "always", 10), skipped)

	_, err := p.Run(context.Background(), &Context{Email: "a@b.com", Type: TypePersonal})
	require.NoError(t, err)
	assert.Equal(t, []string{"execute:always"}, trace)
}

func TestPipelineSkipsAlreadyDoneWithoutExecuting(t *testing.T) {
	var trace []string
	done := newFake(&trace, "done", 10)
	done.done = true
	after := newFake(&trace, "after", 20)

	p := NewPipeline(audit.NewSlogLogger(), done, after)

	result, err := p.Run(context.Background(), &Context{Email: "a@b.com", Type: TypePersonal})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, []string{"execute:after"}, trace)
}

func TestPipelineRollsBackExecutedActionsInDescendingOrder(t *testing.T) {
	var trace []string
	first := newFake(&trace, "first", 10)
	second := newFake(&trace, "second", 20)
	failing := newFake(&trace, "failing", 30)
	failing.executeErr = errors.New("boom")
	never := newFake(&trace, "never", 40)

	p := NewPipeline(audit.NewSlogLogger(), first, second, failing, never)

	result, err := p.Run(context.Background(), &Context{Email: "a@b.com", Type: TypePersonal})
	require.Error(t, err)
	assert.False(t, result.Success)

	var actionErr *ActionError
	require.ErrorAs(t, err, &actionErr)
	assert.Equal(t, "failing", actionErr.Action)
	assert.True(t, actionErr.RolledBack)
	assert.ErrorContains(t, actionErr, "boom")

	assert.Equal(t, []string{
		"execute:first",
		"execute:second",
		"execute:failing",
		"rollback:second",
		"rollback:first",
	}, trace)
}

func TestPipelineDoesNotRollBackAlreadyDoneActions(t *testing.T) {
	var trace []string
	done := newFake(&trace, "preexisting", 10)
	done.done = true
	failing := newFake(&trace, "failing", 20)
	failing.executeErr = errors.New("boom")

	p := NewPipeline(audit.NewSlogLogger(), done, failing)

	_, err := p.Run(context.Background(), &Context{Email: "a@b.com", Type: TypePersonal})
	require.Error(t, err)
	// The pre-existing state was not created by this run; it must survive.
	assert.Equal(t, []string{"execute:failing"}, trace)
}

func TestPipelineAlreadyDoneErrorAborts(t *testing.T) {
	var trace []string
	first := newFake(&trace, "first", 10)
	checking := newFake(&trace, "checking", 20)
	checking.doneErr = errors.New("lookup failed")

	p := NewPipeline(audit.NewSlogLogger(), first, checking)

	_, err := p.Run(context.Background(), &Context{Email: "a@b.com", Type: TypePersonal})
	require.Error(t, err)
	assert.Equal(t, []string{"execute:first", "rollback:first"}, trace)
}

func TestPipelineContinuesRollbackWhenOneRollbackFails(t *testing.T) {
	var trace []string
	first := newFake(&trace, "first", 10)
	second := newFake(&trace, "second", 20)
	second.rollbackErr = errors.New("rollback failed")
	failing := newFake(&trace, "failing", 30)
	failing.executeErr = errors.New("boom")

	p := NewPipeline(audit.NewSlogLogger(), first, second, failing)

	_, err := p.Run(context.Background(), &Context{Email: "a@b.com", Type: TypePersonal})
	require.Error(t, err)
	assert.Equal(t, []string{
		"execute:first",
		"execute:second",
		"execute:failing",
		"rollback:second",
		"rollback:first",
	}, trace)
}

func TestPipelineResultMessages(t *testing.T) {
	var trace []string

	t.Run("fresh identity requires verification", func(t *testing.T) {
		p := NewPipeline(audit.NewSlogLogger(), newFake(&trace, "noop", 10))
		result, err := p.Run(context.Background(), &Context{Email: "a@b.com", Type: TypePersonal})
		require.NoError(t, err)
		assert.True(t, result.RequiresEmailVerification)
	})

	t.Run("existing identity gets workspace message", func(t *testing.T) {
		p := NewPipeline(audit.NewSlogLogger(), newFake(&trace, "noop", 10))
		result, err := p.Run(context.Background(), &Context{
			Email: "a@b.com", Type: TypeOrganization, IdentityAlreadyExisted: true,
		})
		require.NoError(t, err)
		assert.False(t, result.RequiresEmailVerification)
		assert.Contains(t, result.Message, "log in")
	})

	t.Run("sso needs no verification", func(t *testing.T) {
		p := NewPipeline(audit.NewSlogLogger(), newFake(&trace, "noop", 10))
		result, err := p.Run(context.Background(), &Context{
			Email: "a@b.com", Type: TypeSSOOIDC, IdentityConfirmed: true,
		})
		require.NoError(t, err)
		assert.False(t, result.RequiresEmailVerification)
	})
}
