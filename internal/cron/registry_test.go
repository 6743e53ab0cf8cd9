package cron

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryStoresJobsInOrder(t *testing.T) {
	escalation := &stubJob{name: "approval-escalation"}
	retention := &stubJob{name: "outbox-retention"}
	registry := NewRegistry(escalation, nil, retention)

	jobs := registry.Jobs()
	require.Len(t, jobs, 2)
	assert.Same(t, escalation, jobs[0])
	assert.Same(t, retention, jobs[1])
	assert.Equal(t, []string{"approval-escalation", "outbox-retention"}, registry.Names())

	// callers cannot mutate the internal slice
	jobs[0] = nil
	assert.NotNil(t, registry.Jobs()[0])
}

func TestRegistryRejectsDuplicateNames(t *testing.T) {
	registry := NewRegistry()
	assert.True(t, registry.Register(&stubJob{name: "approval-escalation"}))
	assert.False(t, registry.Register(&stubJob{name: "approval-escalation"}))
	assert.False(t, registry.Register(nil))
	assert.Len(t, registry.Jobs(), 1)
}
