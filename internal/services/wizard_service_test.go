package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWizardServiceLazyWorkspaces(t *testing.T) {
	svc := NewWizardService(fastOptions(), 0)
	defer svc.Close()

	a := svc.Workspace("a")
	assert.Same(t, a, svc.Workspace("a"))
	assert.NotSame(t, a, svc.Workspace("b"))
	assert.Equal(t, 2, svc.Count())

	_, err := a.SetStory("only a")
	require.NoError(t, err)
	assert.Empty(t, svc.Workspace("b").Snapshot().Story)

	_, ok := svc.Lookup("missing")
	assert.False(t, ok)
}

func TestWizardServiceEvictsIdleWorkspaces(t *testing.T) {
	svc := NewWizardService(fastOptions(), 0)
	defer svc.Close()

	idle := svc.Workspace("idle")
	watched := svc.Workspace("watched")
	_, cancel := watched.Subscribe()
	defer cancel()

	time.Sleep(20 * time.Millisecond)
	svc.Workspace("fresh")

	removed := svc.EvictIdle(10 * time.Millisecond)
	assert.Equal(t, 1, removed)

	_, ok := svc.Lookup("idle")
	assert.False(t, ok)
	_, ok = svc.Lookup("watched")
	assert.True(t, ok)

	_, err := idle.SetStory("after eviction")
	assert.Error(t, err)
}

func TestWizardServiceDiscardAndClose(t *testing.T) {
	svc := NewWizardService(fastOptions(), time.Minute)

	ws := svc.Workspace("a")
	_, err := ws.SetStory("story")
	require.NoError(t, err)
	_, err = ws.Analyze()
	require.NoError(t, err)

	svc.Discard("a")
	assert.Equal(t, 0, svc.Count())

	svc.Workspace("b")
	svc.Close()
	assert.Equal(t, 0, svc.Count())
}
