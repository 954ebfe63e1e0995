package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestOwnership_String verifies ownership labels
func TestOwnership_String(t *testing.T) {
	assert.Equal(t, "borrowed", Borrowed.String())
	assert.Equal(t, "owned", Owned.String())
	assert.Equal(t, "unknown", Ownership(7).String())
}

// TestDispose_OnlyOwnedDisposables verifies dispose honors ownership
// Given: a disposable task
// When: dispose is called as Borrowed and then as Owned
// Then: Dispose runs only for the Owned call; non-disposable tasks are ignored
func TestDispose_OnlyOwnedDisposables(t *testing.T) {
	task := &disposableTask{}

	dispose(task, Borrowed)
	assert.Equal(t, int32(0), task.disposed.Load())

	dispose(task, Owned)
	assert.Equal(t, int32(1), task.disposed.Load())

	assert.NotPanics(t, func() {
		dispose(TaskFunc(func(ctx context.Context, th *Threader) error { return nil }), Owned)
	})
}

// TestPoolState_String verifies state and policy labels used in logs
func TestPoolState_String(t *testing.T) {
	assert.Equal(t, "active", PoolActive.String())
	assert.Equal(t, "draining", PoolDraining.String())
	assert.Equal(t, "stopped", PoolStopped.String())
	assert.Equal(t, "deny", DrainDenyInvoke.String())
	assert.Equal(t, "running", Running.String())
}
