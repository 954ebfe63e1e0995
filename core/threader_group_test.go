package core

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestThreaderGroup_JoinAll verifies JoinAll waits for every member
// Given: a group with three sleeping threaders
// When: JoinAll is called
// Then: it returns no errors and every member is NotRunning with its task done
func TestThreaderGroup_JoinAll(t *testing.T) {
	// Arrange
	g := NewThreaderGroup(NewNoOpLogger())
	var finished atomic.Int32

	// Act
	for i := 0; i < 3; i++ {
		_, size, err := g.CreateThreader(TaskFunc(func(ctx context.Context, th *Threader) error {
			th.Sleep(20 * time.Millisecond)
			finished.Add(1)
			return nil
		}), "sleeper")
		require.NoError(t, err)
		assert.Equal(t, i+1, size)
	}
	errs := g.JoinAll()

	// Assert
	assert.Empty(t, errs)
	assert.Equal(t, int32(3), finished.Load())
	assert.Equal(t, 3, g.Size())
	for _, th := range g.Threaders() {
		assert.Equal(t, NotRunning, th.State())
	}
}

// TestThreaderGroup_JoinAllContextCollectsFailures verifies failed joins are reported
// Given: a group with one finished and one blocked threader
// When: JoinAllContext is called with a short deadline
// Then: one error is returned for the blocked member
func TestThreaderGroup_JoinAllContextCollectsFailures(t *testing.T) {
	g := NewThreaderGroup(NewNoOpLogger())
	_, _, err := g.CreateThreader(TaskFunc(func(ctx context.Context, th *Threader) error { return nil }), "quick")
	require.NoError(t, err)
	_, _, err = g.CreateThreader(TaskFunc(func(ctx context.Context, th *Threader) error {
		<-ctx.Done()
		return nil
	}), "blocked")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	errs := g.JoinAllContext(ctx)

	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], context.DeadlineExceeded)

	g.InterruptAll()
	assert.Empty(t, g.JoinAll())
}

// TestThreaderGroup_DistinctThreads verifies members run on distinct threads
// Given: two long-living members blocked at the same time
// When: their ids are compared
// Then: they differ
func TestThreaderGroup_DistinctThreads(t *testing.T) {
	g := NewThreaderGroup(NewNoOpLogger())
	release := make(chan struct{})
	block := TaskFunc(func(ctx context.Context, th *Threader) error {
		<-release
		return nil
	})

	a, _, err := g.CreateThreader(block, "a")
	require.NoError(t, err)
	b, _, err := g.CreateThreader(block, "b")
	require.NoError(t, err)

	assert.NotEqual(t, a.ID(), b.ID())
	close(release)
	assert.Empty(t, g.JoinAll())
}

// TestThreaderGroup_CreateDuringJoinAll verifies JoinAll does not block creation
// Given: a member that creates a sibling only after JoinAll has started waiting on it
// When: JoinAll runs
// Then: the creation succeeds, JoinAll returns and the group holds both members
func TestThreaderGroup_CreateDuringJoinAll(t *testing.T) {
	g := NewThreaderGroup(NewNoOpLogger())
	joining := make(chan struct{})
	created := make(chan error, 1)

	_, _, err := g.CreateThreader(TaskFunc(func(ctx context.Context, th *Threader) error {
		<-joining
		_, _, err := g.CreateThreader(TaskFunc(func(ctx context.Context, th *Threader) error { return nil }), "child")
		created <- err
		return nil
	}), "parent")
	require.NoError(t, err)

	done := make(chan []error, 1)
	go func() { done <- g.JoinAll() }()
	time.Sleep(10 * time.Millisecond)
	close(joining)

	select {
	case errs := <-done:
		assert.Empty(t, errs)
	case <-time.After(2 * time.Second):
		t.Fatal("JoinAll blocked while a member was creating a threader")
	}
	require.NoError(t, <-created)
	assert.Equal(t, 2, g.Size())
	assert.Empty(t, g.JoinAll())
}

// TestThreaderGroup_Prune verifies finished members are dropped
// Given: one finished member and one still running
// When: Prune is called
// Then: one member is removed and the running one stays
func TestThreaderGroup_Prune(t *testing.T) {
	g := NewThreaderGroup(NewNoOpLogger())
	release := make(chan struct{})

	finished, _, err := g.CreateThreader(TaskFunc(func(ctx context.Context, th *Threader) error { return nil }), "finished")
	require.NoError(t, err)
	require.NoError(t, finished.Join())
	running, _, err := g.CreateThreader(TaskFunc(func(ctx context.Context, th *Threader) error {
		<-release
		return nil
	}), "running")
	require.NoError(t, err)

	assert.Equal(t, 1, g.Prune())
	assert.Equal(t, []*Threader{running}, g.Threaders())

	close(release)
	assert.Empty(t, g.JoinAll())
	assert.Equal(t, 1, g.Prune())
	assert.Equal(t, 0, g.Size())
}
