package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestProtectedQueue_FIFO verifies PopAll preserves push order
// Given: a ProtectedQueue with pushes 1, 2, 3
// When: PopAll is called
// Then: the result is [1 2 3] and the queue is empty
func TestProtectedQueue_FIFO(t *testing.T) {
	// Arrange
	q := NewProtectedQueue[int]()

	// Act
	assert.True(t, q.Push(1), "first push becomes the head")
	assert.False(t, q.Push(2))
	assert.False(t, q.Push(3))
	all := q.PopAll()

	// Assert
	assert.Equal(t, []int{1, 2, 3}, all)
	assert.True(t, q.IsEmpty())
	assert.Empty(t, q.PopAll())
}

// TestProtectedQueue_EmptyReads verifies non-blocking reads on an empty queue
// Given: an empty queue
// When: Pop, Top and Peek are called
// Then: Pop and Top return ErrEmpty and Peek reports not found
func TestProtectedQueue_EmptyReads(t *testing.T) {
	q := NewProtectedQueue[string]()

	_, err := q.Pop()
	assert.ErrorIs(t, err, ErrEmpty)
	_, err = q.Top()
	assert.ErrorIs(t, err, ErrEmpty)
	found, v := q.Peek()
	assert.False(t, found)
	assert.Equal(t, "", v)
}

// TestProtectedQueue_TopDoesNotRemove verifies Top and Peek leave the head in place
// Given: a queue with "a" then "b"
// When: Top and Peek are called before Pop
// Then: all three see "a" and Size drops only after Pop
func TestProtectedQueue_TopDoesNotRemove(t *testing.T) {
	q := NewProtectedQueue[string]()
	q.Push("a")
	q.Push("b")

	top, err := q.Top()
	require.NoError(t, err)
	found, peeked := q.Peek()
	assert.True(t, found)
	assert.Equal(t, 2, q.Size())

	popped, err := q.Pop()
	require.NoError(t, err)
	assert.Equal(t, "a", top)
	assert.Equal(t, "a", peeked)
	assert.Equal(t, "a", popped)
	assert.Equal(t, 1, q.Size())

	q.Clear()
	assert.True(t, q.IsEmpty())
}

// TestProtectedQueue_WaitForItemTimeout verifies a bounded wait on an empty queue
// Given: an empty queue
// When: WaitForItemTimeout(50ms) is called
// Then: ErrTimeout is returned after at least 50ms
func TestProtectedQueue_WaitForItemTimeout(t *testing.T) {
	q := NewProtectedQueue[int]()

	start := time.Now()
	_, err := q.WaitForItemTimeout(50 * time.Millisecond)

	assert.ErrorIs(t, err, ErrTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

// TestProtectedQueue_WaitForItemWakesOnPush verifies blocked consumers receive pushed items
// Given: a consumer blocked in WaitForItem
// When: a producer pushes 42
// Then: the consumer returns 42
func TestProtectedQueue_WaitForItemWakesOnPush(t *testing.T) {
	q := NewProtectedQueue[int]()
	got := make(chan int, 1)
	go func() { got <- q.WaitForItem() }()

	time.Sleep(10 * time.Millisecond)
	q.Push(42)

	select {
	case v := <-got:
		assert.Equal(t, 42, v)
	case <-time.After(time.Second):
		t.Fatal("WaitForItem did not wake")
	}
}

// TestProtectedQueue_WaitForItemContext verifies context-bounded waits
// Given: an empty queue and a context with a 20ms deadline
// When: WaitForItemContext is called
// Then: context.DeadlineExceeded is returned
func TestProtectedQueue_WaitForItemContext(t *testing.T) {
	q := NewProtectedQueue[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.WaitForItemContext(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// TestProtectedQueue_ConcurrentProducers verifies no item is lost under contention
// Given: 4 producers pushing 250 items each and one consumer
// When: the consumer takes 1000 items with WaitForItemTimeout
// Then: every item arrives exactly once
func TestProtectedQueue_ConcurrentProducers(t *testing.T) {
	q := NewProtectedQueue[int]()
	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < 250; i++ {
				q.Push(base*250 + i)
			}
		}(p)
	}

	seen := make(map[int]bool, 1000)
	for i := 0; i < 1000; i++ {
		v, err := q.WaitForItemTimeout(2 * time.Second)
		require.NoError(t, err)
		require.False(t, seen[v], "duplicate item %d", v)
		seen[v] = true
	}
	wg.Wait()
	assert.Len(t, seen, 1000)
	assert.True(t, q.IsEmpty())
}

// TestProtectedPriorityQueue_Ordering verifies items leave in sort order
// Given: an ordered priority queue with pushes 5, 1, 3
// When: items are popped
// Then: they come out as 1, 3, 5
func TestProtectedPriorityQueue_Ordering(t *testing.T) {
	// Arrange
	q := NewOrderedPriorityQueue[int]()

	// Act
	assert.True(t, q.Push(5))
	assert.True(t, q.Push(1), "smaller item becomes the head")
	assert.False(t, q.Push(3))

	// Assert
	for _, want := range []int{1, 3, 5} {
		got, err := q.Pop()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := q.Pop()
	assert.ErrorIs(t, err, ErrEmpty)
}

type job struct {
	priority int
	name     string
}

// TestProtectedPriorityQueue_StableTies verifies equal items keep insertion order
// Given: jobs with priorities 2, 1, 2, 1 pushed in that order
// When: PopAll is called
// Then: priority 1 jobs come first, each priority in insertion order
func TestProtectedPriorityQueue_StableTies(t *testing.T) {
	q := NewProtectedPriorityQueue(func(a, b job) bool { return a.priority < b.priority })
	q.Push(job{2, "a"})
	q.Push(job{1, "b"})
	q.Push(job{2, "c"})
	q.Push(job{1, "d"})

	var names []string
	for _, j := range q.PopAll() {
		names = append(names, j.name)
	}
	assert.Equal(t, []string{"b", "d", "a", "c"}, names)
}

// TestProtectedPriorityQueue_Remove verifies Remove erases every equal item
// Given: a queue holding 4, 2, 4, 7, 4
// When: Remove(4) is called
// Then: 3 items are removed and the rest still pop in order
func TestProtectedPriorityQueue_Remove(t *testing.T) {
	q := NewOrderedPriorityQueue[int]()
	q.PushAll([]int{4, 2, 4, 7, 4})

	removed := q.Remove(4)

	assert.Equal(t, 3, removed)
	assert.Equal(t, 0, q.Remove(99))
	assert.Equal(t, []int{2, 7}, q.PopAll())
}

// TestProtectedPriorityQueue_PushAll verifies bulk insertion reports head changes
// Given: a queue whose head is 3
// When: PushAll adds [5 9] and then [8 1]
// Then: the first call leaves the head alone and the second replaces it
func TestProtectedPriorityQueue_PushAll(t *testing.T) {
	q := NewOrderedPriorityQueue[int]()
	q.Push(3)

	assert.False(t, q.PushAll([]int{5, 9}))
	assert.True(t, q.PushAll([]int{8, 1}))
	assert.False(t, q.PushAll(nil))

	found, head := q.Peek()
	assert.True(t, found)
	assert.Equal(t, 1, head)
	assert.Equal(t, 5, q.Size())
}

// TestProtectedPriorityQueue_WaitForItemTimeout verifies bounded waits on the priority variant
// Given: an empty priority queue
// When: WaitForItemTimeout(30ms) is called, then an item is pushed from another goroutine during a second wait
// Then: the first wait times out and the second returns the item
func TestProtectedPriorityQueue_WaitForItemTimeout(t *testing.T) {
	q := NewOrderedPriorityQueue[string]()

	_, err := q.WaitForItemTimeout(30 * time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)

	go func() {
		time.Sleep(10 * time.Millisecond)
		q.Push("late")
	}()
	v, err := q.WaitForItemTimeout(2 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, "late", v)
}

// TestNewProtectedPriorityQueue_NilLessPanics verifies the constructor rejects a nil comparison
func TestNewProtectedPriorityQueue_NilLessPanics(t *testing.T) {
	assert.Panics(t, func() { NewProtectedPriorityQueue[int](nil) })
}
