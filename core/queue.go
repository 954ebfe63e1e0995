package core

import (
	"cmp"
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/eapache/queue"
)

const defaultQueueCap = 16

// =============================================================================
// ProtectedQueue: FIFO container guarded by a mutex and a condition
// =============================================================================

// ProtectedQueue is a FIFO queue of T guarded by a mutex. Waiters are
// notified after every successful insertion.
type ProtectedQueue[T any] struct {
	mu    sync.Mutex
	cond  *Condition
	items *queue.Queue
}

// NewProtectedQueue creates an empty ProtectedQueue.
func NewProtectedQueue[T any]() *ProtectedQueue[T] {
	q := &ProtectedQueue[T]{items: queue.New()}
	q.cond = NewCondition(&q.mu)
	return q
}

// Clear removes all items.
func (q *ProtectedQueue[T]) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = queue.New()
}

// Push appends item and reports whether it became the head of the queue.
func (q *ProtectedQueue[T]) Push(item T) bool {
	q.mu.Lock()
	headChanged := q.items.Length() == 0
	q.items.Add(item)
	q.mu.Unlock()

	q.cond.NotifyAll()
	return headChanged
}

// Top returns the head without removing it.
func (q *ProtectedQueue[T]) Top() (T, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.items.Length() == 0 {
		var zero T
		return zero, ErrEmpty
	}
	return q.items.Peek().(T), nil
}

// Peek returns the head without removing it. The flag is false and the value
// is the zero T when the queue is empty.
func (q *ProtectedQueue[T]) Peek() (bool, T) {
	item, err := q.Top()
	return err == nil, item
}

// Pop removes and returns the head.
func (q *ProtectedQueue[T]) Pop() (T, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.items.Length() == 0 {
		var zero T
		return zero, ErrEmpty
	}
	return q.items.Remove().(T), nil
}

// PopAll removes every item under one lock acquisition and returns them in
// queue order.
func (q *ProtectedQueue[T]) PopAll() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]T, 0, q.items.Length())
	for q.items.Length() > 0 {
		out = append(out, q.items.Remove().(T))
	}
	return out
}

// IsEmpty reports whether the queue holds no items.
func (q *ProtectedQueue[T]) IsEmpty() bool {
	return q.Size() == 0
}

// Size returns the number of queued items.
func (q *ProtectedQueue[T]) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Length()
}

// WaitForItem blocks until an item is available, then removes and returns it.
func (q *ProtectedQueue[T]) WaitForItem() T {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.items.Length() == 0 {
		q.cond.Wait()
	}
	return q.items.Remove().(T)
}

// WaitForItemTimeout is WaitForItem bounded by timeout. It returns ErrTimeout
// if no item arrives before the deadline.
func (q *ProtectedQueue[T]) WaitForItemTimeout(timeout time.Duration) (T, error) {
	deadline := time.Now().Add(timeout)

	q.mu.Lock()
	defer q.mu.Unlock()

	for q.items.Length() == 0 {
		remaining := time.Until(deadline)
		if remaining <= 0 || !q.cond.WaitTimeout(remaining) {
			if q.items.Length() > 0 {
				break
			}
			var zero T
			return zero, ErrTimeout
		}
	}
	return q.items.Remove().(T), nil
}

// WaitForItemContext is WaitForItem bounded by ctx.
func (q *ProtectedQueue[T]) WaitForItemContext(ctx context.Context) (T, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.items.Length() == 0 {
		if err := q.cond.WaitContext(ctx); err != nil && q.items.Length() == 0 {
			var zero T
			return zero, err
		}
	}
	return q.items.Remove().(T), nil
}

// =============================================================================
// ProtectedPriorityQueue: Min-Heap ordered by a less function, FIFO on ties
// =============================================================================

type priorityItem[T any] struct {
	value    T
	sequence uint64 // For stability
	index    int    // For heap
}

type priorityHeap[T any] struct {
	items []*priorityItem[T]
	less  func(a, b T) bool
}

func (h *priorityHeap[T]) Len() int { return len(h.items) }

// Less orders by the user comparison, then by earlier sequence first (FIFO)
func (h *priorityHeap[T]) Less(i, j int) bool {
	a, b := h.items[i], h.items[j]
	if h.less(a.value, b.value) {
		return true
	}
	if h.less(b.value, a.value) {
		return false
	}
	return a.sequence < b.sequence
}

func (h *priorityHeap[T]) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.items[i].index = i
	h.items[j].index = j
}

func (h *priorityHeap[T]) Push(x any) {
	item := x.(*priorityItem[T])
	item.index = len(h.items)
	h.items = append(h.items, item)
}

func (h *priorityHeap[T]) Pop() any {
	old := h.items
	n := len(old)
	item := old[n-1]
	old[n-1] = nil // Avoid memory leak
	item.index = -1
	h.items = old[0 : n-1]
	return item
}

// ProtectedPriorityQueue is a queue of T ordered by a comparison function and
// guarded by a mutex. Items that compare equal leave in insertion order.
type ProtectedPriorityQueue[T any] struct {
	mu           sync.Mutex
	cond         *Condition
	pq           priorityHeap[T]
	nextSequence uint64
}

// NewProtectedPriorityQueue creates a queue whose head is the smallest item according to less.
func NewProtectedPriorityQueue[T any](less func(a, b T) bool) *ProtectedPriorityQueue[T] {
	if less == nil {
		panic("core: ProtectedPriorityQueue requires a less function")
	}
	q := &ProtectedPriorityQueue[T]{
		pq: priorityHeap[T]{
			items: make([]*priorityItem[T], 0, defaultQueueCap),
			less:  less,
		},
	}
	q.cond = NewCondition(&q.mu)
	return q
}

// NewOrderedPriorityQueue creates a priority queue using the natural ordering of T.
func NewOrderedPriorityQueue[T cmp.Ordered]() *ProtectedPriorityQueue[T] {
	return NewProtectedPriorityQueue(func(a, b T) bool { return cmp.Less(a, b) })
}

// Clear removes all items.
func (q *ProtectedPriorityQueue[T]) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pq.items = make([]*priorityItem[T], 0, defaultQueueCap)
	q.nextSequence = 0
}

func (q *ProtectedPriorityQueue[T]) pushLocked(v T) *priorityItem[T] {
	item := &priorityItem[T]{value: v, sequence: q.nextSequence}
	q.nextSequence++
	heap.Push(&q.pq, item)
	return item
}

// Push inserts item and reports whether it sorted to the front.
func (q *ProtectedPriorityQueue[T]) Push(item T) bool {
	q.mu.Lock()
	headChanged := q.pushLocked(item).index == 0
	q.mu.Unlock()

	q.cond.NotifyAll()
	return headChanged
}

// PushAll inserts every item with a single notification. It reports whether
// the head changed as a result.
func (q *ProtectedPriorityQueue[T]) PushAll(items []T) bool {
	if len(items) == 0 {
		return false
	}

	q.mu.Lock()
	var prev *priorityItem[T]
	if len(q.pq.items) > 0 {
		prev = q.pq.items[0]
	}
	for _, v := range items {
		q.pushLocked(v)
	}
	headChanged := q.pq.items[0] != prev
	q.mu.Unlock()

	q.cond.NotifyAll()
	return headChanged
}

// Top returns the head without removing it.
func (q *ProtectedPriorityQueue[T]) Top() (T, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pq.items) == 0 {
		var zero T
		return zero, ErrEmpty
	}
	// 0 is the head because Less puts the smallest item at the top
	return q.pq.items[0].value, nil
}

// Peek returns the head without removing it. The flag is false and the value
// is the zero T when the queue is empty.
func (q *ProtectedPriorityQueue[T]) Peek() (bool, T) {
	item, err := q.Top()
	return err == nil, item
}

// Pop removes and returns the head.
func (q *ProtectedPriorityQueue[T]) Pop() (T, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pq.items) == 0 {
		var zero T
		return zero, ErrEmpty
	}
	return heap.Pop(&q.pq).(*priorityItem[T]).value, nil
}

// PopAll removes every item and returns them in sort order.
func (q *ProtectedPriorityQueue[T]) PopAll() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]T, 0, len(q.pq.items))
	for len(q.pq.items) > 0 {
		out = append(out, heap.Pop(&q.pq).(*priorityItem[T]).value)
	}
	return out
}

// Remove erases every item equal to item (neither orders before the other)
// and returns how many were removed.
func (q *ProtectedPriorityQueue[T]) Remove(item T) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.pq.items[:0]
	for _, it := range q.pq.items {
		if !q.pq.less(it.value, item) && !q.pq.less(item, it.value) {
			continue
		}
		it.index = len(kept)
		kept = append(kept, it)
	}
	removed := len(q.pq.items) - len(kept)
	clear(q.pq.items[len(kept):])
	q.pq.items = kept
	if removed > 0 {
		heap.Init(&q.pq)
	}
	return removed
}

// IsEmpty reports whether the queue holds no items.
func (q *ProtectedPriorityQueue[T]) IsEmpty() bool {
	return q.Size() == 0
}

// Size returns the number of queued items.
func (q *ProtectedPriorityQueue[T]) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pq.items)
}

// WaitForItem blocks until an item is available, then removes and returns the head.
func (q *ProtectedPriorityQueue[T]) WaitForItem() T {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.pq.items) == 0 {
		q.cond.Wait()
	}
	return heap.Pop(&q.pq).(*priorityItem[T]).value
}

// WaitForItemTimeout is WaitForItem bounded by timeout. It returns ErrTimeout
// if no item arrives before the deadline.
func (q *ProtectedPriorityQueue[T]) WaitForItemTimeout(timeout time.Duration) (T, error) {
	deadline := time.Now().Add(timeout)

	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.pq.items) == 0 {
		remaining := time.Until(deadline)
		if remaining <= 0 || !q.cond.WaitTimeout(remaining) {
			if len(q.pq.items) > 0 {
				break
			}
			var zero T
			return zero, ErrTimeout
		}
	}
	return heap.Pop(&q.pq).(*priorityItem[T]).value, nil
}

// WaitForItemContext is WaitForItem bounded by ctx.
func (q *ProtectedPriorityQueue[T]) WaitForItemContext(ctx context.Context) (T, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.pq.items) == 0 {
		if err := q.cond.WaitContext(ctx); err != nil && len(q.pq.items) == 0 {
			var zero T
			return zero, err
		}
	}
	return heap.Pop(&q.pq).(*priorityItem[T]).value, nil
}
