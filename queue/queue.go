// Package queue implements the engine's sole cross-worker coordination
// channel: a thread-safe min-priority queue of WorkItems.
package queue

import (
	"container/heap"
	"sync"

	"github.com/sable-labs/katana/unit"
)

// Action is the lifecycle action a WorkItem carries.
type Action int

const (
	// ActionInit means the item has never been dequeued; Generator is
	// absent and Unit.Enumerate() has not yet been called.
	ActionInit Action = iota
	// ActionEvaluate means the item has a live Generator and represents
	// the next case to pull from it.
	ActionEvaluate
	// ActionAbort carries no Unit; receiving a worker must exit.
	ActionAbort
)

// AbortPriority is the priority assigned to abort items so they jump
// ahead of any pending unit work.
const AbortPriority = -10000

// WorkItem is the scheduler's record for a single unit's progress through
// its case sequence.
type WorkItem struct {
	// Priority is copied from Unit.Priority() at enqueue time. Lower
	// values are served first; ties are unspecified.
	Priority int
	// Action is the lifecycle state of this item.
	Action Action
	// Unit is the bound analysis module. Nil for ActionAbort.
	Unit unit.Unit
	// Generator is the case iterator, populated on first dequeue.
	Generator unit.CaseSeq
}

// heapItem is WorkItem plus a monotonic sequence number used only to
// keep heap.Fix-free FIFO-ish behavior
// between items inserted at the same instant; per spec.md, equal-priority
// ordering is explicitly unspecified, so this is a convenience, not a
// guarantee callers may rely on.
type heapItem struct {
	item WorkItem
	seq  uint64
}

type itemHeap []heapItem

func (h itemHeap) Len() int { return len(h) }
func (h itemHeap) Less(i, j int) bool {
	if h[i].item.Priority != h[j].item.Priority {
		return h[i].item.Priority < h[j].item.Priority
	}
	return h[i].seq < h[j].seq
}
func (h itemHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *itemHeap) Push(x any)   { *h = append(*h, x.(heapItem)) }
func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

// WorkQueue is a thread-safe min-priority queue of WorkItems. It is the
// only mutable state shared by every worker goroutine.
type WorkQueue struct {
	mu      sync.Mutex
	heap    itemHeap
	nextSeq uint64
}

// New creates an empty WorkQueue.
func New() *WorkQueue {
	wq := &WorkQueue{}
	heap.Init(&wq.heap)
	return wq
}

// Enqueue adds item to the queue. Never blocks.
func (q *WorkQueue) Enqueue(item WorkItem) {
	q.mu.Lock()
	defer q.mu.Unlock()
	heap.Push(&q.heap, heapItem{item: item, seq: q.nextSeq})
	q.nextSeq++
}

// Dequeue removes and returns the lowest-priority item. The second return
// value is false if the queue was empty — this is the "empty" signal
// workers use to decide whether to rendezvous at the idle barrier.
func (q *WorkQueue) Dequeue() (WorkItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.heap.Len() == 0 {
		return WorkItem{}, false
	}
	hi := heap.Pop(&q.heap).(heapItem)
	return hi.item, true
}

// Len returns the current queue length. Advisory only — another
// goroutine may enqueue or dequeue immediately after this returns.
func (q *WorkQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.heap.Len()
}
