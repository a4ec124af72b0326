package queue_test

import (
	"testing"

	"github.com/sable-labs/katana/queue"
)

func TestDequeue_EmptyQueueSignalsFalse(t *testing.T) {
	q := queue.New()

	_, ok := q.Dequeue()
	if ok {
		t.Fatalf("Dequeue() on empty queue returned ok=true")
	}
}

func TestDequeue_OrdersByPriorityAscending(t *testing.T) {
	q := queue.New()

	q.Enqueue(queue.WorkItem{Priority: 5})
	q.Enqueue(queue.WorkItem{Priority: 1})
	q.Enqueue(queue.WorkItem{Priority: 3})

	var got []int
	for {
		item, ok := q.Dequeue()
		if !ok {
			break
		}
		got = append(got, item.Priority)
	}

	want := []int{1, 3, 5}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestDequeue_AbortPriorityJumpsQueue(t *testing.T) {
	q := queue.New()

	q.Enqueue(queue.WorkItem{Priority: -5})
	q.Enqueue(queue.WorkItem{Priority: queue.AbortPriority, Action: queue.ActionAbort})

	item, ok := q.Dequeue()
	if !ok {
		t.Fatalf("expected an item")
	}
	if item.Action != queue.ActionAbort {
		t.Fatalf("expected abort item to be dequeued first, got priority %d action %v", item.Priority, item.Action)
	}
}

func TestLen_TracksEnqueueDequeue(t *testing.T) {
	q := queue.New()
	if q.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", q.Len())
	}

	q.Enqueue(queue.WorkItem{Priority: 1})
	q.Enqueue(queue.WorkItem{Priority: 2})
	if q.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", q.Len())
	}

	q.Dequeue()
	if q.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", q.Len())
	}
}
