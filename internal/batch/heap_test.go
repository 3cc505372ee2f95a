package batch

import (
	"container/heap"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPriorityHeap_OrdersByRankThenEnqueueTime(t *testing.T) {
	h := &priorityHeap{}
	heap.Init(h)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	heap.Push(h, priorityEntry{rank: 1, enqueued: base, jobID: "normal-first"})
	heap.Push(h, priorityEntry{rank: 2, enqueued: base, jobID: "low"})
	heap.Push(h, priorityEntry{rank: 0, enqueued: base.Add(time.Second), jobID: "high-late"})
	heap.Push(h, priorityEntry{rank: 1, enqueued: base.Add(-time.Second), jobID: "normal-earlier"})

	var order []string
	for h.Len() > 0 {
		order = append(order, heap.Pop(h).(priorityEntry).jobID)
	}
	assert.Equal(t, []string{"high-late", "normal-earlier", "normal-first", "low"}, order)
}

func TestScheduledHeap_OrdersByFireTime(t *testing.T) {
	h := &scheduledHeap{}
	heap.Init(h)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	heap.Push(h, scheduledEntry{fireAt: base.Add(2 * time.Hour), jobID: "later"})
	heap.Push(h, scheduledEntry{fireAt: base, jobID: "soonest"})
	heap.Push(h, scheduledEntry{fireAt: base.Add(time.Hour), jobID: "middle"})

	var order []string
	for h.Len() > 0 {
		order = append(order, heap.Pop(h).(scheduledEntry).jobID)
	}
	assert.Equal(t, []string{"soonest", "middle", "later"}, order)
}
