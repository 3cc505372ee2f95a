package batch

import (
	"container/heap"
	"time"
)

// priorityEntry is spec §3.1's PriorityEntry: (priority_rank, enqueue_ts, job_id).
type priorityEntry struct {
	rank     int
	enqueued time.Time
	jobID    string
}

type priorityHeap []priorityEntry

func (h priorityHeap) Len() int { return len(h) }
func (h priorityHeap) Less(i, j int) bool {
	if h[i].rank != h[j].rank {
		return h[i].rank < h[j].rank
	}
	return h[i].enqueued.Before(h[j].enqueued)
}
func (h priorityHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *priorityHeap) Push(x any)        { *h = append(*h, x.(priorityEntry)) }
func (h *priorityHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// scheduledEntry is spec §3.1's ScheduledEntry: (scheduled_time, job_id).
type scheduledEntry struct {
	fireAt time.Time
	jobID  string
}

type scheduledHeap []scheduledEntry

func (h scheduledHeap) Len() int            { return len(h) }
func (h scheduledHeap) Less(i, j int) bool  { return h[i].fireAt.Before(h[j].fireAt) }
func (h scheduledHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *scheduledHeap) Push(x any)         { *h = append(*h, x.(scheduledEntry)) }
func (h *scheduledHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

var (
	_ heap.Interface = (*priorityHeap)(nil)
	_ heap.Interface = (*scheduledHeap)(nil)
)
