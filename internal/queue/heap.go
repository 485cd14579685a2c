// Package queue implements the in-memory priority queue that mirrors the
// durable url_queue frontier, plus the admission and recursive-enqueue
// logic layered on top of it.
package queue

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

// Item is one entry in the in-memory priority queue: a URL, its priority
// (lower is more urgent), and a monotonic insertion counter used to break
// ties FIFO.
type Item struct {
	URL      string
	Priority int
	counter  int64
}

// sentinel marks a shutdown wakeup; it carries no URL.
func sentinelItem(counter int64) *Item {
	return &Item{Priority: maxPriority, counter: counter}
}

// maxPriority is pushed N times on shutdown so every blocked worker wakes.
const maxPriority = 1 << 30

type itemHeap []*Item

func (h itemHeap) Len() int { return len(h) }

func (h itemHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority < h[j].Priority
	}
	return h[i].counter < h[j].counter
}

func (h itemHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *itemHeap) Push(x any) {
	*h = append(*h, x.(*Item))
}

func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[0 : n-1]
	return item
}

// PriorityQueue is a bounded, mutex-protected min-heap ordered by
// (priority asc, insertion_counter asc). Pop blocks when empty; a
// shutdown unblocks every waiting Pop by pushing a sentinel at
// maxPriority.
type PriorityQueue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	items   *itemHeap
	maxSize int
	counter int64
	closed  bool
}

// New builds an empty PriorityQueue bounded at maxSize.
func New(maxSize int) *PriorityQueue {
	h := &itemHeap{}
	heap.Init(h)
	q := &PriorityQueue{items: h, maxSize: maxSize}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push enqueues url at priority. Returns false if the queue is at
// capacity ("queue full") or has been closed.
func (q *PriorityQueue) Push(url string, priority int) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	if q.items.Len() >= q.maxSize {
		return false
	}

	q.counter++
	heap.Push(q.items, &Item{URL: url, Priority: priority, counter: q.counter})
	q.cond.Signal()
	return true
}

// maxWaitTimeout bounds each Cond.Wait so a cancelled ctx is noticed even
// with no Push/Close to wake it.
const maxWaitTimeout = 2 * time.Second

// Pop blocks until an item is available, the context is cancelled, or the
// queue is closed (in which case it returns nil, nil once all real items
// are drained). Sentinel items (pushed by Close) are consumed internally
// and never returned to the caller.
func (q *PriorityQueue) Pop(ctx context.Context) (*Item, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if q.items.Len() > 0 {
			item := heap.Pop(q.items).(*Item)
			if item.URL == "" {
				// Sentinel: surface shutdown to the caller.
				return nil, nil
			}
			return item, nil
		}

		if q.closed {
			return nil, nil
		}

		timer := time.AfterFunc(maxWaitTimeout, func() {
			q.mu.Lock()
			q.cond.Broadcast()
			q.mu.Unlock()
		})
		q.cond.Wait()
		timer.Stop()
	}
}

// Len reports the current queue depth.
func (q *PriorityQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// MaxSize returns the configured capacity.
func (q *PriorityQueue) MaxSize() int {
	return q.maxSize
}

// Close pushes n sentinel items at maxPriority so every blocked Pop
// unblocks, and marks the queue closed for further Push calls.
func (q *PriorityQueue) Close(workers int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	for i := 0; i < workers; i++ {
		q.counter++
		heap.Push(q.items, sentinelItem(q.counter))
	}
	q.cond.Broadcast()
}
