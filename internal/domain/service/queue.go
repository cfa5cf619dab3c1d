package service

import "sync"

// GenerationRequest is one queued plan-generation work item.
type GenerationRequest struct {
	AgentID       string
	Command       string
	FirstPlan     bool
	CorrelationID string
}

// GenerationQueue is the in-process FIFO queue of pending generation
// requests. Callers enqueue and return immediately; the orchestrator
// drains at most one item per tick. Growth is unbounded: under load,
// depth grows rather than ticks taking longer.
type GenerationQueue struct {
	mu    sync.Mutex
	items []GenerationRequest
}

// NewGenerationQueue creates an empty queue.
func NewGenerationQueue() *GenerationQueue {
	return &GenerationQueue{}
}

// Enqueue appends a request.
func (q *GenerationQueue) Enqueue(req GenerationRequest) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, req)
}

// Dequeue pops the oldest request, reporting false when empty.
func (q *GenerationQueue) Dequeue() (GenerationRequest, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return GenerationRequest{}, false
	}
	head := q.items[0]
	q.items = q.items[1:]
	return head, true
}

// Len returns the current queue depth.
func (q *GenerationQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
