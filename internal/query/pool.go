package query

import (
	"sync"
	"sync/atomic"
)

// Pool is the process-wide query_id -> Query map. IDs are assigned by a
// monotonic counter incremented atomically at ingress (spec.md §4.6,
// invariant in §8: query_id is unique and strictly increasing). Queries
// are removed once their pipeline run completes, successfully or not.
//
// The pool doubles as the cooperative-cancellation registry: Interrupt
// marks a query_id for abort, and IsInterrupted is polled by stages at
// natural yield points.
type Pool struct {
	counter int64

	mu      sync.RWMutex
	queries map[int64]*Query

	interruptMu sync.Mutex
	interrupt   map[int64]struct{}
}

// NewPool constructs an empty query pool.
func NewPool() *Pool {
	return &Pool{
		queries:   make(map[int64]*Query),
		interrupt: make(map[int64]struct{}),
	}
}

// NextID returns a fresh, process-wide strictly-increasing query id.
func (p *Pool) NextID() int64 {
	return atomic.AddInt64(&p.counter, 1)
}

// Register assigns q a fresh id (if it doesn't already have one) and
// stores it in the pool, returning the id.
func (p *Pool) Register(q *Query) int64 {
	if q.QueryID == 0 {
		q.QueryID = p.NextID()
	}
	p.mu.Lock()
	p.queries[q.QueryID] = q
	p.mu.Unlock()
	return q.QueryID
}

// Get returns the query registered under id, if still present.
func (p *Pool) Get(id int64) (*Query, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	q, ok := p.queries[id]
	return q, ok
}

// Remove deregisters a query at the end of its pipeline run (success or
// terminal error) and clears any pending interrupt flag for it.
func (p *Pool) Remove(id int64) {
	p.mu.Lock()
	delete(p.queries, id)
	p.mu.Unlock()

	p.interruptMu.Lock()
	delete(p.interrupt, id)
	p.interruptMu.Unlock()
}

// Len returns the number of queries currently in flight.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.queries)
}

// Interrupt marks id for cooperative cancellation. Returns false if the
// id is not currently registered (nothing to cancel).
func (p *Pool) Interrupt(id int64) bool {
	p.mu.RLock()
	_, ok := p.queries[id]
	p.mu.RUnlock()
	if !ok {
		return false
	}

	p.interruptMu.Lock()
	p.interrupt[id] = struct{}{}
	p.interruptMu.Unlock()
	return true
}

// IsInterrupted reports whether id has been marked for cancellation.
// Stages call this at natural yield points (before expensive work,
// between streamed LLM chunks) and return an INTERRUPT result when true.
func (p *Pool) IsInterrupted(id int64) bool {
	p.interruptMu.Lock()
	defer p.interruptMu.Unlock()
	_, ok := p.interrupt[id]
	return ok
}
