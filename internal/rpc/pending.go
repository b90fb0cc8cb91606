package rpc

import "sync"

// pendingTable tracks in-flight requests by correlation id. It is the only
// cross-call shared state in the client and is internally synchronized.
type pendingTable struct {
	mu      sync.Mutex
	waiters map[string]chan pendingReply
}

func newPendingTable() *pendingTable {
	return &pendingTable{waiters: make(map[string]chan pendingReply)}
}

// register creates the waiter for a correlation id. Exactly one outstanding
// entry may exist per id; a collision means the id generator is broken,
// which is a programming error, not a recoverable condition.
func (t *pendingTable) register(correlationID string) chan pendingReply {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.waiters[correlationID]; exists {
		panic("rpc: correlation id collision: " + correlationID)
	}

	// Buffered so a reply racing a timeout never blocks the dispatch loop.
	waiter := make(chan pendingReply, 1)
	t.waiters[correlationID] = waiter
	return waiter
}

// take removes and returns the waiter, claiming the exclusive right to
// resolve it. A second reply for the same id finds nothing.
func (t *pendingTable) take(correlationID string) (chan pendingReply, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	waiter, ok := t.waiters[correlationID]
	if ok {
		delete(t.waiters, correlationID)
	}
	return waiter, ok
}

// remove drops the entry without resolving it, so a reply arriving after
// the caller gave up is treated as late and discarded.
func (t *pendingTable) remove(correlationID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.waiters, correlationID)
}

func (t *pendingTable) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.waiters)
}
