package wechat

import "sync"

// dedupCapacity bounds how many processed message ids one account remembers.
const dedupCapacity = 5000

// dedupRegistry is a bounded FIFO set of processed message ids, shared by
// the webhook and poll ingestion paths of one account so a message id is
// dispatched at most once regardless of which path saw it first.
// Safe for concurrent use.
type dedupRegistry struct {
	mu   sync.Mutex
	seen map[string]struct{}
	ring []string
	idx  int
}

func newDedupRegistry(capacity int) *dedupRegistry {
	if capacity <= 0 {
		capacity = dedupCapacity
	}
	return &dedupRegistry{
		seen: make(map[string]struct{}, capacity),
		ring: make([]string, capacity),
	}
}

// Admit returns true exactly once per message id until the id is evicted.
// Inserting at capacity evicts the oldest remembered id first.
func (d *dedupRegistry) Admit(msgID string) bool {
	if msgID == "" {
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, dup := d.seen[msgID]; dup {
		return false
	}

	if old := d.ring[d.idx]; old != "" {
		delete(d.seen, old)
	}
	d.ring[d.idx] = msgID
	d.idx = (d.idx + 1) % len(d.ring)
	d.seen[msgID] = struct{}{}
	return true
}

// Len returns the number of currently remembered ids.
func (d *dedupRegistry) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
