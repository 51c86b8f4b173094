package agent

import (
	"container/list"
	"sync"
)

// Ledger remembers the most recent message identifiers so redelivered
// events are processed once. When full, the oldest identifier is evicted.
type Ledger struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	seen     map[string]*list.Element
}

func NewLedger(capacity int) *Ledger {
	if capacity <= 0 {
		capacity = 500
	}
	return &Ledger{
		capacity: capacity,
		order:    list.New(),
		seen:     make(map[string]*list.Element, capacity),
	}
}

// SeenBefore reports whether id was already recorded and records it
// otherwise. The check and the insert happen under one lock.
func (l *Ledger) SeenBefore(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.seen[id]; ok {
		return true
	}
	l.seen[id] = l.order.PushBack(id)
	for l.order.Len() > l.capacity {
		oldest := l.order.Front()
		l.order.Remove(oldest)
		delete(l.seen, oldest.Value.(string))
	}
	return false
}

func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.order.Len()
}
