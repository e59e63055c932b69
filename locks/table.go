package locks

import (
	"context"
	"sync"

	"github.com/viney-shih/go-lock"
)

// Table hands out one exclusive latch per key. Latches are never removed,
// the key space of a run is small and bounded.
type Table struct {
	mu      sync.Mutex
	latches map[string]lock.Mutex
}

func NewTable() *Table {
	return &Table{latches: make(map[string]lock.Mutex)}
}

func (t *Table) get(key string) lock.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.latches[key]
	if !ok {
		l = lock.NewCASMutex()
		t.latches[key] = l
	}
	return l
}

// Lock blocks until the latch for key is held or ctx is done.
func (t *Table) Lock(ctx context.Context, key string) bool {
	return t.get(key).TryLockWithContext(ctx)
}

func (t *Table) Unlock(key string) {
	t.get(key).Unlock()
}
