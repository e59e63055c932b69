package storage

import (
	"RC/locks"
	"RC/utils"
	"context"
	"fmt"
	"sync/atomic"

	set "github.com/deckarep/golang-set"
)

// MemStore the in-process benchmark store. Only goroutines of the same
// process can race on it.
type MemStore struct {
	logins    set.Set
	latches   *locks.Table
	refreshes int64
}

func NewMemStore() *MemStore {
	return &MemStore{
		logins:  set.NewSet(),
		latches: locks.NewTable(),
	}
}

func (c *MemStore) Write(ctx context.Context, login string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !c.logins.Add(login) {
		return fmt.Errorf("%w: %s", utils.ErrUniquenessConflict, login)
	}
	return nil
}

func (c *MemStore) NewLock(_ context.Context, key string) (Lock, error) {
	return &memLock{from: c, key: key}, nil
}

func (c *MemStore) Refresh(_ context.Context) error {
	atomic.AddInt64(&c.refreshes, 1)
	return nil
}

func (c *MemStore) Close() error {
	return nil
}

func (c *MemStore) Exists(login string) bool {
	return c.logins.Contains(login)
}

func (c *MemStore) Refreshes() int64 {
	return atomic.LoadInt64(&c.refreshes)
}

type memLock struct {
	from *MemStore
	key  string
	held bool
}

func (l *memLock) Acquire(ctx context.Context) error {
	if !l.from.latches.Lock(ctx, l.key) {
		return fmt.Errorf("%w: %s: %v", utils.ErrLockAcquisition, l.key, ctx.Err())
	}
	l.held = true
	return nil
}

func (l *memLock) Release() error {
	if l.held {
		l.held = false
		l.from.latches.Unlock(l.key)
	}
	return nil
}
