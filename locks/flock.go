package locks

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// FileLock is an exclusive advisory lock on a file, shared by every process
// that opens the same path.
type FileLock struct {
	path string
	f    *os.File
}

func NewFileLock(path string) (*FileLock, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	return &FileLock{path: path, f: f}, nil
}

// Lock polls a non-blocking flock every interval so that ctx can interrupt
// the wait.
func (c *FileLock) Lock(ctx context.Context, interval time.Duration) error {
	for {
		err := unix.Flock(int(c.f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			return nil
		}
		if !errors.Is(err, unix.EWOULDBLOCK) && !errors.Is(err, unix.EINTR) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// Unlock releases the lock and closes the descriptor.
func (c *FileLock) Unlock() error {
	err := unix.Flock(int(c.f.Fd()), unix.LOCK_UN)
	if cerr := c.f.Close(); err == nil {
		err = cerr
	}
	return err
}
