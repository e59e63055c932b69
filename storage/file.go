package storage

import (
	"RC/configs"
	"RC/locks"
	"RC/utils"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
)

// FileStore keeps one file per record and one lock file per key under dir,
// so separate processes on the same host share it.
type FileStore struct {
	dir        string
	recordsDir string
	locksDir   string
}

func NewFileStore(dir string) (*FileStore, error) {
	c := &FileStore{
		dir:        dir,
		recordsDir: filepath.Join(dir, "records"),
		locksDir:   filepath.Join(dir, "locks"),
	}
	for _, d := range []string{c.recordsDir, c.locksDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", d, err)
		}
	}
	return c, nil
}

func (c *FileStore) recordPath(login string) string {
	return filepath.Join(c.recordsDir, url.PathEscape(login))
}

func (c *FileStore) Write(ctx context.Context, login string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := os.OpenFile(c.recordPath(login), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%w: %s", utils.ErrUniquenessConflict, login)
		}
		return fmt.Errorf("inserting %s: %w", login, err)
	}
	_, err = f.WriteString(NewPassword())
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("inserting %s: %w", login, err)
	}
	return nil
}

func (c *FileStore) NewLock(_ context.Context, key string) (Lock, error) {
	fl, err := locks.NewFileLock(filepath.Join(c.locksDir, url.PathEscape(key)+".lock"))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", utils.ErrLockAcquisition, key, err)
	}
	return &fileLock{key: key, fl: fl}, nil
}

// Refresh the file store has no session; it only checks the directory is
// still reachable.
func (c *FileStore) Refresh(_ context.Context) error {
	if _, err := os.Stat(c.recordsDir); err != nil {
		return fmt.Errorf("refreshing file store: %w", err)
	}
	return nil
}

func (c *FileStore) Close() error {
	return nil
}

func (c *FileStore) Exists(login string) bool {
	_, err := os.Stat(c.recordPath(login))
	return err == nil
}

type fileLock struct {
	key  string
	fl   *locks.FileLock
	done bool
}

func (l *fileLock) Acquire(ctx context.Context) error {
	if err := l.fl.Lock(ctx, configs.LockPollInterval); err != nil {
		return fmt.Errorf("%w: %s: %v", utils.ErrLockAcquisition, l.key, err)
	}
	return nil
}

func (l *fileLock) Release() error {
	if l.done {
		return nil
	}
	l.done = true
	return l.fl.Unlock()
}
