// Package rendezvous is the startup handshake of the two processes: small
// key/value files in a shared directory, written by their owner and polled
// for by the peer.
package rendezvous

import (
	"RC/configs"
	"RC/utils"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

type Store struct {
	mu       sync.Mutex
	dir      string
	interval time.Duration
	owned    map[string]bool
}

func New(dir string, interval time.Duration) *Store {
	if interval <= 0 {
		interval = configs.WaitForFileInterval
	}
	return &Store{dir: dir, interval: interval, owned: make(map[string]bool)}
}

// Interval is how often BlockingGet polls.
func (s *Store) Interval() time.Duration {
	return s.interval
}

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, key)
}

// Put publishes value under key. The file appears atomically, a reader never
// sees a partial value. The key is removed again by Cleanup.
func (s *Store) Put(key string, value string) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", utils.ErrRendezvousIO, err)
	}
	tmp, err := os.CreateTemp(s.dir, "."+key+".*")
	if err != nil {
		return fmt.Errorf("%w: %v", utils.ErrRendezvousIO, err)
	}
	_, err = tmp.WriteString(value)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp.Name(), s.path(key))
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("%w: writing %s: %v", utils.ErrRendezvousIO, key, err)
	}
	s.mu.Lock()
	s.owned[key] = true
	s.mu.Unlock()
	return nil
}

func (s *Store) PutPid(key string, pid int) error {
	return s.Put(key, strconv.Itoa(pid))
}

// BlockingGet polls until key exists and returns its value. There is no
// timeout; only ctx ends the wait.
func (s *Store) BlockingGet(ctx context.Context, key string) (string, error) {
	for {
		data, err := os.ReadFile(s.path(key))
		if err == nil {
			return string(data), nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			configs.Warn(false, fmt.Sprintf("reading %s: %v", key, err))
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(s.interval):
		}
	}
}

func (s *Store) BlockingGetInt(ctx context.Context, key string) (int, error) {
	v, err := s.BlockingGet(ctx, key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("%w: %s holds %q", utils.ErrRendezvousIO, key, v)
	}
	return n, nil
}

// Remove deletes key; a key that is already gone is not an error.
func (s *Store) Remove(key string) error {
	err := os.Remove(s.path(key))
	s.mu.Lock()
	delete(s.owned, key)
	s.mu.Unlock()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: removing %s: %v", utils.ErrRendezvousIO, key, err)
	}
	return nil
}

// Cleanup removes every key this store published. Calling it again is a no-op.
func (s *Store) Cleanup() error {
	s.mu.Lock()
	keys := make([]string, 0, len(s.owned))
	for k := range s.owned {
		keys = append(keys, k)
	}
	s.mu.Unlock()
	var res error
	for _, k := range keys {
		if err := s.Remove(k); err != nil && res == nil {
			res = err
		}
	}
	return res
}
