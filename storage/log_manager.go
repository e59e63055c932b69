package storage

import (
	"RC/configs"
	"RC/utils"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/tidwall/wal"
)

// ResultLog journals the per-item results of a run. Appends are buffered and
// written in batches every configs.LogBatchInterval.
type ResultLog struct {
	latch   sync.Mutex
	lsn     uint64
	pending int
	err     error
	logs    *wal.Log
	buffer  *wal.Batch
	cancel  context.CancelFunc
	done    chan struct{}
	path    string
}

func OpenResultLog(dir string, token string) (*ResultLog, error) {
	path := filepath.Join(dir, token)
	log, err := wal.Open(path, nil)
	if err != nil {
		return nil, fmt.Errorf("opening result log %s: %w", path, err)
	}
	lsn, err := log.LastIndex()
	if err != nil {
		_ = log.Close()
		return nil, fmt.Errorf("reading result log %s: %w", path, err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	res := &ResultLog{
		lsn:    lsn,
		logs:   log,
		buffer: &wal.Batch{},
		cancel: cancel,
		done:   make(chan struct{}),
		path:   path,
	}
	go res.localBatchSyncLogger(ctx)
	return res, nil
}

func (c *ResultLog) Path() string {
	return c.path
}

func (c *ResultLog) Append(info *utils.Info) error {
	data, err := json.Marshal(info)
	if err != nil {
		return err
	}
	c.latch.Lock()
	defer c.latch.Unlock()
	if c.err != nil {
		return c.err
	}
	c.lsn++
	c.buffer.Write(c.lsn, data)
	c.pending++
	return nil
}

// flush requires c.latch.
func (c *ResultLog) flush() error {
	if c.pending == 0 || c.err != nil {
		return c.err
	}
	if err := c.logs.WriteBatch(c.buffer); err != nil {
		c.err = fmt.Errorf("writing result log: %w", err)
		return c.err
	}
	c.buffer.Clear()
	c.pending = 0
	return nil
}

func (c *ResultLog) localBatchSyncLogger(ctx context.Context) {
	defer close(c.done)
	ticker := time.NewTicker(configs.LogBatchInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.latch.Lock()
			if err := c.flush(); err != nil {
				configs.Warn(false, err.Error())
			}
			c.latch.Unlock()
		case <-ctx.Done():
			return
		}
	}
}

// Close stops the batch goroutine, flushes what is left and closes the log.
func (c *ResultLog) Close() error {
	c.cancel()
	<-c.done
	c.latch.Lock()
	defer c.latch.Unlock()
	err := c.flush()
	if cerr := c.logs.Close(); err == nil {
		err = cerr
	}
	return err
}

// ReadResults replays a closed result log.
func ReadResults(path string) ([]*utils.Info, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("result log %s: %w", path, err)
	}
	log, err := wal.Open(path, nil)
	if err != nil {
		return nil, fmt.Errorf("opening result log %s: %w", path, err)
	}
	defer log.Close()
	first, err := log.FirstIndex()
	if err != nil {
		return nil, err
	}
	last, err := log.LastIndex()
	if err != nil {
		return nil, err
	}
	res := make([]*utils.Info, 0)
	if first == 0 {
		return res, nil
	}
	for i := first; i <= last; i++ {
		data, err := log.Read(i)
		if err != nil {
			return nil, fmt.Errorf("reading entry %d: %w", i, err)
		}
		info := &utils.Info{}
		if err := json.Unmarshal(data, info); err != nil {
			return nil, fmt.Errorf("decoding entry %d: %w", i, err)
		}
		res = append(res, info)
	}
	return res, nil
}
