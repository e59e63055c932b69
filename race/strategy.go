package race

import (
	"RC/configs"
	"RC/storage"
	"RC/utils"
	"context"
	"errors"
	"fmt"
	"time"
)

// TimeResult the measured and modelled cost of one operation, in microseconds.
type TimeResult struct {
	ActualTime    int64
	EstimatedTime int64
	LockWait      int64
	Conflict      bool
	Contended     bool
}

// Engine runs the two concurrency strategies against a record store.
type Engine struct {
	store     storage.Store
	threshold time.Duration
}

func NewEngine(store storage.Store) *Engine {
	return &Engine{store: store, threshold: configs.TimePrecision}
}

// Threshold is the lock wait from which an acquire counts as contended.
func (e *Engine) Threshold() time.Duration {
	return e.threshold
}

// Calibrate times rounds uncontended acquires of key and raises the
// contention threshold to twice the slowest one, so the round trip of a
// remote lock is not mistaken for contention. The threshold never drops
// below configs.TimePrecision.
func (e *Engine) Calibrate(ctx context.Context, key string, rounds int) (time.Duration, error) {
	var slowest time.Duration
	for i := 0; i < rounds; i++ {
		lock, err := e.store.NewLock(ctx, key)
		if err != nil {
			return 0, err
		}
		st := time.Now()
		err = lock.Acquire(ctx)
		took := time.Since(st)
		if rerr := lock.Release(); err == nil {
			err = rerr
		}
		if err != nil {
			return 0, err
		}
		slowest = time.Duration(utils.Max(int(slowest), int(took)))
	}
	e.threshold = time.Duration(utils.Max(int(configs.TimePrecision), int(2*slowest)))
	return e.threshold, nil
}

// RunPessimistic takes the record lock, writes under it and releases it.
// A lock wait at or above the engine threshold means the lock was contended
// and costs half an operation on top of the estimate.
func (e *Engine) RunPessimistic(ctx context.Context, operationLength time.Duration, login string, lockLength time.Duration) (TimeResult, error) {
	estimated := lockLength + operationLength
	start := time.Now()

	var lock storage.Lock
	err := RunForDesiredTime(lockLength, func() error {
		var err error
		lock, err = e.store.NewLock(ctx, login)
		return err
	}, start)
	if err != nil {
		return TimeResult{}, err
	}

	beforeLock := time.Now()
	if err := lock.Acquire(ctx); err != nil {
		_ = lock.Release()
		return TimeResult{}, err
	}
	waited := time.Since(beforeLock)
	contended := waited >= e.threshold
	if contended {
		estimated += operationLength / 2
	}

	opErr := e.ExecuteOperation(ctx, operationLength, login+configs.PessimisticSuffix)
	relErr := lock.Release()
	if opErr != nil {
		if errors.Is(opErr, utils.ErrUniquenessConflict) {
			return TimeResult{}, fmt.Errorf("%w: conflict under lock %s: %v", utils.ErrInvariant, login, opErr)
		}
		return TimeResult{}, opErr
	}
	if relErr != nil {
		return TimeResult{}, relErr
	}

	res := createTimeResult(start, estimated)
	res.LockWait = micros(waited)
	res.Contended = contended
	return res, nil
}

// RunOptimistic writes without a lock. On a uniqueness conflict the failed
// attempt still consumes its window, the session is refreshed and the write
// is retried once under a modified identifier.
func (e *Engine) RunOptimistic(ctx context.Context, operationLength time.Duration, login string, refreshLength time.Duration) (TimeResult, error) {
	estimated := operationLength
	start := time.Now()

	err := e.ExecuteOperation(ctx, operationLength, login)
	conflict := false
	if err != nil {
		if !errors.Is(err, utils.ErrUniquenessConflict) {
			return TimeResult{}, err
		}
		conflict = true
		configs.DPrintf("conflict on %s, retrying", login)
		_ = RunForDesiredTime(operationLength, nil, start)
		if err := e.Refresh(ctx, refreshLength); err != nil {
			return TimeResult{}, err
		}
		if err := e.ExecuteOperation(ctx, operationLength, login+configs.FixedSuffix); err != nil {
			if errors.Is(err, utils.ErrUniquenessConflict) {
				return TimeResult{}, fmt.Errorf("%w: retry of %s conflicted: %v", utils.ErrInvariant, login, err)
			}
			return TimeResult{}, err
		}
		estimated += operationLength + refreshLength
	}

	res := createTimeResult(start, estimated)
	res.Conflict = conflict
	return res, nil
}

// ExecuteOperation one record write padded to operationLength.
func (e *Engine) ExecuteOperation(ctx context.Context, operationLength time.Duration, login string) error {
	return RunForDesiredTime(operationLength, func() error {
		return e.store.Write(ctx, login)
	}, time.Time{})
}

// ExecuteBackgroundOperation is the interferer's contention window: lock the
// record, write the colliding login, wake the driver, keep the lock for hold.
func (e *Engine) ExecuteBackgroundOperation(ctx context.Context, login string, hold time.Duration, wake func() error) error {
	lock, err := e.store.NewLock(ctx, login)
	if err != nil {
		return err
	}
	defer lock.Release()
	if err := lock.Acquire(ctx); err != nil {
		return err
	}
	if err := e.store.Write(ctx, login); err != nil {
		return err
	}
	if err := wake(); err != nil {
		return err
	}
	_ = RunForDesiredTime(hold, nil, time.Time{})
	return lock.Release()
}

func (e *Engine) Refresh(ctx context.Context, refreshLength time.Duration) error {
	return RunForDesiredTime(refreshLength, func() error {
		return e.store.Refresh(ctx)
	}, time.Time{})
}

func createTimeResult(start time.Time, estimated time.Duration) TimeResult {
	return TimeResult{
		ActualTime:    micros(time.Since(start)),
		EstimatedTime: micros(estimated),
	}
}
