package race

import (
	"RC/configs"
	"RC/storage"
	"RC/utils"
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ms = time.Millisecond

func TestRunForDesiredTimePads(t *testing.T) {
	start := time.Now()
	calls := 0
	err := RunForDesiredTime(20*ms, func() error {
		calls++
		return nil
	}, start)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.GreaterOrEqual(t, time.Since(start), 20*ms-configs.TimePrecision)
}

func TestRunForDesiredTimeDoesNotOvershoot(t *testing.T) {
	for _, length := range []time.Duration{300 * time.Microsecond, ms, 2500 * time.Microsecond, 5 * ms} {
		start := time.Now()
		require.NoError(t, RunForDesiredTime(length, nil, start))
		took := time.Since(start)
		assert.GreaterOrEqual(t, took, length-configs.TimePrecision, "length %v", length)
		assert.Less(t, took, length+500*time.Microsecond, "length %v", length)
	}
}

func TestRunForDesiredTimeSlowFnIsNotPadded(t *testing.T) {
	start := time.Now()
	err := RunForDesiredTime(time.Microsecond, func() error {
		time.Sleep(5 * ms)
		return nil
	}, start)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 50*ms)
}

func TestRunForDesiredTimeFailsFast(t *testing.T) {
	boom := errors.New("boom")
	start := time.Now()
	err := RunForDesiredTime(time.Second, func() error { return boom }, start)
	assert.ErrorIs(t, err, boom)
	assert.Less(t, time.Since(start), 500*ms)
}

func TestBuildSchedule(t *testing.T) {
	cases := []struct {
		total, percent, count int
	}{
		{100, 20, 20},
		{10, 0, 0},
		{5, 100, 5},
		{3, 50, 2},
		{1, 49, 0},
	}
	for _, c := range cases {
		s, err := BuildSchedule(c.total, c.percent, rand.New(rand.NewSource(7)))
		require.NoError(t, err)
		assert.Equal(t, c.total, s.Len())
		assert.Equal(t, c.count, s.Count())
		marked := 0
		for i := 0; i < s.Len(); i++ {
			if s.ShouldContend(i) {
				marked++
			}
		}
		assert.Equal(t, c.count, marked, "%d items at %d%%", c.total, c.percent)
	}
}

func TestBuildScheduleIsSeeded(t *testing.T) {
	a, err := BuildSchedule(50, 30, rand.New(rand.NewSource(42)))
	require.NoError(t, err)
	b, err := BuildSchedule(50, 30, rand.New(rand.NewSource(42)))
	require.NoError(t, err)
	assert.Equal(t, a.shouldBeLocked, b.shouldBeLocked)
}

func TestBuildScheduleRejects(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for _, p := range []int{-1, 101} {
		_, err := BuildSchedule(10, p, r)
		assert.ErrorIs(t, err, configs.ErrConfiguration)
	}
	_, err := BuildSchedule(0, 10, r)
	assert.ErrorIs(t, err, configs.ErrConfiguration)
}

func TestHoldGenerator(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	c, err := NewHoldGenerator(configs.ConstantHold, 2*ms)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), c.Next(r))

	u, err := NewHoldGenerator(configs.UniformHold, 2*ms)
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		v := u.Next(r)
		assert.GreaterOrEqual(t, v, int64(0))
		assert.LessOrEqual(t, v, int64(2000))
	}

	_, err = NewHoldGenerator("poisson", 2*ms)
	assert.ErrorIs(t, err, configs.ErrConfiguration)
}

func TestOptimisticWithoutConflict(t *testing.T) {
	store := storage.NewMemStore()
	e := NewEngine(store)
	res, err := e.RunOptimistic(context.Background(), 10*ms, "alice", 5*ms)
	require.NoError(t, err)
	assert.False(t, res.Conflict)
	assert.Equal(t, int64(10000), res.EstimatedTime)
	assert.GreaterOrEqual(t, res.ActualTime, int64(10000-100))
	assert.True(t, store.Exists("alice"))
	assert.Equal(t, int64(0), store.Refreshes())
}

func TestOptimisticRecoversFromConflict(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore()
	require.NoError(t, store.Write(ctx, "bob"))
	e := NewEngine(store)
	res, err := e.RunOptimistic(ctx, 10*ms, "bob", 5*ms)
	require.NoError(t, err)
	assert.True(t, res.Conflict)
	assert.Equal(t, int64(25000), res.EstimatedTime)
	assert.GreaterOrEqual(t, res.ActualTime, int64(25000-300))
	assert.True(t, store.Exists("bob"+configs.FixedSuffix))
	assert.Equal(t, int64(1), store.Refreshes())
}

func TestOptimisticRetryConflictIsInvariant(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore()
	require.NoError(t, store.Write(ctx, "carol"))
	require.NoError(t, store.Write(ctx, "carol"+configs.FixedSuffix))
	_, err := NewEngine(store).RunOptimistic(ctx, ms, "carol", ms)
	assert.ErrorIs(t, err, utils.ErrInvariant)
}

func TestPessimisticUncontended(t *testing.T) {
	store := storage.NewMemStore()
	e := NewEngine(store)
	res, err := e.RunPessimistic(context.Background(), 10*ms, "dave", 5*ms)
	require.NoError(t, err)
	assert.False(t, res.Contended)
	assert.Equal(t, int64(15000), res.EstimatedTime)
	assert.GreaterOrEqual(t, res.ActualTime, int64(15000-200))
	assert.True(t, store.Exists("dave"+configs.PessimisticSuffix))
	assert.False(t, store.Exists("dave"))

	// the lock was released
	lock, err := store.NewLock(context.Background(), "dave")
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 50*ms)
	defer cancel()
	require.NoError(t, lock.Acquire(ctx))
	require.NoError(t, lock.Release())
}

func TestPessimisticContended(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore()
	held, err := store.NewLock(ctx, "erin")
	require.NoError(t, err)
	require.NoError(t, held.Acquire(ctx))
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		time.Sleep(20 * ms)
		assert.NoError(t, held.Release())
	}()

	res, err := NewEngine(store).RunPessimistic(ctx, 10*ms, "erin", 5*ms)
	wg.Wait()
	require.NoError(t, err)
	assert.True(t, res.Contended)
	assert.Equal(t, int64(20000), res.EstimatedTime)
	assert.GreaterOrEqual(t, res.LockWait, int64(10000))
}

func TestPessimisticConflictIsInvariant(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore()
	require.NoError(t, store.Write(ctx, "frank"+configs.PessimisticSuffix))
	_, err := NewEngine(store).RunPessimistic(ctx, ms, "frank", ms)
	assert.ErrorIs(t, err, utils.ErrInvariant)
}

// slowLockStore spins in every Acquire, like a lock that costs a network
// round trip.
type slowLockStore struct {
	*storage.MemStore
	cost time.Duration
}

type slowLock struct {
	storage.Lock
	cost time.Duration
}

func (s slowLockStore) NewLock(ctx context.Context, key string) (storage.Lock, error) {
	lock, err := s.MemStore.NewLock(ctx, key)
	return slowLock{Lock: lock, cost: s.cost}, err
}

func (l slowLock) Acquire(ctx context.Context) error {
	st := time.Now()
	for time.Since(st) < l.cost {
	}
	return l.Lock.Acquire(ctx)
}

func TestCalibrateRaisesThreshold(t *testing.T) {
	ctx := context.Background()
	e := NewEngine(slowLockStore{MemStore: storage.NewMemStore(), cost: 400 * time.Microsecond})
	assert.Equal(t, configs.TimePrecision, e.Threshold())

	res, err := e.RunPessimistic(ctx, ms, "round0", ms)
	require.NoError(t, err)
	assert.True(t, res.Contended, "a slow uncontended acquire reads as contention before calibration")

	threshold, err := e.Calibrate(ctx, "warm", configs.CalibrationRounds)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, threshold, 800*time.Microsecond)
	for i := 0; i < 3; i++ {
		res, err = e.RunPessimistic(ctx, ms, "round"+string(rune('1'+i)), ms)
		require.NoError(t, err)
		assert.False(t, res.Contended)
		assert.Equal(t, int64(2000), res.EstimatedTime)
	}
}

func TestCalibrateKeepsFloor(t *testing.T) {
	e := NewEngine(storage.NewMemStore())
	threshold, err := e.Calibrate(context.Background(), "warm", configs.CalibrationRounds)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, threshold, configs.TimePrecision)
}

type failingStore struct {
	storage.Store
	err error
}

func (f failingStore) Write(context.Context, string) error {
	return f.err
}

func TestStoreFailurePropagates(t *testing.T) {
	boom := errors.New("connection reset")
	e := NewEngine(failingStore{Store: storage.NewMemStore(), err: boom})
	start := time.Now()
	_, err := e.RunOptimistic(context.Background(), time.Second, "gina", time.Second)
	assert.ErrorIs(t, err, boom)
	assert.False(t, errors.Is(err, utils.ErrInvariant))
	_, err = e.RunPessimistic(context.Background(), time.Second, "gina", 0)
	assert.ErrorIs(t, err, boom)
	assert.Less(t, time.Since(start), 500*ms)
}

func TestBackgroundOperationWakesUnderLock(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore()
	e := NewEngine(store)
	woken := false
	err := e.ExecuteBackgroundOperation(ctx, "hank", 10*ms, func() error {
		woken = true
		assert.True(t, store.Exists("hank"))
		other, err := store.NewLock(ctx, "hank")
		require.NoError(t, err)
		tctx, cancel := context.WithTimeout(ctx, 2*ms)
		defer cancel()
		assert.ErrorIs(t, other.Acquire(tctx), utils.ErrLockAcquisition)
		return nil
	})
	require.NoError(t, err)
	assert.True(t, woken)

	other, err := store.NewLock(ctx, "hank")
	require.NoError(t, err)
	tctx, cancel := context.WithTimeout(ctx, 50*ms)
	defer cancel()
	require.NoError(t, other.Acquire(tctx))
	require.NoError(t, other.Release())
}

func TestBackgroundWakeFailureReleasesLock(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore()
	err := NewEngine(store).ExecuteBackgroundOperation(ctx, "ivy", time.Second, func() error {
		return utils.ErrPeerLost
	})
	assert.ErrorIs(t, err, utils.ErrPeerLost)
	other, _ := store.NewLock(ctx, "ivy")
	tctx, cancel := context.WithTimeout(ctx, 50*ms)
	defer cancel()
	require.NoError(t, other.Acquire(tctx))
	require.NoError(t, other.Release())
}
