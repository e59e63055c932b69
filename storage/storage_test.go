package storage

import (
	"RC/configs"
	"RC/utils"
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Testkit opens every store kind that is reachable from this host.
func Testkit(t *testing.T) map[string]Store {
	t.Helper()
	ctx := context.Background()
	props, err := configs.LoadStoreProps("", t.TempDir())
	require.NoError(t, err)
	res := map[string]Store{
		configs.BenchmarkStorage: NewMemStore(),
	}
	fs, err := NewFileStore(props.FileDir)
	require.NoError(t, err)
	res[configs.FileStorage] = fs
	if dsn := os.Getenv("RC_PG_DSN"); dsn != "" {
		props.PGDSN = dsn
		s, err := NewStore(ctx, configs.PostgreSQL, props)
		require.NoError(t, err)
		res[configs.PostgreSQL] = s
	}
	if uri := os.Getenv("RC_MONGO_URI"); uri != "" {
		props.MongoURI = uri
		s, err := NewStore(ctx, configs.MongoDB, props)
		require.NoError(t, err)
		res[configs.MongoDB] = s
	}
	t.Cleanup(func() {
		for _, s := range res {
			_ = s.Close()
		}
	})
	return res
}

func uniqueLogin(prefix string) string {
	return prefix + time.Now().Format("150405.000000000")
}

func TestWriteReportsUniquenessConflict(t *testing.T) {
	for kind, s := range Testkit(t) {
		t.Run(kind, func(t *testing.T) {
			ctx := context.Background()
			login := uniqueLogin("conflict")
			require.NoError(t, s.Write(ctx, login))
			err := s.Write(ctx, login)
			require.Error(t, err)
			assert.True(t, errors.Is(err, utils.ErrUniquenessConflict))
			assert.NoError(t, s.Write(ctx, login+configs.FixedSuffix))
		})
	}
}

func TestRefreshKeepsStoreUsable(t *testing.T) {
	for kind, s := range Testkit(t) {
		t.Run(kind, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Refresh(ctx))
			assert.NoError(t, s.Write(ctx, uniqueLogin("refresh")))
		})
	}
}

func TestLockIsExclusive(t *testing.T) {
	for kind, s := range Testkit(t) {
		t.Run(kind, func(t *testing.T) {
			ctx := context.Background()
			key := uniqueLogin("lock")
			first, err := s.NewLock(ctx, key)
			require.NoError(t, err)
			require.NoError(t, first.Acquire(ctx))

			var acquired int32
			wait := sync.WaitGroup{}
			wait.Add(1)
			go func() {
				defer wait.Done()
				second, err := s.NewLock(ctx, key)
				if !assert.NoError(t, err) {
					return
				}
				assert.NoError(t, second.Acquire(ctx))
				atomic.StoreInt32(&acquired, 1)
				assert.NoError(t, second.Release())
			}()
			time.Sleep(5 * time.Millisecond)
			assert.Equal(t, int32(0), atomic.LoadInt32(&acquired))
			require.NoError(t, first.Release())
			wait.Wait()
			assert.Equal(t, int32(1), atomic.LoadInt32(&acquired))
		})
	}
}

func TestLockAcquireHonoursContext(t *testing.T) {
	for kind, s := range Testkit(t) {
		t.Run(kind, func(t *testing.T) {
			key := uniqueLogin("ctx")
			first, err := s.NewLock(context.Background(), key)
			require.NoError(t, err)
			require.NoError(t, first.Acquire(context.Background()))
			defer first.Release()

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
			defer cancel()
			second, err := s.NewLock(context.Background(), key)
			require.NoError(t, err)
			err = second.Acquire(ctx)
			assert.True(t, errors.Is(err, utils.ErrLockAcquisition))
			assert.NoError(t, second.Release())
		})
	}
}

func TestReleaseWithoutAcquire(t *testing.T) {
	for kind, s := range Testkit(t) {
		t.Run(kind, func(t *testing.T) {
			l, err := s.NewLock(context.Background(), uniqueLogin("idle"))
			require.NoError(t, err)
			assert.NoError(t, l.Release())
			assert.NoError(t, l.Release())
		})
	}
}

func TestFileStoreSharedBetweenHandles(t *testing.T) {
	dir := t.TempDir()
	a, err := NewFileStore(dir)
	require.NoError(t, err)
	b, err := NewFileStore(dir)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, a.Write(ctx, "token/0"))
	assert.True(t, b.Exists("token/0"))
	assert.True(t, errors.Is(b.Write(ctx, "token/0"), utils.ErrUniquenessConflict))
}

func TestMemStoreCountsRefreshes(t *testing.T) {
	s := NewMemStore()
	require.NoError(t, s.Refresh(context.Background()))
	require.NoError(t, s.Refresh(context.Background()))
	assert.Equal(t, int64(2), s.Refreshes())
}

func TestNewStoreUnknownKind(t *testing.T) {
	_, err := NewStore(context.Background(), "redis", &configs.StoreProps{})
	assert.True(t, errors.Is(err, configs.ErrConfiguration))
}

func TestNewPassword(t *testing.T) {
	a, b := NewPassword(), NewPassword()
	assert.Len(t, a, 44)
	assert.NotEqual(t, a, b)
}
