package rendezvous

import (
	"RC/utils"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutThenGet(t *testing.T) {
	s := New(t.TempDir(), time.Millisecond)
	require.NoError(t, s.Put("login.txt", "abc"))
	v, err := s.BlockingGet(context.Background(), "login.txt")
	require.NoError(t, err)
	assert.Equal(t, "abc", v)
}

func TestBlockingGetWaitsForPeer(t *testing.T) {
	dir := t.TempDir()
	reader := New(dir, time.Millisecond)
	writer := New(dir, time.Millisecond)
	go func() {
		time.Sleep(5 * time.Millisecond)
		assert.NoError(t, writer.PutPid("background.pid", 4242))
	}()
	st := time.Now()
	pid, err := reader.BlockingGetInt(context.Background(), "background.pid")
	require.NoError(t, err)
	assert.Equal(t, 4242, pid)
	assert.True(t, time.Since(st) >= 5*time.Millisecond)
}

func TestBlockingGetCancelled(t *testing.T) {
	s := New(t.TempDir(), time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	_, err := s.BlockingGet(ctx, "foreground.pid")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBlockingGetIntRejectsGarbage(t *testing.T) {
	s := New(t.TempDir(), time.Millisecond)
	require.NoError(t, s.Put("background.pid", "not-a-pid"))
	_, err := s.BlockingGetInt(context.Background(), "background.pid")
	assert.True(t, errors.Is(err, utils.ErrRendezvousIO))
}

func TestCleanupIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, time.Millisecond)
	require.NoError(t, s.Put("background.pid", "1"))
	require.NoError(t, s.Put("login.txt", "abc"))
	require.NoError(t, s.Cleanup())
	_, err := os.Stat(filepath.Join(dir, "login.txt"))
	assert.True(t, errors.Is(err, os.ErrNotExist))

	assert.NoError(t, s.Cleanup())
	// artifacts removed by someone else are not an error either
	require.NoError(t, s.Put("login.txt", "abc"))
	require.NoError(t, os.Remove(filepath.Join(dir, "login.txt")))
	assert.NoError(t, s.Cleanup())
}

func TestCleanupLeavesPeerKeys(t *testing.T) {
	dir := t.TempDir()
	mine := New(dir, time.Millisecond)
	peer := New(dir, time.Millisecond)
	require.NoError(t, mine.Put("foreground.pid", "1"))
	require.NoError(t, peer.Put("background.pid", "2"))
	require.NoError(t, mine.Cleanup())
	_, err := os.Stat(filepath.Join(dir, "background.pid"))
	assert.NoError(t, err)
}

func TestPutFailureIsFatal(t *testing.T) {
	file := filepath.Join(t.TempDir(), "plain")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	s := New(filepath.Join(file, "sub"), time.Millisecond)
	err := s.Put("login.txt", "abc")
	assert.True(t, errors.Is(err, utils.ErrRendezvousIO))
}
