package lock

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testLockTimeout  = 200 * time.Millisecond
	veryShortTimeout = 20 * time.Millisecond
)

func TestLockManager_AcquireReleaseBasic(t *testing.T) {
	lm := NewLockManager(zap.NewNop())
	target := filepath.Join(t.TempDir(), "checkout.tsx")

	l, err := lm.AcquireLock(context.Background(), target, testLockTimeout)
	require.NoError(t, err)
	assert.Equal(t, target, l.FilePath)
	assert.FileExists(t, target+lockSuffix)

	require.NoError(t, lm.ReleaseLock(l))

	// Released locks can be taken again immediately.
	l, err = lm.AcquireLock(context.Background(), target, veryShortTimeout)
	require.NoError(t, err)
	require.NoError(t, lm.ReleaseLock(l))
}

func TestLockManager_AcquireEmptyFilename(t *testing.T) {
	lm := NewLockManager(nil)
	_, err := lm.AcquireLock(context.Background(), "", testLockTimeout)
	assert.ErrorIs(t, err, ErrFilenameRequired)
}

func TestLockManager_ReleaseNil(t *testing.T) {
	lm := NewLockManager(nil)
	assert.ErrorIs(t, lm.ReleaseLock(nil), ErrNilLock)
}

func TestLockManager_LockTimeout(t *testing.T) {
	lm := NewLockManager(nil)
	target := filepath.Join(t.TempDir(), "timeout.tsx")

	held, err := lm.AcquireLock(context.Background(), target, testLockTimeout)
	require.NoError(t, err)
	defer lm.ReleaseLock(held)

	start := time.Now()
	_, err = lm.AcquireLock(context.Background(), target, veryShortTimeout)
	assert.ErrorIs(t, err, ErrLockTimeout)
	assert.GreaterOrEqual(t, time.Since(start), veryShortTimeout)
}

func TestLockManager_ContextCancelled(t *testing.T) {
	lm := NewLockManager(nil)
	target := filepath.Join(t.TempDir(), "cancel.tsx")

	held, err := lm.AcquireLock(context.Background(), target, testLockTimeout)
	require.NoError(t, err)
	defer lm.ReleaseLock(held)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = lm.AcquireLock(ctx, target, testLockTimeout)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled) || errors.Is(err, ErrLockTimeout), "unexpected error: %v", err)
}

func TestLockManager_SerialisesHolders(t *testing.T) {
	lm := NewLockManager(nil)
	target := filepath.Join(t.TempDir(), "shared.tsx")

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l, err := lm.AcquireLock(context.Background(), target, 5*time.Second)
			if err != nil {
				t.Errorf("AcquireLock: %v", err)
				return
			}
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			time.Sleep(5 * time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
			if err := lm.ReleaseLock(l); err != nil {
				t.Errorf("ReleaseLock: %v", err)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)
}
