package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"
)

var (
	// ErrLockTimeout is returned when acquiring a lock times out.
	ErrLockTimeout = errors.New("timeout acquiring lock")
	// ErrFilenameRequired is returned when a filename is empty.
	ErrFilenameRequired = errors.New("filename is required")
	// ErrNilLock is returned when a nil lock handle is provided to ReleaseLock.
	ErrNilLock = errors.New("nil lock handle")
)

const (
	shortPollInterval = 10 * time.Millisecond
	lockSuffix        = ".lock"
)

// LockManager hands out advisory flock(2) locks on "<file>.lock" sidecars,
// so two patch runs (in this process or another) never interleave their
// read-apply-write cycles on the same file.
type LockManager struct {
	logger *zap.Logger
}

// NewLockManager returns a LockManager. A nil logger disables logging.
func NewLockManager(logger *zap.Logger) *LockManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LockManager{logger: logger}
}

// AcquireLock takes the exclusive lock for filePath, polling until it is
// free, timeout elapses or ctx is done.
func (lm *LockManager) AcquireLock(ctx context.Context, filePath string, timeout time.Duration) (*FileLock, error) {
	if filePath == "" {
		return nil, ErrFilenameRequired
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	fl := flock.New(filePath + lockSuffix)
	locked, err := fl.TryLockContext(ctx, shortPollInterval)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			lm.logger.Warn("lock wait timed out", zap.String("file", filePath), zap.Duration("timeout", timeout))
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, filePath)
		}
		return nil, fmt.Errorf("error acquiring file lock for %s: %w", filePath, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrLockTimeout, filePath)
	}

	lm.logger.Debug("lock acquired", zap.String("file", filePath))
	return &FileLock{FilePath: filePath, AcquiredAt: time.Now(), flock: fl}, nil
}

// ReleaseLock unlocks the sidecar. The sidecar itself is left in place;
// unlinking it would let a waiter lock an orphaned inode.
func (lm *LockManager) ReleaseLock(lock *FileLock) error {
	if lock == nil {
		return ErrNilLock
	}
	if lock.flock == nil {
		return nil
	}
	if err := lock.flock.Unlock(); err != nil {
		return fmt.Errorf("error releasing file lock for %s: %w", lock.FilePath, err)
	}
	lm.logger.Debug("lock released", zap.String("file", lock.FilePath), zap.Duration("held", time.Since(lock.AcquiredAt)))
	return nil
}

var _ LockManagerInterface = (*LockManager)(nil)
