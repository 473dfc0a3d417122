package lock

import (
	"context"
	"time"

	"github.com/gofrs/flock"
)

// FileLock is a held OS-level lock on a patch target.
type FileLock struct {
	FilePath   string
	AcquiredAt time.Time
	flock      *flock.Flock
}

// LockManagerInterface is what the patch service needs from a lock manager.
// AcquireLock returns a handle that must be passed back to ReleaseLock.
type LockManagerInterface interface {
	AcquireLock(ctx context.Context, filePath string, timeout time.Duration) (*FileLock, error)
	ReleaseLock(lock *FileLock) error
}
