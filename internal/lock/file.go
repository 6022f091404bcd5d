package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/flock"
)

// retryDelay is how often a waiting FileLock retries.
const retryDelay = 50 * time.Millisecond

// FileLock is an flock(2) lock on a file placed next to the database. The
// kernel drops it when the process exits.
type FileLock struct {
	path string
	lock *flock.Flock
}

// LockPath returns the lock file used for a database file.
func LockPath(dbPath string) string {
	return dbPath + ".lock"
}

// NewFileLock creates a lock on path. Nothing is locked until Acquire.
func NewFileLock(path string) *FileLock {
	return &FileLock{path: path, lock: flock.New(path)}
}

func (f *FileLock) Acquire(ctx context.Context, timeout time.Duration) error {
	if f.lock.Locked() {
		return nil
	}

	var ok bool
	var err error
	if timeout <= 0 {
		ok, err = f.lock.TryLock()
	} else {
		waitCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		ok, err = f.lock.TryLockContext(waitCtx, retryDelay)
		if err != nil && waitCtx.Err() != nil && ctx.Err() == nil {
			// the wait timed out rather than failed
			err = nil
		}
	}
	if err != nil {
		return fmt.Errorf("acquire lock %s: %w", f.path, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrLocked, f.path)
	}
	return nil
}

func (f *FileLock) Release(ctx context.Context) error {
	if !f.lock.Locked() {
		return nil
	}
	if err := f.lock.Unlock(); err != nil {
		return fmt.Errorf("release lock %s: %w", f.path, err)
	}
	return nil
}

func (f *FileLock) Held() bool {
	return f.lock.Locked()
}

func (f *FileLock) Name() string {
	return f.path
}
