// Package lock keeps two runs from mutating the same image set at once.
package lock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrLocked is returned when another run holds the lock.
var ErrLocked = errors.New("image set is locked by another run")

// Common timeout values for lock acquisition.
const (
	// TimeoutImmediate fails at once when the lock is taken.
	TimeoutImmediate = 0

	// TimeoutShort is suitable for fast-failing duplicate run detection.
	TimeoutShort = time.Second

	// TimeoutLong allows queueing behind a short run.
	TimeoutLong = time.Minute
)

// Locker is an exclusive lock on one image set.
type Locker interface {
	// Acquire takes the lock, waiting at most timeout. It returns an error
	// wrapping ErrLocked when the lock stays taken.
	Acquire(ctx context.Context, timeout time.Duration) error
	Release(ctx context.Context) error
	Held() bool
	Name() string
}

// GenerateLockName creates a consistent lock name for a table.
// Example: GenerateLockName("file_data") → "imagebatch:table:file_data"
func GenerateLockName(table string) string {
	sanitized := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			return r
		}
		return '_'
	}, table)

	return fmt.Sprintf("imagebatch:table:%s", sanitized)
}

// WithLock runs fn while holding l, releasing it even if fn panics.
func WithLock(ctx context.Context, l Locker, timeout time.Duration, fn func() error) error {
	if err := l.Acquire(ctx, timeout); err != nil {
		return err
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = l.Release(releaseCtx)
	}()

	return fn()
}
