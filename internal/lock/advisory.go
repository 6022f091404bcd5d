package lock

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"time"
)

// AdvisoryLock is a MySQL named lock taken with GET_LOCK(). Named locks
// belong to a connection, so the lock pins one connection from the pool
// until it is released.
type AdvisoryLock struct {
	db       *sql.DB
	conn     *sql.Conn
	lockName string
}

// NewAdvisoryLock creates a new advisory lock with the given name.
func NewAdvisoryLock(db *sql.DB, lockName string) *AdvisoryLock {
	return &AdvisoryLock{db: db, lockName: lockName}
}

// Acquire runs GET_LOCK with the timeout rounded up to whole seconds.
//
// MySQL GET_LOCK() return values:
//   - 1: Lock was obtained successfully
//   - 0: Timeout was reached without obtaining the lock
//   - NULL: An error occurred (e.g., out of memory, thread killed)
func (a *AdvisoryLock) Acquire(ctx context.Context, timeout time.Duration) error {
	if a.conn != nil {
		return nil
	}

	conn, err := a.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to reserve lock connection: %w", err)
	}

	seconds := int((timeout + time.Second - 1) / time.Second)
	var result sql.NullInt64
	err = conn.QueryRowContext(ctx, "SELECT GET_LOCK(?, ?)", a.lockName, seconds).Scan(&result)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to execute GET_LOCK: %w", err)
	}
	if !result.Valid {
		conn.Close()
		return fmt.Errorf("GET_LOCK returned NULL for lock %q (possible database error)", a.lockName)
	}

	switch result.Int64 {
	case 1:
		a.conn = conn
		return nil
	case 0:
		conn.Close()
		return fmt.Errorf("%w: %s", ErrLocked, a.lockName)
	default:
		conn.Close()
		return fmt.Errorf("unexpected GET_LOCK return value: %d", result.Int64)
	}
}

// Release runs RELEASE_LOCK and returns the pinned connection to the pool.
// When the query fails the connection is discarded instead, ending the
// server session and with it the lock.
func (a *AdvisoryLock) Release(ctx context.Context) error {
	if a.conn == nil {
		return nil
	}
	conn := a.conn
	a.conn = nil

	var result sql.NullInt64
	if err := conn.QueryRowContext(ctx, "SELECT RELEASE_LOCK(?)", a.lockName).Scan(&result); err != nil {
		discard(conn)
		return fmt.Errorf("failed to execute RELEASE_LOCK: %w", err)
	}
	conn.Close()
	if !result.Valid {
		return fmt.Errorf("RELEASE_LOCK returned NULL for lock %q (lock did not exist)", a.lockName)
	}
	return nil
}

// discard closes the driver connection rather than pooling it.
func discard(conn *sql.Conn) {
	_ = conn.Raw(func(any) error { return driver.ErrBadConn })
	_ = conn.Close()
}

func (a *AdvisoryLock) Held() bool {
	return a.conn != nil
}

func (a *AdvisoryLock) Name() string {
	return a.lockName
}
