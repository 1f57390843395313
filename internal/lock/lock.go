// Package lock provides the cross-process advisory lock that serializes
// every ledger read-modify-write: consolidation, judging and learning all
// take the same lock.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/flock"
)

// ErrTimeout is returned when the lock cannot be acquired within the
// configured window. The caller must abort with no side effects.
var ErrTimeout = errors.New("advisory lock: acquisition timed out")

const pollInterval = 100 * time.Millisecond

// AdvisoryLock is a file-backed exclusive lock. The zero value is not
// usable; construct with New.
type AdvisoryLock struct {
	fl      *flock.Flock
	timeout time.Duration
}

// New creates a lock on the given lock file path.
func New(path string, timeout time.Duration) *AdvisoryLock {
	return &AdvisoryLock{fl: flock.New(path), timeout: timeout}
}

// Acquire busy-waits for the exclusive lock, polling every 100ms until the
// timeout elapses.
func (l *AdvisoryLock) Acquire() error {
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()

	ok, err := l.fl.TryLockContext(ctx, pollInterval)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrTimeout
		}
		return fmt.Errorf("advisory lock: %w", err)
	}
	if !ok {
		return ErrTimeout
	}
	return nil
}

// Release unlocks. Safe to call on error paths even when Acquire failed.
func (l *AdvisoryLock) Release() error {
	return l.fl.Unlock()
}
