// Package lockfile provides the per-table OS advisory file lock used by
// the versioned catalog to serialize commits across processes. Adapted
// from the single fixed process-lock of the teacher's own lockfile
// package into a lock keyed by an arbitrary path, one per table.
package lockfile

import (
	"errors"
	"fmt"

	"github.com/gofrs/flock"
)

// ErrLockBusy is returned when a lock is already held by another process
// and the caller asked not to block.
var ErrLockBusy = errors.New("lock busy: held by another process")

// TableLock is an exclusive advisory lock on a single file path.
type TableLock struct {
	path string
	fl   *flock.Flock
}

// New returns a TableLock for the given lock-file path. New itself does
// not touch the filesystem; the file is created by the first Lock or
// TryLock if it does not already exist.
func New(path string) *TableLock {
	return &TableLock{path: path, fl: flock.New(path)}
}

// Lock blocks until the exclusive lock is acquired.
func (l *TableLock) Lock() error {
	if err := l.fl.Lock(); err != nil {
		return fmt.Errorf("lockfile: lock %s: %w", l.path, err)
	}
	return nil
}

// TryLock attempts to acquire the lock without blocking. It returns
// ErrLockBusy (checkable with IsLocked) if another process holds it.
func (l *TableLock) TryLock() error {
	ok, err := l.fl.TryLock()
	if err != nil {
		return fmt.Errorf("lockfile: trylock %s: %w", l.path, err)
	}
	if !ok {
		return ErrLockBusy
	}
	return nil
}

// Unlock releases the lock.
func (l *TableLock) Unlock() error {
	if err := l.fl.Unlock(); err != nil {
		return fmt.Errorf("lockfile: unlock %s: %w", l.path, err)
	}
	return nil
}

// IsLocked reports whether err indicates the lock was already held.
func IsLocked(err error) bool {
	return errors.Is(err, ErrLockBusy)
}
