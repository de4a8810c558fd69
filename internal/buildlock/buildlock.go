// Package buildlock provides an optional advisory lock at a module root,
// the supplemented concurrency guard the requirements note implementations
// MAY add even though the core itself is single-threaded (§5).
package buildlock

import (
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"
)

// LockFileName is the advisory lock's file name under a module root.
const LockFileName = ".anc.lock"

// Lock wraps a flock.Flock scoped to one module root.
type Lock struct {
	f *flock.Flock
}

// New returns an (unacquired) lock for the given module root.
func New(moduleRoot string) *Lock {
	return &Lock{f: flock.New(filepath.Join(moduleRoot, LockFileName))}
}

// TryLock attempts to acquire the lock without blocking. ok is false if
// another process currently holds it.
func (l *Lock) TryLock() (ok bool, err error) {
	ok, err = l.f.TryLock()
	if err != nil {
		return false, fmt.Errorf("buildlock: %w", err)
	}
	return ok, nil
}

// Unlock releases the lock if held.
func (l *Lock) Unlock() error {
	return l.f.Unlock()
}

// Locked reports whether this process currently holds the lock.
func (l *Lock) Locked() bool {
	return l.f.Locked()
}
