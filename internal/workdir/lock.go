package workdir

import (
	"errors"
	"fmt"

	"github.com/gofrs/flock"
)

// ErrLocked reports that another run already owns the work directory.
var ErrLocked = errors.New("work directory is in use by another clipper run")

// Lock is an exclusive advisory lock over one work directory.
type Lock struct {
	path string
	lock *flock.Flock
}

// Acquire takes the work directory lock without waiting. The directory must
// already exist.
func Acquire(l Layout) (*Lock, error) {
	path := l.LockPath()
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, l.Dir)
	}
	return &Lock{path: path, lock: fl}, nil
}

// Path returns the lock file location.
func (k *Lock) Path() string {
	if k == nil {
		return ""
	}
	return k.path
}

// Release drops the lock. Safe to call on a nil lock.
func (k *Lock) Release() error {
	if k == nil || k.lock == nil {
		return nil
	}
	return k.lock.Unlock()
}
