// Package lock serializes cross-process operations with advisory file
// locks.
package lock

import (
	"fmt"

	"github.com/gofrs/flock"
)

// Acquire takes an exclusive advisory lock on path, blocking until it is
// held. Returns a release function.
func Acquire(path string) (func(), error) {
	fl := flock.New(path)
	if err := fl.Lock(); err != nil {
		return nil, fmt.Errorf("acquiring lock %s: %w", path, err)
	}
	return func() { fl.Unlock() }, nil
}

// TryAcquire takes the lock without blocking. Returns ok=false when
// another process holds it.
func TryAcquire(path string) (release func(), ok bool, err error) {
	fl := flock.New(path)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, false, fmt.Errorf("acquiring lock %s: %w", path, err)
	}
	if !locked {
		return nil, false, nil
	}
	return func() { fl.Unlock() }, true, nil
}
