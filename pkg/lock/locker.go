// Package lock provides keyed mutual exclusion for the booking critical section.
// Two backends exist: an in-process keyed mutex for single instance deployments
// and a Redis SET NX PX lease for multi-instance ones.
package lock

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout is returned when a lock could not be acquired before the wait budget elapsed.
var ErrTimeout = errors.New("lock: acquire timeout")

// Release gives a held lock back. It is safe to call more than once.
type Release func()

// Locker hands out exclusive leases per key.
type Locker interface {
	Acquire(ctx context.Context, key string) (Release, error)
}

// Options tune acquisition.
type Options struct {
	// TTL bounds how long a distributed lease survives a crashed holder.
	TTL time.Duration
	// Wait bounds how long Acquire blocks before returning ErrTimeout.
	Wait time.Duration
	// Prefix namespaces keys.
	Prefix string
}

func (o Options) withDefaults() Options {
	if o.TTL <= 0 {
		o.TTL = 10 * time.Second
	}
	if o.Wait <= 0 {
		o.Wait = 3 * time.Second
	}
	return o
}
