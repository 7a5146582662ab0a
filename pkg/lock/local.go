package lock

import (
	"context"
	"sync"
	"time"
)

// Local is an in-process keyed mutex. Entries are reference counted and
// dropped once no goroutine holds or waits on the key.
type Local struct {
	opts Options

	mu    sync.Mutex
	slots map[string]*localSlot
}

type localSlot struct {
	ch   chan struct{}
	refs int
}

// NewLocal builds an in-process locker.
func NewLocal(opts Options) *Local {
	return &Local{opts: opts.withDefaults(), slots: make(map[string]*localSlot)}
}

// Acquire blocks until key is free, ctx is done, or the wait budget elapses.
func (l *Local) Acquire(ctx context.Context, key string) (Release, error) {
	key = l.opts.Prefix + key
	slot := l.ref(key)

	timer := time.NewTimer(l.opts.Wait)
	defer timer.Stop()

	select {
	case slot.ch <- struct{}{}:
	case <-ctx.Done():
		l.unref(key)
		return nil, ctx.Err()
	case <-timer.C:
		l.unref(key)
		return nil, ErrTimeout
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-slot.ch
			l.unref(key)
		})
	}, nil
}

func (l *Local) ref(key string) *localSlot {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot, ok := l.slots[key]
	if !ok {
		slot = &localSlot{ch: make(chan struct{}, 1)}
		l.slots[key] = slot
	}
	slot.refs++
	return slot
}

func (l *Local) unref(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot, ok := l.slots[key]
	if !ok {
		return
	}
	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, key)
	}
}
