// Package pairlock serializes read-modify-write cycles that touch two user
// documents at once. Both ids are always locked in sorted order, so two
// operations on the same pair cannot deadlock regardless of who initiated.
package pairlock

import (
	"context"
	"sync"
)

// Locker locks a pair of user ids. Lock blocks until both are held or ctx is
// done; the returned unlock releases both and is safe to call more than once.
// Locking a user with itself takes a single lock.
type Locker interface {
	Lock(ctx context.Context, a, b string) (unlock func(), err error)
}

// order returns the ids in lock order, with the second empty when a == b.
func order(a, b string) (string, string) {
	if a == b {
		return a, ""
	}
	if a > b {
		return b, a
	}
	return a, b
}

// Local is an in-process Locker. It is the default when no Redis address is
// configured and is only correct for a single server instance.
type Local struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

var _ Locker = (*Local)(nil)

func NewLocal() *Local {
	return &Local{slots: make(map[string]*slot)}
}

func (l *Local) Lock(ctx context.Context, a, b string) (func(), error) {
	first, second := order(a, b)

	if err := l.acquire(ctx, first); err != nil {
		return nil, err
	}
	if second != "" {
		if err := l.acquire(ctx, second); err != nil {
			l.release(first)
			return nil, err
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			if second != "" {
				l.release(second)
			}
			l.release(first)
		})
	}, nil
}

func (l *Local) acquire(ctx context.Context, key string) error {
	l.mu.Lock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		l.mu.Lock()
		l.drop(key, s)
		l.mu.Unlock()
		return ctx.Err()
	}
}

func (l *Local) release(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := l.slots[key]
	<-s.ch
	l.drop(key, s)
}

// drop must be called with l.mu held.
func (l *Local) drop(key string, s *slot) {
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

// held reports how many keys currently have waiters or holders.
func (l *Local) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}
