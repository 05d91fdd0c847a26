// Package lease guarantees a single writer per indexing pass.
package lease

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrLeaseHeld is returned when another holder owns the lease.
var ErrLeaseHeld = errors.New("lease already held")

// Locker hands out exclusive leases. The returned release func is safe to
// call more than once.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// Local is an in-process Locker. The ttl is ignored: the lease lives until released.
type Local struct {
	mu   sync.Mutex
	held map[string]bool
}

func NewLocal() *Local {
	return &Local{held: make(map[string]bool)}
}

func (l *Local) Acquire(ctx context.Context, key string, _ time.Duration) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, ErrLeaseHeld
	}
	l.held[key] = true

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, nil
}

var _ Locker = (*Local)(nil)
