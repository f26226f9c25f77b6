package common

import (
	"sync"
	"sync/atomic"
)

// Guard is the reentrancy lock of one contract instance. A guarded operation
// acquires it first and defers the returned release, so the lock is dropped on
// every exit path including errors and panics.
type Guard struct {
	locked atomic.Bool
}

// Enter locks the guard. It fails with ErrReentrancy while another guarded
// operation of the same instance is still running.
func (g *Guard) Enter() (release func(), err error) {
	if !g.locked.CompareAndSwap(false, true) {
		return nil, ErrReentrancy
	}
	var once sync.Once
	return func() {
		once.Do(func() { g.locked.Store(false) })
	}, nil
}

// Locked reports whether a guarded operation is in flight.
func (g *Guard) Locked() bool {
	return g.locked.Load()
}
