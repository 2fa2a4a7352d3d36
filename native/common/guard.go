package common

import (
	"errors"
	"sync"
	"sync/atomic"
)

// ErrReentrantCall is returned when a state-mutating operation is invoked
// while an external settlement action is still in flight on the same engine.
var ErrReentrantCall = errors.New("reentrant call")

// Guard imposes a total order over engine operations and rejects reentrant
// invocation. Operations acquire the guard for their full duration; while an
// external action (token mint, value transfer) is in flight the guard is
// latched and any nested call fails immediately instead of queueing.
type Guard struct {
	mu       sync.Mutex
	external atomic.Bool
}

// Acquire takes the guard for the duration of one operation. It fails with
// ErrReentrantCall when invoked from within an external settlement action.
func (g *Guard) Acquire() error {
	if g == nil {
		return nil
	}
	if g.external.Load() {
		return ErrReentrantCall
	}
	g.mu.Lock()
	return nil
}

// Release frees the guard. Callers must pair every successful Acquire with
// exactly one Release, normally via defer.
func (g *Guard) Release() {
	if g == nil {
		return
	}
	g.mu.Unlock()
}

// External runs fn with the guard latched. The latch is cleared when fn
// returns or panics, so a faulting collaborator cannot wedge the engine.
func (g *Guard) External(fn func() error) error {
	if fn == nil {
		return nil
	}
	if g == nil {
		return fn()
	}
	g.external.Store(true)
	defer g.external.Store(false)
	return fn()
}
