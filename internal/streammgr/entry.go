package streammgr

import (
	"sync"
	"time"

	"github.com/Cantido/hematite/internal/eventlog"
)

// entry wraps an open log with a reference count so eviction can wait for
// in-flight callers to finish before closing the underlying file.
type entry struct {
	log  *eventlog.Log
	mu   sync.Mutex
	cond *sync.Cond
	refs int
}

func newEntry(log *eventlog.Log) *entry {
	e := &entry{log: log}
	e.cond = sync.NewCond(&e.mu)
	return e
}

func (e *entry) acquire() {
	e.mu.Lock()
	e.refs++
	e.mu.Unlock()
}

func (e *entry) release() {
	e.mu.Lock()
	e.refs--
	if e.refs <= 0 {
		e.cond.Broadcast()
	}
	e.mu.Unlock()
}

// waitIdle blocks until refs reaches zero or timeout elapses, reporting
// which happened first. If the timeout fires, it broadcasts on cond so
// the waiting goroutine it spawned observes the abandoned flag and
// exits instead of leaking, blocked forever on a refcount that may
// never reach zero.
func (e *entry) waitIdle(timeout time.Duration) bool {
	done := make(chan struct{})
	abandoned := make(chan struct{})
	go func() {
		e.mu.Lock()
		for e.refs > 0 {
			select {
			case <-abandoned:
				e.mu.Unlock()
				return
			default:
			}
			e.cond.Wait()
		}
		e.mu.Unlock()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		close(abandoned)
		e.mu.Lock()
		e.cond.Broadcast()
		e.mu.Unlock()
		return false
	}
}
