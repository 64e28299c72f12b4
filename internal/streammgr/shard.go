package streammgr

import (
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/Cantido/hematite/internal/eventlog"
)

// shard owns a bounded LRU of open logs guarded by its own lock, plus a
// singleflight group so concurrent first-touches of the same stream share
// a single Open call instead of racing.
type shard struct {
	mu           sync.RWMutex
	cache        *lru.Cache[string, *entry]
	sf           singleflight.Group
	evictionWait time.Duration
	logger       *slog.Logger
	metrics      MetricsSink
}

func newShard(capacity int, evictionWait time.Duration, logger *slog.Logger, metrics MetricsSink) (*shard, error) {
	s := &shard{evictionWait: evictionWait, logger: logger, metrics: metrics}
	cache, err := lru.NewWithEvict[string, *entry](capacity, s.onEvict)
	if err != nil {
		return nil, err
	}
	s.cache = cache
	return s, nil
}

// onEvict runs synchronously inside the cache's Add call, holding the
// shard's write lock. It must not block indefinitely: an entry still in
// use gets a bounded grace period, after which the file is closed out
// from under any caller still holding it.
func (s *shard) onEvict(streamID string, e *entry) {
	s.metrics.StreamEvicted()
	defer s.metrics.StreamClosed()

	if e.waitIdle(s.evictionWait) {
		if err := e.log.Close(); err != nil {
			s.logger.Warn("error closing evicted stream", "stream", streamID, "error", err)
		}
		return
	}
	s.logger.Warn("evicting stream log past eviction wait with in-flight operations", "stream", streamID, "wait", s.evictionWait)
	if err := e.log.Close(); err != nil {
		s.logger.Warn("error closing evicted stream", "stream", streamID, "error", err)
	}
}

// get returns the cached entry for streamID, already acquired on the
// caller's behalf, opening it via open (guarded by singleflight) on a
// miss. The caller must call release on the returned entry. acquire runs
// while the shard lock is held in every path, so onEvict — which only
// runs with the same lock held, inside cache.Add — can never close the
// file out from under an entry between a lookup and its acquire.
func (s *shard) get(streamID string, open func() (*eventlog.Log, error)) (*entry, error) {
	s.mu.RLock()
	if e, ok := s.cache.Get(streamID); ok {
		e.acquire()
		s.mu.RUnlock()
		return e, nil
	}
	s.mu.RUnlock()

	leader := false
	v, err, _ := s.sf.Do(streamID, func() (interface{}, error) {
		leader = true
		s.mu.Lock()
		if e, ok := s.cache.Get(streamID); ok {
			e.acquire()
			s.mu.Unlock()
			return e, nil
		}
		s.mu.Unlock()

		log, err := open()
		if err != nil {
			return nil, err
		}
		log.SetFsyncObserver(s.metrics)
		e := newEntry(log)
		e.acquire()

		s.mu.Lock()
		s.cache.Add(streamID, e)
		s.mu.Unlock()
		s.metrics.StreamOpened()
		return e, nil
	})
	if err != nil {
		return nil, err
	}
	e := v.(*entry)
	if !leader {
		// This caller shared another caller's Do and never ran its
		// acquire; take its own reference under the shard lock, or start
		// over if the entry has already left the cache.
		s.mu.RLock()
		cur, ok := s.cache.Peek(streamID)
		if ok && cur == e {
			e.acquire()
		}
		s.mu.RUnlock()
		if !ok || cur != e {
			return s.get(streamID, open)
		}
	}
	return e, nil
}

func (s *shard) closeAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for _, streamID := range s.cache.Keys() {
		if e, ok := s.cache.Peek(streamID); ok {
			if err := e.log.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
			s.metrics.StreamClosed()
		}
	}
	s.cache.Purge()
	return firstErr
}
