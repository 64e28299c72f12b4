package streammgr

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"time"

	"github.com/Cantido/hematite/internal/eventlog"
)

const minShards = 16

// MetricsSink receives stream lifecycle events for observability. Metrics
// satisfies this interface without streammgr importing the metrics
// package directly.
type MetricsSink interface {
	StreamOpened()
	StreamClosed()
	StreamEvicted()
	eventlog.FsyncObserver
}

type noopMetrics struct{}

func (noopMetrics) StreamOpened()              {}
func (noopMetrics) StreamClosed()              {}
func (noopMetrics) StreamEvicted()             {}
func (noopMetrics) ObserveFsync(time.Duration) {}

// Options configures a Manager.
type Options struct {
	// MaxOpenStreams bounds the total number of stream files the manager
	// will hold open at once, spread evenly across shards. Each shard
	// holds at least one file, so when MaxOpenStreams is smaller than the
	// shard count the total can reach the shard count instead.
	MaxOpenStreams int
	// EvictionWait bounds how long a shard will wait for an in-flight
	// operation to finish before closing an evicted stream's file
	// anyway. Defaults to 5s.
	EvictionWait time.Duration
	// Logger receives eviction warnings. Defaults to slog.Default().
	Logger *slog.Logger
	// Metrics receives open/close/eviction counts. Defaults to a no-op sink.
	Metrics MetricsSink
}

// Manager is the stream manager (C3): a sharded, bounded cache of open
// *eventlog.Log handles, opened lazily and keyed by stream ID.
type Manager struct {
	dir    string
	shards []*shard
}

// New builds a Manager rooted at dir, the directory holding one file per
// stream.
func New(dir string, opts Options) (*Manager, error) {
	if opts.MaxOpenStreams <= 0 {
		opts.MaxOpenStreams = 256
	}
	if opts.EvictionWait <= 0 {
		opts.EvictionWait = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = noopMetrics{}
	}

	shardCount := runtime.GOMAXPROCS(0)
	if shardCount < minShards {
		shardCount = minShards
	}
	perShardCap := opts.MaxOpenStreams / shardCount
	if perShardCap < 1 {
		perShardCap = 1
	}

	m := &Manager{dir: dir, shards: make([]*shard, shardCount)}
	for i := range m.shards {
		s, err := newShard(perShardCap, opts.EvictionWait, opts.Logger, opts.Metrics)
		if err != nil {
			return nil, err
		}
		m.shards[i] = s
	}
	return m, nil
}

func (m *Manager) shardFor(streamID string) *shard {
	var h uint32
	for i := 0; i < len(streamID); i++ {
		h = h*31 + uint32(streamID[i])
	}
	return m.shards[h%uint32(len(m.shards))]
}

func (m *Manager) pathFor(streamID string) string {
	return filepath.Join(m.dir, streamID)
}

// WithStream resolves streamID to its log, opening it if this is the
// first touch, and invokes fn with it held open for the duration of the
// call. The log is not closed when fn returns; it stays cached for reuse
// until the shard's LRU evicts it.
func (m *Manager) WithStream(ctx context.Context, streamID string, fn func(*eventlog.Log) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateStreamID(streamID); err != nil {
		return err
	}

	s := m.shardFor(streamID)
	e, err := s.get(streamID, func() (*eventlog.Log, error) {
		return eventlog.Open(m.pathFor(streamID))
	})
	if err != nil {
		return fmt.Errorf("open stream %q: %w", streamID, err)
	}
	defer e.release()

	return fn(e.log)
}

// Exists reports whether streamID has an on-disk file, without opening
// or caching it.
func (m *Manager) Exists(streamID string) (bool, error) {
	if err := validateStreamID(streamID); err != nil {
		return false, err
	}
	return pathExists(m.pathFor(streamID))
}

// Close closes every open log held by the manager. Intended for
// graceful shutdown.
func (m *Manager) Close() error {
	var firstErr error
	for _, s := range m.shards {
		if err := s.closeAll(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// StreamIDFromPattern exposes the validation pattern so callers (e.g. the
// HTTP layer) can reject malformed IDs before ever touching the manager.
func StreamIDFromPattern(id string) error {
	return validateStreamID(id)
}
