// Package streammgr implements the stream manager: a sharded, bounded
// cache of open *eventlog.Log handles keyed by stream ID.
//
// A stream is opened lazily on first access and kept open across
// requests so appends avoid reopening the file each time. The cache is
// sharded to spread lock contention, each shard backed by an LRU so the
// manager never holds more than a configured number of files open at
// once (at least one per shard); evicting a shard's least-recently-used entry waits for any
// in-flight operation on it to finish, up to a bounded timeout, before
// closing the file.
//
// Example:
//
//	mgr, err := streammgr.New("/var/lib/hematite/streams", streammgr.Options{MaxOpenStreams: 256})
//	err = mgr.WithStream(ctx, "orders-1", func(log *eventlog.Log) error {
//	    _, err := log.Append(ctx, batch, nil)
//	    return err
//	})
package streammgr
