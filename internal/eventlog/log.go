package eventlog

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"time"

	"github.com/Cantido/hematite/internal/apperror"
)

// FsyncObserver receives the wall-clock duration of each Append's fsync
// call, for latency metrics. Implementations must be safe to call
// without holding any lock of the caller's.
type FsyncObserver interface {
	ObserveFsync(time.Duration)
}

// Log owns a single stream's append-only file. Revisions are assigned
// sequentially starting at 0; the revision of a record is its index into
// offsets. Writes are serialized under mu; reads take the byte offset for
// their revision under a read lock and then pread the file without
// holding it, so concurrent reads never block on each other or on a
// writer once the offset lookup is done.
type Log struct {
	file *os.File
	path string

	mu      sync.RWMutex
	offsets []int64
	tail    int64
	corrupt error // non-nil once poisoned: a write or fsync failure, or a corrupt record on read

	fsyncObserver FsyncObserver
}

// SetFsyncObserver attaches obs so every future Append reports its fsync
// latency. Safe to call at most once, before the log is shared across
// goroutines.
func (l *Log) SetFsyncObserver(obs FsyncObserver) {
	l.fsyncObserver = obs
}

// Open opens or creates the stream file at path and rebuilds the offset
// index by scanning every record from the start. A torn record at the very
// end of the file — the signature of a crash mid-append — is truncated
// away and the stream reopens clean. A checksum failure, or a torn record
// anywhere but the tail, is fatal: Open returns a CorruptStream error and
// the stream is unusable until repaired out of band.
func Open(path string) (*Log, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}

	l := &Log{file: f, path: path}
	if err := l.scan(); err != nil {
		f.Close()
		return nil, err
	}
	return l, nil
}

// scan walks the file from byte 0, populating offsets and tail. It is
// called once, from Open.
func (l *Log) scan() error {
	var off int64
	var offsets []int64

	for {
		_, size, err := ReadAt(l.file, off)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var ae *apperror.Error
			if errors.As(err, &ae) && ae.Kind == apperror.CorruptStream && isTorn(ae.Unwrap()) {
				if terr := l.file.Truncate(off); terr != nil {
					return terr
				}
				break
			}
			return err
		}
		offsets = append(offsets, off)
		off += size
	}

	l.offsets = offsets
	l.tail = off
	return nil
}

func isTorn(cause error) bool {
	return errors.Is(cause, errTornHeader) || errors.Is(cause, errTornBody)
}

// Append encodes and writes payloads as a single batch: one write, one
// fsync, one index extension under the write lock. If expectedRevision is
// non-nil, the append is rejected with a RevisionMismatch error (and no
// bytes are written) unless the stream's current length equals
// *expectedRevision. Returns the stream's new length.
func (l *Log) Append(ctx context.Context, payloads [][]byte, expectedRevision *uint64) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(payloads) == 0 {
		return 0, apperror.New(apperror.InvalidRequest, "batch must contain at least one event")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.corrupt != nil {
		return 0, apperror.Wrap(apperror.Unavailable, l.corrupt, "stream log is corrupt")
	}

	current := uint64(len(l.offsets))
	if expectedRevision != nil && *expectedRevision != current {
		return 0, apperror.RevisionConflict(*expectedRevision, current)
	}

	buf := make([]byte, 0, 1024)
	newOffsets := make([]int64, 0, len(payloads))
	off := l.tail
	for i, p := range payloads {
		rec, err := Encode(p)
		if err != nil {
			return 0, apperror.Wrap(apperror.InvalidEvent, err, "event %d: %v", i, err)
		}
		newOffsets = append(newOffsets, off)
		off += int64(len(rec))
		buf = append(buf, rec...)
	}

	if _, err := l.file.WriteAt(buf, l.tail); err != nil {
		l.corrupt = err
		return 0, apperror.Wrap(apperror.Unavailable, err, "write failed, stream log poisoned")
	}
	syncStart := time.Now()
	err := l.file.Sync()
	if l.fsyncObserver != nil {
		l.fsyncObserver.ObserveFsync(time.Since(syncStart))
	}
	if err != nil {
		l.corrupt = err
		return 0, apperror.Wrap(apperror.Unavailable, err, "fsync failed, stream log poisoned")
	}

	l.offsets = append(l.offsets, newOffsets...)
	l.tail = off
	return uint64(len(l.offsets)), nil
}

// Read returns the payload recorded at revision, or a NotFound error if
// revision is at or past the stream's current length.
func (l *Log) Read(revision uint64) ([]byte, error) {
	off, err := l.offsetFor(revision)
	if err != nil {
		return nil, err
	}
	payload, _, err := ReadAt(l.file, off)
	if err != nil {
		return nil, l.markIfCorrupt(err)
	}
	return payload, nil
}

func (l *Log) offsetFor(revision uint64) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.corrupt != nil {
		return 0, apperror.Wrap(apperror.Unavailable, l.corrupt, "stream log is corrupt")
	}
	if revision >= uint64(len(l.offsets)) {
		return 0, apperror.New(apperror.NotFound, "revision %d not found", revision)
	}
	return l.offsets[revision], nil
}

// ReadPage returns up to limit payloads starting at offset, plus the
// revision a subsequent page should resume from (offset + number of
// records actually returned, per the pagination contract).
func (l *Log) ReadPage(offset, limit uint64) ([][]byte, uint64, error) {
	l.mu.RLock()
	if l.corrupt != nil {
		l.mu.RUnlock()
		return nil, 0, apperror.Wrap(apperror.Unavailable, l.corrupt, "stream log is corrupt")
	}
	length := uint64(len(l.offsets))
	if offset > length {
		offset = length
	}
	end := offset + limit
	if end > length {
		end = length
	}
	offs := append([]int64(nil), l.offsets[offset:end]...)
	l.mu.RUnlock()

	results := make([][]byte, 0, len(offs))
	for _, o := range offs {
		payload, _, err := ReadAt(l.file, o)
		if err != nil {
			return nil, 0, l.markIfCorrupt(err)
		}
		results = append(results, payload)
	}
	return results, offset + uint64(len(results)), nil
}

// Length returns the stream's current revision count.
func (l *Log) Length() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return uint64(len(l.offsets))
}

// markIfCorrupt poisons the log once a post-open read turns up a checksum
// failure, so later callers fail fast instead of re-reading a known-bad
// record.
func (l *Log) markIfCorrupt(err error) error {
	var ae *apperror.Error
	if errors.As(err, &ae) && ae.Kind == apperror.CorruptStream {
		l.mu.Lock()
		if l.corrupt == nil {
			l.corrupt = err
		}
		l.mu.Unlock()
	}
	return err
}

// Close closes the underlying file. The Log must not be used afterward.
func (l *Log) Close() error {
	return l.file.Close()
}

// Path returns the filesystem path backing the log.
func (l *Log) Path() string {
	return l.path
}
