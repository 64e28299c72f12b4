package eventlog

import (
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Cantido/hematite/internal/apperror"
)

func newTestLog(t *testing.T) *Log {
	t.Helper()
	dir := t.TempDir()
	l, err := Open(filepath.Join(dir, "stream"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestAppendAssignsSequentialRevisions(t *testing.T) {
	l := newTestLog(t)
	ctx := context.Background()

	rev, err := l.Append(ctx, [][]byte{[]byte("e1"), []byte("e2")}, nil)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if rev != 2 {
		t.Fatalf("rev = %d, want 2", rev)
	}

	rev, err = l.Append(ctx, [][]byte{[]byte("e3")}, nil)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if rev != 3 {
		t.Fatalf("rev = %d, want 3", rev)
	}
}

func TestReadAfterAppendVisible(t *testing.T) {
	l := newTestLog(t)
	ctx := context.Background()

	if _, err := l.Append(ctx, [][]byte{[]byte("a"), []byte("b")}, nil); err != nil {
		t.Fatalf("Append: %v", err)
	}

	got, err := l.Read(0)
	if err != nil {
		t.Fatalf("Read(0): %v", err)
	}
	if string(got) != "a" {
		t.Fatalf("Read(0) = %q, want %q", got, "a")
	}

	got, err = l.Read(1)
	if err != nil {
		t.Fatalf("Read(1): %v", err)
	}
	if string(got) != "b" {
		t.Fatalf("Read(1) = %q, want %q", got, "b")
	}
}

func TestReadUnknownRevisionNotFound(t *testing.T) {
	l := newTestLog(t)
	ctx := context.Background()
	if _, err := l.Append(ctx, [][]byte{[]byte("a")}, nil); err != nil {
		t.Fatalf("Append: %v", err)
	}

	_, err := l.Read(5)
	var ae *apperror.Error
	if !errors.As(err, &ae) || ae.Kind != apperror.NotFound {
		t.Fatalf("err = %v, want NotFound", err)
	}
}

func TestAppendExpectedRevisionMismatchLeavesStateUnchanged(t *testing.T) {
	l := newTestLog(t)
	ctx := context.Background()

	if _, err := l.Append(ctx, [][]byte{[]byte("a")}, nil); err != nil {
		t.Fatalf("Append: %v", err)
	}

	bad := uint64(99)
	_, err := l.Append(ctx, [][]byte{[]byte("b")}, &bad)
	var ae *apperror.Error
	if !errors.As(err, &ae) || ae.Kind != apperror.RevisionMismatch {
		t.Fatalf("err = %v, want RevisionMismatch", err)
	}
	if ae.Expected != 99 || ae.Actual != 1 {
		t.Fatalf("expected=%d actual=%d, want 99/1", ae.Expected, ae.Actual)
	}

	if n := l.Length(); n != 1 {
		t.Fatalf("Length() = %d, want 1 (no partial write)", n)
	}
}

func TestAppendExpectedRevisionMatchSucceeds(t *testing.T) {
	l := newTestLog(t)
	ctx := context.Background()

	if _, err := l.Append(ctx, [][]byte{[]byte("a")}, nil); err != nil {
		t.Fatalf("Append: %v", err)
	}

	want := uint64(1)
	rev, err := l.Append(ctx, [][]byte{[]byte("b")}, &want)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if rev != 2 {
		t.Fatalf("rev = %d, want 2", rev)
	}
}

func TestReadPagePaginatesWithNextOffset(t *testing.T) {
	l := newTestLog(t)
	ctx := context.Background()

	payloads := [][]byte{[]byte("a"), []byte("b"), []byte("c"), []byte("d")}
	if _, err := l.Append(ctx, payloads, nil); err != nil {
		t.Fatalf("Append: %v", err)
	}

	page, next, err := l.ReadPage(1, 2)
	if err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	if len(page) != 2 || string(page[0]) != "b" || string(page[1]) != "c" {
		t.Fatalf("page = %v, want [b c]", page)
	}
	if next != 3 {
		t.Fatalf("next = %d, want 3", next)
	}

	page, next, err = l.ReadPage(next, 10)
	if err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	if len(page) != 1 || string(page[0]) != "d" {
		t.Fatalf("page = %v, want [d]", page)
	}
	if next != 4 {
		t.Fatalf("next = %d, want 4", next)
	}
}

func TestReopenRebuildsIndex(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stream")
	ctx := context.Background()

	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := l.Append(ctx, [][]byte{[]byte("a"), []byte("b")}, nil); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	l2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = l2.Close() })

	if n := l2.Length(); n != 2 {
		t.Fatalf("Length() = %d, want 2", n)
	}
	got, err := l2.Read(1)
	if err != nil {
		t.Fatalf("Read(1): %v", err)
	}
	if string(got) != "b" {
		t.Fatalf("Read(1) = %q, want %q", got, "b")
	}

	rev, err := l2.Append(ctx, [][]byte{[]byte("c")}, nil)
	if err != nil {
		t.Fatalf("Append after reopen: %v", err)
	}
	if rev != 3 {
		t.Fatalf("rev = %d, want 3", rev)
	}
}

func TestReopenTruncatesTornTail(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stream")
	ctx := context.Background()

	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := l.Append(ctx, [][]byte{[]byte("a")}, nil); err != nil {
		t.Fatalf("Append: %v", err)
	}
	fullSize := l.tail
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Simulate a crash mid-append: a second record whose trailer never made it to disk.
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		t.Fatalf("reopen raw: %v", err)
	}
	rec, err := Encode([]byte("torn"))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if _, err := f.WriteAt(rec[:len(rec)-2], fullSize); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close raw: %v", err)
	}

	l2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen after torn write: %v", err)
	}
	t.Cleanup(func() { _ = l2.Close() })

	if n := l2.Length(); n != 1 {
		t.Fatalf("Length() = %d, want 1 (torn tail truncated)", n)
	}

	rev, err := l2.Append(ctx, [][]byte{[]byte("b")}, nil)
	if err != nil {
		t.Fatalf("Append after self-heal: %v", err)
	}
	if rev != 2 {
		t.Fatalf("rev = %d, want 2", rev)
	}
}

func TestReopenFailsOnOversizeLengthHeaderEvenAtTail(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stream")
	ctx := context.Background()

	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := l.Append(ctx, [][]byte{[]byte("a")}, nil); err != nil {
		t.Fatalf("Append: %v", err)
	}
	fullSize := l.tail
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Append a record whose length header is corrupted to an implausible
	// value. Unlike a genuinely torn write, this must not be mistaken for
	// a crash-mid-append and truncated away: it is a corrupt record, not
	// an incomplete one, even though it sits at the tail.
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		t.Fatalf("reopen raw: %v", err)
	}
	rec, err := Encode([]byte("b"))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	binary.BigEndian.PutUint32(rec[:lenFieldSize], 0xFFFFFFFF)
	if _, err := f.WriteAt(rec, fullSize); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close raw: %v", err)
	}

	_, err = Open(path)
	var ae *apperror.Error
	if !errors.As(err, &ae) || ae.Kind != apperror.CorruptStream {
		t.Fatalf("err = %v, want CorruptStream (not truncated away)", err)
	}
}

func TestReopenFailsOnCRCCorruptionNotAtTail(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stream")
	ctx := context.Background()

	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := l.Append(ctx, [][]byte{[]byte("a"), []byte("b")}, nil); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		t.Fatalf("reopen raw: %v", err)
	}
	// Flip a byte inside the first record's payload without touching length
	// or trailing bytes, so the corruption is followed by a well-formed
	// second record rather than sitting at the tail.
	if _, err := f.WriteAt([]byte{0xFF}, 4); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close raw: %v", err)
	}

	_, err = Open(path)
	var ae *apperror.Error
	if !errors.As(err, &ae) || ae.Kind != apperror.CorruptStream {
		t.Fatalf("err = %v, want CorruptStream", err)
	}
}
