package eventlog

import (
	"encoding/binary"
	"hash/crc32"
	"io"

	"github.com/Cantido/hematite/internal/apperror"
)

// lenFieldSize and crcFieldSize are the fixed-width framing fields around
// each record's payload: len:u32be || payload || crc32:u32be.
const (
	lenFieldSize = 4
	crcFieldSize = 4
	headerSize   = lenFieldSize
	trailerSize  = crcFieldSize

	// maxPayloadSize bounds a single record's payload at 16 MiB.
	maxPayloadSize = 16 << 20
)

// encodedSize returns the total on-disk size of a record framing payload.
func encodedSize(payload []byte) int {
	return headerSize + len(payload) + trailerSize
}

// Encode frames payload into a single on-disk record: a 4-byte big-endian
// length, the payload bytes, and a 4-byte big-endian IEEE 802.3 CRC32 over
// the payload alone.
func Encode(payload []byte) ([]byte, error) {
	if len(payload) > maxPayloadSize {
		return nil, apperror.New(apperror.InvalidEvent, "event payload of %d bytes exceeds maximum of %d bytes", len(payload), maxPayloadSize)
	}
	out := make([]byte, encodedSize(payload))
	binary.BigEndian.PutUint32(out[:lenFieldSize], uint32(len(payload)))
	copy(out[lenFieldSize:], payload)
	crc := crc32.ChecksumIEEE(payload)
	binary.BigEndian.PutUint32(out[len(out)-crcFieldSize:], crc)
	return out, nil
}

// ReadAt decodes a single record starting at the given offset in r,
// returning the payload, the total number of bytes the record occupies on
// disk, and an error classifying any failure:
//
//   - io.EOF: the file ends exactly at off, i.e. there is no record here.
//     Not a corruption; callers use it to detect the end of the log.
//   - apperror.CorruptStream with a "torn write" cause: the file ends in
//     the middle of a record. Only tolerated at the tail during Open.
//   - apperror.CorruptStream with a CRC mismatch cause: the record is
//     fully present but its checksum does not match. Never tolerated.
//   - apperror.CorruptStream with a "length too large" cause: the length
//     header itself is implausible, i.e. corrupt rather than torn. Never
//     tolerated, even at the tail.
func ReadAt(r io.ReaderAt, off int64) (payload []byte, size int64, err error) {
	var lenBuf [lenFieldSize]byte
	n, err := r.ReadAt(lenBuf[:], off)
	if err == io.EOF && n == 0 {
		return nil, 0, io.EOF
	}
	if err != nil && err != io.EOF {
		return nil, 0, err
	}
	if n < lenFieldSize {
		return nil, 0, apperror.CorruptAt(off, errTornHeader)
	}

	payloadLen := binary.BigEndian.Uint32(lenBuf[:])
	if payloadLen > maxPayloadSize {
		return nil, 0, apperror.CorruptAt(off, errLengthTooLarge)
	}

	buf := make([]byte, int(payloadLen)+crcFieldSize)
	n, err = r.ReadAt(buf, off+lenFieldSize)
	if err != nil && err != io.EOF {
		return nil, 0, err
	}
	if n < len(buf) {
		return nil, 0, apperror.CorruptAt(off, errTornBody)
	}

	payload = buf[:payloadLen]
	wantCRC := binary.BigEndian.Uint32(buf[payloadLen:])
	gotCRC := crc32.ChecksumIEEE(payload)
	if gotCRC != wantCRC {
		return nil, 0, apperror.CorruptAt(off, errCRCMismatch)
	}

	return append([]byte(nil), payload...), int64(headerSize + len(buf)), nil
}

var (
	errTornHeader     = codecError("torn write: record length header incomplete")
	errTornBody       = codecError("torn write: record payload or checksum incomplete")
	errCRCMismatch    = codecError("checksum mismatch: record payload corrupt")
	errLengthTooLarge = codecError("record length header exceeds maximum payload size")
)

type codecError string

func (e codecError) Error() string { return string(e) }
