// Package eventlog implements hematite's per-stream durable log: the
// on-disk record codec (C1) and the append/read engine (C2) that owns one
// stream's file.
//
// # On-disk format
//
// A stream file is a dense concatenation of records, no header, no
// footer:
//
//	record := len:u32be || payload:len bytes || crc32:u32be
//	file   := record*
//
// The revision of the k-th record (0-indexed) is k. crc32 is IEEE 802.3
// over payload only.
//
// # API surface
//
//	log, err := eventlog.Open("/var/lib/hematite/streams/orders-1")
//	next, err := log.Append(ctx, batch, nil)              // unconditional
//	next, err := log.Append(ctx, batch, ptrTo(uint64(3)))  // expect revision 3
//	ev, err := log.Read(2)
//	page, next, err := log.ReadPage(0, 100)
//	n := log.Length()
package eventlog
