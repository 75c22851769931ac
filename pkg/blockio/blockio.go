// Package blockio defines the block-layer write record exchanged between a
// trace capture tool and the epoch/permutation engine in [github.com/rohanpadhye/crashmonkey/pkg/permuter],
// along with its wire format.
//
// The central type is [DiskWrite]: one block I/O as captured off a kernel
// block-trace facility. Predicates on [DiskWrite] ([DiskWrite.IsWrite],
// [DiskWrite.IsBarrier], [DiskWrite.IsMeta], [DiskWrite.IsCheckpoint],
// [DiskWrite.IsAsyncWrite]) are the only semantic interface a caller needs;
// the underlying bit layout is an external ABI (see the constants below) that
// must match whatever tool produced the trace.
package blockio

import "bytes"

// BIRW bit layout. These bits are an external ABI: they must match the bit
// positions used by the trace capture tool that produced a given log, not
// just this package's own encoder. The layout mirrors the low-bit-per-concern
// style of Linux block-layer request flags (REQ_*), since that is the ABI the
// original capture tooling speaks.
const (
	// FlagWrite marks the operation as a write (as opposed to a read).
	FlagWrite uint64 = 1 << iota
	// FlagFUA marks a write that is itself persisted together with the
	// durability guarantee of all preceding writes (Force Unit Access).
	FlagFUA
	// FlagFlush requests that all preceding writes be made durable. It says
	// nothing about the durability of the write carrying the flag itself.
	FlagFlush
	// FlagFlushSeq is a sequenced variant of FlagFlush, carrying the same
	// durability semantics for the purposes of this package.
	FlagFlushSeq
	// FlagBarrier is the legacy explicit barrier bit some capture tools set
	// redundantly alongside FlagFlush/FlagFUA. [DiskWrite.IsBarrier] does not
	// read this bit directly (it derives barrier status from flush/flush-seq/FUA,
	// matching the original tool), but the bit is preserved through encode/decode
	// since other consumers of the log format may read it.
	FlagBarrier
	// FlagMeta marks a metadata (as opposed to data-block) write.
	FlagMeta
	// FlagSync marks a write issued synchronously by the workload. Its absence
	// is what makes a write "async" for [DiskWrite.IsAsyncWrite].
	FlagSync
)

// BIFlags bit layout.
const (
	// FlagCheckpoint marks a non-I/O checkpoint marker inserted by the
	// workload driver. Checkpoint ops carry no payload and never appear in a
	// permutable crash state; see [DiskWrite.IsCheckpoint].
	FlagCheckpoint uint64 = 1 << iota
)

// DiskWrite represents one block-layer I/O captured from a file-system
// workload.
//
// A DiskWrite with Size == 0 carries no payload; Data is nil in that case.
// Data is otherwise exactly Size bytes. DiskWrite values are treated as
// immutable after construction except through the flush/flush-seq setters
// below: copies may share the same underlying Data backing array (this is
// relied on by the epoch builder when splitting a barrier), so callers must
// never mutate Data in place.
type DiskWrite struct {
	// BIFlags is an opaque trace-level flag bitfield (currently only the
	// checkpoint bit is defined).
	BIFlags uint64
	// BIRW carries the operation's block-layer flags (write, flush, flush-seq,
	// FUA, barrier, meta, sync).
	BIRW uint64
	// WriteSector is the starting sector of the write, in abstract sector
	// units (not bytes).
	WriteSector uint64
	// Size is the payload length in bytes. Zero means no payload.
	Size uint64
	// TimeNS is the capture timestamp in nanoseconds.
	TimeNS uint64
	// Data is the payload, exactly Size bytes, or nil when Size == 0.
	Data []byte
}

// New constructs a DiskWrite, copying data into an owned buffer.
//
// data may be nil or empty only if size == 0. If data is shorter than size,
// New panics: callers must supply a full payload up front, matching the
// capture tool's own framing guarantee.
func New(biFlags, biRW, writeSector, size, timeNS uint64, data []byte) DiskWrite {
	dw := DiskWrite{
		BIFlags:     biFlags,
		BIRW:        biRW,
		WriteSector: writeSector,
		Size:        size,
		TimeNS:      timeNS,
	}

	if size > 0 {
		if uint64(len(data)) < size {
			panic("blockio: New: payload shorter than declared size")
		}

		owned := make([]byte, size)
		copy(owned, data[:size])
		dw.Data = owned
	}

	return dw
}

// IsWrite reports whether this op is a write.
func (dw DiskWrite) IsWrite() bool {
	return dw.BIRW&FlagWrite != 0
}

// HasFlushFlag reports whether the flush bit is set.
func (dw DiskWrite) HasFlushFlag() bool {
	return dw.BIRW&FlagFlush != 0
}

// HasFlushSeqFlag reports whether the flush-sequence bit is set.
func (dw DiskWrite) HasFlushSeqFlag() bool {
	return dw.BIRW&FlagFlushSeq != 0
}

// HasFUAFlag reports whether the FUA bit is set.
func (dw DiskWrite) HasFUAFlag() bool {
	return dw.BIRW&FlagFUA != 0
}

// IsBarrier reports whether this op forces durability of preceding writes:
// a write with the flush, flush-seq, or FUA bit set.
func (dw DiskWrite) IsBarrier() bool {
	return dw.IsWrite() && (dw.HasFlushFlag() || dw.HasFlushSeqFlag() || dw.HasFUAFlag())
}

// IsMeta reports whether this op targets a metadata block.
func (dw DiskWrite) IsMeta() bool {
	return dw.BIRW&FlagMeta != 0
}

// IsCheckpoint reports whether this op is a workload checkpoint marker
// rather than a real I/O.
func (dw DiskWrite) IsCheckpoint() bool {
	return dw.BIFlags&FlagCheckpoint != 0
}

// IsAsyncWrite reports whether this is a write issued without the sync flag.
func (dw DiskWrite) IsAsyncWrite() bool {
	return dw.IsWrite() && dw.BIRW&FlagSync == 0
}

// SetFlushFlag sets the flush bit. Flush and flush-seq are the only bits the
// engine itself mutates (when splitting a barrier that carries data); FUA and
// the barrier bit are read-only from this package's perspective.
func (dw *DiskWrite) SetFlushFlag() {
	dw.BIRW |= FlagFlush
}

// ClearFlushFlag clears the flush bit.
func (dw *DiskWrite) ClearFlushFlag() {
	dw.BIRW &^= FlagFlush
}

// SetFlushSeqFlag sets the flush-sequence bit.
func (dw *DiskWrite) SetFlushSeqFlag() {
	dw.BIRW |= FlagFlushSeq
}

// ClearFlushSeqFlag clears the flush-sequence bit.
func (dw *DiskWrite) ClearFlushSeqFlag() {
	dw.BIRW &^= FlagFlushSeq
}

// Equal reports whether dw and other represent the same record. TimeNS is
// excluded from comparison, matching the original capture format's notion of
// equality (two writes that differ only in capture timestamp are the same
// write for crash-state purposes).
func (dw DiskWrite) Equal(other DiskWrite) bool {
	if dw.BIFlags != other.BIFlags || dw.BIRW != other.BIRW ||
		dw.WriteSector != other.WriteSector || dw.Size != other.Size {
		return false
	}

	if (dw.Data == nil) != (other.Data == nil) {
		return false
	}

	return bytes.Equal(dw.Data, other.Data)
}
