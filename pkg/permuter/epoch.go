// Package permuter segments a block-write trace into durability epochs and
// drives a pluggable strategy to emit unique crash-consistent disk states.
//
// The three pieces live together because they share state: [Permuter] owns
// both the epoch slice built by [Permuter.InitData] and the deduplication set
// consulted by [Permuter.GenerateCrashState].
package permuter

import (
	"encoding/binary"

	"github.com/rohanpadhye/crashmonkey/pkg/blockio"
)

// EpochOp pairs a [blockio.DiskWrite] with its ordinal position in the
// original, unsplit trace. AbsIndex is what makes a crash state's signature:
// two states with the same AbsIndex sequence are the same state.
//
// Within one [Epoch], AbsIndex values are strictly increasing. When a barrier
// carrying data is split into a flag-half and a data-half, both halves share
// one AbsIndex: the flag-half ends one epoch and the data-half opens the next
// (see the builder's barrier-split handling).
type EpochOp struct {
	AbsIndex uint64
	Op       blockio.DiskWrite
}

// Epoch is a contiguous run of ops terminated by at most one barrier.
//
// Every epoch but possibly the last (see the trailing-epoch note below) has
// HasBarrier set, with its final op satisfying [blockio.DiskWrite.IsBarrier].
// If the trace ends on a non-barrier op, the builder retains the dangling,
// barrier-less epoch rather than discarding it (preserved intentionally: see
// the design notes on the open question this resolves).
type Epoch struct {
	// Ops are the epoch's ops in trace order. Checkpoint markers are never
	// included here; they only affect CheckpointEpoch.
	Ops []EpochOp

	// HasBarrier is true iff the last entry in Ops is a barrier.
	HasBarrier bool

	// Overlaps is true iff two non-barrier ops in Ops have sector ranges that
	// overlap or touch end to start. A barrier op appended to close the epoch
	// is not checked.
	Overlaps bool

	// NumMeta counts the ops in Ops with the meta flag set.
	NumMeta int

	// CheckpointEpoch is the most recently assigned checkpoint ordinal as of
	// the end of this epoch (a checkpoint marker met while the epoch is open
	// updates it), or -1 if no checkpoint has been observed yet.
	CheckpointEpoch int
}

// CrashStateSignature identifies a crash state for deduplication: the ordered
// sequence of AbsIndex values of its ops. Two states with equal signatures
// are considered the same state even if the underlying [blockio.DiskWrite]
// payloads happen to differ (the signature only looks at trace position).
//
// It is a comparable Go string so it can key a map directly; the encoding is
// a fixed-width big-endian packing of the AbsIndex sequence, not intended to
// be human-readable.
type CrashStateSignature string

// SignatureOf computes the [CrashStateSignature] for a candidate crash state.
func SignatureOf(ops []EpochOp) CrashStateSignature {
	buf := make([]byte, 8*len(ops))

	for i, op := range ops {
		binary.BigEndian.PutUint64(buf[i*8:], op.AbsIndex)
	}

	return CrashStateSignature(buf)
}
