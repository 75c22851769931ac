package permuter

import "github.com/rohanpadhye/crashmonkey/pkg/blockio"

// Permuter segments a trace into epochs and, once built, drives a [Strategy]
// over them to emit crash states. The zero value is not usable; construct one
// with [NewPermuter].
type Permuter struct {
	epochs []Epoch

	seen map[CrashStateSignature]struct{}
}

// NewPermuter returns a Permuter ready for [Permuter.InitData].
func NewPermuter() *Permuter {
	return &Permuter{
		seen: make(map[CrashStateSignature]struct{}),
	}
}

// Epochs returns the epochs built by the most recent [Permuter.InitData]
// call, in trace order. The returned slice is owned by the Permuter; callers
// must not mutate it.
func (p *Permuter) Epochs() []Epoch {
	return p.epochs
}

// InitData segments trace into epochs, replacing any epochs from a previous
// call. It never returns an error for well-formed input; a trace that
// contradicts the builder's structural assumptions about barrier ops raises
// [ErrTraceInvariant] via panic (see [TraceInvariantError]).
//
// Every barrier, split or plain, ends its epoch and immediately opens the
// next one, even if no further ops follow. A trace that never reaches a
// barrier leaves exactly one epoch with HasBarrier false, holding every
// non-checkpoint op.
func (p *Permuter) InitData(trace []blockio.DiskWrite) {
	p.epochs = p.epochs[:0]

	currCheckpointEpoch := -1
	absIndex := uint64(0)

	building := Epoch{CheckpointEpoch: currCheckpointEpoch}
	tracker := &overlapTracker{}

	i := 0

	for i < len(trace) {
		for i < len(trace) && !trace[i].IsBarrier() {
			op := trace[i]

			if op.IsCheckpoint() {
				currCheckpointEpoch++
				building.CheckpointEpoch = currCheckpointEpoch
				absIndex++
				i++

				continue
			}

			if tracker.tryInsert(op) {
				building.Overlaps = true
			}

			building.Ops = append(building.Ops, EpochOp{AbsIndex: absIndex, Op: op})

			if op.IsMeta() {
				building.NumMeta++
			}

			absIndex++
			i++
		}

		if i >= len(trace) {
			break
		}

		op := trace[i]

		if !op.IsBarrier() {
			raiseTraceInvariant("expected barrier op at epoch boundary", absIndex)
		}

		if isSplitBarrier(op) {
			flagHalf, dataHalf := splitBarrier(op)

			building.Ops = append(building.Ops, EpochOp{AbsIndex: absIndex, Op: flagHalf})

			if flagHalf.IsMeta() {
				building.NumMeta++
			}

			building.HasBarrier = true

			p.epochs = append(p.epochs, building)
			building = Epoch{CheckpointEpoch: currCheckpointEpoch}
			tracker = &overlapTracker{}

			tracker.tryInsert(dataHalf)
			building.Ops = append(building.Ops, EpochOp{AbsIndex: absIndex, Op: dataHalf})

			if dataHalf.IsMeta() {
				building.NumMeta++
			}

			absIndex++
			i++

			continue
		}

		building.Ops = append(building.Ops, EpochOp{AbsIndex: absIndex, Op: op})

		if op.IsMeta() {
			building.NumMeta++
		}

		building.HasBarrier = true
		absIndex++
		i++

		p.epochs = append(p.epochs, building)
		building = Epoch{CheckpointEpoch: currCheckpointEpoch}
		tracker = &overlapTracker{}
	}

	p.epochs = append(p.epochs, building)
}

// isSplitBarrier reports whether op is a flush or flush-sequence barrier that
// also carries its own data payload, the case the builder must split into a
// flag-only half and a data-only half sharing one AbsIndex.
func isSplitBarrier(op blockio.DiskWrite) bool {
	return (op.HasFlushFlag() || op.HasFlushSeqFlag()) && op.IsWrite() && !op.HasFUAFlag() && op.Size > 0
}

// splitBarrier divides a data-carrying flush barrier into its flag half
// (closes the current epoch, carries no payload) and its data half (opens the
// next epoch, carries the original payload with the flush flags cleared).
func splitBarrier(op blockio.DiskWrite) (flagHalf, dataHalf blockio.DiskWrite) {
	flagHalf = op
	dataHalf = op

	if op.HasFlushFlag() {
		dataHalf.ClearFlushFlag()
	}

	if op.HasFlushSeqFlag() {
		dataHalf.ClearFlushSeqFlag()
	}

	flagHalf.Size = 0
	flagHalf.Data = nil

	return flagHalf, dataHalf
}
