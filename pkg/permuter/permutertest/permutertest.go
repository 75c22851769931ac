// Package permutertest provides an in-memory [permuter.Strategy] fixture and
// a handful of trace-building helpers. It exists for this module's own tests
// and for downstream packages that want a stable fixture to exercise their
// own strategy-consuming code against: a real (if minimal) implementation
// shipped in the module tree rather than duplicated ad hoc in every
// _test.go file that needs one.
package permutertest

import (
	"math/rand/v2"

	"github.com/rohanpadhye/crashmonkey/pkg/blockio"
	"github.com/rohanpadhye/crashmonkey/pkg/permuter"
)

// FixedStrategy always proposes the same candidate and reports the same
// NewState and Err on every call. It models a strategy whose candidate
// space has collapsed to a single element (scenario: retry-bound
// exhaustion) or that gives up immediately (scenario: strategy exhaustion).
type FixedStrategy struct {
	Candidate []permuter.EpochOp
	NewState  bool
	Err       error
}

// GenOneState implements [permuter.Strategy].
func (s FixedStrategy) GenOneState([]permuter.Epoch, any) ([]permuter.EpochOp, bool, error) {
	return s.Candidate, s.NewState, s.Err
}

// SequenceStrategy proposes a randomly sampled, order-preserving subsequence
// of every op across all epochs on each call, so repeated calls are likely
// (not guaranteed) to produce distinct candidates. It exists to give
// [permuter.Permuter.GenerateCrashState]'s dedup set something to actually
// reject, using a seeded math/rand/v2 source for reproducible tests.
type SequenceStrategy struct {
	rng   *rand.Rand
	Calls int
}

// NewSequenceStrategy returns a SequenceStrategy seeded deterministically
// from seed, so a test using it is reproducible.
func NewSequenceStrategy(seed uint64) *SequenceStrategy {
	return &SequenceStrategy{rng: rand.New(rand.NewPCG(seed, seed))}
}

// GenOneState implements [permuter.Strategy].
func (s *SequenceStrategy) GenOneState(epochs []permuter.Epoch, _ any) ([]permuter.EpochOp, bool, error) {
	var all []permuter.EpochOp

	for _, e := range epochs {
		all = append(all, e.Ops...)
	}

	if len(all) == 0 {
		return nil, false, nil
	}

	s.Calls++

	var candidate []permuter.EpochOp

	for _, op := range all {
		if s.rng.IntN(2) == 0 {
			candidate = append(candidate, op)
		}
	}

	if len(candidate) == 0 {
		candidate = append(candidate, all[0])
	}

	return candidate, true, nil
}

// Write builds a plain async write DiskWrite for use in test traces: sector
// and size as given, payload filled with fill, any extraFlags OR'd into
// BIRW alongside the write flag.
func Write(sector, size uint64, fill byte, extraFlags uint64) blockio.DiskWrite {
	data := make([]byte, size)
	for i := range data {
		data[i] = fill
	}

	return blockio.New(0, blockio.FlagWrite|extraFlags, sector, size, 0, data)
}

// Barrier builds a zero-payload FUA barrier op at sector: the simplest
// "plain case" terminator for an epoch.
func Barrier(sector uint64) blockio.DiskWrite {
	return blockio.New(0, blockio.FlagWrite|blockio.FlagFUA, sector, 0, 0, nil)
}

// FlushWithData builds a flush (or flush-sequence) barrier that also carries
// its own payload, the op the epoch builder must split into a flag half and
// a data half.
func FlushWithData(sector, size uint64, fill byte, useFlushSeq bool) blockio.DiskWrite {
	flag := blockio.FlagWrite | blockio.FlagFlush
	if useFlushSeq {
		flag = blockio.FlagWrite | blockio.FlagFlushSeq
	}

	data := make([]byte, size)
	for i := range data {
		data[i] = fill
	}

	return blockio.New(0, flag, sector, size, 0, data)
}

// Checkpoint builds a checkpoint marker op, never itself recorded into an
// epoch's Ops but advancing CheckpointEpoch.
func Checkpoint() blockio.DiskWrite {
	return blockio.New(blockio.FlagCheckpoint, 0, 0, 0, 0, nil)
}
