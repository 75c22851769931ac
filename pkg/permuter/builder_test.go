package permuter_test

import (
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/rohanpadhye/crashmonkey/pkg/blockio"
	"github.com/rohanpadhye/crashmonkey/pkg/permuter"
	"github.com/rohanpadhye/crashmonkey/pkg/permuter/permutertest"
)

// Test_InitData_PureWritesNoBarrier covers a trace with no barrier: one
// open epoch holding every write in order.
func Test_InitData_PureWritesNoBarrier(t *testing.T) {
	t.Parallel()

	p := permuter.NewPermuter()
	p.InitData([]blockio.DiskWrite{
		permutertest.Write(0, 8, 0, 0),
		permutertest.Write(16, 8, 0, 0),
	})

	epochs := p.Epochs()
	if len(epochs) != 1 {
		t.Fatalf("len(epochs) = %d, want 1", len(epochs))
	}

	e := epochs[0]

	if e.HasBarrier {
		t.Fatal("expected HasBarrier=false")
	}

	if e.Overlaps {
		t.Fatal("expected Overlaps=false")
	}

	gotIdx := []uint64{e.Ops[0].AbsIndex, e.Ops[1].AbsIndex}
	wantIdx := []uint64{0, 1}

	if diff := cmp.Diff(wantIdx, gotIdx); diff != "" {
		t.Fatalf("AbsIndex sequence mismatch (-want +got):\n%s", diff)
	}
}

// Test_InitData_PlainFUABarrier covers a FUA-terminated epoch, including
// the trailing empty epoch a plain barrier opens even at end of trace.
func Test_InitData_PlainFUABarrier(t *testing.T) {
	t.Parallel()

	p := permuter.NewPermuter()
	p.InitData([]blockio.DiskWrite{
		permutertest.Write(0, 8, 0, 0),
		permutertest.Barrier(8),
	})

	epochs := p.Epochs()
	if len(epochs) != 2 {
		t.Fatalf("len(epochs) = %d, want 2", len(epochs))
	}

	if !epochs[0].HasBarrier {
		t.Fatal("epoch 0: expected HasBarrier=true")
	}

	if len(epochs[0].Ops) != 2 {
		t.Fatalf("epoch 0: len(Ops) = %d, want 2", len(epochs[0].Ops))
	}

	if !epochs[0].Ops[1].Op.IsBarrier() {
		t.Fatal("epoch 0: last op must satisfy IsBarrier()")
	}

	if epochs[1].HasBarrier {
		t.Fatal("epoch 1: expected HasBarrier=false")
	}

	if len(epochs[1].Ops) != 0 {
		t.Fatalf("epoch 1: len(Ops) = %d, want 0", len(epochs[1].Ops))
	}
}

// Test_InitData_FlushWithDataSplits covers a data-carrying flush barrier
// with no FUA flag: it splits into a flag half and a data half sharing one
// AbsIndex.
func Test_InitData_FlushWithDataSplits(t *testing.T) {
	t.Parallel()

	p := permuter.NewPermuter()
	p.InitData([]blockio.DiskWrite{
		permutertest.Write(0, 8, 0, 0),
		permutertest.FlushWithData(16, 8, 0, false),
	})

	epochs := p.Epochs()
	if len(epochs) != 2 {
		t.Fatalf("len(epochs) = %d, want 2", len(epochs))
	}

	e0 := epochs[0]
	if !e0.HasBarrier {
		t.Fatal("epoch 0: expected HasBarrier=true")
	}

	if len(e0.Ops) != 2 {
		t.Fatalf("epoch 0: len(Ops) = %d, want 2", len(e0.Ops))
	}

	flagHalf := e0.Ops[1]
	if flagHalf.Op.Size != 0 || len(flagHalf.Op.Data) != 0 {
		t.Fatalf("flag half carries a payload: %+v", flagHalf.Op)
	}

	if !flagHalf.Op.HasFlushFlag() {
		t.Fatal("flag half must keep the flush flag")
	}

	e1 := epochs[1]
	if e1.HasBarrier {
		t.Fatal("epoch 1: expected HasBarrier=false")
	}

	if e1.Overlaps {
		t.Fatal("epoch 1: expected Overlaps=false (tracker seeded fresh)")
	}

	if len(e1.Ops) != 1 {
		t.Fatalf("epoch 1: len(Ops) = %d, want 1", len(e1.Ops))
	}

	dataHalf := e1.Ops[0]

	if dataHalf.Op.HasFlushFlag() {
		t.Fatal("data half must have the flush flag cleared")
	}

	if dataHalf.Op.Size != 8 {
		t.Fatalf("data half Size = %d, want 8", dataHalf.Op.Size)
	}

	if dataHalf.AbsIndex != flagHalf.AbsIndex {
		t.Fatalf("split halves must share AbsIndex: flag=%d data=%d", flagHalf.AbsIndex, dataHalf.AbsIndex)
	}
}

// Test_InitData_CheckpointNumbering covers checkpoint markers advancing
// CheckpointEpoch without appearing in Ops.
func Test_InitData_CheckpointNumbering(t *testing.T) {
	t.Parallel()

	p := permuter.NewPermuter()
	p.InitData([]blockio.DiskWrite{
		permutertest.Write(0, 8, 0, 0),
		permutertest.Checkpoint(),
		blockio.New(0, blockio.FlagWrite|blockio.FlagFlush|blockio.FlagFUA, 8, 8, 0, make([]byte, 8)),
		permutertest.Checkpoint(),
		permutertest.Write(16, 8, 0, 0),
	})

	epochs := p.Epochs()
	if len(epochs) != 2 {
		t.Fatalf("len(epochs) = %d, want 2", len(epochs))
	}

	if epochs[0].CheckpointEpoch != 0 {
		t.Fatalf("epoch 0: CheckpointEpoch = %d, want 0", epochs[0].CheckpointEpoch)
	}

	if len(epochs[0].Ops) != 2 {
		t.Fatalf("epoch 0: len(Ops) = %d, want 2", len(epochs[0].Ops))
	}

	if !epochs[0].HasBarrier {
		t.Fatal("epoch 0: expected HasBarrier=true")
	}

	if epochs[1].CheckpointEpoch != 1 {
		t.Fatalf("epoch 1: CheckpointEpoch = %d, want 1", epochs[1].CheckpointEpoch)
	}

	if len(epochs[1].Ops) != 1 {
		t.Fatalf("epoch 1: len(Ops) = %d, want 1", len(epochs[1].Ops))
	}
}

// Test_InitData_RetainsTrailingOpenEpoch resolves the open question on
// whether a trace ending mid-epoch, with no closing barrier, should drop
// that epoch. It does not: the dangling epoch is retained with
// HasBarrier=false.
func Test_InitData_RetainsTrailingOpenEpoch(t *testing.T) {
	t.Parallel()

	p := permuter.NewPermuter()
	p.InitData([]blockio.DiskWrite{
		permutertest.Write(0, 8, 0, 0),
		permutertest.Barrier(8),
		permutertest.Write(16, 8, 0, 0),
	})

	epochs := p.Epochs()
	if len(epochs) != 2 {
		t.Fatalf("len(epochs) = %d, want 2", len(epochs))
	}

	last := epochs[len(epochs)-1]

	if last.HasBarrier {
		t.Fatal("expected trailing epoch to have HasBarrier=false")
	}

	if len(last.Ops) != 1 {
		t.Fatalf("expected trailing epoch to retain its one op, got %d", len(last.Ops))
	}
}

// Test_InitData_EpochCoverage checks property 3: concatenating every
// epoch's Ops and projecting to DiskWrite reproduces the original trace
// modulo checkpoint removal and barrier splitting.
func Test_InitData_EpochCoverage(t *testing.T) {
	t.Parallel()

	trace := []blockio.DiskWrite{
		permutertest.Write(0, 8, 1, 0),
		permutertest.Checkpoint(),
		permutertest.FlushWithData(8, 8, 2, false),
		permutertest.Write(24, 8, 3, 0),
		permutertest.Barrier(32),
		permutertest.Write(40, 8, 4, 0),
	}

	p := permuter.NewPermuter()
	p.InitData(trace)

	var got []blockio.DiskWrite

	for _, e := range p.Epochs() {
		for _, op := range e.Ops {
			got = append(got, op.Op)
		}
	}

	flagHalf, dataHalf := trace[2], trace[2]
	flagHalf.Size, flagHalf.Data = 0, nil
	dataHalf.ClearFlushFlag()

	want := []blockio.DiskWrite{trace[0], flagHalf, dataHalf, trace[3], trace[4], trace[5]}

	if len(got) != len(want) {
		t.Fatalf("len(got) = %d, want %d: %+v", len(got), len(want), got)
	}

	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Fatalf("op %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

// Test_InitData_BarrierPlacement checks property 4.
func Test_InitData_BarrierPlacement(t *testing.T) {
	t.Parallel()

	for _, trace := range randomTraces(t, 30) {
		p := permuter.NewPermuter()
		p.InitData(trace)

		for i, e := range p.Epochs() {
			if len(e.Ops) == 0 {
				continue
			}

			last := e.Ops[len(e.Ops)-1].Op

			if e.HasBarrier && !last.IsBarrier() {
				t.Fatalf("epoch %d: HasBarrier=true but last op is not a barrier", i)
			}

			if !e.HasBarrier {
				for _, op := range e.Ops {
					if op.Op.IsBarrier() {
						t.Fatalf("epoch %d: HasBarrier=false but an op satisfies IsBarrier()", i)
					}
				}
			}
		}
	}
}

// Test_InitData_CheckpointMonotonicity checks property 5.
func Test_InitData_CheckpointMonotonicity(t *testing.T) {
	t.Parallel()

	for _, trace := range randomTraces(t, 30) {
		p := permuter.NewPermuter()
		p.InitData(trace)

		epochs := p.Epochs()
		for i := 1; i < len(epochs); i++ {
			if epochs[i-1].CheckpointEpoch > epochs[i].CheckpointEpoch {
				t.Fatalf("epoch %d CheckpointEpoch=%d > epoch %d CheckpointEpoch=%d",
					i-1, epochs[i-1].CheckpointEpoch, i, epochs[i].CheckpointEpoch)
			}
		}
	}
}

// Test_InitData_OverlapSoundness checks property 6 against a brute-force
// pairwise oracle computed independently of the overlap tracker. Like the
// tracker, the oracle treats ranges that merely touch as overlapping and
// ignores barrier ops, which the builder never feeds to the tracker.
func Test_InitData_OverlapSoundness(t *testing.T) {
	t.Parallel()

	for _, trace := range randomTraces(t, 50) {
		p := permuter.NewPermuter()
		p.InitData(trace)

		for i, e := range p.Epochs() {
			if got, want := e.Overlaps, bruteForceOverlap(e); got != want {
				t.Fatalf("epoch %d: Overlaps = %v, want %v (brute force)", i, got, want)
			}
		}
	}
}

func bruteForceOverlap(e permuter.Epoch) bool {
	for i := range e.Ops {
		for j := i + 1; j < len(e.Ops); j++ {
			a, b := e.Ops[i].Op, e.Ops[j].Op
			if a.IsBarrier() || b.IsBarrier() {
				continue
			}

			aStart, aEnd := a.WriteSector, a.WriteSector+a.Size
			bStart, bEnd := b.WriteSector, b.WriteSector+b.Size

			if aStart <= bEnd && bStart <= aEnd {
				return true
			}
		}
	}

	return false
}

// randomTraces generates n small, deterministic random traces mixing plain
// writes, FUA barriers, data-carrying flush barriers and checkpoints, for
// the property tests above.
func randomTraces(t *testing.T, n int) [][]blockio.DiskWrite {
	t.Helper()

	rng := rand.New(rand.NewPCG(1, 2))

	traces := make([][]blockio.DiskWrite, 0, n)

	for i := 0; i < n; i++ {
		length := 1 + rng.IntN(12)
		trace := make([]blockio.DiskWrite, 0, length)

		for j := 0; j < length; j++ {
			sector := uint64(rng.IntN(64))
			size := uint64(8 * (1 + rng.IntN(4)))

			switch rng.IntN(4) {
			case 0:
				trace = append(trace, permutertest.Write(sector, size, byte(j), 0))
			case 1:
				trace = append(trace, permutertest.Barrier(sector))
			case 2:
				trace = append(trace, permutertest.FlushWithData(sector, size, byte(j), rng.IntN(2) == 0))
			case 3:
				trace = append(trace, permutertest.Checkpoint())
			}
		}

		traces = append(traces, trace)
	}

	return traces
}
