package permuter

import "github.com/rohanpadhye/crashmonkey/pkg/blockio"

// SectorRange is a half-open [Begin, End) range of sectors, normalized so
// Begin <= End.
type SectorRange struct {
	Begin uint64
	End   uint64
}

// overlapTracker holds the sorted, (mostly) coalesced list of sector ranges
// touched within one epoch under construction. It is not exported: an epoch's
// tracker only matters during building, not to a strategy reading the
// finished [Epoch].
type overlapTracker struct {
	ranges []SectorRange
}

// tryInsert inserts the sector range covered by dw into the tracker,
// reporting whether it overlapped an existing range.
//
// On overlap, the existing range is extended to cover the new write but is
// not re-coalesced with whatever comes after it in the list. This matches the
// original tool's behavior: see the design notes on this known imprecision.
func (t *overlapTracker) tryInsert(dw blockio.DiskWrite) bool {
	start := dw.WriteSector
	end := start + dw.Size

	for i := range t.ranges {
		r := &t.ranges[i]

		if rangesOverlap(*r, start, end) {
			if r.Begin > start {
				r.Begin = start
			}

			if r.End < end {
				r.End = end
			}

			return true
		}

		if r.Begin > end {
			t.ranges = append(t.ranges, SectorRange{})
			copy(t.ranges[i+1:], t.ranges[i:])
			t.ranges[i] = SectorRange{Begin: start, End: end}

			return false
		}
	}

	t.ranges = append(t.ranges, SectorRange{Begin: start, End: end})

	return false
}

// rangesOverlap mirrors the original tool's three-way overlap test for a
// range r against a candidate [start, end).
func rangesOverlap(r SectorRange, start, end uint64) bool {
	if r.Begin <= start && r.End >= start {
		return true
	}

	if r.Begin <= end && r.End >= end {
		return true
	}

	return r.Begin >= start && r.End <= end
}
