package permuter

import (
	"errors"
	"fmt"
)

// ErrTraceInvariant marks a violation of the epoch builder's structural
// assumptions about its input trace: a non-barrier, non-checkpoint op was
// reached where the algorithm had already committed to treating the current
// op as a barrier. This indicates a bug in the trace source (or a mismatched
// flag ABI), not a condition a caller can recover from meaningfully in
// production.
//
// [Permuter.InitData] raises this via panic rather than returning it; use
// [errors.As] against a [TraceInvariantError] after recovering to inspect it.
var ErrTraceInvariant = errors.New("permuter: trace invariant violation")

// TraceInvariantError is the structured payload carried by a panic raised
// for [ErrTraceInvariant]. Op is a static, verb-first description of what the
// builder expected to find.
type TraceInvariantError struct {
	Op       string
	AbsIndex uint64
}

func (e *TraceInvariantError) Error() string {
	return fmt.Sprintf("permuter: trace invariant violation: %s (abs_index=%d)", e.Op, e.AbsIndex)
}

func (e *TraceInvariantError) Unwrap() error { return ErrTraceInvariant }

func (*TraceInvariantError) Is(target error) bool { return target == ErrTraceInvariant }

// raiseTraceInvariant panics with a [TraceInvariantError] for op at absIndex.
func raiseTraceInvariant(op string, absIndex uint64) {
	panic(&TraceInvariantError{Op: op, AbsIndex: absIndex})
}
