package permuter

import "github.com/rohanpadhye/crashmonkey/pkg/blockio"

// RetryMultiplier and MinRetries bound how many times a single
// [Permuter.GenerateCrashState] call will retry a [Strategy] before giving
// up. They are compile-time constants, not runtime configuration: the
// permuter has no config-loading layer (see the module's non-goals).
const (
	RetryMultiplier = 2
	MinRetries      = 1000
)

// Strategy is the external collaborator that proposes crash-state
// candidates. It is the Go-interface analogue of the original tool's virtual
// gen_one_state hook: the driver knows nothing about a strategy's internal
// state beyond what GenOneState reports back on each call.
//
// log is a strategy-owned value, opaque to the driver, carried across calls
// within one GenerateCrashState invocation so a strategy can track its own
// progress (e.g. a cursor into an enumeration) without package-level state.
type Strategy interface {
	// GenOneState proposes one candidate crash state as an ordered sequence
	// of epoch ops, given the permuter's built epochs. newState reports
	// whether the strategy believes more candidates remain after this one;
	// once it returns false, the driver stops retrying regardless of
	// whether the candidate turns out to be a duplicate.
	GenOneState(epochs []Epoch, log any) (candidate []EpochOp, newState bool, err error)
}

// GenerateCrashState drives strategy to produce one crash state not already
// returned by a previous call on this Permuter.
//
// It retries up to max(MinRetries, RetryMultiplier*len(completed)) times. A
// call that exhausts its retry budget, or whose strategy reports no more
// states, still returns the last candidate produced, with fresh=false.
func (p *Permuter) GenerateCrashState(strategy Strategy, log any) (result []blockio.DiskWrite, fresh bool, err error) {
	maxRetries := MinRetries
	if v := RetryMultiplier * len(p.seen); v > maxRetries {
		maxRetries = v
	}

	var candidate []EpochOp

	var newState bool

	var sig CrashStateSignature

	retries := 0

	for {
		candidate, newState, err = strategy.GenOneState(p.epochs, log)
		if err != nil {
			return nil, false, err
		}

		sig = SignatureOf(candidate)
		retries++

		if !newState || retries >= maxRetries {
			break
		}

		if _, dup := p.seen[sig]; !dup {
			break
		}
	}

	result = make([]blockio.DiskWrite, len(candidate))
	for i, op := range candidate {
		result[i] = op.Op
	}

	if _, dup := p.seen[sig]; dup {
		return result, false, nil
	}

	p.seen[sig] = struct{}{}

	return result, newState, nil
}
