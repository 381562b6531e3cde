package ice

import "fmt"

// PairState is a candidate pair's position in the check-list state machine
// (spec §4.6).
type PairState int

const (
	// PairFrozen pairs are not yet eligible to be checked; they become
	// Waiting when their foundation is unfrozen.
	PairFrozen PairState = iota
	PairWaiting
	PairInProgress
	PairSucceeded
	PairFailed
	// PairCancelled pairs were pruned by nomination of a better pair on the
	// same component, or superseded by a redundant pair (spec §4.6 pruning).
	PairCancelled
)

func (s PairState) String() string {
	switch s {
	case PairFrozen:
		return "Frozen"
	case PairWaiting:
		return "Waiting"
	case PairInProgress:
		return "InProgress"
	case PairSucceeded:
		return "Succeeded"
	case PairFailed:
		return "Failed"
	case PairCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// CandidatePair couples a local and remote candidate for connectivity
// checking (spec §4.1.2/§4.6). Pairs are created during Checklist formation
// from the cartesian product of local/remote candidates on one component,
// pruned for redundancy, and sorted by priority descending.
type CandidatePair struct {
	Local  *Candidate
	Remote *Candidate

	StreamID    int
	ComponentID int

	State PairState

	// Priority is computed once at pair-formation time per spec §4.1.2 and
	// never changes afterward, even if a peer-reflexive discovery updates
	// one side's Candidate.Priority (that produces a *new* pair instead).
	Priority uint64

	Nominated bool

	// Default marks the pair chosen as this component's default candidate
	// pair before any checks run (spec §4.1.4), used only for the
	// candidate's default/non-default classification in offers/answers.
	Default bool

	// discovered is true for pairs formed from a peer-reflexive local
	// candidate learned mid-check (spec §4.2 "peer reflexive discovery"),
	// as opposed to pairs formed at Checklist creation time.
	discovered bool

	txID    [12]byte
	hasTxID bool
}

// ComputePairPriority implements spec §4.1.2's pairing formula:
//
//	pair_priority = 2^32 * MIN(G,D) + 2*MAX(G,D) + (G>D ? 1 : 0)
//
// where G is the controlling agent's candidate priority and D is the
// controlled agent's, matching RFC 5245 §5.7.2 exactly (the teacher's
// internal/ice/pair.go computed this inline; factored out here so Checklist
// and the role-conflict flip-over path share one implementation).
func ComputePairPriority(controllingPriority, controlledPriority uint32) uint64 {
	g, d := uint64(controllingPriority), uint64(controlledPriority)
	min, max := g, d
	if d < g {
		min, max = d, g
	}
	pri := (min << 32) + 2*max
	if g > d {
		pri++
	}
	return pri
}

// NewCandidatePair builds a pair and computes its priority given which side
// is controlling (spec §4.1.2).
func NewCandidatePair(local, remote *Candidate, controlling bool) *CandidatePair {
	var controllingPriority, controlledPriority uint32
	if controlling {
		controllingPriority, controlledPriority = local.Priority, remote.Priority
	} else {
		controllingPriority, controlledPriority = remote.Priority, local.Priority
	}
	return &CandidatePair{
		Local:       local,
		Remote:      remote,
		StreamID:    local.StreamID,
		ComponentID: local.ComponentID,
		State:       PairFrozen,
		Priority:    ComputePairPriority(controllingPriority, controlledPriority),
	}
}

// Foundation is the pair foundation used for unfreezing groups (spec §4.6:
// "pairs with the same foundation unfreeze together"): the concatenation of
// the local and remote candidate foundations.
func (p *CandidatePair) Foundation() string {
	return p.Local.Foundation + p.Remote.Foundation
}

func (p *CandidatePair) String() string {
	return fmt.Sprintf("%s <-> %s [%s, pri=%d, nominated=%v]",
		p.Local.Addr, p.Remote.Addr, p.State, p.Priority, p.Nominated)
}

// IsRedundantWith reports whether p and other are redundant per spec §4.1.2:
// same local base and same remote address (differ only in the local
// candidate's advertised type/priority). The higher-priority one is kept.
func (p *CandidatePair) IsRedundantWith(other *CandidatePair) bool {
	if p.ComponentID != other.ComponentID {
		return false
	}
	return p.Local.BaseAddr.Equal(other.Local.BaseAddr) && p.Remote.Addr.Equal(other.Remote.Addr)
}
