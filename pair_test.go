package ice

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputePairPriorityControllingHigher(t *testing.T) {
	// spec §4.1.2: 2^32*min(G,D) + 2*max(G,D) + (G>D ? 1 : 0)
	pri := ComputePairPriority(100, 50)
	assert.Equal(t, uint64(50)<<32+2*100+1, pri)
}

func TestComputePairPriorityTieBreakFavorsControlling(t *testing.T) {
	// Two candidates with equal priority: the tie-break bit only applies
	// when G > D strictly, so equal G/D never sets it regardless of order.
	equal := ComputePairPriority(100, 100)
	assert.Zero(t, equal&1)

	// G > D sets the low bit; D > G does not.
	assert.Equal(t, uint64(1), ComputePairPriority(100, 50)&1)
	assert.Zero(t, ComputePairPriority(50, 100)&1)
}

func TestNewCandidatePairFoundation(t *testing.T) {
	addr := NewAddress(net.ParseIP("192.0.2.1"), 10000)
	local := &Candidate{Foundation: "AAA", Addr: addr, Priority: 100}
	remote := &Candidate{Foundation: "BBB", Addr: addr, Priority: 200}

	p := NewCandidatePair(local, remote, true)
	assert.Equal(t, "AAABBB", p.Foundation())
	assert.Equal(t, PairFrozen, p.State)
}

func TestPairIsRedundantWith(t *testing.T) {
	base := NewAddress(net.ParseIP("192.0.2.1"), 10000)
	remote := NewAddress(net.ParseIP("192.0.2.9"), 20000)

	l1 := &Candidate{BaseAddr: base, ComponentID: 1}
	l2 := &Candidate{BaseAddr: base, ComponentID: 1}
	r := &Candidate{Addr: remote, ComponentID: 1}

	p1 := &CandidatePair{Local: l1, Remote: r, ComponentID: 1}
	p2 := &CandidatePair{Local: l2, Remote: r, ComponentID: 1}
	assert.True(t, p1.IsRedundantWith(p2))
}
