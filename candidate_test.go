package ice

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputePriorityOrdering(t *testing.T) {
	host := computePriority(Host, UDP, 1, CompatibilityRFC5245, false)
	srflx := computePriority(ServerReflexive, UDP, 1, CompatibilityRFC5245, false)
	prflx := computePriority(PeerReflexive, UDP, 1, CompatibilityRFC5245, false)
	relay := computePriority(Relayed, UDP, 1, CompatibilityRFC5245, false)

	assert.Greater(t, host, prflx)
	assert.Greater(t, prflx, srflx)
	assert.Greater(t, srflx, relay)
}

func TestComputePriorityComponentOrdering(t *testing.T) {
	// Lower component id must win a higher priority for otherwise identical
	// candidates (spec §4.2).
	comp1 := computePriority(Host, UDP, 1, CompatibilityRFC5245, false)
	comp2 := computePriority(Host, UDP, 2, CompatibilityRFC5245, false)
	assert.Greater(t, comp1, comp2)
}

func TestFoundationTableStability(t *testing.T) {
	ft := &foundationTable{}
	base := NewAddress(net.ParseIP("192.0.2.1"), 10000)

	f1 := ft.foundationFor(Host, UDP, base, nil, CompatibilityRFC5245)
	f2 := ft.foundationFor(Host, UDP, base, nil, CompatibilityRFC5245)
	assert.Equal(t, f1, f2)

	otherBase := NewAddress(net.ParseIP("192.0.2.2"), 10000)
	f3 := ft.foundationFor(Host, UDP, otherBase, nil, CompatibilityRFC5245)
	assert.NotEqual(t, f1, f3)
}

func TestFoundationGoogleCompatNeverSharesRelay(t *testing.T) {
	ft := &foundationTable{}
	turn := NewTurnServer("turn.example.com:3478", "u", "p", TurnUDP)
	base := NewAddress(net.ParseIP("192.0.2.1"), 10000)

	withTurn := ft.foundationFor(Relayed, UDP, base, turn, CompatibilityGoogle)
	withoutTurn := ft.foundationFor(Relayed, UDP, base, nil, CompatibilityGoogle)
	assert.NotEqual(t, withTurn, withoutTurn)
}

func TestCandidateIsRedundant(t *testing.T) {
	base := NewAddress(net.ParseIP("192.0.2.1"), 10000)
	a := &Candidate{Transport: UDP, Addr: base, BaseAddr: base}
	b := &Candidate{Transport: UDP, Addr: base, BaseAddr: base}
	assert.True(t, a.IsRedundant(b))

	other := NewAddress(net.ParseIP("192.0.2.2"), 10000)
	c := &Candidate{Transport: UDP, Addr: other, BaseAddr: other}
	assert.False(t, a.IsRedundant(c))
}

func TestCandidateCheckInvariants(t *testing.T) {
	addr := NewAddress(net.ParseIP("192.0.2.1"), 10000)
	host := &Candidate{Type: Host, Addr: addr, BaseAddr: addr}
	assert.NoError(t, host.checkInvariants())

	mismatched := &Candidate{Type: Host, Addr: addr, BaseAddr: NewAddress(net.ParseIP("192.0.2.9"), 10000)}
	assert.Error(t, mismatched.checkInvariants())

	relayNoTurn := &Candidate{Type: Relayed, Addr: addr, BaseAddr: addr}
	assert.Error(t, relayNoTurn.checkInvariants())
}
