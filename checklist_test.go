package ice

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStream(t *testing.T, numComponents int) *Stream {
	t.Helper()
	opts, err := NewOptions(WithControllingMode(true))
	require.NoError(t, err)
	a, err := NewAgent(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	s, err := a.AddStream(numComponents)
	require.NoError(t, err)
	return s
}

func addr(ip string, port int) Address {
	return NewAddress(net.ParseIP(ip), port)
}

func TestCanBePaired(t *testing.T) {
	local := &Candidate{ComponentID: 1, Transport: UDP, Addr: addr("192.0.2.1", 1)}
	remote := &Candidate{ComponentID: 1, Transport: UDP, Addr: addr("198.51.100.1", 2)}
	assert.True(t, canBePaired(local, remote))

	diffComponent := &Candidate{ComponentID: 2, Transport: UDP, Addr: addr("198.51.100.1", 2)}
	assert.False(t, canBePaired(local, diffComponent))

	tcpRemote := &Candidate{ComponentID: 1, Transport: TCPActive, Addr: addr("198.51.100.1", 2)}
	assert.False(t, canBePaired(local, tcpRemote))
}

func TestChecklistFormsPairsBothDirections(t *testing.T) {
	s := newTestStream(t, 1)

	local := &Candidate{ComponentID: 1, StreamID: s.ID, Transport: UDP, Addr: addr("192.0.2.1", 1), Priority: 100, Foundation: "L"}
	s.checklist.addLocalCandidate(local)

	remote := &Candidate{ComponentID: 1, StreamID: s.ID, Transport: UDP, Addr: addr("198.51.100.1", 2), Priority: 50, Foundation: "R"}
	require.NoError(t, s.AddRemoteCandidate(1, remote))

	require.Len(t, s.checklist.pairs, 1)
	assert.Equal(t, PairWaiting, s.checklist.pairs[0].State)
}

func TestChecklistUnfreezesOneFoundationFirst(t *testing.T) {
	s := newTestStream(t, 1)

	remote := &Candidate{ComponentID: 1, StreamID: s.ID, Transport: UDP, Addr: addr("198.51.100.1", 2), Priority: 50, Foundation: "R"}
	require.NoError(t, s.AddRemoteCandidate(1, remote))

	l1 := &Candidate{ComponentID: 1, StreamID: s.ID, Transport: UDP, Addr: addr("192.0.2.1", 1), BaseAddr: addr("192.0.2.1", 1), Priority: 200, Foundation: "A"}
	l2 := &Candidate{ComponentID: 1, StreamID: s.ID, Transport: UDP, Addr: addr("192.0.2.2", 1), BaseAddr: addr("192.0.2.2", 1), Priority: 100, Foundation: "B"}
	s.checklist.addLocalCandidate(l1)
	s.checklist.addLocalCandidate(l2)

	require.Len(t, s.checklist.pairs, 2)
	waiting, frozen := 0, 0
	for _, p := range s.checklist.pairs {
		switch p.State {
		case PairWaiting:
			waiting++
		case PairFrozen:
			frozen++
		}
	}
	assert.Equal(t, 1, waiting)
	assert.Equal(t, 1, frozen)
}

func TestChecklistPrunesRedundantPairs(t *testing.T) {
	s := newTestStream(t, 1)

	base := &Candidate{ComponentID: 1, StreamID: s.ID, Transport: UDP, Addr: addr("192.0.2.1", 1), BaseAddr: addr("192.0.2.1", 1), Priority: 200, Foundation: "A"}
	remote := &Candidate{ComponentID: 1, StreamID: s.ID, Transport: UDP, Addr: addr("198.51.100.1", 2), Priority: 50, Foundation: "R"}

	s.checklist.addLocalCandidate(base)
	require.NoError(t, s.AddRemoteCandidate(1, remote))
	require.Len(t, s.checklist.pairs, 1)

	// A second local candidate sharing the same base address pairs with the
	// same remote, producing a redundant pair that pruning must collapse.
	srflx := &Candidate{ComponentID: 1, StreamID: s.ID, Transport: UDP, Addr: addr("203.0.113.1", 3), BaseAddr: addr("192.0.2.1", 1), Priority: 10, Foundation: "C"}
	s.checklist.addLocalCandidate(srflx)

	assert.Len(t, s.checklist.pairs, 1)
}
