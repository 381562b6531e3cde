package ptcp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wiredPair pairs two Conns over in-memory queues instead of calling Receive
// synchronously from within Output, which would re-enter Conn.mu on the same
// goroutine; pump drains both queues until neither produces new output.
type wiredPair struct {
	a, b *Conn
	toA  [][]byte
	toB  [][]byte
}

func newWiredPair() *wiredPair {
	w := &wiredPair{a: NewConn(), b: NewConn()}
	w.a.Output = func(wire []byte) { w.toB = append(w.toB, wire) }
	w.b.Output = func(wire []byte) { w.toA = append(w.toA, wire) }
	return w
}

func (w *wiredPair) pump() {
	for len(w.toA) > 0 || len(w.toB) > 0 {
		toA, toB := w.toA, w.toB
		w.toA, w.toB = nil, nil
		for _, wire := range toA {
			w.a.Receive(wire)
		}
		for _, wire := range toB {
			w.b.Receive(wire)
		}
	}
}

func TestHandshakeReachesEstablished(t *testing.T) {
	w := newWiredPair()
	w.a.Connect()
	w.pump()

	assert.Equal(t, StateEstablished, w.a.State())
	assert.Equal(t, StateEstablished, w.b.State())
}

func TestDataTransferInOrder(t *testing.T) {
	w := newWiredPair()
	w.a.Connect()
	w.pump()

	n := w.a.Write([]byte("hello pseudo-tcp"))
	require.Equal(t, len("hello pseudo-tcp"), n)
	w.pump()

	got := w.b.Read(1024)
	assert.Equal(t, "hello pseudo-tcp", string(got))
}

func TestDataTransferBothDirections(t *testing.T) {
	w := newWiredPair()
	w.a.Connect()
	w.pump()

	w.a.Write([]byte("ping"))
	w.pump()
	assert.Equal(t, "ping", string(w.b.Read(64)))

	w.b.Write([]byte("pong"))
	w.pump()
	assert.Equal(t, "pong", string(w.a.Read(64)))
}

func TestWriteRespectsWindow(t *testing.T) {
	c := NewConn()
	c.Output = func([]byte) {}
	big := make([]byte, defaultWindow+100)
	n := c.Write(big)
	assert.Equal(t, defaultWindow, n)
}

func TestCloseSendsFin(t *testing.T) {
	w := newWiredPair()
	w.a.Connect()
	w.pump()

	w.a.Close()
	w.pump()

	assert.Equal(t, StateClosing, w.b.State())
}

func TestClockRetransmitsAfterRTO(t *testing.T) {
	c := NewConn()
	var sends int
	c.Output = func([]byte) { sends++ }
	c.Connect()
	assert.Equal(t, 1, sends)

	future := time.Now().Add(2 * initialRTO)
	c.Clock(future)
	assert.Equal(t, 2, sends)
}

func TestClockGivesUpAfterMaxRetransmits(t *testing.T) {
	c := NewConn()
	c.Output = func([]byte) {}
	c.Connect()

	// Each step advances well past any possible current RTO (which is capped
	// at maxRTO), guaranteeing every call fires a retransmit until give-up.
	now := time.Now()
	for i := 0; i < maxRetransmits+1; i++ {
		now = now.Add(maxRTO * 2)
		c.Clock(now)
	}
	assert.Equal(t, StateClosed, c.State())
}
