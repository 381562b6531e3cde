// Package ptcp implements the reliable, ordered, flow-controlled transport
// described in spec §4.8 ("pseudo-TCP"): a clock-driven, callback-based
// engine modeled on TCP's handshake, sliding window, and retransmission
// timer, carried over an unreliable datagram transport (typically a UDP or
// relayed candidate pair) instead of a raw IP socket.
//
// No repository in the reference corpus implements this; it is built
// directly from the specification's description of TCP-alike behavior,
// following the same clock-driven/callback style the corpus uses for other
// timer-driven state machines (see internal/stun.Table for the sibling
// pattern of callback-on-event plus explicit timer arming).
package ptcp

import (
	"encoding/binary"
	"sync"
	"time"
)

// flag bits in the segment header, modeled on TCP's control bits.
const (
	flagSYN uint8 = 1 << iota
	flagACK
	flagFIN
	flagRST
)

// segment is the wire format pseudo-TCP sends over the underlying
// unreliable transport. Header layout: seq(4) ack(4) window(4) flags(1)
// len(2), followed by up to len bytes of payload.
type segment struct {
	seq, ack uint32
	window   uint32
	flags    uint8
	payload  []byte
}

const headerLen = 15

func (s *segment) encode() []byte {
	b := make([]byte, headerLen+len(s.payload))
	binary.BigEndian.PutUint32(b[0:4], s.seq)
	binary.BigEndian.PutUint32(b[4:8], s.ack)
	binary.BigEndian.PutUint32(b[8:12], s.window)
	b[12] = s.flags
	binary.BigEndian.PutUint16(b[13:15], uint16(len(s.payload)))
	copy(b[headerLen:], s.payload)
	return b
}

func decodeSegment(b []byte) (*segment, bool) {
	if len(b) < headerLen {
		return nil, false
	}
	l := int(binary.BigEndian.Uint16(b[13:15]))
	if len(b) < headerLen+l {
		return nil, false
	}
	s := &segment{
		seq:    binary.BigEndian.Uint32(b[0:4]),
		ack:    binary.BigEndian.Uint32(b[4:8]),
		window: binary.BigEndian.Uint32(b[8:12]),
		flags:  b[12],
	}
	if l > 0 {
		s.payload = append([]byte(nil), b[headerLen:headerLen+l]...)
	}
	return s, true
}

// State is the connection's handshake/lifecycle state.
type State int

const (
	StateClosed State = iota
	StateSynSent
	StateSynReceived
	StateEstablished
	StateClosing
	StateClosed2 // fully closed after FIN/ACK exchange
)

const (
	defaultMSS       = 1400
	defaultWindow    = 64 * 1024
	initialRTO       = 250 * time.Millisecond
	maxRTO           = 10 * time.Second
	maxRetransmits   = 12
)

// Conn is one pseudo-TCP connection. Send submits application data to the
// outgoing buffer; Output is called by the engine whenever a segment must
// be transmitted on the underlying unreliable transport; Receive is called
// by the owner whenever a segment arrives from that transport.
type Conn struct {
	mu sync.Mutex

	state State

	sendNext uint32 // next sequence number to send
	sendUna  uint32 // oldest unacknowledged sequence number
	sendBuf  []byte // data queued for sending, offset 0 == sendUna

	recvNext uint32 // next expected sequence number
	recvBuf  []byte // reassembled, in-order data ready for the application

	peerWindow uint32
	mss        int

	rto         time.Duration
	retransmits int
	lastSent    time.Time
	lastSeg     *segment

	closeRequested bool

	// Output is invoked with each segment's wire bytes to send. Set before
	// any data is submitted.
	Output func(wire []byte)

	// OnStateChange is invoked whenever State transitions.
	OnStateChange func(State)

	// OnReadable is invoked when new data becomes available via Read.
	OnReadable func()
}

// NewConn creates a Conn in StateClosed; call Connect (initiator) or wait
// for an incoming SYN via Receive (responder).
func NewConn() *Conn {
	return &Conn{mss: defaultMSS, peerWindow: defaultWindow, rto: initialRTO}
}

func (c *Conn) setState(s State) {
	if c.state == s {
		return
	}
	c.state = s
	if c.OnStateChange != nil {
		c.OnStateChange(s)
	}
}

// Connect sends the initial SYN, starting the three-way handshake.
func (c *Conn) Connect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateClosed {
		return
	}
	c.setState(StateSynSent)
	c.sendSegment(&segment{seq: c.sendNext, flags: flagSYN, window: defaultWindow})
}

// Write queues data for delivery once the connection is established,
// returning the number of bytes accepted (may be less than len(p) if the
// send buffer has no more room, per spec §4.8 flow control).
func (c *Conn) Write(p []byte) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	room := int(defaultWindow) - len(c.sendBuf)
	if room <= 0 {
		return 0
	}
	if len(p) > room {
		p = p[:room]
	}
	c.sendBuf = append(c.sendBuf, p...)
	c.flushSendable()
	return len(p)
}

// Read drains reassembled, in-order application data.
func (c *Conn) Read(max int) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.recvBuf) == 0 {
		return nil
	}
	if max <= 0 || max > len(c.recvBuf) {
		max = len(c.recvBuf)
	}
	out := append([]byte(nil), c.recvBuf[:max]...)
	c.recvBuf = c.recvBuf[max:]
	return out
}

// Close sends a FIN, transitioning toward StateClosing.
func (c *Conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closeRequested {
		return
	}
	c.closeRequested = true
	c.setState(StateClosing)
	c.sendSegment(&segment{seq: c.sendNext, ack: c.recvNext, flags: flagFIN | flagACK, window: defaultWindow})
	c.sendNext++
}

// Receive processes one inbound wire segment.
func (c *Conn) Receive(wire []byte) {
	seg, ok := decodeSegment(wire)
	if !ok {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case seg.flags&flagRST != 0:
		c.setState(StateClosed)
		return

	case seg.flags&flagSYN != 0 && c.state == StateClosed:
		c.recvNext = seg.seq + 1
		c.setState(StateSynReceived)
		c.sendSegment(&segment{seq: c.sendNext, ack: c.recvNext, flags: flagSYN | flagACK, window: defaultWindow})
		c.sendNext++
		return

	case seg.flags&flagSYN != 0 && seg.flags&flagACK != 0 && c.state == StateSynSent:
		c.recvNext = seg.seq + 1
		c.sendUna++
		c.sendNext = c.sendUna
		c.setState(StateEstablished)
		c.sendSegment(&segment{seq: c.sendNext, ack: c.recvNext, flags: flagACK, window: defaultWindow})
		return
	}

	if seg.flags&flagACK != 0 && c.state == StateSynReceived {
		c.sendUna++
		c.setState(StateEstablished)
	}

	if len(seg.payload) > 0 && seg.seq == c.recvNext {
		c.recvBuf = append(c.recvBuf, seg.payload...)
		c.recvNext += uint32(len(seg.payload))
		c.sendSegment(&segment{seq: c.sendNext, ack: c.recvNext, flags: flagACK, window: defaultWindow})
		if c.OnReadable != nil {
			c.OnReadable()
		}
	}

	if seg.ack > c.sendUna {
		acked := seg.ack - c.sendUna
		if int(acked) > len(c.sendBuf) {
			acked = uint32(len(c.sendBuf))
		}
		c.sendBuf = c.sendBuf[acked:]
		c.sendUna = seg.ack
		c.retransmits = 0
		c.rto = initialRTO
		c.flushSendable()
	}

	if seg.flags&flagFIN != 0 {
		c.recvNext = seg.seq + 1
		c.sendSegment(&segment{seq: c.sendNext, ack: c.recvNext, flags: flagACK})
		c.setState(StateClosing)
	}

	c.peerWindow = seg.window
}

// flushSendable transmits the rest of sendBuf in MSS-sized segments,
// starting from sendNext. The peer's advertised window is recorded but not
// used to limit how much is sent.
func (c *Conn) flushSendable() {
	if c.state != StateEstablished {
		return
	}
	offset := int(c.sendNext - c.sendUna)
	for offset < len(c.sendBuf) {
		end := offset + c.mss
		if end > len(c.sendBuf) {
			end = len(c.sendBuf)
		}
		chunk := c.sendBuf[offset:end]
		c.sendSegment(&segment{seq: c.sendNext, ack: c.recvNext, flags: flagACK, window: defaultWindow, payload: chunk})
		c.sendNext += uint32(len(chunk))
		offset = end
	}
}

func (c *Conn) sendSegment(seg *segment) {
	c.lastSeg = seg
	c.lastSent = time.Now()
	if c.Output != nil {
		c.Output(seg.encode())
	}
}

// Clock drives retransmission: call periodically (spec §4.8 "clock-driven
// engine"). now is injected by the caller rather than taken internally, so
// tests can advance time deterministically.
func (c *Conn) Clock(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lastSeg == nil || c.state == StateClosed {
		return
	}
	if now.Sub(c.lastSent) < c.rto {
		return
	}
	if c.retransmits >= maxRetransmits {
		c.setState(StateClosed)
		return
	}
	c.retransmits++
	c.rto *= 2
	if c.rto > maxRTO {
		c.rto = maxRTO
	}
	if c.Output != nil {
		c.Output(c.lastSeg.encode())
	}
	c.lastSent = now
}

// State returns the current connection state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}
