package socket

import (
	"sync"

	"github.com/lanikai/ice"
	"github.com/lanikai/ice/iceerr"
	"github.com/lanikai/ice/internal/ptcp"
)

// PseudoTCP wraps an unreliable base ice.Socket with the pseudo-TCP engine
// (internal/ptcp), presenting a reliable Socket to callers (spec §4.8, §9
// "Socket::PseudoSsl(base)" — the name is inherited from the tagged-variant
// list; this module uses the slot for pseudo-TCP rather than TLS, since
// DTLS/TLS termination is out of scope per spec §1 Non-goals).
type PseudoTCP struct {
	base ice.Socket
	peer ice.Address
	conn *ptcp.Conn

	mu      sync.Mutex
	readBuf []byte
}

// NewPseudoTCP wraps base, dialing peer with the pseudo-TCP handshake if
// initiator is true, otherwise waiting for an incoming SYN.
func NewPseudoTCP(base ice.Socket, peer ice.Address, initiator bool) *PseudoTCP {
	p := &PseudoTCP{base: base, peer: peer, conn: ptcp.NewConn()}
	p.conn.Output = func(wire []byte) {
		_, _ = base.SendMessages(peer, [][]byte{wire})
	}
	p.conn.OnReadable = func() {}
	if initiator {
		p.conn.Connect()
	}
	return p
}

// Feed delivers a raw datagram read from base into the pseudo-TCP engine;
// the owning read loop calls this for every datagram it reads from base
// addressed to peer.
func (p *PseudoTCP) Feed(wire []byte) {
	p.conn.Receive(wire)
}

func (p *PseudoTCP) LocalAddr() ice.Address { return p.base.LocalAddr() }

func (p *PseudoTCP) IsReliable() bool { return true }

func (p *PseudoTCP) SendMessages(to ice.Address, messages [][]byte) (int, error) {
	n := 0
	for _, m := range messages {
		if p.conn.Write(m) != len(m) {
			return n, iceerr.New("PseudoTCP.SendMessages", iceerr.WouldBlock)
		}
		n++
	}
	return n, nil
}

func (p *PseudoTCP) SendMessagesReliable(to ice.Address, message []byte) (int, error) {
	if p.conn.Write(message) != len(message) {
		return 0, iceerr.New("PseudoTCP.SendMessagesReliable", iceerr.WouldBlock)
	}
	return 1, nil
}

func (p *PseudoTCP) RecvMessages(into [][]byte, from []ice.Address) (int, error) {
	n := 0
	for i := range into {
		data := p.conn.Read(len(into[i]))
		if data == nil {
			if n > 0 {
				return n, nil
			}
			return 0, iceerr.New("PseudoTCP.RecvMessages", iceerr.WouldBlock)
		}
		copy(into[i], data)
		into[i] = into[i][:len(data)]
		if i < len(from) {
			from[i] = p.peer
		}
		n++
	}
	return n, nil
}

func (p *PseudoTCP) CanSend(to ice.Address) bool { return true }

func (p *PseudoTCP) SetWritableCallback(cb func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
}

func (p *PseudoTCP) Close() error {
	p.conn.Close()
	return nil
}
