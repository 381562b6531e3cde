package socket

import (
	"net"
	"sync"

	"github.com/lanikai/ice"
	"github.com/lanikai/ice/iceerr"
)

// Turn wraps a relayed net.PacketConn (from internal/turnclient.Allocation)
// as an ice.Socket. Sends/receives are relative to the relayed transport
// address; the TURN client underneath handles permissions and channel data
// framing, so from this package's point of view it behaves like any other
// PacketConn-backed socket (spec §9 "Socket::UdpTurn(base)").
type Turn struct {
	conn net.PacketConn
	addr ice.Address

	mu         sync.Mutex
	writableCb func()
	closed     bool
}

// NewTurn wraps relayConn, whose LocalAddr is the relayed transport address
// assigned by the TURN server.
func NewTurn(relayConn net.PacketConn) *Turn {
	return &Turn{conn: relayConn, addr: ice.AddressFromNetAddr(relayConn.LocalAddr())}
}

func (t *Turn) LocalAddr() ice.Address { return t.addr }

func (t *Turn) IsReliable() bool { return false }

func (t *Turn) SendMessages(to ice.Address, messages [][]byte) (int, error) {
	sent := 0
	for _, m := range messages {
		if _, err := t.conn.WriteTo(m, to.UDPAddr()); err != nil {
			if sent == 0 {
				return -1, iceerr.Wrap("Turn.SendMessages", iceerr.SocketIO, err)
			}
			return sent, nil
		}
		sent++
	}
	return sent, nil
}

func (t *Turn) SendMessagesReliable(to ice.Address, message []byte) (int, error) {
	return t.SendMessages(to, [][]byte{message})
}

func (t *Turn) RecvMessages(into [][]byte, from []ice.Address) (int, error) {
	n := 0
	for i := range into {
		t.conn.SetReadDeadline(readDeadline())
		read, addr, err := t.conn.ReadFrom(into[i])
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				if n > 0 {
					return n, nil
				}
				return 0, iceerr.New("Turn.RecvMessages", iceerr.WouldBlock)
			}
			if n > 0 {
				return n, nil
			}
			return 0, iceerr.Wrap("Turn.RecvMessages", iceerr.SocketIO, err)
		}
		into[i] = into[i][:read]
		if i < len(from) {
			from[i] = ice.AddressFromNetAddr(addr)
		}
		n++
	}
	return n, nil
}

func (t *Turn) CanSend(to ice.Address) bool { return true }

func (t *Turn) SetWritableCallback(cb func()) {
	t.mu.Lock()
	t.writableCb = cb
	t.mu.Unlock()
}

func (t *Turn) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()
	return t.conn.Close()
}
