// Package socket provides concrete ice.Socket adapters: UDP host sockets, a
// TURN relay wrapper, a pseudo-TCP wrapper, and RFC 4571 stream framing.
// TCP-active/passive, TURN-over-TCP, SOCKS5, HTTP CONNECT, and pseudo-SSL
// wrappers are external collaborators per spec §1/§6 and are represented
// only by the Kind tag below.
package socket

import (
	"context"
	"net"
	"sync"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"

	"github.com/lanikai/ice"
	"github.com/lanikai/ice/iceerr"
	"github.com/lanikai/ice/internal/logging"
)

var log = logging.DefaultLogger.WithTag("socket")

// Kind tags a Socket's position in the ownership chain described by spec §5
// and §9 ("tagged variant Socket::{UdpBsd, TcpBsd, TcpPassive, UdpTurn(base),
// TurnOverTcp(base), PseudoSsl(base), Socks5(base), Http(base)}").
type Kind int

const (
	KindUDP Kind = iota
	KindTCPActive
	KindTCPPassive
	KindUDPTurn
	KindTurnOverTCP
	KindPseudoSSL
	KindSocks5
	KindHTTP
)

// UDP wraps a *net.UDPConn as an ice.Socket. It is the base of the ownership
// chain for every other Kind (spec §5 "Ownership forms an acyclic chain").
type UDP struct {
	conn *net.UDPConn

	mu              sync.Mutex
	writableCb      func()
	closed          bool
	maxMessageBytes int
}

const defaultMaxMessageBytes = 1500 // spec §4.8/§4.9 "ICE MTU (>= 1300 bytes)"

// NewUDP binds a new UDP socket on ip, trying ports within [minPort,maxPort]
// when that range is configured (spec §4.2 "choose an initial port uniformly
// at random in [min,max] and retry sequentially wrapping through the range").
// minPort == 0 && maxPort == 0 means "OS picks" (spec §8).
func NewUDP(ip net.IP, minPort, maxPort int, randomStart func(lo, hi int) int) (*UDP, error) {
	lc := reusePortListenConfig()

	if minPort == 0 && maxPort == 0 {
		conn, err := listenUDP(&lc, &net.UDPAddr{IP: ip, Port: 0})
		if err != nil {
			return nil, iceerr.Wrap("socket.NewUDP", iceerr.SocketIO, err)
		}
		setDiffServ(conn)
		return &UDP{conn: conn, maxMessageBytes: defaultMaxMessageBytes}, nil
	}

	if minPort > maxPort {
		return nil, iceerr.New("socket.NewUDP", iceerr.InvalidArgument)
	}

	span := maxPort - minPort + 1
	start := randomStart(minPort, maxPort)
	var lastErr error
	for i := 0; i < span; i++ {
		port := minPort + (start-minPort+i)%span
		conn, err := listenUDP(&lc, &net.UDPAddr{IP: ip, Port: port})
		if err == nil {
			setDiffServ(conn)
			return &UDP{conn: conn, maxMessageBytes: defaultMaxMessageBytes}, nil
		}
		lastErr = err
	}
	return nil, iceerr.Wrap("socket.NewUDP", iceerr.SocketIO, lastErr)
}

func listenUDP(lc *net.ListenConfig, addr *net.UDPAddr) (*net.UDPConn, error) {
	pc, err := lc.ListenPacket(context.Background(), "udp", addr.String())
	if err != nil {
		return nil, err
	}
	return pc.(*net.UDPConn), nil
}

// diffServExpeditedForwarding is DSCP EF (RFC 3246), used for the low-latency
// connectivity-check/keepalive traffic this socket carries (spec §4.9's MTU
// note covers the payload side of the same "keep check traffic prompt"
// concern; this is its DSCP counterpart).
const diffServExpeditedForwarding = 0xb8

// setDiffServ marks outgoing datagrams with a DSCP expedited-forwarding
// class; failure is non-fatal since not every platform/network permits
// setting it.
func setDiffServ(conn *net.UDPConn) {
	if ip4 := conn.LocalAddr().(*net.UDPAddr).IP.To4(); ip4 != nil {
		if err := ipv4.NewPacketConn(conn).SetTOS(diffServExpeditedForwarding); err != nil {
			log.Debug("setting IPv4 ToS failed: %s", err)
		}
		return
	}
	if err := ipv6.NewPacketConn(conn).SetTrafficClass(diffServExpeditedForwarding); err != nil {
		log.Debug("setting IPv6 traffic class failed: %s", err)
	}
}

func (u *UDP) LocalAddr() ice.Address {
	return ice.AddressFromNetAddr(u.conn.LocalAddr())
}

func (u *UDP) IsReliable() bool { return false }

func (u *UDP) SendMessages(to ice.Address, messages [][]byte) (int, error) {
	sent := 0
	for _, m := range messages {
		if _, err := u.conn.WriteTo(m, to.UDPAddr()); err != nil {
			if sent == 0 {
				return -1, iceerr.Wrap("UDP.SendMessages", iceerr.SocketIO, err)
			}
			return sent, nil
		}
		sent++
	}
	return sent, nil
}

// SendMessagesReliable has no meaning over bare UDP; it degrades to a single
// best-effort send, matching how a reliable wrapper's base would be driven.
func (u *UDP) SendMessagesReliable(to ice.Address, message []byte) (int, error) {
	return u.SendMessages(to, [][]byte{message})
}

func (u *UDP) RecvMessages(into [][]byte, from []ice.Address) (int, error) {
	n := 0
	for i := range into {
		u.conn.SetReadDeadline(readDeadline())
		read, addr, err := u.conn.ReadFromUDP(into[i])
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				if n > 0 {
					return n, nil
				}
				return 0, iceerr.New("UDP.RecvMessages", iceerr.WouldBlock)
			}
			if n > 0 {
				return n, nil
			}
			return 0, iceerr.Wrap("UDP.RecvMessages", iceerr.SocketIO, err)
		}
		into[i] = into[i][:read]
		if i < len(from) {
			from[i] = ice.AddressFromNetAddr(addr)
		}
		n++
	}
	return n, nil
}

func (u *UDP) CanSend(to ice.Address) bool { return true }

func (u *UDP) SetWritableCallback(cb func()) {
	u.mu.Lock()
	u.writableCb = cb
	u.mu.Unlock()
}

func (u *UDP) Close() error {
	u.mu.Lock()
	if u.closed {
		u.mu.Unlock()
		return nil
	}
	u.closed = true
	u.mu.Unlock()
	return u.conn.Close()
}

// PacketConn exposes the underlying net.PacketConn for components that need
// to drive their own read loop (e.g. the STUN/data demultiplexer).
func (u *UDP) PacketConn() net.PacketConn { return u.conn }
