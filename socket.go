package ice

import "net"

// Socket is the minimal capability every concrete transport (UDP, TCP
// active/passive, TURN wrapper, SOCKS5/HTTP proxy wrapper, pseudo-SSL
// wrapper) must provide. These concrete implementations are external
// collaborators per spec §1/§6; the core only depends on this interface.
type Socket interface {
	LocalAddr() Address
	IsReliable() bool

	// SendMessages sends one or more datagrams to `to`. Returns the number of
	// messages accepted, or -1 on error.
	SendMessages(to Address, messages [][]byte) (int, error)

	// SendMessagesReliable sends one message over a reliable transport, which
	// may queue it internally rather than sending synchronously.
	SendMessagesReliable(to Address, message []byte) (int, error)

	// RecvMessages reads into the given buffers, filling the parallel `from`
	// slice with each datagram's source address (datagram sockets sit
	// behind a single base shared by many candidate pairs, so the caller
	// needs the peer address to route the packet). Returns the number
	// filled, or iceerr.WouldBlock when no data is currently available.
	RecvMessages(into [][]byte, from []Address) (int, error)

	CanSend(to Address) bool

	// SetWritableCallback registers a callback invoked when a previously
	// blocked socket becomes writable again.
	SetWritableCallback(cb func())

	Close() error
}

// socketLocalNetAddr returns a socket's local address as a net.Addr
// (*net.UDPAddr).
func socketLocalNetAddr(s Socket) net.Addr {
	return s.LocalAddr().UDPAddr()
}
