package ice

import (
	"net"
	"strconv"
)

// Transport identifies the candidate/socket transport protocol, per spec §3.
type Transport int

const (
	UDP Transport = iota
	TCPActive
	TCPPassive
	TCPSO
)

func (t Transport) String() string {
	switch t {
	case UDP:
		return "udp"
	case TCPActive:
		return "tcp-active"
	case TCPPassive:
		return "tcp-passive"
	case TCPSO:
		return "tcp-so"
	default:
		return "unknown"
	}
}

// IsTCP reports whether this transport runs over a TCP byte stream.
func (t Transport) IsTCP() bool {
	return t != UDP
}

// Family distinguishes IPv4 from IPv6, independent of net.IP's variable-width
// representation.
type Family int

const (
	IPv4 Family = 4
	IPv6 Family = 6
)

// Address is an IP address plus port, compared by family, raw bytes, and
// port. Unlike net.UDPAddr/net.TCPAddr it is transport-agnostic and directly
// comparable with ==; CandidatePair redundancy checks (spec invariant 3)
// compare addresses with Equal.
type Address struct {
	Family Family
	IP     [16]byte // IPv4 addresses are stored in the low 4 bytes, network order irrelevant beyond equality
	Port   uint16
}

// NewAddress builds an Address from a net.IP and port.
func NewAddress(ip net.IP, port int) Address {
	var a Address
	a.Port = uint16(port)
	if ip4 := ip.To4(); ip4 != nil {
		a.Family = IPv4
		copy(a.IP[12:], ip4)
	} else {
		a.Family = IPv6
		copy(a.IP[:], ip.To16())
	}
	return a
}

// AddressFromNetAddr extracts an Address from a net.Addr (*net.UDPAddr or
// *net.TCPAddr).
func AddressFromNetAddr(addr net.Addr) Address {
	switch a := addr.(type) {
	case *net.UDPAddr:
		return NewAddress(a.IP, a.Port)
	case *net.TCPAddr:
		return NewAddress(a.IP, a.Port)
	default:
		host, portStr, err := net.SplitHostPort(addr.String())
		if err != nil {
			return Address{}
		}
		port, _ := strconv.Atoi(portStr)
		return NewAddress(net.ParseIP(host), port)
	}
}

// netIP returns the net.IP form of this address.
func (a Address) netIP() net.IP {
	if a.Family == IPv4 {
		return net.IP(a.IP[12:16])
	}
	ip := make(net.IP, 16)
	copy(ip, a.IP[:])
	return ip
}

// EqualNoPort reports whether a and b have the same family and IP, ignoring
// port, the same way foundation assignment compares base addresses (spec §3
// invariant iv, §4.2).
func (a Address) EqualNoPort(b Address) bool {
	return a.Family == b.Family && a.IP == b.IP
}

// Equal reports full equality, including port.
func (a Address) Equal(b Address) bool {
	return a.EqualNoPort(b) && a.Port == b.Port
}

// IsLinkLocal reports whether this address is link-local. Pairing uses it so
// that link-local candidates only pair with link-local candidates; host
// gathering does not skip link-local addresses.
func (a Address) IsLinkLocal() bool {
	return a.netIP().IsLinkLocalUnicast()
}

func (a Address) String() string {
	return net.JoinHostPort(a.netIP().String(), strconv.Itoa(int(a.Port)))
}

// UDPAddr returns the *net.UDPAddr form, used at the socket boundary.
func (a Address) UDPAddr() *net.UDPAddr {
	return &net.UDPAddr{IP: a.netIP(), Port: int(a.Port)}
}
