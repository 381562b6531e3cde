package ice

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/lanikai/ice/iceerr"
)

// CandidateToSDP renders c as an RFC 5245 §15.1 "candidate-attribute" value
// (without the leading "a=candidate:" or trailing CRLF), e.g.:
//
//	"4234997325 1 udp 2043278322 192.0.2.33 10000 typ host"
//
// This is the only SDP surface this module provides; embedding candidates
// in a full SDP offer/answer is left to the caller.
func CandidateToSDP(c *Candidate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %d %s %d %s %d typ %s",
		c.Foundation, c.ComponentID, sdpTransport(c.Transport), c.Priority,
		c.Addr.netIP(), c.Addr.Port, c.Type)
	if c.Type != Host {
		fmt.Fprintf(&b, " raddr %s rport %d", c.BaseAddr.netIP(), c.BaseAddr.Port)
	}
	return b.String()
}

func sdpTransport(t Transport) string {
	if t == UDP {
		return "udp"
	}
	return "tcp"
}

// CandidateFromSDP parses a candidate-attribute value produced by
// CandidateToSDP (or a compliant peer). It does not resolve a local base
// socket; the returned Candidate is suitable only as a remote candidate
// passed to Stream.AddRemoteCandidate.
func CandidateFromSDP(line string) (*Candidate, error) {
	fields := strings.Fields(line)
	if len(fields) < 8 {
		return nil, iceerr.New("CandidateFromSDP", iceerr.InvalidArgument)
	}

	componentID, err := strconv.Atoi(fields[1])
	if err != nil {
		return nil, iceerr.Wrap("CandidateFromSDP", iceerr.InvalidArgument, err)
	}
	priority, err := strconv.ParseUint(fields[3], 10, 32)
	if err != nil {
		return nil, iceerr.Wrap("CandidateFromSDP", iceerr.InvalidArgument, err)
	}
	port, err := strconv.Atoi(fields[5])
	if err != nil {
		return nil, iceerr.Wrap("CandidateFromSDP", iceerr.InvalidArgument, err)
	}

	transport := UDP
	if !strings.EqualFold(fields[2], "udp") {
		transport = TCPActive
	}

	typ, err := parseCandidateType(fields[7])
	if err != nil {
		return nil, err
	}

	ip := parseIPField(fields[4])
	addr := NewAddress(ip, port)

	return &Candidate{
		Type:        typ,
		Transport:   transport,
		Addr:        addr,
		BaseAddr:    addr,
		Priority:    uint32(priority),
		Foundation:  fields[0],
		ComponentID: componentID,
	}, nil
}

func parseIPField(s string) net.IP {
	return net.ParseIP(s)
}

func parseCandidateType(s string) (CandidateType, error) {
	switch s {
	case "host":
		return Host, nil
	case "srflx":
		return ServerReflexive, nil
	case "prflx":
		return PeerReflexive, nil
	case "relay":
		return Relayed, nil
	default:
		return 0, iceerr.New("CandidateFromSDP", iceerr.InvalidArgument)
	}
}
