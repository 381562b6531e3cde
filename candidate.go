package ice

import (
	"encoding/base32"
	"fmt"
	"hash/fnv"
	"strings"
)

// CandidateType is one of the four kinds a candidate may take (spec §3).
type CandidateType int

const (
	Host CandidateType = iota
	ServerReflexive
	PeerReflexive
	Relayed
)

func (t CandidateType) String() string {
	switch t {
	case Host:
		return "host"
	case ServerReflexive:
		return "srflx"
	case PeerReflexive:
		return "prflx"
	case Relayed:
		return "relay"
	default:
		return "unknown"
	}
}

// Candidate is a transport address the endpoint advertises, per spec §3.
type Candidate struct {
	Type      CandidateType
	Transport Transport

	Addr     Address // public/mapped address
	BaseAddr Address // source address outbound STUN/TURN traffic originates from

	Priority   uint32
	Foundation string // 32-char ASCII max

	StreamID    int
	ComponentID int

	// Username/Password override the stream's credentials. Empty means
	// "inherit from stream".
	Username string
	Password string

	// Turn is non-nil only for Relayed candidates (invariant ii).
	Turn *TurnServer

	// base is the socket this candidate sends from. nil only transiently,
	// for remote candidates signalled by the peer (which have no local
	// socket).
	base Socket
}

// foundationTable assigns stable, ascending foundation ids to
// (type, transport, base address, TURN server) tuples, matching spec §4.2's
// "same base, same STUN/TURN server" rule; the base is compared without its
// port. One table per GatherCandidates call, shared by all components of
// the stream.
type foundationTable struct {
	fingerprints []string
}

func (ft *foundationTable) foundationFor(typ CandidateType, transport Transport, base Address, turn *TurnServer, compat Compatibility) string {
	if typ == Relayed && compat == CompatibilityGoogle {
		// Google compatibility never shares foundations with Relayed (spec §4.2).
		ft.fingerprints = append(ft.fingerprints, "")
		return foundationString(len(ft.fingerprints) - 1)
	}
	server := ""
	if turn != nil {
		server = turn.Address
	}
	fingerprint := fmt.Sprintf("%d/%d/%s/%s", typ, transport, base.netIP().String(), server)
	for i, f := range ft.fingerprints {
		if f == fingerprint {
			return foundationString(i)
		}
	}
	ft.fingerprints = append(ft.fingerprints, fingerprint)
	return foundationString(len(ft.fingerprints) - 1)
}

// foundationString renders an index as a short, stable, printable
// foundation. base32 of an FNV hash keeps it within the 32-char ASCII budget
// while remaining legible in logs, matching the teacher's approach in
// internal/ice/candidate.go (computeFoundation).
func foundationString(n int) string {
	h := fnv.New64a()
	fmt.Fprintf(h, "f%d", n)
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(h.Sum(nil))[:8]
}

// priorityWeights holds the type-preference table for one compatibility mode
// (spec §4.2).
type priorityWeights struct {
	host, prflx, srflx, relay int
}

func typePreferences(compat Compatibility) priorityWeights {
	switch compat {
	case CompatibilityGoogle, CompatibilityMSN, CompatibilityWLM2009:
		// These legacy dialects use the same relative ordering as RFC5245;
		// the wire encoding of credentials/attributes differs, not the
		// priority math, so they share this table.
		return priorityWeights{host: 126, prflx: 110, srflx: 100, relay: 0}
	case CompatibilityOC2007, CompatibilityOC2007R2:
		return priorityWeights{host: 126, prflx: 110, srflx: 100, relay: 0}
	default: // RFC5245
		return priorityWeights{host: 126, prflx: 110, srflx: 100, relay: 0}
	}
}

// localPreference encodes transport direction preference for TCP candidates
// relative to UDP, per spec §4.2.
func localPreference(transport Transport) int {
	switch transport {
	case TCPSO:
		return 75
	case TCPActive:
		return 50
	case TCPPassive:
		return 25
	default: // UDP
		return 65535
	}
}

// computePriority implements the spec §4.2 priority formula, including the
// reliable/unreliable type_pref halving rule.
func computePriority(typ CandidateType, transport Transport, componentID int, compat Compatibility, reliable bool) uint32 {
	w := typePreferences(compat)
	var typePref int
	switch typ {
	case Host:
		typePref = w.host
	case PeerReflexive:
		typePref = w.prflx
	case ServerReflexive:
		typePref = w.srflx
	case Relayed:
		typePref = w.relay
	}

	// spec §4.2: "For reliable mode, type_pref is halved on UDP candidates;
	// for unreliable, halved on non-UDP."
	if reliable && transport == UDP {
		typePref /= 2
	} else if !reliable && transport != UDP {
		typePref /= 2
	}

	localPref := localPreference(transport)
	return uint32(typePref<<24) | uint32(localPref<<8) | uint32(256-componentID)
}

// peerPriority computes the priority this candidate would have if it were
// peer-reflexive, for use in outbound connectivity checks (spec §4.2/§4.4).
func (c *Candidate) peerPriority(compat Compatibility, reliable bool) uint32 {
	return computePriority(PeerReflexive, c.Transport, c.ComponentID, compat, reliable)
}

// IsRedundant reports whether c has the same (base, addr, transport) as
// other, per spec invariant 3 / §4.2 "ignore a created candidate that is
// redundant".
func (c *Candidate) IsRedundant(other *Candidate) bool {
	return c.BaseAddr.Equal(other.BaseAddr) && c.Addr.Equal(other.Addr) && c.Transport == other.Transport
}

func (c *Candidate) checkInvariants() error {
	if c.Type == Host && !c.BaseAddr.Equal(c.Addr) {
		return fmt.Errorf("host candidate %s base %s != addr %s", c, c.BaseAddr, c.Addr)
	}
	if c.Type == Relayed && c.Turn == nil {
		return fmt.Errorf("relayed candidate %s has no turn server", c)
	}
	if c.BaseAddr.Family != c.Addr.Family {
		return fmt.Errorf("candidate %s base/addr family mismatch", c)
	}
	return nil
}

func (c Candidate) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "candidate:%s %d %s %d %s %d typ %s",
		c.Foundation, c.ComponentID, c.Transport, c.Priority, c.Addr.netIP(), c.Addr.Port, c.Type)
	return b.String()
}
