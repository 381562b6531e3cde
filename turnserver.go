package ice

import "sync/atomic"

// TurnServerType selects the TURN transport dialect, per spec §3/§6.
type TurnServerType int

const (
	TurnUDP TurnServerType = iota
	TurnTCP
	TurnTLS
)

// TurnServer describes a configured TURN relay. Descriptors are shared by
// reference count across the CandidateDiscovery that created them and any
// Relayed candidate that results (spec §3, §5 "Shared resources").
type TurnServer struct {
	Address  string
	Username string
	Password string
	Type     TurnServerType

	refCount int32
}

// NewTurnServer creates a descriptor with an initial reference count of one,
// held by the caller (typically the Component that is about to start
// discovery against it).
func NewTurnServer(address, username, password string, typ TurnServerType) *TurnServer {
	return &TurnServer{Address: address, Username: username, Password: password, Type: typ, refCount: 1}
}

// Ref increments the reference count, e.g. when a Relayed candidate is
// created from a successful allocation and keeps the descriptor alive
// alongside the CandidateDiscovery that produced it.
func (t *TurnServer) Ref() *TurnServer {
	atomic.AddInt32(&t.refCount, 1)
	return t
}

// Unref decrements the reference count and reports whether it reached zero,
// meaning the last holder (candidate or pending discovery) has gone away and
// the descriptor can be discarded.
func (t *TurnServer) Unref() bool {
	return atomic.AddInt32(&t.refCount, -1) == 0
}
