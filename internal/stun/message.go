// Package stun implements the STUN transaction layer used by discovery,
// connectivity checks, keepalives, and TURN allocation refresh (spec §4.3).
// The wire codec itself is delegated to github.com/pion/stun/v3, which
// already implements RFC 5389 attribute encoding, MESSAGE-INTEGRITY, and
// FINGERPRINT; this package adds the ICE-specific attributes RFC 5389
// doesn't define (PRIORITY, ICE-CONTROLLING, ICE-CONTROLLED, USE-CANDIDATE)
// and the validation pipeline from spec §4.3.
package stun

import (
	"encoding/binary"
	"net"

	pionstun "github.com/pion/stun/v3"

	"github.com/lanikai/ice/iceerr"
	"github.com/lanikai/ice/internal/logging"
)

var log = logging.DefaultLogger.WithTag("stun")

// ICE-specific attributes, absent from pion/stun since they are defined by
// RFC 5245/8445 rather than the STUN core RFC 5389.
const (
	AttrPriority       = pionstun.AttrType(0x0024)
	AttrUseCandidate   = pionstun.AttrType(0x0025)
	AttrICEControlled  = pionstun.AttrType(0x8029)
	AttrICEControlling = pionstun.AttrType(0x802A)
)

// TransactionID is a 96-bit STUN transaction id.
type TransactionID = pionstun.TransactionID

// Message aliases the pion/stun message type so callers outside this
// package never need to import pion/stun directly.
type Message = pionstun.Message

// Outcome is the validation pipeline's result, per spec §4.3 step 5.
type Outcome int

const (
	Success Outcome = iota
	NotStun
	IncompleteStun
	BadRequest
	Unauthorized
	UnauthorizedBadRequest
	UnmatchedResponse
	UnknownAttribute
)

// IsStunShaped does a fast length/header check (spec §4.3 step 1/2) without
// fully parsing attributes.
func IsStunShaped(data []byte) bool {
	return pionstun.IsMessage(data)
}

// Parse performs the full parse (spec §4.3 step 2): magic cookie, method,
// class, and attribute TLV walk with alignment check.
func Parse(data []byte) (*Message, error) {
	m := &Message{Raw: append([]byte(nil), data...)}
	if err := m.Decode(); err != nil {
		return nil, iceerr.Wrap("stun.Parse", iceerr.StunProtocol, err)
	}
	return m, nil
}

// CredentialLookup resolves a USERNAME attribute to the password that should
// be used for MESSAGE-INTEGRITY, matching a local/remote ufrag pair (spec
// §4.3 step 3). ok is false when the username does not match anything known.
type CredentialLookup func(username string) (password string, ok bool)

// Validate runs the spec §4.3 validation pipeline on an inbound datagram
// already identified as STUN-shaped by IsStunShaped. For requests and
// indications, lookup resolves the short-term credential.
func Validate(data []byte, lookup CredentialLookup) (*Message, Outcome) {
	if !IsStunShaped(data) {
		return nil, NotStun
	}
	if len(data) < 20 {
		return nil, IncompleteStun
	}

	m, err := Parse(data)
	if err != nil {
		return nil, BadRequest
	}

	class := m.Type.Class
	if class == pionstun.ClassRequest || class == pionstun.ClassIndication {
		var username pionstun.Username
		if err := username.GetFrom(m); err == nil {
			password, ok := lookup(username.String())
			if !ok {
				return m, Unauthorized
			}
			integrity := pionstun.NewShortTermIntegrity(password)
			if err := integrity.Check(m); err != nil {
				return m, Unauthorized
			}
		} else if requiresAuth(m) {
			return m, Unauthorized
		}
	}

	var fp pionstun.Fingerprint
	if err := fp.Check(m); err != nil && hasAttr(m, pionstun.AttrFingerprint) {
		return m, BadRequest
	}

	if unknown := findUnknownComprehensionRequired(m); len(unknown) > 0 {
		return m, UnknownAttribute
	}

	return m, Success
}

// requiresAuth reports whether a request/indication without a USERNAME
// attribute should be treated as Unauthorized rather than simply
// unauthenticated (binding indications and STUN-server binding requests
// carry no USERNAME and are exempt).
func requiresAuth(m *Message) bool {
	return hasAttr(m, pionstun.AttrMessageIntegrity)
}

func hasAttr(m *Message, t pionstun.AttrType) bool {
	_, err := m.Get(t)
	return err == nil
}

// findUnknownComprehensionRequired walks the attribute list looking for
// comprehension-required attributes (type < 0x8000) this codec does not
// recognize, per spec §4.3 step 5 / §7 "unknown mandatory attribute".
func findUnknownComprehensionRequired(m *Message) []uint16 {
	var unknown []uint16
	for _, a := range m.Attributes {
		if a.Type >= 0x8000 {
			continue // comprehension-optional
		}
		if !isKnownAttr(a.Type) {
			unknown = append(unknown, uint16(a.Type))
		}
	}
	return unknown
}

func isKnownAttr(t pionstun.AttrType) bool {
	switch t {
	case pionstun.AttrMappedAddress, pionstun.AttrXORMappedAddress,
		pionstun.AttrUsername, pionstun.AttrMessageIntegrity,
		pionstun.AttrFingerprint, pionstun.AttrErrorCode,
		pionstun.AttrUnknownAttributes, pionstun.AttrRealm,
		pionstun.AttrNonce, pionstun.AttrSoftware,
		AttrPriority, AttrUseCandidate, AttrICEControlled, AttrICEControlling,
		pionstun.AttrLifetime, pionstun.AttrRequestedTransport,
		pionstun.AttrXORRelayedAddress, pionstun.AttrEvenPort,
		pionstun.AttrReservationToken, pionstun.AttrChannelNumber:
		return true
	default:
		return false
	}
}

// --- message construction helpers -----------------------------------------

// BuildBindingRequest builds a STUN Binding request carrying PRIORITY,
// ICE-CONTROLLING/CONTROLLED, optional USE-CANDIDATE, USERNAME, and
// MESSAGE-INTEGRITY/FINGERPRINT, per spec §4.4/§6.
func BuildBindingRequest(username string, tieBreaker uint64, controlling bool, useCandidate bool, priority uint32, password string) (*Message, error) {
	m := &Message{}
	setters := []pionstun.Setter{
		pionstun.TransactionID,
		pionstun.BindingRequest,
		pionstun.NewUsername(username),
		rawAttrSetter{AttrPriority, uint32Bytes(priority)},
	}
	if controlling {
		setters = append(setters, rawAttrSetter{AttrICEControlling, uint64Bytes(tieBreaker)})
	} else {
		setters = append(setters, rawAttrSetter{AttrICEControlled, uint64Bytes(tieBreaker)})
	}
	if useCandidate {
		setters = append(setters, rawAttrSetter{AttrUseCandidate, nil})
	}
	if err := m.Build(setters...); err != nil {
		return nil, iceerr.Wrap("stun.BuildBindingRequest", iceerr.StunProtocol, err)
	}
	if password != "" {
		integrity := pionstun.NewShortTermIntegrity(password)
		if err := integrity.AddTo(m); err != nil {
			return nil, iceerr.Wrap("stun.BuildBindingRequest", iceerr.StunProtocol, err)
		}
	}
	if err := pionstun.Fingerprint.AddTo(m); err != nil {
		return nil, iceerr.Wrap("stun.BuildBindingRequest", iceerr.StunProtocol, err)
	}
	return m, nil
}

// BuildBindingResponse builds a STUN Binding success response with
// XOR-MAPPED-ADDRESS, matching the request's transaction id.
func BuildBindingResponse(txID TransactionID, mapped net.Addr, password string, software string) (*Message, error) {
	m := &Message{}
	ip, port := splitAddr(mapped)
	setters := []pionstun.Setter{
		pionstun.NewTransactionIDSetter(txID),
		pionstun.BindingSuccess,
		&pionstun.XORMappedAddress{IP: ip, Port: port},
	}
	if software != "" {
		setters = append(setters, pionstun.NewSoftware(software))
	}
	if err := m.Build(setters...); err != nil {
		return nil, iceerr.Wrap("stun.BuildBindingResponse", iceerr.StunProtocol, err)
	}
	if password != "" {
		if err := pionstun.NewShortTermIntegrity(password).AddTo(m); err != nil {
			return nil, iceerr.Wrap("stun.BuildBindingResponse", iceerr.StunProtocol, err)
		}
	}
	if err := pionstun.Fingerprint.AddTo(m); err != nil {
		return nil, iceerr.Wrap("stun.BuildBindingResponse", iceerr.StunProtocol, err)
	}
	return m, nil
}

// BuildBindingErrorResponse builds an error response, used for the
// "unknown mandatory attribute" case in spec §7 and for role-conflict/
// authentication failures.
func BuildBindingErrorResponse(txID TransactionID, code int, reason string) (*Message, error) {
	m := &Message{}
	err := m.Build(
		pionstun.NewTransactionIDSetter(txID),
		pionstun.BindingError,
		&pionstun.ErrorCodeAttribute{Code: pionstun.ErrorCode(code), Reason: []byte(reason)},
	)
	if err != nil {
		return nil, iceerr.Wrap("stun.BuildBindingErrorResponse", iceerr.StunProtocol, err)
	}
	return m, nil
}

// BuildBindingIndication builds a no-reply-expected binding indication, used
// for keepalives (spec §4.7).
func BuildBindingIndication() (*Message, error) {
	indication := pionstun.NewType(pionstun.MethodBinding, pionstun.ClassIndication)
	m := &Message{}
	if err := m.Build(pionstun.TransactionID, indication); err != nil {
		return nil, iceerr.Wrap("stun.BuildBindingIndication", iceerr.StunProtocol, err)
	}
	return m, nil
}

// GetPriority extracts the PRIORITY attribute (spec §4.2 "Peer-Reflexive
// discovery").
func GetPriority(m *Message) (uint32, bool) {
	a, err := m.Get(AttrPriority)
	if err != nil || len(a.Value) != 4 {
		return 0, false
	}
	return binary.BigEndian.Uint32(a.Value), true
}

// HasUseCandidate reports whether the USE-CANDIDATE attribute is present.
func HasUseCandidate(m *Message) bool {
	return hasAttr(m, AttrUseCandidate)
}

// ControllingTieBreaker extracts ICE-CONTROLLING, if present.
func ControllingTieBreaker(m *Message) (uint64, bool) {
	return getUint64Attr(m, AttrICEControlling)
}

// ControlledTieBreaker extracts ICE-CONTROLLED, if present.
func ControlledTieBreaker(m *Message) (uint64, bool) {
	return getUint64Attr(m, AttrICEControlled)
}

func getUint64Attr(m *Message, t pionstun.AttrType) (uint64, bool) {
	a, err := m.Get(t)
	if err != nil || len(a.Value) != 8 {
		return 0, false
	}
	return binary.BigEndian.Uint64(a.Value), true
}

// IsSuccess reports whether m is a success response (class 0x2).
func IsSuccess(m *Message) bool {
	return m.Type.Class == pionstun.ClassSuccessResponse
}

// IsError reports whether m is an error response (class 0x3).
func IsError(m *Message) bool {
	return m.Type.Class == pionstun.ClassErrorResponse
}

// ErrorCode extracts the numeric STUN error code from an error response,
// e.g. 487 for role conflict (spec §4.5) or 401 for Unauthorized.
func ErrorCode(m *Message) (int, bool) {
	var ec pionstun.ErrorCodeAttribute
	if err := ec.GetFrom(m); err != nil {
		return 0, false
	}
	return int(ec.Code), true
}

// GetXORMappedAddress extracts the mapped address from a success response.
func GetXORMappedAddress(m *Message) (net.IP, int, bool) {
	var xorAddr pionstun.XORMappedAddress
	if err := xorAddr.GetFrom(m); err == nil {
		return xorAddr.IP, xorAddr.Port, true
	}
	var addr pionstun.MappedAddress
	if err := addr.GetFrom(m); err == nil {
		return addr.IP, addr.Port, true
	}
	return nil, 0, false
}

func splitAddr(addr net.Addr) (net.IP, int) {
	switch a := addr.(type) {
	case *net.UDPAddr:
		return a.IP, a.Port
	case *net.TCPAddr:
		return a.IP, a.Port
	default:
		return nil, 0
	}
}

func uint32Bytes(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func uint64Bytes(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

// rawAttrSetter adds a raw ICE attribute not covered by pion/stun's typed
// Setter set.
type rawAttrSetter struct {
	t pionstun.AttrType
	v []byte
}

func (s rawAttrSetter) AddTo(m *Message) error {
	m.Add(s.t, s.v)
	return nil
}
