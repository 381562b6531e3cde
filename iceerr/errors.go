// Package iceerr defines the error taxonomy shared across the ice module.
package iceerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies an error without tying callers to a specific message.
type Kind int

const (
	// InvalidArgument means a malformed stream/component id, a nil buffer
	// where one was required, or a value out of range. Never mutates state.
	InvalidArgument Kind = iota
	// NotFound means no stream or component matches the given id.
	NotFound
	// WouldBlock means no data or no send window is available right now;
	// retryable.
	WouldBlock
	// BrokenPipe means the selected pair or owning stream is gone.
	BrokenPipe
	// Closed means the agent itself is shutting down.
	Closed
	// AuthenticationFailed means a STUN integrity check or TURN
	// authentication attempt failed terminally.
	AuthenticationFailed
	// StunProtocol means an unparseable or unexpected STUN message was
	// received somewhere a reply is not meaningful.
	StunProtocol
	// SocketIO means a lower-layer send/recv failure not attributable to
	// flow control.
	SocketIO
)

func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "invalid argument"
	case NotFound:
		return "not found"
	case WouldBlock:
		return "would block"
	case BrokenPipe:
		return "broken pipe"
	case Closed:
		return "closed"
	case AuthenticationFailed:
		return "authentication failed"
	case StunProtocol:
		return "stun protocol"
	case SocketIO:
		return "socket io"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is the typed error object returned by every public entry point per
// spec §7. It carries the operation that failed, its Kind, and (for
// unexpected failures) a wrapped cause retaining a stack trace.
type Error struct {
	Op    string
	Kind  Kind
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("ice: %s: %s: %v", e.Op, e.Kind, e.Cause)
	}
	return fmt.Sprintf("ice: %s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is allows errors.Is(err, iceerr.ErrWouldBlock) style checks by comparing
// Kind whenever the target is itself an *Error; the target's Op and Cause
// are ignored.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New creates an *Error of the given kind with no wrapped cause.
func New(op string, kind Kind) error {
	return &Error{Op: op, Kind: kind}
}

// Wrap wraps cause as an *Error of the given kind, always attaching a stack
// trace via github.com/pkg/errors.WithStack.
func Wrap(op string, kind Kind, cause error) error {
	if cause == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Cause: errors.WithStack(cause)}
}

// Wrapf is like Wrap but formats the cause with a message first.
func Wrapf(op string, kind Kind, cause error, format string, args ...interface{}) error {
	if cause == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Cause: errors.Wrapf(cause, format, args...)}
}

// KindOf extracts the Kind from err, if it (or something it wraps) is an
// *Error; otherwise returns SocketIO as a conservative default for unknown
// lower-layer failures.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return SocketIO, false
}

// sentinels usable directly with errors.Is, e.g. errors.Is(err, iceerr.ErrWouldBlock)
var (
	ErrInvalidArgument     = &Error{Op: "", Kind: InvalidArgument}
	ErrNotFound            = &Error{Op: "", Kind: NotFound}
	ErrWouldBlock          = &Error{Op: "", Kind: WouldBlock}
	ErrBrokenPipe          = &Error{Op: "", Kind: BrokenPipe}
	ErrClosed              = &Error{Op: "", Kind: Closed}
	ErrAuthenticationFailed = &Error{Op: "", Kind: AuthenticationFailed}
	ErrStunProtocol        = &Error{Op: "", Kind: StunProtocol}
	ErrSocketIO            = &Error{Op: "", Kind: SocketIO}
)
