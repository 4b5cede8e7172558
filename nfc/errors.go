package nfc

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/xtaci/nfccp/crypto"
	"github.com/xtaci/nfccp/protocol"
)

// Kind classifies client failures.
type Kind int

const (
	KindUnknown Kind = iota
	// KindConnection covers refused or unreachable endpoints.
	KindConnection
	// KindHandshake covers bad greetings and proxy rejections.
	KindHandshake
	// KindAuthentication is a thumbprint mismatch. It is never retried.
	KindAuthentication
	// KindProtocol covers unexpected messages and malformed frames.
	KindProtocol
	// KindPartial is a batch where some items failed.
	KindPartial
)

func (k Kind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindHandshake:
		return "handshake"
	case KindAuthentication:
		return "authentication"
	case KindProtocol:
		return "protocol"
	case KindPartial:
		return "partial"
	default:
		return "unknown"
	}
}

var (
	// ErrNotConnected is returned by operations issued before Connect succeeded.
	ErrNotConnected = errors.New("nfc: not connected")
	// ErrDroppedConnection is returned when the peer ends the session mid-exchange.
	ErrDroppedConnection = errors.New("nfc: peer dropped the connection")
	// ErrProxyRejected is returned when the proxy refuses the PROXY command.
	ErrProxyRejected = errors.New("proxy rejected connection")
)

// Error is a classified client failure.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("nfc: %s %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// BatchError is returned by batch operations. Failed holds the same paths
// as FailedPaths.
type BatchError struct {
	Op     string
	Failed []string
	Err    error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("nfc: %s: %d item(s) failed: %v", e.Op, len(e.Failed), e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// KindOf returns the classification of err.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var nfcErr *Error
	if errors.As(err, &nfcErr) {
		return nfcErr.Kind
	}
	var batch *BatchError
	if errors.As(err, &batch) {
		return KindPartial
	}
	return KindUnknown
}

// IsAuthError reports whether err is a thumbprint or pinning failure.
func IsAuthError(err error) bool {
	return KindOf(err) == KindAuthentication
}

// IsProtocolError reports whether err is, or wraps, a protocol violation.
func IsProtocolError(err error) bool {
	return KindOf(err) == KindProtocol || protocol.IsViolation(err)
}

// classify turns a low-level exchange error into the client vocabulary.
func classify(op string, err error) error {
	var unexpected *protocol.UnexpectedError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &unexpected) && unexpected.Got == protocol.TypeSessionComplete:
		return errors.Wrapf(ErrDroppedConnection, "%s: session-complete while expecting %s", op, unexpected.Want)
	case protocol.IsViolation(err):
		return newError(KindProtocol, op, err)
	case crypto.IsMismatch(err):
		return newError(KindAuthentication, op, err)
	default:
		return errors.Wrap(err, op)
	}
}
