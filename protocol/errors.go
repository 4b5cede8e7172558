package protocol

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrProtocolViolation marks any frame or stream that breaks the wire format.
var ErrProtocolViolation = errors.New("protocol violation")

// ErrEmptyNameList is returned when a name-list message would carry no names.
var ErrEmptyNameList = errors.New("protocol: empty name list")

func violation(format string, args ...any) error {
	return errors.Wrapf(ErrProtocolViolation, format, args...)
}

// UnexpectedError reports a well-formed frame of the wrong type.
type UnexpectedError struct {
	Want MsgType
	Got  MsgType
}

func (e *UnexpectedError) Error() string {
	return fmt.Sprintf("expected %s message, got %s: %v", e.Want, e.Got, ErrProtocolViolation)
}

func (e *UnexpectedError) Unwrap() error { return ErrProtocolViolation }

// IsViolation reports whether err is, or wraps, a protocol violation.
func IsViolation(err error) bool {
	return errors.Is(err, ErrProtocolViolation)
}
