package protocol

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

const (
	// FrameSize is the constant size of every fixed frame, type tag included.
	FrameSize = 264
	// TypeTagSize is the width of the leading message type.
	TypeTagSize = 4
	// FixedBodySize is the room left for typed fields after the tag.
	FixedBodySize = FrameSize - TypeTagSize
	// MaxTailSize bounds any single variable-length read.
	MaxTailSize = 16 * 1024 * 1024
)

// Encode packs msg little-endian in field order, zero-pads the fixed region
// and appends tail verbatim. The tail length must match msg.TailSize().
func Encode(msg Message, tail []byte) ([]byte, error) {
	if msg == nil {
		return nil, errors.New("protocol: nil message")
	}
	if uint64(len(tail)) != uint64(msg.TailSize()) {
		return nil, errors.Errorf("protocol: %s tail is %d bytes, header declares %d", msg.Type(), len(tail), msg.TailSize())
	}
	frame := make([]byte, FrameSize, FrameSize+len(tail))
	if err := encodeFixed(frame, msg); err != nil {
		return nil, err
	}
	return append(frame, tail...), nil
}

func encodeFixed(frame []byte, msg Message) error {
	size := binary.Size(msg)
	if size < 0 {
		return errors.Errorf("protocol: %s has no fixed layout", msg.Type())
	}
	if size > FixedBodySize {
		return errors.Errorf("protocol: %s needs %d bytes, fixed region holds %d", msg.Type(), size, FixedBodySize)
	}
	binary.LittleEndian.PutUint32(frame[:TypeTagSize], uint32(msg.Type()))
	if size == 0 {
		return nil
	}
	_, err := binary.Encode(frame[TypeTagSize:FrameSize], binary.LittleEndian, msg)
	return errors.Wrapf(err, "protocol: encode %s", msg.Type())
}

// Decode unpacks a fixed frame. Bytes past FrameSize are ignored; the tail
// is read separately with ReadTail.
func Decode(frame []byte) (Message, error) {
	if len(frame) < FrameSize {
		return nil, violation("short frame: %d of %d bytes", len(frame), FrameSize)
	}
	t := MsgType(binary.LittleEndian.Uint32(frame[:TypeTagSize]))
	msg := newMessage(t)
	if msg == nil {
		return nil, violation("unknown message type %d", uint32(t))
	}
	if binary.Size(msg) == 0 {
		return msg, nil
	}
	if _, err := binary.Decode(frame[TypeTagSize:FrameSize], binary.LittleEndian, msg); err != nil {
		return nil, errors.Wrapf(ErrProtocolViolation, "decode %s: %v", t, err)
	}
	return msg, nil
}

// WriteMessage encodes msg with its tail and writes it in one call.
func WriteMessage(w io.Writer, msg Message, tail []byte) error {
	frame, err := Encode(msg, tail)
	if err != nil {
		return err
	}
	_, err = w.Write(frame)
	return err
}

// ReadMessage reads exactly one fixed frame and decodes it.
func ReadMessage(r io.Reader) (Message, error) {
	var frame [FrameSize]byte
	if _, err := io.ReadFull(r, frame[:]); err != nil {
		return nil, err
	}
	return Decode(frame[:])
}

// ReadTail performs the bounded follow-up read for msg's tail.
func ReadTail(r io.Reader, msg Message) ([]byte, error) {
	n := msg.TailSize()
	if n == 0 {
		return nil, nil
	}
	if n > MaxTailSize {
		return nil, violation("%s tail of %d bytes exceeds limit %d", msg.Type(), n, MaxTailSize)
	}
	tail := make([]byte, n)
	if _, err := io.ReadFull(r, tail); err != nil {
		return nil, err
	}
	return tail, nil
}

// Expect reads the next frame and its tail, failing unless it has type want.
func Expect(r io.Reader, want MsgType) (Message, []byte, error) {
	msg, err := ReadMessage(r)
	if err != nil {
		return nil, nil, err
	}
	if msg.Type() != want {
		return msg, nil, &UnexpectedError{Want: want, Got: msg.Type()}
	}
	tail, err := ReadTail(r, msg)
	if err != nil {
		return msg, nil, err
	}
	return msg, tail, nil
}
