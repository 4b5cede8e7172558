package protocol

import (
	"bytes"
	"encoding/binary"
	"math"
	"strings"

	"github.com/pkg/errors"
)

// FailureListSentinel terminates an encoded failure-index list.
const FailureListSentinel uint16 = 0xFFFF

// EncodePath returns path as a NUL-terminated tail.
func EncodePath(path string) []byte {
	tail := make([]byte, 0, len(path)+1)
	tail = append(tail, path...)
	return append(tail, 0)
}

// DecodePath returns the string up to the first NUL of a path tail.
func DecodePath(tail []byte) (string, error) {
	i := bytes.IndexByte(tail, 0)
	if i < 0 {
		return "", violation("path tail of %d bytes is not NUL-terminated", len(tail))
	}
	return string(tail[:i]), nil
}

// EncodeNames renders names NUL-separated with a trailing double NUL.
func EncodeNames(names []string) []byte {
	var buf bytes.Buffer
	for _, name := range names {
		buf.WriteString(name)
		buf.WriteByte(0)
	}
	buf.WriteByte(0)
	return buf.Bytes()
}

// DecodeNames is the inverse of EncodeNames.
func DecodeNames(tail []byte) ([]string, error) {
	if len(tail) == 0 || tail[len(tail)-1] != 0 {
		return nil, violation("name list is not terminated")
	}
	body := tail[:len(tail)-1]
	if len(body) == 0 {
		return nil, nil
	}
	if body[len(body)-1] != 0 {
		return nil, violation("name list is missing its double-NUL sentinel")
	}
	return strings.Split(string(body[:len(body)-1]), "\x00"), nil
}

func newNameList(names []string, flags uint32) (NameList, []byte, error) {
	if len(names) == 0 {
		return NameList{}, nil, ErrEmptyNameList
	}
	if len(names) > math.MaxUint16 {
		return NameList{}, nil, errors.Errorf("protocol: %d names exceed the list limit of %d", len(names), math.MaxUint16)
	}
	for _, name := range names {
		if name == "" || strings.IndexByte(name, 0) >= 0 {
			return NameList{}, nil, errors.Errorf("protocol: invalid name %q in list", name)
		}
	}
	tail := EncodeNames(names)
	return NameList{Size: uint32(len(tail)), Flags: flags, Count: uint16(len(names))}, tail, nil
}

// NewDelete builds a delete request for names.
func NewDelete(names []string, flags uint32) (*Delete, []byte, error) {
	list, tail, err := newNameList(names, flags)
	if err != nil {
		return nil, nil, err
	}
	return &Delete{NameList: list}, tail, nil
}

// NewRename builds a rename request from an already flattened
// (old, new, old, new, ...) list.
func NewRename(flat []string, flags uint32) (*Rename, []byte, error) {
	if len(flat)%2 != 0 {
		return nil, nil, errors.Errorf("protocol: rename list has odd length %d", len(flat))
	}
	list, tail, err := newNameList(flat, flags)
	if err != nil {
		return nil, nil, err
	}
	return &Rename{NameList: list}, tail, nil
}

// EncodeFailureIndices renders indices as u16 entries plus the sentinel.
func EncodeFailureIndices(indices []uint16) []byte {
	blob := make([]byte, 0, 2*(len(indices)+1))
	for _, idx := range indices {
		blob = binary.LittleEndian.AppendUint16(blob, idx)
	}
	return binary.LittleEndian.AppendUint16(blob, FailureListSentinel)
}

// DecodeFailureIndices splits blob into u16 entries and drops the final
// sentinel entry.
func DecodeFailureIndices(blob []byte) ([]uint16, error) {
	if len(blob)%2 != 0 {
		return nil, violation("failure list has odd length %d", len(blob))
	}
	n := len(blob) / 2
	if n == 0 {
		return nil, nil
	}
	indices := make([]uint16, 0, n-1)
	for i := 0; i < n-1; i++ {
		indices = append(indices, binary.LittleEndian.Uint16(blob[2*i:]))
	}
	return indices, nil
}
