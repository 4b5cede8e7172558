package protocol

import (
	"encoding/binary"
	"io"
)

const (
	// MaxChunkSize is the largest payload carried by one file-data message.
	MaxChunkSize = 256 * 1024
	// FileDataMagic opens every chunk header ("NFCD" little-endian).
	FileDataMagic uint32 = 0x4443464E
	// ChunkHeaderSize is the magic|length prefix of a file-data tail.
	ChunkHeaderSize = 8
)

// ChunkHeader opens the tail of a file-data message.
type ChunkHeader struct {
	Magic  uint32
	Length uint32
}

// EncodeChunkHeader packs h little-endian.
func EncodeChunkHeader(h ChunkHeader) []byte {
	b := make([]byte, ChunkHeaderSize)
	binary.LittleEndian.PutUint32(b[0:4], h.Magic)
	binary.LittleEndian.PutUint32(b[4:8], h.Length)
	return b
}

// DecodeChunkHeader unpacks and validates a chunk header.
func DecodeChunkHeader(b []byte) (ChunkHeader, error) {
	if len(b) != ChunkHeaderSize {
		return ChunkHeader{}, violation("chunk header of %d bytes, want %d", len(b), ChunkHeaderSize)
	}
	h := ChunkHeader{
		Magic:  binary.LittleEndian.Uint32(b[0:4]),
		Length: binary.LittleEndian.Uint32(b[4:8]),
	}
	if h.Magic != FileDataMagic {
		return ChunkHeader{}, violation("bad file-data magic 0x%08x", h.Magic)
	}
	if h.Length > MaxChunkSize {
		return ChunkHeader{}, violation("file-data chunk of %d bytes exceeds %d", h.Length, MaxChunkSize)
	}
	return h, nil
}

// WriteChunk sends one file-data frame, its chunk header and data. An
// empty data slice is the end-of-stream marker.
func WriteChunk(w io.Writer, data []byte) error {
	if len(data) > MaxChunkSize {
		return violation("chunk of %d bytes exceeds %d", len(data), MaxChunkSize)
	}
	buf := make([]byte, FrameSize, FrameSize+ChunkHeaderSize+len(data))
	if err := encodeFixed(buf, &FileData{}); err != nil {
		return err
	}
	buf = append(buf, EncodeChunkHeader(ChunkHeader{Magic: FileDataMagic, Length: uint32(len(data))})...)
	buf = append(buf, data...)
	_, err := w.Write(buf)
	return err
}

// SendChunks streams src to w in chunks of at most MaxChunkSize and always
// finishes with the zero-length terminator. It returns the payload bytes sent.
func SendChunks(w io.Writer, src io.Reader) (uint64, error) {
	buf := make([]byte, MaxChunkSize)
	var sent uint64
	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			if err := WriteChunk(w, buf[:n]); err != nil {
				return sent, err
			}
			sent += uint64(n)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return sent, readErr
		}
	}
	return sent, WriteChunk(w, nil)
}

// ReadChunkHeader reads one file-data frame and its chunk header. The
// payload is left unread.
func ReadChunkHeader(r io.Reader) (ChunkHeader, error) {
	msg, err := ReadMessage(r)
	if err != nil {
		return ChunkHeader{}, err
	}
	if msg.Type() != TypeFileData {
		return ChunkHeader{}, &UnexpectedError{Want: TypeFileData, Got: msg.Type()}
	}
	raw, err := ReadTail(r, msg)
	if err != nil {
		return ChunkHeader{}, err
	}
	return DecodeChunkHeader(raw)
}

// ReceiveChunks copies chunk payloads from r into dst until the zero-length
// terminator. It returns the payload bytes received.
func ReceiveChunks(r io.Reader, dst io.Writer) (uint64, error) {
	var received uint64
	for {
		hdr, err := ReadChunkHeader(r)
		if err != nil {
			return received, err
		}
		if hdr.Length == 0 {
			return received, nil
		}
		n, err := io.CopyN(dst, r, int64(hdr.Length))
		received += uint64(n)
		if err != nil {
			return received, err
		}
	}
}
