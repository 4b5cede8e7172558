package protocol

const (
	// ProtocolVersion is announced in the client-random handshake.
	ProtocolVersion = 1
	// TokenSize is the length of the client-random token.
	TokenSize = 32
)

// MsgType is the little-endian tag that opens every frame.
type MsgType uint32

const (
	TypeClientRandom    MsgType = 1
	TypePing            MsgType = 2
	TypeSessionComplete MsgType = 3
	TypePutFile         MsgType = 4
	TypeGetFile         MsgType = 5
	TypeFileData        MsgType = 6
	TypePutFileDone     MsgType = 7
	TypeDelete          MsgType = 8
	TypeRename          MsgType = 9
	TypeFileOpStatus    MsgType = 10
)

func (t MsgType) String() string {
	switch t {
	case TypeClientRandom:
		return "client-random"
	case TypePing:
		return "ping"
	case TypeSessionComplete:
		return "session-complete"
	case TypePutFile:
		return "put-file"
	case TypeGetFile:
		return "get-file"
	case TypeFileData:
		return "file-data"
	case TypePutFileDone:
		return "put-file-done"
	case TypeDelete:
		return "delete"
	case TypeRename:
		return "rename"
	case TypeFileOpStatus:
		return "file-op-status"
	default:
		return "unknown"
	}
}

// Message is a typed fixed-frame record. Field order in the implementing
// struct is the wire order.
type Message interface {
	Type() MsgType
	// TailSize reports how many bytes follow the fixed frame.
	TailSize() uint64
}

// ClientRandom opens the binary protocol with the token announced to the proxy.
type ClientRandom struct {
	Version uint32
	Token   [TokenSize]byte
}

func (*ClientRandom) Type() MsgType { return TypeClientRandom }
func (*ClientRandom) TailSize() uint64 { return 0 }

// Ping is echoed by the peer.
type Ping struct{}

func (*Ping) Type() MsgType { return TypePing }
func (*Ping) TailSize() uint64 { return 0 }

// SessionComplete ends the session from either side.
type SessionComplete struct{}

func (*SessionComplete) Type() MsgType { return TypeSessionComplete }
func (*SessionComplete) TailSize() uint64 { return 0 }

// PutFile announces a file body that follows as FileData chunks. The tail
// carries the NUL-terminated path.
type PutFile struct {
	FileType      uint32
	Flags         uint32
	PathLen       uint32
	Size          uint64
	SpaceRequired uint64
}

func (*PutFile) Type() MsgType { return TypePutFile }
func (m *PutFile) TailSize() uint64 { return uint64(m.PathLen) }

// Properties returns the file descriptor carried by the request.
func (m *PutFile) Properties() FileProperties {
	return FileProperties{
		Type:          FileType(m.FileType),
		Flags:         FileFlags(m.Flags),
		Size:          m.Size,
		SpaceRequired: m.SpaceRequired,
	}
}

// NewPutFile builds a put-file request and its path tail.
func NewPutFile(path string, props FileProperties) (*PutFile, []byte) {
	tail := EncodePath(path)
	return &PutFile{
		FileType:      uint32(props.Type),
		Flags:         uint32(props.Flags),
		PathLen:       uint32(len(tail)),
		Size:          props.Size,
		SpaceRequired: props.SpaceRequired,
	}, tail
}

// GetFile asks the peer to send a file back as a PutFile exchange.
type GetFile struct {
	FileType uint32
	Flags    uint32
	PathLen  uint32
}

func (*GetFile) Type() MsgType { return TypeGetFile }
func (m *GetFile) TailSize() uint64 { return uint64(m.PathLen) }

// NewGetFile builds a get-file request and its path tail.
func NewGetFile(path string, props FileProperties) (*GetFile, []byte) {
	tail := EncodePath(path)
	return &GetFile{
		FileType: uint32(props.Type),
		Flags:    uint32(props.Flags),
		PathLen:  uint32(len(tail)),
	}, tail
}

// FileData carries one chunk. Its fixed body is empty; the tail opens with
// a ChunkHeader and the header's Length payload bytes follow it.
type FileData struct{}

func (*FileData) Type() MsgType { return TypeFileData }

// TailSize covers the chunk header only. The payload length is read from it.
func (*FileData) TailSize() uint64 { return ChunkHeaderSize }

// PutFileDone acknowledges a complete file body.
type PutFileDone struct{}

func (*PutFileDone) Type() MsgType { return TypePutFileDone }
func (*PutFileDone) TailSize() uint64 { return 0 }

// NameList is the fixed prefix shared by delete and rename.
type NameList struct {
	Size  uint32
	Flags uint32
	Count uint16
}

func (m *NameList) TailSize() uint64 { return uint64(m.Size) }

// Delete removes each listed path.
type Delete struct {
	NameList
}

func (*Delete) Type() MsgType { return TypeDelete }

// Rename carries (old, new) pairs flattened into one list.
type Rename struct {
	NameList
}

func (*Rename) Type() MsgType { return TypeRename }

// FileOpStatus reports the outcome of a name-list operation. The tail holds
// ErrorSize bytes of failure indices followed by DataSize opaque bytes.
type FileOpStatus struct {
	ErrorSize uint32
	DataSize  uint32
	Failed    uint32
	Succeeded uint32
}

func (*FileOpStatus) Type() MsgType { return TypeFileOpStatus }
func (m *FileOpStatus) TailSize() uint64 { return uint64(m.ErrorSize) + uint64(m.DataSize) }

// newMessage is the per-type layout table used by Decode.
func newMessage(t MsgType) Message {
	switch t {
	case TypeClientRandom:
		return &ClientRandom{}
	case TypePing:
		return &Ping{}
	case TypeSessionComplete:
		return &SessionComplete{}
	case TypePutFile:
		return &PutFile{}
	case TypeGetFile:
		return &GetFile{}
	case TypeFileData:
		return &FileData{}
	case TypePutFileDone:
		return &PutFileDone{}
	case TypeDelete:
		return &Delete{}
	case TypeRename:
		return &Rename{}
	case TypeFileOpStatus:
		return &FileOpStatus{}
	default:
		return nil
	}
}
