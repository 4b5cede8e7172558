package nfc

import (
	"os"

	"github.com/xtaci/nfccp/protocol"
)

type propertiesKind int

const (
	propertiesDefault propertiesKind = iota
	propertiesFlags
	propertiesFull
)

// Properties selects how file descriptors are built for a batch: derived
// from each file, derived with caller flags, or supplied in full.
type Properties struct {
	kind  propertiesKind
	flags protocol.FileFlags
	full  protocol.FileProperties
}

// DefaultProperties derives every descriptor from the file itself.
func DefaultProperties() Properties {
	return Properties{}
}

// FlagsOnly derives descriptors but replaces their flags.
func FlagsOnly(flags protocol.FileFlags) Properties {
	return Properties{kind: propertiesFlags, flags: flags}
}

// FullProperties uses p verbatim for every file in the batch.
func FullProperties(p protocol.FileProperties) Properties {
	return Properties{kind: propertiesFull, full: p}
}

func (p Properties) String() string {
	switch p.kind {
	case propertiesFlags:
		return "flags"
	case propertiesFull:
		return "full"
	default:
		return "default"
	}
}

// forLocal resolves the descriptor sent with a put of f.
func (p Properties) forLocal(f *os.File) (protocol.FileProperties, error) {
	if p.kind == propertiesFull {
		return p.full, nil
	}
	derived, err := protocol.DescribeFile(f)
	if err != nil {
		return protocol.FileProperties{}, err
	}
	if p.kind == propertiesFlags {
		derived.Flags = p.flags
	}
	return derived, nil
}

// forRemote resolves the descriptor sent with a get of remote.
func (p Properties) forRemote(remote string) protocol.FileProperties {
	switch p.kind {
	case propertiesFull:
		return p.full
	case propertiesFlags:
		return protocol.FileProperties{Type: protocol.TypeForPath(remote), Flags: p.flags}
	default:
		return protocol.FileProperties{Type: protocol.TypeForPath(remote), Flags: protocol.DefaultFlags}
	}
}
