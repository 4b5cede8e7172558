package protocol

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// FileType is the logical kind of a transferred file.
type FileType uint32

const (
	FileRaw FileType = iota
	FileText
	FileDisk
)

func (t FileType) String() string {
	switch t {
	case FileRaw:
		return "raw"
	case FileText:
		return "text"
	case FileDisk:
		return "disk"
	default:
		return "unknown"
	}
}

// FileFlags selects conversions and creation behaviour on the peer.
type FileFlags uint32

const (
	// FlagTextConvert converts line endings of text files.
	FlagTextConvert FileFlags = 1 << iota
	// FlagDiskConvert converts the disk image to the datastore format.
	FlagDiskConvert
	// FlagThinProvision creates disks thin-provisioned.
	FlagThinProvision
	// FlagOverwrite replaces an existing destination.
	FlagOverwrite
	// FlagCreateAlternate picks an alternate name when the destination exists.
	FlagCreateAlternate
)

// DefaultFlags is used when the caller supplies no flags.
const DefaultFlags = FlagOverwrite

// FileProperties describes one file on the wire.
type FileProperties struct {
	Type          FileType
	Flags         FileFlags
	Size          uint64
	SpaceRequired uint64
}

var textExtensions = map[string]bool{
	".vmx":  true,
	".vmxf": true,
	".vmsd": true,
	".vmtx": true,
	".txt":  true,
	".log":  true,
	".xml":  true,
	".ovf":  true,
}

// TypeForPath infers the file kind from the path extension.
func TypeForPath(path string) FileType {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case ext == ".vmdk":
		return FileDisk
	case textExtensions[ext]:
		return FileText
	default:
		return FileRaw
	}
}

// DescribeFile derives properties from an open local file.
func DescribeFile(f *os.File) (FileProperties, error) {
	info, err := f.Stat()
	if err != nil {
		return FileProperties{}, errors.Wrapf(err, "stat %s", f.Name())
	}
	if info.IsDir() {
		return FileProperties{}, errors.Errorf("%s is a directory", f.Name())
	}
	size := uint64(info.Size())
	return FileProperties{
		Type:          TypeForPath(f.Name()),
		Flags:         DefaultFlags,
		Size:          size,
		SpaceRequired: size,
	}, nil
}
