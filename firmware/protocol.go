package firmware

import (
	"github.com/google/uuid"
	"github.com/wnxd/efiboot/filesystem"
)

var (
	LoadedImageProtocol      = uuid.MustParse("5b1b31a1-9562-11d2-8e3f-00a0c969723b")
	SimpleFileSystemProtocol = uuid.MustParse("964e5b22-6459-11d2-8e39-00a0c969723b")
)

type LoadedImage interface {
	DeviceHandle() Handle
	ImageBase() uint64
	ImageSize() uint64
}

type SimpleFileSystem interface {
	OpenVolume() (filesystem.Dir, error)
}
