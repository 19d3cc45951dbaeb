package sim

import (
	"github.com/wnxd/efiboot/filesystem"
	"github.com/wnxd/efiboot/firmware"
)

type loadedImage struct {
	device firmware.Handle
	base   uint64
	size   uint64
}

func (li *loadedImage) DeviceHandle() firmware.Handle {
	return li.device
}

func (li *loadedImage) ImageBase() uint64 {
	return li.base
}

func (li *loadedImage) ImageSize() uint64 {
	return li.size
}

type simpleFileSystem struct {
	volume filesystem.FS
}

func (sfs *simpleFileSystem) OpenVolume() (filesystem.Dir, error) {
	dir, err := filesystem.Root(sfs.volume)
	if err != nil {
		return nil, firmware.StatusDeviceError
	}
	return dir, nil
}

type conOut struct {
	m *Machine
}

func (c conOut) Write(b []byte) (int, error) {
	c.m.svc.record("ConOut")
	if c.m.svc.exited {
		return 0, firmware.StatusUnsupported
	}
	return c.m.console.Write(b)
}
