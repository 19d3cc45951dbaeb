package bootloader

import (
	"errors"
	"fmt"

	"github.com/wnxd/efiboot/bootloader"
	"github.com/wnxd/efiboot/firmware"
)

// snapshot owns the memory map buffer. It is reserved once, while the map
// is first captured, and reused so that refreshing never allocates.
type snapshot struct {
	buf  firmware.Buffer
	info firmware.MapInfo
}

// query returns the number of bytes the memory map needs right now.
func (s *snapshot) query(bs firmware.BootServices) (int, error) {
	info, err := bs.MemoryMap(nil)
	if err != nil && !errors.Is(err, firmware.StatusBufferTooSmall) {
		return 0, err
	}
	return info.Size, nil
}

func (s *snapshot) reserve(bs firmware.BootServices, size int) error {
	buf, err := bs.AllocatePool(firmware.LoaderData, uint64(size))
	if err != nil {
		return err
	}
	s.buf = buf
	return nil
}

func (s *snapshot) refresh(bs firmware.BootServices) error {
	info, err := bs.MemoryMap(s.buf.Bytes)
	if errors.Is(err, firmware.StatusBufferTooSmall) {
		return fmt.Errorf("%w: need %d bytes, have %d", bootloader.ErrBufferTooSmall, info.Size, len(s.buf.Bytes))
	} else if err != nil {
		return err
	}
	s.info = info
	return nil
}

func (s *snapshot) regions() ([]firmware.MemoryDescriptor, error) {
	return firmware.DecodeMemoryMap(s.buf.Bytes, s.info)
}

func (s *snapshot) key() firmware.MapKey {
	return s.info.Key
}
