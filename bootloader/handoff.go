package bootloader

import (
	"fmt"

	"github.com/wnxd/efiboot/encoding"
	"github.com/wnxd/efiboot/firmware"
	"github.com/wnxd/efiboot/loader"
)

const (
	HandoffMagic   uint64 = 0x544f4f4249464521 // "!EFIBOOT"
	HandoffVersion uint32 = 1
)

// HandoffBlock is written to loader-owned memory before control transfer.
// Its physical address is the only argument the kernel entry receives.
type HandoffBlock struct {
	Magic             uint64
	Version           uint32
	DescriptorVersion uint32
	DescriptorSize    uint64
	MapAddr           uint64
	MapSize           uint64
	RuntimeTable      uint64
	ImageBase         uint64
	ImageEnd          uint64
	Entry             uint64
}

var HandoffBlockSize = func() int {
	n, err := encoding.Size(HandoffBlock{})
	if err != nil {
		panic(err)
	}
	return n
}()

func (b *HandoffBlock) WriteTo(mem firmware.Memory, addr uint64) error {
	return encoding.Encode(firmware.PointerStream(firmware.ToPointer(mem, addr)), b)
}

// HandoffState is what the kernel learns from the loader: the authoritative
// memory map and where it was placed.
type HandoffState struct {
	Regions           []firmware.MemoryDescriptor
	DescriptorSize    int
	DescriptorVersion uint32
	RuntimeTable      uint64
	Image             loader.Span
	Entry             uint64
}

// ReadHandoff decodes the handoff block at addr and the memory map it points to.
func ReadHandoff(mem firmware.Memory, addr uint64) (*HandoffState, error) {
	var b HandoffBlock
	if err := encoding.Decode(firmware.PointerStream(firmware.ToPointer(mem, addr)), &b); err != nil {
		return nil, err
	}
	if b.Magic != HandoffMagic {
		return nil, fmt.Errorf("%w: %#x", ErrHandoffMagic, b.Magic)
	}
	if b.Version != HandoffVersion {
		return nil, fmt.Errorf("%w: %d", ErrHandoffVersion, b.Version)
	}
	buf, err := mem.MemRead(b.MapAddr, b.MapSize)
	if err != nil {
		return nil, err
	}
	info := firmware.MapInfo{
		Size:              int(b.MapSize),
		DescriptorSize:    int(b.DescriptorSize),
		DescriptorVersion: b.DescriptorVersion,
	}
	regions, err := firmware.DecodeMemoryMap(buf, info)
	if err != nil {
		return nil, err
	}
	return &HandoffState{
		Regions:           regions,
		DescriptorSize:    info.DescriptorSize,
		DescriptorVersion: b.DescriptorVersion,
		RuntimeTable:      b.RuntimeTable,
		Image:             loader.Span{Low: b.ImageBase, High: b.ImageEnd},
		Entry:             b.Entry,
	}, nil
}
