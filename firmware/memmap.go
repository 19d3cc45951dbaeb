package firmware

import (
	"errors"
	"fmt"

	"github.com/wnxd/efiboot/encoding"
)

const DescriptorVersion = 1

var ErrDescriptorSize = errors.New("descriptor size smaller than EFI_MEMORY_DESCRIPTOR")

// DescriptorSize is the size of MemoryDescriptor on the wire. Firmware may
// report a larger stride.
var DescriptorSize = func() int {
	n, err := encoding.Size(MemoryDescriptor{})
	if err != nil {
		panic(err)
	}
	return n
}()

// DecodeMemoryMap decodes the descriptors a MemoryMap call wrote into buf.
func DecodeMemoryMap(buf []byte, info MapInfo) ([]MemoryDescriptor, error) {
	if info.DescriptorSize < DescriptorSize {
		return nil, ErrDescriptorSize
	}
	if info.Size > len(buf) {
		return nil, fmt.Errorf("memory map of %d bytes in %d byte buffer: %w", info.Size, len(buf), StatusBufferTooSmall)
	}
	descs := make([]MemoryDescriptor, info.Count())
	for i := range descs {
		off := i * info.DescriptorSize
		if err := encoding.Decode(encoding.Bytes(buf[off:off+info.DescriptorSize]), &descs[i]); err != nil {
			return nil, fmt.Errorf("descriptor %d: %w", i, err)
		}
	}
	return descs, nil
}

// EncodeMemoryMap writes descs into buf with the given stride and returns the bytes used.
func EncodeMemoryMap(buf []byte, descs []MemoryDescriptor, stride int) (int, error) {
	if stride < DescriptorSize {
		return 0, ErrDescriptorSize
	}
	size := len(descs) * stride
	if size > len(buf) {
		return size, StatusBufferTooSmall
	}
	for i := range descs {
		slot := buf[i*stride : (i+1)*stride]
		clear(slot)
		if err := encoding.Encode(encoding.Bytes(slot), &descs[i]); err != nil {
			return 0, fmt.Errorf("descriptor %d: %w", i, err)
		}
	}
	return size, nil
}
