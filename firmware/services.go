package firmware

import "github.com/google/uuid"

type Handle uint64

type MapKey uint64

// MapInfo describes one memory map query. On StatusBufferTooSmall only Size
// and DescriptorSize are meaningful and Size is the minimum buffer length.
type MapInfo struct {
	Size              int
	Key               MapKey
	DescriptorSize    int
	DescriptorVersion uint32
}

func (i MapInfo) Count() int {
	if i.DescriptorSize == 0 {
		return 0
	}
	return i.Size / i.DescriptorSize
}

type AllocateType int

const (
	AllocateAnyPages AllocateType = iota
	AllocateMaxAddress
	AllocateAddress
)

// Buffer is firmware-owned memory visible both as a physical address and as bytes.
type Buffer struct {
	Addr  uint64
	Bytes []byte
}

func (b Buffer) Size() uint64 {
	return uint64(len(b.Bytes))
}

// BootServices is the subset of the firmware boot services the loader consumes.
// Every call is invalid after a successful ExitBootServices.
type BootServices interface {
	MemoryMap(buf []byte) (MapInfo, error)
	HandleProtocol(handle Handle, protocol uuid.UUID) (any, error)
	AllocatePages(typ AllocateType, mem MemoryType, pages uint64, addr uint64) (uint64, error)
	FreePages(addr uint64, pages uint64) error
	AllocatePool(mem MemoryType, size uint64) (Buffer, error)
	FreePool(addr uint64) error
	ExitBootServices(image Handle, key MapKey) (runtime uint64, err error)
}

// Pages returns the number of pages needed to hold size bytes.
func Pages(size uint64) uint64 {
	return Align(size, PageSize) / PageSize
}
