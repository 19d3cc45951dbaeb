package sim

import "github.com/wnxd/efiboot/firmware"

const (
	MinMemorySize = 4 << 20
	runtimeSize   = 1 << 20
	firmwareSize  = 1 << 20
	localAPIC     = 0xfee00000
)

// DefaultRegions lays out a PC-like machine with size bytes of RAM: a
// legacy hole below 1 MiB, firmware code and runtime data at the top of
// RAM and the local APIC window above it.
func DefaultRegions(size uint64) []firmware.MemoryDescriptor {
	size = firmware.AlignDown(size, firmware.PageSize)
	top := size - runtimeSize - firmwareSize
	return []firmware.MemoryDescriptor{
		region(firmware.BootServicesData, 0, 0x1000, firmware.MemoryWB),
		region(firmware.ConventionalMemory, 0x1000, 0xa0000, firmware.MemoryWB),
		region(firmware.ReservedMemoryType, 0xa0000, 0x100000, firmware.MemoryUC),
		region(firmware.ConventionalMemory, 0x100000, top, firmware.MemoryWB),
		region(firmware.BootServicesCode, top, top+firmwareSize, firmware.MemoryWB),
		region(firmware.RuntimeServicesData, top+firmwareSize, size, firmware.MemoryWB|firmware.MemoryRuntime),
		region(firmware.MemoryMappedIO, localAPIC, localAPIC+firmware.PageSize, firmware.MemoryUC|firmware.MemoryRuntime),
	}
}

func region(typ firmware.MemoryType, start, end uint64, attr firmware.MemoryAttribute) firmware.MemoryDescriptor {
	return firmware.MemoryDescriptor{
		Type:      typ,
		PhysStart: start,
		PageCount: (end - start) / firmware.PageSize,
		Attribute: attr,
	}
}
