package firmware

import (
	"fmt"
	"strings"
)

const PageSize = 0x1000

type MemoryType uint32

const (
	ReservedMemoryType MemoryType = iota
	LoaderCode
	LoaderData
	BootServicesCode
	BootServicesData
	RuntimeServicesCode
	RuntimeServicesData
	ConventionalMemory
	UnusableMemory
	ACPIReclaimMemory
	ACPIMemoryNVS
	MemoryMappedIO
	MemoryMappedIOPortSpace
	PalCode
	PersistentMemory
	UnacceptedMemory
	maxMemoryType
)

var memoryTypeNames = [maxMemoryType]string{
	"RESERVED",
	"LOADER_CODE",
	"LOADER_DATA",
	"BOOT_SERVICES_CODE",
	"BOOT_SERVICES_DATA",
	"RUNTIME_SERVICES_CODE",
	"RUNTIME_SERVICES_DATA",
	"CONVENTIONAL",
	"UNUSABLE",
	"ACPI_RECLAIM",
	"ACPI_NON_VOLATILE",
	"MMIO",
	"MMIO_PORT_SPACE",
	"PAL_CODE",
	"PERSISTENT_MEMORY",
	"UNACCEPTED",
}

func (t MemoryType) String() string {
	if t < maxMemoryType {
		return memoryTypeNames[t]
	}
	return fmt.Sprintf("MemoryType(%#x)", uint32(t))
}

// ParseMemoryType accepts the names produced by MemoryType.String.
func ParseMemoryType(s string) (MemoryType, bool) {
	for i, name := range memoryTypeNames {
		if name == s {
			return MemoryType(i), true
		}
	}
	var raw uint32
	if _, err := fmt.Sscanf(s, "MemoryType(%v)", &raw); err == nil {
		return MemoryType(raw), true
	}
	return 0, false
}

// Usable reports whether the kernel may treat the region as free memory once
// boot services are gone.
func (t MemoryType) Usable() bool {
	switch t {
	case ConventionalMemory, BootServicesCode, BootServicesData, LoaderData:
		return true
	}
	return false
}

type MemoryAttribute uint64

const (
	MemoryUC           MemoryAttribute = 0x1
	MemoryWC           MemoryAttribute = 0x2
	MemoryWT           MemoryAttribute = 0x4
	MemoryWB           MemoryAttribute = 0x8
	MemoryUCE          MemoryAttribute = 0x10
	MemoryWP           MemoryAttribute = 0x1000
	MemoryRP           MemoryAttribute = 0x2000
	MemoryXP           MemoryAttribute = 0x4000
	MemoryNV           MemoryAttribute = 0x8000
	MemoryMoreReliable MemoryAttribute = 0x10000
	MemoryRO           MemoryAttribute = 0x20000
	MemorySP           MemoryAttribute = 0x40000
	MemoryCPUCrypto    MemoryAttribute = 0x80000
	MemoryRuntime      MemoryAttribute = 0x8000000000000000
)

var attributeNames = []struct {
	bit  MemoryAttribute
	name string
}{
	{MemoryUC, "UC"}, {MemoryWC, "WC"}, {MemoryWT, "WT"}, {MemoryWB, "WB"}, {MemoryUCE, "UCE"},
	{MemoryWP, "WP"}, {MemoryRP, "RP"}, {MemoryXP, "XP"}, {MemoryNV, "NV"},
	{MemoryMoreReliable, "MORE_RELIABLE"}, {MemoryRO, "RO"}, {MemorySP, "SP"},
	{MemoryCPUCrypto, "CPU_CRYPTO"}, {MemoryRuntime, "RUNTIME"},
}

func (a MemoryAttribute) String() string {
	if a == 0 {
		return "0"
	}
	var parts []string
	rest := a
	for _, n := range attributeNames {
		if a&n.bit != 0 {
			parts = append(parts, n.name)
			rest &^= n.bit
		}
	}
	if rest != 0 {
		parts = append(parts, fmt.Sprintf("%#x", uint64(rest)))
	}
	return strings.Join(parts, "|")
}

// MemoryDescriptor mirrors EFI_MEMORY_DESCRIPTOR.
type MemoryDescriptor struct {
	Type      MemoryType
	_         uint32
	PhysStart uint64
	VirtStart uint64
	PageCount uint64
	Attribute MemoryAttribute
}

func (d MemoryDescriptor) End() uint64 {
	return d.PhysStart + d.PageCount*PageSize
}

func (d MemoryDescriptor) Contains(addr, size uint64) bool {
	return addr >= d.PhysStart && addr+size <= d.End() && addr+size >= addr
}

type MemProt int

const (
	MEM_PROT_NONE MemProt = 0
	MEM_PROT_READ MemProt = 1 << (iota - 1)
	MEM_PROT_WRITE
	MEM_PROT_EXEC

	MEM_PROT_ALL = MEM_PROT_READ | MEM_PROT_WRITE | MEM_PROT_EXEC
)

func (p MemProt) String() string {
	b := []byte("---")
	if p&MEM_PROT_READ != 0 {
		b[0] = 'r'
	}
	if p&MEM_PROT_WRITE != 0 {
		b[1] = 'w'
	}
	if p&MEM_PROT_EXEC != 0 {
		b[2] = 'x'
	}
	return string(b)
}
