package firmware

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wnxd/efiboot/encoding"
)

type flatMemory []byte

func (m flatMemory) MemRead(addr, size uint64) ([]byte, error) {
	if addr+size > uint64(len(m)) {
		return nil, fmt.Errorf("read %#x+%#x: %w", addr, size, StatusInvalidParameter)
	}
	return m[addr : addr+size], nil
}

func (m flatMemory) MemWrite(addr uint64, data []byte) error {
	if addr+uint64(len(data)) > uint64(len(m)) {
		return StatusInvalidParameter
	}
	copy(m[addr:], data)
	return nil
}

func (m flatMemory) MemSet(addr, size uint64, value byte) error {
	if addr+size > uint64(len(m)) {
		return StatusInvalidParameter
	}
	for i := range m[addr : addr+size] {
		m[addr+uint64(i)] = value
	}
	return nil
}

func TestMemoryMapStride(t *testing.T) {
	descs := []MemoryDescriptor{
		{Type: ConventionalMemory, PhysStart: 0, PageCount: 0xa0, Attribute: MemoryWB},
		{Type: ReservedMemoryType, PhysStart: 0xa0000, PageCount: 0x60, Attribute: MemoryUC},
		{Type: RuntimeServicesData, PhysStart: 0x7f000000, PageCount: 4, Attribute: MemoryWB | MemoryRuntime},
	}
	require.Equal(t, 40, DescriptorSize)

	buf := make([]byte, 4096)
	size, err := EncodeMemoryMap(buf, descs, 48)
	require.NoError(t, err)
	require.Equal(t, 3*48, size)

	got, err := DecodeMemoryMap(buf, MapInfo{Size: size, DescriptorSize: 48, DescriptorVersion: DescriptorVersion})
	require.NoError(t, err)
	require.Equal(t, descs, got)

	_, err = EncodeMemoryMap(buf[:100], descs, 48)
	require.ErrorIs(t, err, StatusBufferTooSmall)
	_, err = DecodeMemoryMap(buf, MapInfo{Size: size, DescriptorSize: 32})
	require.ErrorIs(t, err, ErrDescriptorSize)
}

func TestMemoryTypeNames(t *testing.T) {
	require.Equal(t, "CONVENTIONAL", ConventionalMemory.String())
	require.Equal(t, "LOADER_CODE", LoaderCode.String())
	require.Equal(t, "MemoryType(0x70000000)", MemoryType(0x70000000).String())

	for typ := ReservedMemoryType; typ <= MemoryType(0x10); typ++ {
		got, ok := ParseMemoryType(typ.String())
		require.True(t, ok, typ.String())
		require.Equal(t, typ, got)
	}
	_, ok := ParseMemoryType("HEAP")
	require.False(t, ok)

	require.Equal(t, "WB|RUNTIME", (MemoryWB | MemoryRuntime).String())
	require.Equal(t, "UC|0x100", (MemoryUC | 0x100).String())
}

func TestPointerStream(t *testing.T) {
	mem := make(flatMemory, 0x2000)
	ptr := ToPointer(mem, 0x1000)
	d := MemoryDescriptor{Type: LoaderData, PhysStart: 0x1000, PageCount: 1}

	s := PointerStream(ptr)
	require.NoError(t, encoding.Encode(s, &d))
	require.Equal(t, uint64(DescriptorSize), s.Offset())

	var out MemoryDescriptor
	require.NoError(t, encoding.Decode(PointerStream(ptr), &out))
	require.Equal(t, d, out)

	require.NoError(t, ptr.Add(8).MemZero(8))
	raw, err := ptr.MemRead(16)
	require.NoError(t, err)
	require.Equal(t, make([]byte, 8), raw[8:])
}

func TestStatus(t *testing.T) {
	require.True(t, StatusNotFound.IsError())
	require.False(t, StatusSuccess.IsError())
	require.Equal(t, "not found", StatusNotFound.Error())
	require.Equal(t, "status 0x8000000000000063", Status(errorBit|0x63).Error())
}

func TestAlign(t *testing.T) {
	require.Equal(t, uint64(0x2000), Align(uint64(0x1001), PageSize))
	require.Equal(t, uint64(0x1000), Align(uint64(0x1000), PageSize))
	require.Equal(t, 16, Align(9, 8))
	require.Equal(t, uint64(0x1000), AlignDown(uint64(0x1fff), PageSize))
	require.Equal(t, uint64(0), Pages(0))
	require.Equal(t, uint64(1), Pages(1))
	require.Equal(t, uint64(2), Pages(PageSize+1))
}
