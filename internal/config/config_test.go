package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wnxd/efiboot/bootloader"
	"github.com/wnxd/efiboot/firmware"
	"github.com/wnxd/efiboot/internal/sim"
)

const machineYAML = `
arch: x86_64
memory: 32MiB
descriptor_size: 40
regions:
  - type: CONVENTIONAL
    start: 0x0
    pages: 4096
    attribute: 0x8
  - type: RUNTIME_SERVICES_DATA
    start: 0x1000000
    pages: 16
    attribute: 0x8000000000000008
loader:
  kernel: '\boot\kernel.elf'
  dump: false
`

func TestDefault(t *testing.T) {
	m := Default()
	require.NoError(t, m.Validate())
	size, err := m.MemorySize()
	require.NoError(t, err)
	require.Equal(t, uint64(16<<20), size)

	descs, err := m.Descriptors()
	require.NoError(t, err)
	require.Nil(t, descs)

	o := bootloader.NewOptions(m.Options()...)
	require.Equal(t, bootloader.DefaultOptions().KernelPath, o.KernelPath)
	require.True(t, o.DumpMemoryMap)
}

func TestParse(t *testing.T) {
	m, err := Parse([]byte(machineYAML))
	require.NoError(t, err)

	cfg, err := m.SimConfig()
	require.NoError(t, err)
	require.Equal(t, firmware.ARCH_X86_64, cfg.Arch)
	require.Equal(t, uint64(32<<20), cfg.MemorySize)
	require.Equal(t, 40, cfg.DescriptorSize)
	require.Len(t, cfg.Regions, 2)
	require.Equal(t, firmware.RuntimeServicesData, cfg.Regions[1].Type)
	require.Equal(t, firmware.MemoryWB|firmware.MemoryRuntime, cfg.Regions[1].Attribute)

	o := bootloader.NewOptions(m.Options()...)
	require.Equal(t, `\boot\kernel.elf`, o.KernelPath)
	require.False(t, o.DumpMemoryMap)
	require.Equal(t, bootloader.DefaultMapBufferFactor, o.MapBufferFactor)

	machine, err := sim.New(cfg)
	require.NoError(t, err)
	require.Equal(t, firmware.ARCH_X86_64, machine.Arch())
}

func TestParseRejects(t *testing.T) {
	for name, input := range map[string]string{
		"arch":      "arch: mips\n",
		"memory":    "memory: lots\n",
		"small":     "memory: 1MiB\n",
		"stride":    "descriptor_size: 24\n",
		"factor":    "loader:\n  map_buffer_factor: 0\n",
		"type":      "regions:\n  - {type: RAM, start: 0, pages: 1}\n",
		"unaligned": "regions:\n  - {type: CONVENTIONAL, start: 0x10, pages: 1}\n",
		"overlap":   "regions:\n  - {type: CONVENTIONAL, start: 0, pages: 2}\n  - {type: LOADER_CODE, start: 0x1000, pages: 1}\n",
		"not yaml":  "arch: [\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(input))
			require.Error(t, err)
		})
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "machine.yaml")
	m, err := Parse([]byte(machineYAML))
	require.NoError(t, err)
	require.NoError(t, m.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, m, loaded)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
