package boot_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wnxd/efiboot/boot"
	"github.com/wnxd/efiboot/bootloader"
	"github.com/wnxd/efiboot/filesystem"
	"github.com/wnxd/efiboot/firmware"
	"github.com/wnxd/efiboot/internal/elfbuild"
	"github.com/wnxd/efiboot/internal/sim"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func machine(t *testing.T, console *bytes.Buffer, kernel []byte) *sim.Machine {
	t.Helper()
	vol := filesystem.NewMemoryFS()
	if kernel != nil {
		require.NoError(t, vol.WriteFile("kernel.elf", kernel, 0o644))
	}
	m, err := sim.New(sim.Config{MemorySize: 8 << 20, Volume: vol, Console: console})
	require.NoError(t, err)
	return m
}

func run(m *sim.Machine, opts ...bootloader.Option) sim.Result {
	return m.Run(func(p firmware.Platform) error {
		boot.Main(p, opts...)
		return nil
	})
}

func TestMainEntersKernel(t *testing.T) {
	var console bytes.Buffer
	m := machine(t, &console, elfbuild.Image{
		Entry:    0x200000,
		Segments: []elfbuild.Segment{{Addr: 0x200000, Data: elfbuild.HaltLoop}},
	}.Bytes())

	var arg uint64
	m.RegisterKernel(0x200000, func(m *sim.Machine, a uint64) { arg = a })
	res := run(m)
	require.True(t, res.Entered)
	require.Equal(t, res.Arg, arg)
	require.NotContains(t, console.String(), "boot failed")

	code, err := m.Memory().MemRead(0x200000, uint64(len(elfbuild.HaltLoop)))
	require.NoError(t, err)
	require.Equal(t, elfbuild.HaltLoop, code)
}

func TestMainParksOnFailure(t *testing.T) {
	var console bytes.Buffer
	m := machine(t, &console, nil)
	res := run(m, bootloader.WithMemoryMapDump(false))
	require.False(t, res.Returned)
	require.False(t, res.Entered)
	require.True(t, res.Halted)
	require.Contains(t, console.String(), "boot failed: device error\r\n")
	require.Contains(t, console.String(), "device error")
	require.Contains(t, console.String(), "not found")
}
