package bootloader_test

import (
	"bytes"
	"debug/elf"
	"strings"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
	"github.com/wnxd/efiboot/bootloader"
	"github.com/wnxd/efiboot/filesystem"
	"github.com/wnxd/efiboot/firmware"
	"github.com/wnxd/efiboot/internal/elfbuild"
	ibl "github.com/wnxd/efiboot/internal/bootloader"
	"github.com/wnxd/efiboot/internal/sim"
	"github.com/wnxd/efiboot/loader"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type rig struct {
	m       *sim.Machine
	vol     *filesystem.MemoryFS
	console bytes.Buffer
	loader  *ibl.Loader
	// handoff is what the kernel stub found at its argument.
	handoff *bootloader.HandoffState
}

func newRig(t *testing.T, kernel []byte, opts ...bootloader.Option) *rig {
	t.Helper()
	r := &rig{vol: filesystem.NewMemoryFS()}
	if kernel != nil {
		require.NoError(t, r.vol.WriteFile(`\kernel.elf`, kernel, 0o644))
	}
	m, err := sim.New(sim.Config{MemorySize: 16 << 20, Volume: r.vol, Console: &r.console})
	require.NoError(t, err)
	m.DefaultKernel = func(m *sim.Machine, arg uint64) {
		state, err := bootloader.ReadHandoff(m.Memory(), arg)
		if err == nil {
			r.handoff = state
		}
	}
	r.m = m
	r.loader = ibl.New(m, bootloader.NewOptions(opts...))
	return r
}

func (r *rig) boot() sim.Result {
	return r.m.Run(func(firmware.Platform) error {
		return r.loader.Boot()
	})
}

func fill(n int, b byte) []byte {
	return bytes.Repeat([]byte{b}, n)
}

func singleSegment() []byte {
	return elfbuild.Image{
		Entry:    0x100000,
		Segments: []elfbuild.Segment{{Addr: 0x100000, Data: fill(4096, 0x90)}},
	}.Bytes()
}

func TestBootSingleSegment(t *testing.T) {
	r := newRig(t, singleSegment())
	res := r.boot()
	require.False(t, res.Returned, "boot returned: %v", res.Err)
	require.True(t, res.Entered)
	require.True(t, res.Halted)
	require.Equal(t, uint64(0x100000), res.Entry)
	require.Equal(t, bootloader.StateEntered, r.loader.State())
	require.True(t, r.m.Services().Exited())

	got, err := r.m.Memory().MemRead(0x100000, 4096)
	require.NoError(t, err)
	require.Equal(t, fill(4096, 0x90), got)

	require.NotNil(t, r.handoff, "kernel found no handoff block at %#x", res.Arg)
	require.Equal(t, uint64(0x100000), r.handoff.Entry)
	require.Equal(t, loader.Span{Low: 0x100000, High: 0x101000}, r.handoff.Image)
	require.NotZero(t, r.handoff.RuntimeTable)
	if diff := cmp.Diff(r.m.Services().Regions(), r.handoff.Regions, cmpopts.IgnoreUnexported(firmware.MemoryDescriptor{})); diff != "" {
		t.Fatalf("handoff map is not the map at exit (-want +got):\n%s", diff)
	}

	var code *firmware.MemoryDescriptor
	for i, d := range r.handoff.Regions {
		if d.Contains(0x100000, 0x1000) {
			code = &r.handoff.Regions[i]
		}
	}
	require.NotNil(t, code, spew.Sdump(r.handoff.Regions))
	require.Equal(t, firmware.LoaderCode, code.Type)
	require.Equal(t, uint64(0x100000), code.PhysStart)
	require.Equal(t, uint64(1), code.PageCount)

	var pageAllocs int
	for _, call := range r.m.Services().Trace() {
		if call == "AllocatePages" {
			pageAllocs++
		}
	}
	require.Equal(t, 1, pageAllocs, spew.Sdump(r.m.Services().Trace()))
}

func TestBootZeroFillsTail(t *testing.T) {
	r := newRig(t, elfbuild.Image{
		Entry: 0x100010,
		Segments: []elfbuild.Segment{
			{Addr: 0x100000, Data: fill(100, 0xaa), MemSize: 4096, Flags: elf.PF_R | elf.PF_W | elf.PF_X},
		},
	}.Bytes())
	require.NoError(t, r.m.RAM().MemSet(0x100000, 0x2000, 0xff))

	res := r.boot()
	require.True(t, res.Entered, "boot failed: %v", res.Err)
	require.Equal(t, uint64(0x100010), res.Entry)

	got, _ := r.m.Memory().MemRead(0x100000, 100)
	require.Equal(t, fill(100, 0xaa), got)
	got, _ = r.m.Memory().MemRead(0x100000+100, 4096-100)
	require.Equal(t, make([]byte, 4096-100), got)
	got, _ = r.m.Memory().MemRead(0x101000, 1)
	require.Equal(t, []byte{0xff}, got, "bytes past the segment are not the loader's")
}

func TestBootAllocationConflict(t *testing.T) {
	r := newRig(t, singleSegment())
	_, err := r.m.Services().AllocatePages(firmware.AllocateAddress, firmware.BootServicesData, 1, 0x100000)
	require.NoError(t, err)

	res := r.boot()
	require.True(t, res.Returned)
	require.False(t, res.Entered)
	require.ErrorIs(t, res.Err, bootloader.ErrAllocationConflict)
	require.ErrorIs(t, res.Err, firmware.StatusNotFound)
	require.Equal(t, bootloader.StateImageLoaded, r.loader.State())
	require.False(t, r.m.Services().Exited())
}

func TestBootAllocatesWholeSpan(t *testing.T) {
	r := newRig(t, elfbuild.Image{
		Entry: 0x100200,
		Segments: []elfbuild.Segment{
			{Addr: 0x100100, Data: fill(0x100, 1)},
			{Addr: 0x102000, Data: fill(0x10, 2), MemSize: 0x1001},
		},
	}.Bytes())
	res := r.boot()
	require.True(t, res.Entered, "boot failed: %v", res.Err)

	var pages uint64
	for _, d := range r.handoff.Regions {
		if d.Type == firmware.LoaderCode && d.PhysStart == 0x100000 {
			pages = d.PageCount
		}
	}
	require.Equal(t, uint64(4), pages, spew.Sdump(r.handoff.Regions))
}

func TestBootDeviceErrors(t *testing.T) {
	r := newRig(t, nil)
	res := r.boot()
	require.True(t, res.Returned)
	require.ErrorIs(t, res.Err, bootloader.ErrDeviceError)
	require.ErrorIs(t, res.Err, firmware.StatusNotFound)
	require.Equal(t, bootloader.StateMapCaptured, r.loader.State())

	m, err := sim.New(sim.Config{MemorySize: 16 << 20})
	require.NoError(t, err)
	l := ibl.New(m, bootloader.NewOptions())
	res = m.Run(func(firmware.Platform) error { return l.Boot() })
	require.ErrorIs(t, res.Err, bootloader.ErrDeviceError)
	require.ErrorIs(t, res.Err, firmware.StatusUnsupported)
}

func TestBootCorruptImage(t *testing.T) {
	for name, kernel := range map[string][]byte{
		"garbage": []byte("not an executable at all"),
		"empty":   {},
		"aarch64": elfbuild.Image{
			Machine:  elf.EM_AARCH64,
			Entry:    0x100000,
			Segments: []elfbuild.Segment{{Addr: 0x100000, Data: fill(16, 1)}},
		}.Bytes(),
		"overlap": elfbuild.Image{
			Entry: 0x100000,
			Segments: []elfbuild.Segment{
				{Addr: 0x100000, Data: fill(0x100, 1)},
				{Addr: 0x1000f0, Data: fill(0x100, 2)},
			},
		}.Bytes(),
		"entry": elfbuild.Image{
			Entry:    0x200000,
			Segments: []elfbuild.Segment{{Addr: 0x100000, Data: fill(16, 1)}},
		}.Bytes(),
	} {
		t.Run(name, func(t *testing.T) {
			r := newRig(t, kernel)
			res := r.boot()
			require.True(t, res.Returned)
			require.ErrorIs(t, res.Err, bootloader.ErrCorruptImage)
			require.Equal(t, bootloader.StateMapCaptured, r.loader.State())
			require.False(t, r.m.Services().Exited())
		})
	}
}

func TestStaleMapKeyFailsTermination(t *testing.T) {
	r := newRig(t, singleSegment())
	r.m.Services().AfterMemoryMap = func(s *sim.Services) {
		if r.loader.State() == bootloader.StateAddressFinalized {
			s.AllocatePages(firmware.AllocateAnyPages, firmware.BootServicesData, 1, 0)
		}
	}
	res := r.boot()
	require.True(t, res.Returned)
	require.False(t, res.Entered)
	require.ErrorIs(t, res.Err, bootloader.ErrServiceTermination)
	require.ErrorIs(t, res.Err, firmware.StatusInvalidParameter)
	require.Equal(t, bootloader.StateAddressFinalized, r.loader.State())
	require.False(t, r.m.Services().Exited())

	calls := len(r.m.Services().Trace())
	require.Equal(t, res.Err, r.loader.Step())
	require.Equal(t, res.Err, r.loader.Boot())
	require.Len(t, r.m.Services().Trace(), calls, "a failed boot must not call firmware again")
	require.False(t, r.m.Services().Exited())
}

// brokenMap fails every memory map query with a device error.
type brokenMap struct {
	firmware.BootServices
}

func (brokenMap) MemoryMap([]byte) (firmware.MapInfo, error) {
	return firmware.MapInfo{}, firmware.StatusDeviceError
}

type brokenMapPlatform struct {
	*sim.Machine
}

func (p brokenMapPlatform) BootServices() firmware.BootServices {
	return brokenMap{p.Machine.BootServices()}
}

func TestMapQueryFailure(t *testing.T) {
	r := newRig(t, singleSegment())
	l := ibl.New(brokenMapPlatform{r.m}, bootloader.NewOptions())
	res := r.m.Run(func(firmware.Platform) error { return l.Boot() })
	require.True(t, res.Returned)
	require.ErrorIs(t, res.Err, bootloader.ErrDeviceError)
	require.ErrorIs(t, res.Err, firmware.StatusDeviceError)
	require.NotErrorIs(t, res.Err, bootloader.ErrAllocationConflict)
	require.Equal(t, bootloader.StateInit, l.State())
	require.NotContains(t, r.m.Services().Trace(), "AllocatePool")
}

func TestNothingBetweenSnapshotAndTermination(t *testing.T) {
	r := newRig(t, singleSegment())
	res := r.boot()
	require.True(t, res.Entered, "boot failed: %v", res.Err)

	trace := r.m.Services().Trace()
	n := len(trace)
	require.GreaterOrEqual(t, n, 3)
	require.Equal(t, []string{"ConOut", "MemoryMap", "ExitBootServices"}, trace[n-3:], spew.Sdump(trace))

	out := strings.TrimRight(r.console.String(), "\n")
	require.True(t, strings.HasSuffix(out, "exiting boot services"), out)
}

func TestMemoryMapDump(t *testing.T) {
	r := newRig(t, singleSegment())
	res := r.boot()
	require.True(t, res.Entered, "boot failed: %v", res.Err)

	data, err := r.vol.ReadFile("memmap")
	require.NoError(t, err)
	regions, err := bootloader.ReadMemoryMap(bytes.NewReader(data))
	require.NoError(t, err)
	require.NotEmpty(t, regions)

	var buf bytes.Buffer
	require.NoError(t, bootloader.WriteMemoryMap(&buf, regions))
	require.Equal(t, string(data), buf.String())
	for _, d := range regions {
		require.False(t, d.Type == firmware.LoaderCode && d.PhysStart == 0x100000, "the dump precedes image placement")
	}
}

func TestMemoryMapDumpOptional(t *testing.T) {
	r := newRig(t, singleSegment(), bootloader.WithMemoryMapDump(false))
	require.True(t, r.boot().Entered)
	_, err := r.vol.ReadFile("memmap")
	require.Error(t, err)

	r = newRig(t, singleSegment())
	require.NoError(t, r.vol.WriteFile("memmap", nil, 0o444))
	res := r.boot()
	require.True(t, res.Entered, "a failed dump must not stop the boot: %v", res.Err)
	require.Contains(t, r.console.String(), "memory map dump failed")
}

func TestCustomKernelPath(t *testing.T) {
	r := newRig(t, nil, bootloader.WithKernelPath(`\EFI\efiboot\kernel`))
	require.NoError(t, r.vol.WriteFile("EFI/efiboot/kernel", singleSegment(), 0o644))
	res := r.boot()
	require.True(t, res.Entered, "boot failed: %v", res.Err)
}
