// Package sim is a software machine that boots a loader off firmware: flat
// physical memory, boot services over a descriptor list and kernel stubs
// that stand in for code at an entry address.
package sim

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"runtime"

	"github.com/wnxd/efiboot/filesystem"
	"github.com/wnxd/efiboot/firmware"
)

const (
	DefaultDescriptorSize = 48
	DefaultLoaderSize     = 64 << 10

	imageHandle  firmware.Handle = 1
	deviceHandle firmware.Handle = 2

	systemTableSignature = 0x5453595320494249 // "IBI SYST"
)

var ErrMemorySize = errors.New("memory size too small")

type Config struct {
	Arch       firmware.Arch
	MemorySize uint64
	// Regions defaults to DefaultRegions(MemorySize).
	Regions        []firmware.MemoryDescriptor
	DescriptorSize int
	// Volume is the boot device. Without one the device handle carries no
	// file system protocol.
	Volume     filesystem.FS
	Console    io.Writer
	LoaderSize uint64
}

// Kernel stands in for the code at an entry address. It runs in place of
// the jump and the machine halts when it returns.
type Kernel func(m *Machine, arg uint64)

type Machine struct {
	arch    firmware.Arch
	mem     *Memory
	svc     *Services
	console io.Writer
	kernels map[uint64]Kernel
	result  Result

	// DefaultKernel runs for entries with no registered kernel.
	DefaultKernel Kernel
}

// Result is what became of one Run.
type Result struct {
	// Err is what the image returned, if it returned.
	Err      error
	Returned bool
	Entered  bool
	Entry    uint64
	Arg      uint64
	Halted   bool
}

func New(cfg Config) (*Machine, error) {
	if cfg.Arch == firmware.ARCH_UNKNOWN {
		cfg.Arch = firmware.ARCH_X86_64
	}
	if cfg.MemorySize < MinMemorySize {
		return nil, fmt.Errorf("%w: %d < %d", ErrMemorySize, cfg.MemorySize, MinMemorySize)
	}
	if cfg.Regions == nil {
		cfg.Regions = DefaultRegions(cfg.MemorySize)
	}
	if cfg.DescriptorSize == 0 {
		cfg.DescriptorSize = DefaultDescriptorSize
	}
	if cfg.DescriptorSize < firmware.DescriptorSize {
		return nil, firmware.ErrDescriptorSize
	}
	if cfg.Console == nil {
		cfg.Console = io.Discard
	}
	if cfg.LoaderSize == 0 {
		cfg.LoaderSize = DefaultLoaderSize
	}
	m := &Machine{
		arch:    cfg.Arch,
		mem:     NewMemory(cfg.MemorySize),
		console: cfg.Console,
		kernels: make(map[uint64]Kernel),
	}
	m.svc = newServices(m.mem, cfg.Regions, cfg.DescriptorSize)
	m.svc.image = imageHandle
	m.svc.runtime = m.installSystemTable()

	base, err := m.svc.allocate(firmware.AllocateAnyPages, firmware.LoaderCode, firmware.Pages(cfg.LoaderSize), 0)
	if err != nil {
		return nil, fmt.Errorf("place loader image: %w", err)
	}
	m.svc.install(imageHandle, firmware.LoadedImageProtocol, &loadedImage{deviceHandle, base, cfg.LoaderSize})
	if cfg.Volume != nil {
		m.svc.install(deviceHandle, firmware.SimpleFileSystemProtocol, &simpleFileSystem{cfg.Volume})
	}
	return m, nil
}

// installSystemTable writes a table signature at the base of the first
// backed runtime data region and returns its address.
func (m *Machine) installSystemTable() uint64 {
	for _, r := range m.svc.regions {
		if r.Type != firmware.RuntimeServicesData {
			continue
		}
		sig := binary.LittleEndian.AppendUint64(nil, systemTableSignature)
		if m.mem.MemWrite(r.PhysStart, sig) == nil {
			return r.PhysStart
		}
	}
	return 0
}

func (m *Machine) Arch() firmware.Arch {
	return m.arch
}

func (m *Machine) ImageHandle() firmware.Handle {
	return imageHandle
}

func (m *Machine) BootServices() firmware.BootServices {
	return m.svc
}

// Services is BootServices with the simulator's inspection helpers.
func (m *Machine) Services() *Services {
	return m.svc
}

func (m *Machine) Memory() firmware.Memory {
	return m.mem
}

func (m *Machine) RAM() *Memory {
	return m.mem
}

func (m *Machine) ConOut() io.Writer {
	return conOut{m}
}

// RegisterKernel makes k run when control reaches entry.
func (m *Machine) RegisterKernel(entry uint64, k Kernel) {
	m.kernels[entry] = k
}

func (m *Machine) Jump(entry, arg uint64) {
	m.result.Entered = true
	m.result.Entry = entry
	m.result.Arg = arg
	if k, ok := m.kernels[entry]; ok {
		k(m, arg)
	} else if m.DefaultKernel != nil {
		m.DefaultKernel(m, arg)
	}
	m.Halt()
}

// Halt ends the goroutine started by Run. It must only be called from there.
func (m *Machine) Halt() {
	m.result.Halted = true
	runtime.Goexit()
}

// Run calls image on its own goroutine, the way firmware calls an image
// entry point, and waits until it returns or the machine halts.
func (m *Machine) Run(image func(firmware.Platform) error) Result {
	m.result = Result{}
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.result.Err = image(m)
		m.result.Returned = true
	}()
	<-done
	return m.result
}
