package bootloader

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/wnxd/efiboot/bootloader"
	"github.com/wnxd/efiboot/firmware"
	"go.uber.org/zap"
)

// Loader is the handoff controller. It owns the boot sequence and is the
// only code that talks to boot services.
type Loader struct {
	platform firmware.Platform
	bs       firmware.BootServices
	mem      firmware.Memory
	opts     bootloader.Options
	log      *zap.Logger
	state    bootloader.State
	err      error
	block    firmware.Buffer
	runtime  uint64
	snapshot
	volume
	kernel
}

var _ bootloader.Loader = (*Loader)(nil)

func New(platform firmware.Platform, opts bootloader.Options) *Loader {
	l := &Loader{
		platform: platform,
		bs:       platform.BootServices(),
		mem:      platform.Memory(),
		opts:     opts,
		log:      opts.Logger,
	}
	if l.log == nil {
		l.log = consoleLogger(platform.ConOut())
	}
	return l
}

func (l *Loader) State() bootloader.State {
	return l.state
}

func (l *Loader) advance(to bootloader.State) error {
	if !l.state.CanAdvance(to) {
		return fmt.Errorf("%w: %v -> %v", bootloader.ErrInvalidTransition, l.state, to)
	}
	l.state = to
	return nil
}

func (l *Loader) fail(op string, kind, err error) error {
	return &bootloader.Error{State: l.state, Op: op, Kind: kind, Err: err}
}

// Step runs the action that leads out of the current state. The first
// failure is final: every later Step returns it without touching firmware.
func (l *Loader) Step() error {
	if l.err == nil {
		l.err = l.step()
	}
	return l.err
}

func (l *Loader) step() error {
	var err error
	switch l.state {
	case bootloader.StateInit:
		err = l.captureMap()
	case bootloader.StateMapCaptured:
		err = l.loadImage()
	case bootloader.StateImageLoaded:
		err = l.finalize()
	case bootloader.StateAddressFinalized:
		err = l.terminate()
	case bootloader.StateServicesTerminated:
		// The jump does not return, so Entered is recorded first.
		if err = l.advance(bootloader.StateEntered); err == nil {
			l.enter()
		}
		return err
	default:
		return fmt.Errorf("%w: nothing follows %v", bootloader.ErrInvalidTransition, l.state)
	}
	if err != nil {
		return err
	}
	return l.advance(l.state.Next())
}

func (l *Loader) Boot() error {
	for l.state < bootloader.StateEntered {
		if err := l.Step(); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loader) captureMap() error {
	required, err := l.snapshot.query(l.bs)
	if err != nil {
		return l.fail("query memory map size", bootloader.ErrDeviceError, err)
	}
	if err = l.snapshot.reserve(l.bs, l.opts.MapBufferSize(required)); err != nil {
		return l.fail("reserve memory map buffer", bootloader.ErrAllocationConflict, err)
	}
	if err = l.snapshot.refresh(l.bs); err != nil {
		return l.fail("capture memory map", bootloader.ErrDeviceError, err)
	}
	l.log.Info("memory map captured",
		zap.Int("regions", l.info.Count()),
		zap.Int("descriptor_size", l.info.DescriptorSize),
		zap.String("buffer", humanize.IBytes(l.snapshot.buf.Size())))
	return nil
}

func (l *Loader) loadImage() error {
	if err := l.volume.mount(l.bs, l.platform.ImageHandle()); err != nil {
		return l.fail("open boot volume", bootloader.ErrDeviceError, err)
	}
	defer l.volume.unmount()
	if l.opts.DumpMemoryMap {
		if err := l.dumpMemoryMap(); err != nil {
			l.log.Warn("memory map dump failed", zap.String("path", l.opts.DumpPath), zap.Error(err))
		}
	}
	path := l.opts.KernelPath
	size, err := l.kernel.open(&l.volume, path)
	if err != nil {
		return l.fail("open "+path, bootloader.ErrDeviceError, err)
	}
	defer l.kernel.close()
	if err = l.kernel.alloc(l.bs, size); err != nil {
		return l.fail("read "+path, bootloader.ErrAllocationConflict, err)
	}
	if err = l.kernel.read(&l.volume, path); err != nil {
		return l.fail("read "+path, bootloader.ErrDeviceError, err)
	}
	if err = l.kernel.parse(l.platform.Arch()); err != nil {
		return l.fail("parse "+path, bootloader.ErrCorruptImage, err)
	}
	l.log.Info("kernel image parsed",
		zap.String("path", path),
		zap.String("size", humanize.IBytes(size)),
		zap.Stringer("arch", l.image.Arch()),
		zap.Stringer("span", l.image.Span()),
		zap.String("entry", fmt.Sprintf("%#x", l.image.Entry())))
	for _, seg := range l.image.Segments() {
		l.log.Debug("segment", zap.Stringer("segment", seg))
	}
	return nil
}

func (l *Loader) dumpMemoryMap() error {
	regions, err := l.snapshot.regions()
	if err != nil {
		return err
	}
	return l.volume.write(l.opts.DumpPath, func(w io.Writer) error {
		return bootloader.WriteMemoryMap(w, regions)
	})
}

func (l *Loader) finalize() error {
	if err := l.kernel.reserve(l.bs); err != nil {
		return l.fail("allocate image range", bootloader.ErrAllocationConflict, err)
	}
	if err := l.kernel.place(l.mem); err != nil {
		return l.fail("copy segments", bootloader.ErrCorruptImage, err)
	}
	if err := l.kernel.releaseScratch(l.bs); err != nil {
		l.log.Warn("scratch buffer not freed", zap.Error(err))
	}
	block, err := l.bs.AllocatePool(firmware.LoaderData, uint64(bootloader.HandoffBlockSize))
	if err != nil {
		return l.fail("allocate handoff block", bootloader.ErrAllocationConflict, err)
	}
	l.block = block
	if err = l.handoffBlock().WriteTo(l.mem, l.block.Addr); err != nil {
		return l.fail("write handoff block", bootloader.ErrDeviceError, err)
	}
	l.log.Info("image placed",
		zap.Stringer("range", l.kernel.span()),
		zap.Uint64("pages", l.kernel.span().Pages(firmware.PageSize)),
		zap.String("handoff", fmt.Sprintf("%#x", l.block.Addr)))
	return nil
}

// terminate takes the authoritative memory map and exits boot services
// with its key. Nothing may run between the two calls: any firmware
// allocation, console output included, would invalidate the key.
func (l *Loader) terminate() error {
	l.log.Info("exiting boot services")
	if err := l.snapshot.refresh(l.bs); err != nil {
		return l.fail("refresh memory map", bootloader.ErrServiceTermination, err)
	}
	rt, err := l.bs.ExitBootServices(l.platform.ImageHandle(), l.snapshot.key())
	if err != nil {
		return l.fail(fmt.Sprintf("exit boot services with key %#x", uint64(l.snapshot.key())), bootloader.ErrServiceTermination, err)
	}
	l.log = zap.NewNop()
	l.runtime = rt
	return nil
}

// enter writes the final handoff block and jumps to the kernel. Nothing
// can be reported from here on, so it never returns.
func (l *Loader) enter() {
	if err := l.handoffBlock().WriteTo(l.mem, l.block.Addr); err == nil {
		l.platform.Jump(l.image.Entry(), l.block.Addr)
	}
	for {
		l.platform.Halt()
	}
}

func (l *Loader) handoffBlock() *bootloader.HandoffBlock {
	span := l.image.Span()
	return &bootloader.HandoffBlock{
		Magic:             bootloader.HandoffMagic,
		Version:           bootloader.HandoffVersion,
		DescriptorVersion: l.info.DescriptorVersion,
		DescriptorSize:    uint64(l.info.DescriptorSize),
		MapAddr:           l.snapshot.buf.Addr,
		MapSize:           uint64(l.info.Size),
		RuntimeTable:      l.runtime,
		ImageBase:         span.Low,
		ImageEnd:          span.High,
		Entry:             l.image.Entry(),
	}
}
