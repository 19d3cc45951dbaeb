package bootloader

import (
	"fmt"

	"go.uber.org/zap"
)

const (
	DefaultKernelPath      = `\kernel.elf`
	DefaultDumpPath        = `\memmap`
	DefaultMapBufferFactor = 4
	DefaultMinMapBuffer    = 16 << 10
)

// Options are compiled into the loader. There is no loader command line.
type Options struct {
	KernelPath string
	DumpPath   string
	// DumpMemoryMap writes the early memory map snapshot to DumpPath on the
	// boot volume. A failed dump is logged and boot continues.
	DumpMemoryMap bool
	// MapBufferFactor scales the size the firmware reports for the memory
	// map so that allocations made while booting still fit on refresh.
	MapBufferFactor int
	MinMapBuffer    int
	// Logger writes to the firmware console when nil.
	Logger *zap.Logger
}

// Option is the property setter function for Options.
type Option func(*Options)

func DefaultOptions() Options {
	return Options{
		KernelPath:      DefaultKernelPath,
		DumpPath:        DefaultDumpPath,
		DumpMemoryMap:   true,
		MapBufferFactor: DefaultMapBufferFactor,
		MinMapBuffer:    DefaultMinMapBuffer,
	}
}

func NewOptions(opts ...Option) Options {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func WithKernelPath(path string) Option {
	return func(o *Options) { o.KernelPath = path }
}

func WithDumpPath(path string) Option {
	return func(o *Options) { o.DumpPath = path }
}

func WithMemoryMapDump(enabled bool) Option {
	return func(o *Options) { o.DumpMemoryMap = enabled }
}

func WithMapBufferFactor(factor int) Option {
	if factor < 1 {
		panic(fmt.Sprintf("bootloader: invalid map buffer factor: %d", factor))
	}
	return func(o *Options) { o.MapBufferFactor = factor }
}

func WithMinMapBuffer(size int) Option {
	if size < 0 {
		panic(fmt.Sprintf("bootloader: invalid minimum map buffer: %d", size))
	}
	return func(o *Options) { o.MinMapBuffer = size }
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) { o.Logger = logger }
}

// MapBufferSize is the reserved memory map buffer size for a map that
// currently needs required bytes.
func (o Options) MapBufferSize(required int) int {
	return max(o.MinMapBuffer, o.MapBufferFactor*required)
}
