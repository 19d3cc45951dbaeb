// Package config describes a simulated machine in YAML.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/wnxd/efiboot/bootloader"
	"github.com/wnxd/efiboot/firmware"
	"github.com/wnxd/efiboot/internal/sim"
	"gopkg.in/yaml.v3"
)

var (
	ErrArch   = errors.New("unknown architecture")
	ErrRegion = errors.New("invalid region")
)

// Machine is the YAML machine description.
type Machine struct {
	Arch   string `yaml:"arch"`
	Memory string `yaml:"memory"` // e.g. "16MiB"
	// DescriptorSize is the memory map stride the firmware reports.
	DescriptorSize int          `yaml:"descriptor_size"`
	Regions        []Region     `yaml:"regions,omitempty"`
	Loader         LoaderConfig `yaml:"loader"`
}

// Region overrides the default layout when any are given.
type Region struct {
	Type      string `yaml:"type"`
	Start     uint64 `yaml:"start"`
	Pages     uint64 `yaml:"pages"`
	Attribute uint64 `yaml:"attribute"`
}

type LoaderConfig struct {
	Kernel          string `yaml:"kernel"`
	Dump            bool   `yaml:"dump"`
	DumpPath        string `yaml:"dump_path"`
	MapBufferFactor int    `yaml:"map_buffer_factor"`
}

func Default() *Machine {
	opts := bootloader.DefaultOptions()
	return &Machine{
		Arch:           firmware.ARCH_X86_64.String(),
		Memory:         "16MiB",
		DescriptorSize: sim.DefaultDescriptorSize,
		Loader: LoaderConfig{
			Kernel:          opts.KernelPath,
			Dump:            opts.DumpMemoryMap,
			DumpPath:        opts.DumpPath,
			MapBufferFactor: opts.MapBufferFactor,
		},
	}
}

// Load reads a machine description. Missing keys keep their defaults.
func Load(path string) (*Machine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Machine, error) {
	m := Default()
	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Machine) Save(path string) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func (m *Machine) Validate() error {
	if _, err := m.arch(); err != nil {
		return err
	}
	size, err := m.MemorySize()
	if err != nil {
		return err
	}
	if size < sim.MinMemorySize {
		return fmt.Errorf("%w: %s", sim.ErrMemorySize, m.Memory)
	}
	if m.DescriptorSize < firmware.DescriptorSize {
		return fmt.Errorf("descriptor_size %d: %w", m.DescriptorSize, firmware.ErrDescriptorSize)
	}
	if m.Loader.MapBufferFactor < 1 {
		return fmt.Errorf("map_buffer_factor %d must be at least 1", m.Loader.MapBufferFactor)
	}
	_, err = m.Descriptors()
	return err
}

func (m *Machine) arch() (firmware.Arch, error) {
	arch := firmware.ParseArch(m.Arch)
	if arch == firmware.ARCH_UNKNOWN {
		return arch, fmt.Errorf("%w: %q", ErrArch, m.Arch)
	}
	return arch, nil
}

func (m *Machine) MemorySize() (uint64, error) {
	size, err := humanize.ParseBytes(m.Memory)
	if err != nil {
		return 0, fmt.Errorf("memory %q: %w", m.Memory, err)
	}
	return size, nil
}

// Descriptors returns the configured regions, or nil for the default layout.
func (m *Machine) Descriptors() ([]firmware.MemoryDescriptor, error) {
	if len(m.Regions) == 0 {
		return nil, nil
	}
	descs := make([]firmware.MemoryDescriptor, len(m.Regions))
	for i, r := range m.Regions {
		typ, ok := firmware.ParseMemoryType(r.Type)
		if !ok {
			return nil, fmt.Errorf("%w %d: type %q", ErrRegion, i, r.Type)
		}
		if r.Start%firmware.PageSize != 0 || r.Pages == 0 {
			return nil, fmt.Errorf("%w %d: start %#x pages %d", ErrRegion, i, r.Start, r.Pages)
		}
		descs[i] = firmware.MemoryDescriptor{
			Type:      typ,
			PhysStart: r.Start,
			PageCount: r.Pages,
			Attribute: firmware.MemoryAttribute(r.Attribute),
		}
		for _, prev := range descs[:i] {
			if prev.PhysStart < descs[i].End() && descs[i].PhysStart < prev.End() {
				return nil, fmt.Errorf("%w %d: overlaps region at %#x", ErrRegion, i, prev.PhysStart)
			}
		}
	}
	return descs, nil
}

// SimConfig builds the simulator configuration. Volume and console are
// left for the caller.
func (m *Machine) SimConfig() (sim.Config, error) {
	arch, err := m.arch()
	if err != nil {
		return sim.Config{}, err
	}
	size, err := m.MemorySize()
	if err != nil {
		return sim.Config{}, err
	}
	regions, err := m.Descriptors()
	if err != nil {
		return sim.Config{}, err
	}
	return sim.Config{
		Arch:           arch,
		MemorySize:     size,
		Regions:        regions,
		DescriptorSize: m.DescriptorSize,
	}, nil
}

func (m *Machine) Options() []bootloader.Option {
	opts := []bootloader.Option{
		bootloader.WithMemoryMapDump(m.Loader.Dump),
		bootloader.WithMapBufferFactor(m.Loader.MapBufferFactor),
	}
	if m.Loader.Kernel != "" {
		opts = append(opts, bootloader.WithKernelPath(m.Loader.Kernel))
	}
	if m.Loader.DumpPath != "" {
		opts = append(opts, bootloader.WithDumpPath(m.Loader.DumpPath))
	}
	return opts
}
