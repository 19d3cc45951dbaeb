package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/cpuid/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/arch/x86/x86asm"

	"github.com/wnxd/efiboot/boot"
	"github.com/wnxd/efiboot/bootloader"
	"github.com/wnxd/efiboot/filesystem"
	"github.com/wnxd/efiboot/firmware"
	"github.com/wnxd/efiboot/internal/config"
	"github.com/wnxd/efiboot/internal/memviz"
	"github.com/wnxd/efiboot/internal/sim"
)

var (
	runConfig string
	runVolume string
	runPNG    string
	runDisasm int
)

var errNotEntered = errors.New("kernel was not entered")

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Boot the kernel on the volume in a simulated machine",
	Long: `Boots a simulated machine with a host directory as its boot volume.

The loader's console output is printed as it runs. Once the kernel is
entered, the memory map it was handed is printed, optionally rendered to a
PNG, and the first instructions at the entry point are disassembled.

Example:
  bootsim run --volume ./esp --config machine.yaml --disasm 8 --png map.png`,
	Args: cobra.NoArgs,
	RunE: runBoot,
}

func init() {
	runCmd.Flags().StringVarP(&runConfig, "config", "c", "", "machine description (YAML)")
	runCmd.Flags().StringVar(&runVolume, "volume", ".", "host directory used as the boot volume")
	runCmd.Flags().StringVar(&runPNG, "png", "", "render the handed-off memory map to this PNG file")
	runCmd.Flags().IntVar(&runDisasm, "disasm", 0, "disassemble this many instructions at the entry point")
}

func loadMachine(path string) (*config.Machine, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func runBoot(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if verbose {
		printHostBanner(out)
	}
	mc, err := loadMachine(runConfig)
	if err != nil {
		return err
	}
	cfg, err := mc.SimConfig()
	if err != nil {
		return err
	}
	cfg.Volume = filesystem.HostFS(runVolume)
	cfg.Console = out
	m, err := sim.New(cfg)
	if err != nil {
		return err
	}
	logger.Debug("machine ready",
		zap.Stringer("arch", cfg.Arch),
		zap.Uint64("memory", cfg.MemorySize),
		zap.String("volume", runVolume))

	var handoff *bootloader.HandoffState
	var handoffErr error
	m.DefaultKernel = func(m *sim.Machine, arg uint64) {
		handoff, handoffErr = bootloader.ReadHandoff(m.Memory(), arg)
	}
	res := m.Run(func(p firmware.Platform) error {
		boot.Main(p, mc.Options()...)
		return nil
	})
	if !res.Entered {
		return errNotEntered
	}
	logger.Info("kernel entered",
		zap.String("entry", fmt.Sprintf("%#x", res.Entry)),
		zap.String("handoff", fmt.Sprintf("%#x", res.Arg)))
	if handoffErr != nil {
		return fmt.Errorf("handoff block at %#x: %w", res.Arg, handoffErr)
	}

	fmt.Fprintln(out, titleStyle.Render("Memory map at entry"))
	fmt.Fprint(out, regionTable(handoff.Regions))
	if runDisasm > 0 {
		if err := disassemble(out, m.Memory(), cfg.Arch, res.Entry, runDisasm); err != nil {
			return err
		}
	}
	if runPNG != "" {
		if err := writePNG(runPNG, handoff.Regions); err != nil {
			return err
		}
		logger.Info("memory map rendered", zap.String("path", runPNG))
	}
	return nil
}

// disassemble prints n instructions starting at entry in physical memory.
func disassemble(w io.Writer, mem firmware.Memory, arch firmware.Arch, entry uint64, n int) error {
	var mode int
	switch arch {
	case firmware.ARCH_X86_64:
		mode = 64
	case firmware.ARCH_X86:
		mode = 32
	default:
		return fmt.Errorf("cannot disassemble %v", arch)
	}
	fmt.Fprintln(w, titleStyle.Render("Entry point"))
	pc := entry
	for range n {
		code, err := mem.MemRead(pc, 15)
		if err != nil {
			// The last instruction may sit closer than 15 bytes to the end of RAM.
			if code, err = mem.MemRead(pc, 1); err != nil {
				return err
			}
		}
		inst, err := x86asm.Decode(code, mode)
		if err != nil {
			fmt.Fprintf(w, "%#x\t(bad)\n", pc)
			return nil
		}
		fmt.Fprintf(w, "%#x\t% x\t%s\n", pc, code[:inst.Len], x86asm.GNUSyntax(inst, pc, nil))
		pc += uint64(inst.Len)
	}
	return nil
}

func writePNG(path string, regions []firmware.MemoryDescriptor) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err = memviz.WritePNG(f, regions, memviz.Options{}); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printHostBanner(w io.Writer) {
	features := cpuid.CPU.FeatureSet()
	if len(features) > 12 {
		features = append(features[:12], "...")
	}
	fmt.Fprintf(w, "host: %s (%s), %d cores / %d threads, x86-64-v%d\n",
		cpuid.CPU.BrandName, cpuid.CPU.VendorString,
		cpuid.CPU.PhysicalCores, cpuid.CPU.LogicalCores, cpuid.CPU.X64Level())
	fmt.Fprintf(w, "host features: %s\n", strings.Join(features, " "))
}
