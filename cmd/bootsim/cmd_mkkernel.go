package main

import (
	"os"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wnxd/efiboot/firmware"
	"github.com/wnxd/efiboot/internal/elfbuild"
)

var (
	mkkernelAddr string
	mkkernelBSS  string
)

var mkkernelCmd = &cobra.Command{
	Use:   "mkkernel <out>",
	Short: "Write a minimal x86-64 kernel that halts forever",
	Long: `Writes an ELF64 executable with one code segment holding a halt loop at
--addr, and optionally a zero-filled data segment of --bss bytes after it.`,
	Args: cobra.ExactArgs(1),
	RunE: runMkkernel,
}

func init() {
	mkkernelCmd.Flags().StringVar(&mkkernelAddr, "addr", "0x100000", "load and entry address")
	mkkernelCmd.Flags().StringVar(&mkkernelBSS, "bss", "0", "size of a zero-filled segment following the code")
}

func runMkkernel(cmd *cobra.Command, args []string) error {
	addr, err := strconv.ParseUint(mkkernelAddr, 0, 64)
	if err != nil {
		return err
	}
	bss, err := humanize.ParseBytes(mkkernelBSS)
	if err != nil {
		return err
	}
	img := elfbuild.Image{
		Entry:    addr,
		Segments: []elfbuild.Segment{{Addr: addr, Data: elfbuild.HaltLoop}},
	}
	if bss > 0 {
		img.Segments = append(img.Segments, elfbuild.Segment{
			Flags:   elfbuild.DataFlags,
			Addr:    firmware.Align(addr+uint64(len(elfbuild.HaltLoop)), firmware.PageSize),
			MemSize: bss,
		})
	}
	raw := img.Bytes()
	if err = os.WriteFile(args[0], raw, 0o644); err != nil {
		return err
	}
	logger.Info("kernel written", zap.String("path", args[0]), zap.Int("bytes", len(raw)))
	return nil
}
