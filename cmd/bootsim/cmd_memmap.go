package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wnxd/efiboot/bootloader"
)

var memmapPNG string

var memmapCmd = &cobra.Command{
	Use:   "memmap <dump>",
	Short: "Print a memory map dump written by the loader",
	Long: `Parses the diagnostic memory map the loader writes to \memmap on the boot
volume and prints it as a table.`,
	Args: cobra.ExactArgs(1),
	RunE: runMemmap,
}

func init() {
	memmapCmd.Flags().StringVar(&memmapPNG, "png", "", "also render the map to this PNG file")
}

func runMemmap(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()
	regions, err := bootloader.ReadMemoryMap(f)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	logger.Debug("memory map parsed", zap.String("path", args[0]), zap.Int("regions", len(regions)))
	fmt.Fprint(cmd.OutOrStdout(), regionTable(regions))
	if memmapPNG != "" {
		return writePNG(memmapPNG, regions)
	}
	return nil
}
