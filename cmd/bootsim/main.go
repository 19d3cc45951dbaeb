// Command bootsim boots a kernel image on a simulated machine and inspects
// memory map dumps.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	verbose bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "bootsim",
	Short: "Boot ELF64 kernels on a simulated firmware machine",
	Long: `bootsim runs the loader against a software machine: flat physical memory,
firmware boot services over a memory map and a host directory as the boot volume.

The loader reads \kernel.elf from the volume, places its segments at their
fixed addresses, exits boot services and jumps to the entry point.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			config = zap.NewDevelopmentConfig()
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging and host CPU banner")
	rootCmd.AddCommand(runCmd, memmapCmd, mkkernelCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
