package main

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newCmd(out *bytes.Buffer) *cobra.Command {
	cmd := &cobra.Command{}
	cmd.SetOut(out)
	return cmd
}

func TestMkkernelRunMemmap(t *testing.T) {
	logger = zap.NewNop()
	vol := t.TempDir()
	kernel := filepath.Join(vol, "kernel.elf")

	mkkernelAddr, mkkernelBSS = "0x200000", "8KiB"
	require.NoError(t, runMkkernel(newCmd(&bytes.Buffer{}), []string{kernel}))

	var out bytes.Buffer
	runConfig, runVolume, runDisasm = "", vol, 2
	runPNG = filepath.Join(t.TempDir(), "map.png")
	defer func() { runVolume, runDisasm, runPNG = ".", 0, "" }()
	require.NoError(t, runBoot(newCmd(&out), nil))
	require.Contains(t, out.String(), "exiting boot services")
	require.Contains(t, out.String(), "Memory map at entry")
	require.Contains(t, out.String(), "LOADER_CODE")
	require.Contains(t, out.String(), "0x200000\tf4\thlt")

	f, err := os.Open(runPNG)
	require.NoError(t, err)
	_, err = png.Decode(f)
	f.Close()
	require.NoError(t, err)

	out.Reset()
	require.NoError(t, runMemmap(newCmd(&out), []string{filepath.Join(vol, "memmap")}))
	require.Contains(t, out.String(), "CONVENTIONAL")
	require.Contains(t, out.String(), "usable after boot")
}

func TestRunWithoutKernel(t *testing.T) {
	logger = zap.NewNop()
	var out bytes.Buffer
	runConfig, runVolume = "", t.TempDir()
	defer func() { runVolume = "." }()
	require.ErrorIs(t, runBoot(newCmd(&out), nil), errNotEntered)
	require.Contains(t, out.String(), "boot failed")
}

func TestRunConfig(t *testing.T) {
	logger = zap.NewNop()
	path := filepath.Join(t.TempDir(), "machine.yaml")
	require.NoError(t, os.WriteFile(path, []byte("arch: arm64\nmemory: 8MiB\n"), 0o644))

	vol := t.TempDir()
	mkkernelAddr, mkkernelBSS = "0x100000", "0"
	require.NoError(t, runMkkernel(newCmd(&bytes.Buffer{}), []string{filepath.Join(vol, "kernel.elf")}))

	var out bytes.Buffer
	runConfig, runVolume = path, vol
	defer func() { runConfig, runVolume = "", "." }()
	require.ErrorIs(t, runBoot(newCmd(&out), nil), errNotEntered)
	require.Contains(t, out.String(), "corrupt image")
}
