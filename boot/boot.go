// Package boot is the loader image entry point.
package boot

import (
	"fmt"

	"github.com/wnxd/efiboot/bootloader"
	"github.com/wnxd/efiboot/firmware"
	internal "github.com/wnxd/efiboot/internal/bootloader"
)

func New(platform firmware.Platform, opts ...bootloader.Option) bootloader.Loader {
	return internal.New(platform, bootloader.NewOptions(opts...))
}

// Main boots the kernel and does not return. A failure is printed to the
// firmware console and the machine parks, since there is nothing to return to.
func Main(platform firmware.Platform, opts ...bootloader.Option) {
	l := New(platform, opts...)
	if err := l.Boot(); err != nil && l.State().BootServicesActive() {
		report(platform, err)
	}
	for {
		platform.Halt()
	}
}

func report(platform firmware.Platform, err error) {
	out := platform.ConOut()
	if kind := bootloader.KindOf(err); kind != nil {
		fmt.Fprintf(out, "boot failed: %v\r\n", kind)
	} else {
		fmt.Fprintf(out, "boot failed\r\n")
	}
	fmt.Fprintf(out, "  %v\r\n", err)
}
