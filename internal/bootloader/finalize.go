package bootloader

import (
	"fmt"

	"github.com/wnxd/efiboot/firmware"
	"github.com/wnxd/efiboot/loader"
)

// reserve claims the page-aligned image span at its fixed address. Nothing
// is copied until the whole range is owned by the loader.
func (k *kernel) reserve(bs firmware.BootServices) error {
	span := k.image.Span().Align(firmware.PageSize)
	pages := span.Pages(firmware.PageSize)
	addr, err := bs.AllocatePages(firmware.AllocateAddress, firmware.LoaderCode, pages, span.Low)
	if err != nil {
		return fmt.Errorf("%d pages at %#x: %w", pages, span.Low, err)
	}
	if addr != span.Low {
		bs.FreePages(addr, pages)
		return fmt.Errorf("%d pages at %#x: firmware returned %#x", pages, span.Low, addr)
	}
	k.allocated = span
	return nil
}

func (k *kernel) place(mem firmware.Memory) error {
	return k.image.Place(mem, k.allocated)
}

func (k *kernel) span() loader.Span {
	return k.allocated
}
