package bootloader

import (
	"fmt"

	"github.com/wnxd/efiboot/filesystem"
	"github.com/wnxd/efiboot/firmware"
	"github.com/wnxd/efiboot/loader"
)

// kernel tracks the image from the scratch buffer it is read into to the
// fixed range it finally occupies.
type kernel struct {
	file      filesystem.File
	scratch   firmware.Buffer
	image     *loader.ELFImage
	allocated loader.Span
}

func (k *kernel) open(v *volume, path string) (uint64, error) {
	f, err := v.open(path, filesystem.O_RDONLY)
	if err != nil {
		return 0, err
	}
	size, err := v.size(f)
	if err != nil {
		f.Close()
		return 0, fileError(path, err)
	}
	k.file = f
	return size, nil
}

func (k *kernel) close() {
	if k.file != nil {
		k.file.Close()
		k.file = nil
	}
}

// alloc reserves a scratch buffer of exactly size bytes. An empty file gets
// no buffer and fails to parse.
func (k *kernel) alloc(bs firmware.BootServices, size uint64) error {
	if size == 0 {
		return nil
	}
	buf, err := bs.AllocatePool(firmware.LoaderData, size)
	if err != nil {
		return fmt.Errorf("scratch buffer of %d bytes: %w", size, err)
	}
	k.scratch = buf
	return nil
}

func (k *kernel) read(v *volume, path string) error {
	if err := v.read(k.file, k.scratch.Bytes); err != nil {
		return fileError(path, err)
	}
	return nil
}

func (k *kernel) parse(arch firmware.Arch) error {
	img, err := loader.ParseELF(k.scratch.Bytes)
	if err != nil {
		return err
	}
	if img.Arch() != arch {
		return fmt.Errorf("%w: image is %v, platform is %v", loader.ErrMachine, img.Arch(), arch)
	}
	k.image = img
	return nil
}

// releaseScratch hands the scratch buffer back to firmware once the
// segments have been copied out of it.
func (k *kernel) releaseScratch(bs firmware.BootServices) error {
	if k.image != nil {
		k.image.Release()
	}
	if k.scratch.Bytes == nil {
		return nil
	}
	addr := k.scratch.Addr
	k.scratch = firmware.Buffer{}
	return bs.FreePool(addr)
}
