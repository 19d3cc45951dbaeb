package bootloader

import (
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/wnxd/efiboot/filesystem"
	"github.com/wnxd/efiboot/firmware"
)

// volume is the file system the loader image was itself loaded from.
type volume struct {
	root filesystem.Dir
}

func (v *volume) mount(bs firmware.BootServices, image firmware.Handle) error {
	iface, err := bs.HandleProtocol(image, firmware.LoadedImageProtocol)
	if err != nil {
		return fmt.Errorf("loaded image protocol: %w", err)
	}
	li, ok := iface.(firmware.LoadedImage)
	if !ok {
		return fmt.Errorf("loaded image protocol: %w", firmware.StatusUnsupported)
	}
	iface, err = bs.HandleProtocol(li.DeviceHandle(), firmware.SimpleFileSystemProtocol)
	if err != nil {
		return fmt.Errorf("simple file system protocol: %w", err)
	}
	sfs, ok := iface.(firmware.SimpleFileSystem)
	if !ok {
		return fmt.Errorf("simple file system protocol: %w", firmware.StatusUnsupported)
	}
	root, err := sfs.OpenVolume()
	if err != nil {
		return fmt.Errorf("open volume: %w", err)
	}
	v.root = root
	return nil
}

func (v *volume) unmount() {
	if v.root != nil {
		v.root.Close()
		v.root = nil
	}
}

func (v *volume) open(path string, flag filesystem.FileFlag) (filesystem.File, error) {
	f, err := v.root.OpenFile(filesystem.Clean(path), flag, 0o644)
	if err != nil {
		return nil, fileError(path, err)
	}
	return f, nil
}

// size returns the length of a regular file.
func (v *volume) size(f filesystem.File) (uint64, error) {
	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	if !info.Mode().IsRegular() {
		return 0, fileError(info.Name(), fs.ErrInvalid)
	}
	return uint64(info.Size()), nil
}

// read fills buf from the start of f in one pass.
func (v *volume) read(f filesystem.File, buf []byte) error {
	r, ok := f.(io.Reader)
	if !ok {
		return firmware.StatusUnsupported
	}
	if _, err := io.ReadFull(r, buf); err != nil {
		return fmt.Errorf("read %d bytes: %w", len(buf), err)
	}
	return nil
}

func (v *volume) write(path string, fill func(io.Writer) error) error {
	f, err := v.open(path, filesystem.O_CREATE|filesystem.O_WRONLY|filesystem.O_TRUNC)
	if err != nil {
		return err
	}
	w, ok := f.(io.Writer)
	if !ok {
		f.Close()
		return fileError(path, firmware.StatusWriteProtected)
	}
	if err = fill(w); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// fileError attaches the firmware status a file system error would carry.
func fileError(path string, err error) error {
	var status firmware.Status
	switch {
	case errors.As(err, &status):
		return fmt.Errorf("%s: %w", path, err)
	case errors.Is(err, fs.ErrNotExist):
		status = firmware.StatusNotFound
	case errors.Is(err, fs.ErrPermission):
		status = firmware.StatusAccessDenied
	default:
		status = firmware.StatusDeviceError
	}
	return fmt.Errorf("%s: %w: %w", path, status, err)
}
