package firmware

import "io"

// Memory is identity-mapped physical memory.
type Memory interface {
	MemRead(addr, size uint64) ([]byte, error)
	MemWrite(addr uint64, data []byte) error
	MemSet(addr, size uint64, value byte) error
}

// Platform is everything the loader sees of the machine it runs on.
type Platform interface {
	Arch() Arch
	ImageHandle() Handle
	BootServices() BootServices
	Memory() Memory
	ConOut() io.Writer
	// Jump transfers control to entry with arg in the first argument
	// register. The stack and CPU mode must already satisfy the
	// platform calling convention. It does not return on real hardware.
	Jump(entry, arg uint64)
	// Halt idles the processor.
	Halt()
}
