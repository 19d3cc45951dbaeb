package firmware

import "github.com/wnxd/efiboot/encoding"

type Pointer struct {
	mem  Memory
	addr uint64
}

func ToPointer(mem Memory, addr uint64) Pointer {
	return Pointer{mem, addr}
}

func (p Pointer) Address() uint64 {
	return p.addr
}

func (p Pointer) Add(offset uint64) Pointer {
	return Pointer{p.mem, p.addr + offset}
}

func (p Pointer) MemRead(size uint64) ([]byte, error) {
	return p.mem.MemRead(p.addr, size)
}

func (p Pointer) MemWrite(data []byte) error {
	return p.mem.MemWrite(p.addr, data)
}

func (p Pointer) MemZero(size uint64) error {
	return p.mem.MemSet(p.addr, size, 0)
}

func (p Pointer) ReadAt(b []byte, off int64) (n int, err error) {
	data, err := p.mem.MemRead(p.addr+uint64(off), uint64(len(b)))
	if err != nil {
		return 0, err
	}
	return copy(b, data), nil
}

func (p Pointer) WriteAt(b []byte, off int64) (n int, err error) {
	if err = p.mem.MemWrite(p.addr+uint64(off), b); err != nil {
		return 0, err
	}
	return len(b), nil
}

type pointerStream struct {
	ptr   Pointer
	start uint64
}

// PointerStream encodes and decodes in place in physical memory starting at ptr.
func PointerStream(ptr Pointer) encoding.Stream {
	return &pointerStream{ptr, ptr.Address()}
}

func (ps *pointerStream) Offset() uint64 {
	return ps.ptr.Address() - ps.start
}

func (ps *pointerStream) Skip(n int) error {
	ps.ptr = ps.ptr.Add(uint64(n))
	return nil
}

func (ps *pointerStream) Read(b []byte) (int, error) {
	n, err := ps.ptr.ReadAt(b, 0)
	if err == nil {
		ps.Skip(n)
	}
	return n, err
}

func (ps *pointerStream) Write(b []byte) (int, error) {
	n, err := ps.ptr.WriteAt(b, 0)
	if err == nil {
		ps.Skip(n)
	}
	return n, err
}
