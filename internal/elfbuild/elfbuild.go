// Package elfbuild assembles small ELF64 executables for tests and the simulator.
package elfbuild

import (
	"debug/elf"

	"github.com/wnxd/efiboot/encoding"
	"github.com/wnxd/efiboot/firmware"
)

const (
	headerSize = 64
	progSize   = 56
	dataAlign  = 16

	CodeFlags = elf.PF_R | elf.PF_X
	DataFlags = elf.PF_R | elf.PF_W
)

type Segment struct {
	Type  elf.ProgType
	Flags elf.ProgFlag
	Addr  uint64
	Data  []byte
	// MemSize defaults to len(Data).
	MemSize uint64
	// Offset overrides the computed file offset when non-zero.
	Offset uint64
}

type Image struct {
	Class    elf.Class
	Type     elf.Type
	Machine  elf.Machine
	Entry    uint64
	Segments []Segment
}

// Bytes lays out the ELF header, the program headers and then each
// segment's data in order.
func (img Image) Bytes() []byte {
	if img.Class == elf.ELFCLASSNONE {
		img.Class = elf.ELFCLASS64
	}
	if img.Type == elf.ET_NONE {
		img.Type = elf.ET_EXEC
	}
	if img.Machine == elf.EM_NONE {
		img.Machine = elf.EM_X86_64
	}
	off := uint64(headerSize + progSize*len(img.Segments))
	progs := make([]elf.Prog64, len(img.Segments))
	for i, seg := range img.Segments {
		off = firmware.Align(off, dataAlign)
		p := elf.Prog64{
			Type:   uint32(seg.Type),
			Flags:  uint32(seg.Flags),
			Off:    off,
			Vaddr:  seg.Addr,
			Paddr:  seg.Addr,
			Filesz: uint64(len(seg.Data)),
			Memsz:  seg.MemSize,
			Align:  0x1000,
		}
		if p.Type == 0 {
			p.Type = uint32(elf.PT_LOAD)
		}
		if p.Flags == 0 {
			p.Flags = uint32(CodeFlags)
		}
		if p.Memsz == 0 {
			p.Memsz = p.Filesz
		}
		if seg.Offset != 0 {
			p.Off = seg.Offset
		} else {
			off += p.Filesz
		}
		progs[i] = p
	}
	hdr := elf.Header64{
		Type:      uint16(img.Type),
		Machine:   uint16(img.Machine),
		Version:   uint32(elf.EV_CURRENT),
		Entry:     img.Entry,
		Phoff:     headerSize,
		Ehsize:    headerSize,
		Phentsize: progSize,
		Phnum:     uint16(len(progs)),
	}
	copy(hdr.Ident[:], elf.ELFMAG)
	hdr.Ident[elf.EI_CLASS] = byte(img.Class)
	hdr.Ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	hdr.Ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)

	buf := make([]byte, off)
	s := encoding.Bytes(buf)
	mustEncode(s, &hdr)
	for i := range progs {
		mustEncode(s, &progs[i])
	}
	for i, seg := range img.Segments {
		if seg.Offset == 0 {
			copy(buf[progs[i].Off:], seg.Data)
		}
	}
	return buf
}

func mustEncode(s encoding.Stream, v any) {
	if err := encoding.Encode(s, v); err != nil {
		panic(err)
	}
}

// HaltLoop is x86-64 machine code for `1: hlt; jmp 1b`.
var HaltLoop = []byte{0xf4, 0xeb, 0xfd}
