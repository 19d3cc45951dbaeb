package loader

import (
	"bytes"
	"cmp"
	"debug/elf"
	"fmt"
	"slices"

	"github.com/wnxd/efiboot/firmware"
)

// ELFImage is a parsed ELF64 executable. It keeps the raw bytes it was
// parsed from until Place has copied the segments out.
type ELFImage struct {
	arch  firmware.Arch
	entry uint64
	segs  []Segment
	span  Span
	raw   []byte
}

// ParseELF validates raw as an ELF64 ET_EXEC image and collects its
// PT_LOAD segments. Every other program header kind is ignored.
func ParseELF(raw []byte) (*ELFImage, error) {
	if len(raw) <= elf.EI_CLASS || !bytes.HasPrefix(raw, []byte(elf.ELFMAG)) {
		return nil, ErrNotELF
	}
	if class := elf.Class(raw[elf.EI_CLASS]); class != elf.ELFCLASS64 {
		return nil, fmt.Errorf("%w: %v", ErrClass, class)
	}
	f, err := elf.NewFile(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotELF, err)
	}
	defer f.Close()
	if f.Type != elf.ET_EXEC {
		return nil, fmt.Errorf("%w: %v", ErrType, f.Type)
	}
	arch := archOf(f.Machine)
	if arch == firmware.ARCH_UNKNOWN {
		return nil, fmt.Errorf("%w: %v", ErrMachine, f.Machine)
	}
	var segs []Segment
	for _, p := range f.Progs {
		if p.Type != elf.PT_LOAD || (p.Memsz == 0 && p.Filesz == 0) {
			continue
		}
		seg := Segment{
			Addr:     p.Vaddr,
			MemSize:  p.Memsz,
			Offset:   p.Off,
			FileSize: p.Filesz,
			Align:    p.Align,
			Prot:     protOf(p.Flags),
		}
		switch end := seg.Offset + seg.FileSize; {
		case seg.MemSize < seg.FileSize:
			return nil, &SegmentError{seg, ErrSegmentSize}
		case end < seg.Offset || end > uint64(len(raw)):
			return nil, &SegmentError{seg, ErrSegmentBounds}
		case seg.End() < seg.Addr:
			return nil, &SegmentError{seg, ErrAddressOverflow}
		}
		segs = append(segs, seg)
	}
	if len(segs) == 0 {
		return nil, ErrNoSegments
	}
	sorted := slices.SortedFunc(slices.Values(segs), func(a, b Segment) int {
		return cmp.Compare(a.Addr, b.Addr)
	})
	for i := 1; i < len(sorted); i++ {
		if sorted[i-1].Overlaps(sorted[i]) {
			return nil, &SegmentError{sorted[i], ErrSegmentOverlap}
		}
	}
	span := SpanOf(segs)
	if !span.Contains(f.Entry) {
		return nil, fmt.Errorf("%w: %#x not in %s", ErrEntryOutside, f.Entry, span)
	}
	return &ELFImage{arch: arch, entry: f.Entry, segs: segs, span: span, raw: raw}, nil
}

func (img *ELFImage) Arch() firmware.Arch {
	return img.arch
}

func (img *ELFImage) Entry() uint64 {
	return img.entry
}

func (img *ELFImage) Segments() []Segment {
	return slices.Clone(img.segs)
}

func (img *ELFImage) Span() Span {
	return img.span
}

func (img *ELFImage) Place(mem firmware.Memory, allocated Span) error {
	return placeSegments(mem, img.raw, img.segs, allocated)
}

// Release drops the reference to the raw image bytes.
func (img *ELFImage) Release() {
	img.raw = nil
}

func archOf(m elf.Machine) firmware.Arch {
	switch m {
	case elf.EM_X86_64:
		return firmware.ARCH_X86_64
	case elf.EM_AARCH64:
		return firmware.ARCH_ARM64
	case elf.EM_386:
		return firmware.ARCH_X86
	case elf.EM_ARM:
		return firmware.ARCH_ARM
	}
	return firmware.ARCH_UNKNOWN
}

func protOf(flags elf.ProgFlag) firmware.MemProt {
	var prot firmware.MemProt
	if flags&elf.PF_R != 0 {
		prot |= firmware.MEM_PROT_READ
	}
	if flags&elf.PF_W != 0 {
		prot |= firmware.MEM_PROT_WRITE
	}
	if flags&elf.PF_X != 0 {
		prot |= firmware.MEM_PROT_EXEC
	}
	return prot
}
