package bootloader

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/wnxd/efiboot/firmware"
)

var dumpHeader = []string{"Index", "Type", "Type(name)", "PhysicalStart", "NumberOfPages", "Attribute"}

// WriteMemoryMap writes regions in the diagnostic dump format: a header line
// followed by one comma-separated line per region in firmware order.
func WriteMemoryMap(w io.Writer, regions []firmware.MemoryDescriptor) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%s, %s, %s, %s, %s, %s\n", dumpHeader[0], dumpHeader[1], dumpHeader[2], dumpHeader[3], dumpHeader[4], dumpHeader[5])
	for i, r := range regions {
		fmt.Fprintf(bw, "%d, %x, %s, %08x, %d, %x\n", i, uint32(r.Type), r.Type, r.PhysStart, r.PageCount, uint64(r.Attribute))
	}
	return bw.Flush()
}

// ReadMemoryMap parses a dump produced by WriteMemoryMap. Virtual start
// addresses are not part of the dump and come back as zero.
func ReadMemoryMap(r io.Reader) ([]firmware.MemoryDescriptor, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(dumpHeader)
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true
	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: empty", ErrMalformedMemoryDump)
	} else if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedMemoryDump, err)
	}
	if !slices.Equal(header, dumpHeader) {
		return nil, fmt.Errorf("%w: header %q", ErrMalformedMemoryDump, header)
	}
	var regions []firmware.MemoryDescriptor
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return regions, nil
		} else if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedMemoryDump, err)
		}
		line, _ := cr.FieldPos(0)
		desc, err := parseDumpRecord(rec, len(regions))
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrMalformedMemoryDump, line, err)
		}
		regions = append(regions, desc)
	}
}

func parseDumpRecord(rec []string, index int) (firmware.MemoryDescriptor, error) {
	var desc firmware.MemoryDescriptor
	i, err := strconv.Atoi(rec[0])
	if err != nil {
		return desc, err
	}
	if i != index {
		return desc, fmt.Errorf("index %d, want %d", i, index)
	}
	typ, err := strconv.ParseUint(rec[1], 16, 32)
	if err != nil {
		return desc, err
	}
	desc.Type = firmware.MemoryType(typ)
	if name := desc.Type.String(); rec[2] != name {
		return desc, fmt.Errorf("type name %q does not match %s", rec[2], name)
	}
	if desc.PhysStart, err = strconv.ParseUint(rec[3], 16, 64); err != nil {
		return desc, err
	}
	if desc.PageCount, err = strconv.ParseUint(rec[4], 10, 64); err != nil {
		return desc, err
	}
	attr, err := strconv.ParseUint(rec[5], 16, 64)
	if err != nil {
		return desc, err
	}
	desc.Attribute = firmware.MemoryAttribute(attr)
	return desc, nil
}
