package sim

import (
	"cmp"
	"slices"

	"github.com/google/uuid"
	"github.com/wnxd/efiboot/firmware"
)

// Services implements firmware.BootServices over a descriptor list.
// Every change to the list bumps the map key.
type Services struct {
	mem     *Memory
	regions []firmware.MemoryDescriptor
	stride  int
	key     firmware.MapKey
	pools   map[uint64]uint64
	handles map[firmware.Handle]map[uuid.UUID]any
	image   firmware.Handle
	runtime uint64
	exited  bool
	trace   []string

	// AfterMemoryMap runs after every successful MemoryMap call while boot
	// services are active. Firmware timers and drivers allocate at such
	// points on real machines.
	AfterMemoryMap func(s *Services)
}

func newServices(mem *Memory, regions []firmware.MemoryDescriptor, stride int) *Services {
	s := &Services{
		mem:     mem,
		regions: slices.SortedFunc(slices.Values(regions), byStart),
		stride:  stride,
		key:     1,
		pools:   make(map[uint64]uint64),
		handles: make(map[firmware.Handle]map[uuid.UUID]any),
	}
	s.coalesce()
	return s
}

func byStart(a, b firmware.MemoryDescriptor) int {
	return cmp.Compare(a.PhysStart, b.PhysStart)
}

// Key is the current map key.
func (s *Services) Key() firmware.MapKey {
	return s.key
}

// Regions returns a copy of the current memory map.
func (s *Services) Regions() []firmware.MemoryDescriptor {
	return slices.Clone(s.regions)
}

// Exited reports whether ExitBootServices has succeeded.
func (s *Services) Exited() bool {
	return s.exited
}

// Trace lists the boot service calls made so far, in order.
func (s *Services) Trace() []string {
	return slices.Clone(s.trace)
}

func (s *Services) record(call string) {
	s.trace = append(s.trace, call)
}

func (s *Services) install(handle firmware.Handle, protocol uuid.UUID, iface any) {
	if s.handles[handle] == nil {
		s.handles[handle] = make(map[uuid.UUID]any)
	}
	s.handles[handle][protocol] = iface
}

func (s *Services) MemoryMap(buf []byte) (firmware.MapInfo, error) {
	s.record("MemoryMap")
	if s.exited {
		return firmware.MapInfo{}, firmware.StatusUnsupported
	}
	info := firmware.MapInfo{
		Size:              len(s.regions) * s.stride,
		Key:               s.key,
		DescriptorSize:    s.stride,
		DescriptorVersion: firmware.DescriptorVersion,
	}
	if _, err := firmware.EncodeMemoryMap(buf, s.regions, s.stride); err != nil {
		info.Key = 0
		return info, err
	}
	if s.AfterMemoryMap != nil {
		s.AfterMemoryMap(s)
	}
	return info, nil
}

func (s *Services) HandleProtocol(handle firmware.Handle, protocol uuid.UUID) (any, error) {
	s.record("HandleProtocol")
	if s.exited {
		return nil, firmware.StatusUnsupported
	}
	iface, ok := s.handles[handle][protocol]
	if !ok {
		return nil, firmware.StatusUnsupported
	}
	return iface, nil
}

func (s *Services) AllocatePages(typ firmware.AllocateType, mem firmware.MemoryType, pages, addr uint64) (uint64, error) {
	s.record("AllocatePages")
	if s.exited {
		return 0, firmware.StatusUnsupported
	}
	return s.allocate(typ, mem, pages, addr)
}

func (s *Services) FreePages(addr, pages uint64) error {
	s.record("FreePages")
	if s.exited {
		return firmware.StatusUnsupported
	}
	return s.free(addr, pages)
}

func (s *Services) AllocatePool(mem firmware.MemoryType, size uint64) (firmware.Buffer, error) {
	s.record("AllocatePool")
	if s.exited {
		return firmware.Buffer{}, firmware.StatusUnsupported
	}
	if size == 0 {
		return firmware.Buffer{}, firmware.StatusInvalidParameter
	}
	pages := firmware.Pages(size)
	addr, err := s.allocate(firmware.AllocateAnyPages, mem, pages, 0)
	if err != nil {
		return firmware.Buffer{}, err
	}
	b, err := s.mem.Slice(addr, size)
	if err != nil {
		s.free(addr, pages)
		return firmware.Buffer{}, firmware.StatusOutOfResources
	}
	s.pools[addr] = pages
	return firmware.Buffer{Addr: addr, Bytes: b}, nil
}

func (s *Services) FreePool(addr uint64) error {
	s.record("FreePool")
	if s.exited {
		return firmware.StatusUnsupported
	}
	pages, ok := s.pools[addr]
	if !ok {
		return firmware.StatusInvalidParameter
	}
	delete(s.pools, addr)
	return s.free(addr, pages)
}

func (s *Services) ExitBootServices(image firmware.Handle, key firmware.MapKey) (uint64, error) {
	s.record("ExitBootServices")
	if s.exited {
		return 0, firmware.StatusUnsupported
	}
	if image != s.image || key != s.key {
		return 0, firmware.StatusInvalidParameter
	}
	s.exited = true
	return s.runtime, nil
}

// allocate carves pages out of a conventional region. Any-page requests
// come from the top of the highest region that fits, as firmware commonly does.
func (s *Services) allocate(typ firmware.AllocateType, mem firmware.MemoryType, pages, addr uint64) (uint64, error) {
	if pages == 0 || mem == firmware.ConventionalMemory {
		return 0, firmware.StatusInvalidParameter
	}
	size := pages * firmware.PageSize
	if size/firmware.PageSize != pages {
		return 0, firmware.StatusOutOfResources
	}
	switch typ {
	case firmware.AllocateAddress:
		if addr%firmware.PageSize != 0 {
			return 0, firmware.StatusInvalidParameter
		}
		for i, r := range s.regions {
			if r.Type == firmware.ConventionalMemory && r.Contains(addr, size) && addr+size <= s.mem.Size() {
				s.carve(i, addr, size, mem)
				return addr, nil
			}
		}
		return 0, firmware.StatusNotFound
	case firmware.AllocateAnyPages, firmware.AllocateMaxAddress:
		limit := s.mem.Size()
		if typ == firmware.AllocateMaxAddress {
			limit = min(limit, firmware.AlignDown(addr+1, firmware.PageSize))
		}
		for i := len(s.regions) - 1; i >= 0; i-- {
			r := s.regions[i]
			if r.Type != firmware.ConventionalMemory || r.PhysStart >= limit {
				continue
			}
			end := min(r.End(), limit)
			if end-r.PhysStart < size {
				continue
			}
			s.carve(i, end-size, size, mem)
			return end - size, nil
		}
		return 0, firmware.StatusOutOfResources
	}
	return 0, firmware.StatusInvalidParameter
}

func (s *Services) free(addr, pages uint64) error {
	size := pages * firmware.PageSize
	if addr%firmware.PageSize != 0 || pages == 0 {
		return firmware.StatusInvalidParameter
	}
	for i, r := range s.regions {
		if !r.Contains(addr, size) {
			continue
		}
		if r.Type != firmware.LoaderCode && r.Type != firmware.LoaderData {
			return firmware.StatusNotFound
		}
		s.carve(i, addr, size, firmware.ConventionalMemory)
		return nil
	}
	return firmware.StatusNotFound
}

// carve retypes [addr, addr+size) inside region i, splitting it as needed.
func (s *Services) carve(i int, addr, size uint64, typ firmware.MemoryType) {
	r := s.regions[i]
	var parts []firmware.MemoryDescriptor
	if addr > r.PhysStart {
		head := r
		head.PageCount = (addr - r.PhysStart) / firmware.PageSize
		parts = append(parts, head)
	}
	mid := r
	mid.Type = typ
	mid.PhysStart = addr
	mid.PageCount = size / firmware.PageSize
	parts = append(parts, mid)
	if end := addr + size; end < r.End() {
		tail := r
		tail.PhysStart = end
		tail.PageCount = (r.End() - end) / firmware.PageSize
		parts = append(parts, tail)
	}
	s.regions = slices.Replace(s.regions, i, i+1, parts...)
	s.coalesce()
	s.key++
}

// coalesce merges adjacent free regions with the same attributes.
func (s *Services) coalesce() {
	out := s.regions[:0]
	for _, r := range s.regions {
		if n := len(out); n > 0 {
			last := &out[n-1]
			if last.Type == firmware.ConventionalMemory && r.Type == firmware.ConventionalMemory &&
				last.Attribute == r.Attribute && last.End() == r.PhysStart {
				last.PageCount += r.PageCount
				continue
			}
		}
		out = append(out, r)
	}
	s.regions = out
}
