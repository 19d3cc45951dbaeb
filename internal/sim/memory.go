package sim

import (
	"errors"
	"fmt"
)

var ErrBadAddress = errors.New("physical address out of range")

// Memory is flat physical RAM starting at address zero.
type Memory struct {
	data []byte
}

func NewMemory(size uint64) *Memory {
	return &Memory{data: make([]byte, size)}
}

func (m *Memory) Size() uint64 {
	return uint64(len(m.data))
}

// Slice returns the live bytes backing [addr, addr+size).
func (m *Memory) Slice(addr, size uint64) ([]byte, error) {
	end := addr + size
	if end < addr || end > m.Size() {
		return nil, fmt.Errorf("%w: [%#x, %#x)", ErrBadAddress, addr, end)
	}
	return m.data[addr:end:end], nil
}

func (m *Memory) MemRead(addr, size uint64) ([]byte, error) {
	b, err := m.Slice(addr, size)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), b...), nil
}

func (m *Memory) MemWrite(addr uint64, data []byte) error {
	b, err := m.Slice(addr, uint64(len(data)))
	if err != nil {
		return err
	}
	copy(b, data)
	return nil
}

func (m *Memory) MemSet(addr, size uint64, value byte) error {
	b, err := m.Slice(addr, size)
	if err != nil {
		return err
	}
	for i := range b {
		b[i] = value
	}
	return nil
}
