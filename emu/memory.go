package emu

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrAddressOutOfRange is returned for accesses past the end of a memory.
var ErrAddressOutOfRange = errors.New("address out of range")

// Memory is one level of the memory hierarchy. Multi-byte values are little
// endian. Every access records the latency it took, readable through
// LastAccessLatency until the next access.
type Memory interface {
	Read8(addr uint32) (uint8, error)
	Read16(addr uint32) (uint16, error)
	Read32(addr uint32) (uint32, error)
	Write8(addr uint32, value uint8) error
	Write16(addr uint32, value uint16) error
	Write32(addr uint32, value uint32) error

	// ReadBlock and WriteBlock move whole cache lines between levels.
	ReadBlock(addr uint32, buf []byte) error
	WriteBlock(addr uint32, data []byte) error

	// Peek reads a byte without touching latency, replacement state or
	// statistics.
	Peek(addr uint32) (uint8, error)

	LastAccessLatency() uint64
	Latency() uint64
	Size() uint32

	// Tick publishes the current cycle to the level and everything below it.
	Tick(now uint64)
	Reset()
}

// MainMemory is a flat, byte-addressed backing memory with a fixed access
// latency.
type MainMemory struct {
	data        []byte
	latency     uint64
	lastLatency uint64
	now         uint64
}

// NewMainMemory creates a zeroed memory of size bytes.
func NewMainMemory(size uint32, latency uint64) *MainMemory {
	return &MainMemory{
		data:    make([]byte, size),
		latency: latency,
	}
}

// LoadImage copies an image to address 0.
func (m *MainMemory) LoadImage(image []byte) error {
	if uint64(len(image)) > uint64(len(m.data)) {
		return fmt.Errorf("%w: image of %d bytes exceeds %d bytes",
			ErrAddressOutOfRange, len(image), len(m.data))
	}

	copy(m.data, image)
	return nil
}

// LoadAt copies data to addr.
func (m *MainMemory) LoadAt(addr uint32, data []byte) error {
	if err := m.check(addr, len(data)); err != nil {
		return err
	}

	copy(m.data[addr:], data)
	return nil
}

func (m *MainMemory) check(addr uint32, n int) error {
	if uint64(addr)+uint64(n) > uint64(len(m.data)) {
		return fmt.Errorf("%w: 0x%08x (+%d) in memory of %d bytes",
			ErrAddressOutOfRange, addr, n, len(m.data))
	}
	return nil
}

func (m *MainMemory) access(addr uint32, n int) ([]byte, error) {
	if err := m.check(addr, n); err != nil {
		return nil, err
	}

	m.lastLatency = m.latency
	return m.data[addr : int(addr)+n], nil
}

// Read8 reads a byte.
func (m *MainMemory) Read8(addr uint32) (uint8, error) {
	b, err := m.access(addr, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// Read16 reads a little-endian half word.
func (m *MainMemory) Read16(addr uint32) (uint16, error) {
	b, err := m.access(addr, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// Read32 reads a little-endian word.
func (m *MainMemory) Read32(addr uint32) (uint32, error) {
	b, err := m.access(addr, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// Write8 writes a byte.
func (m *MainMemory) Write8(addr uint32, value uint8) error {
	b, err := m.access(addr, 1)
	if err != nil {
		return err
	}
	b[0] = value
	return nil
}

// Write16 writes a little-endian half word.
func (m *MainMemory) Write16(addr uint32, value uint16) error {
	b, err := m.access(addr, 2)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(b, value)
	return nil
}

// Write32 writes a little-endian word.
func (m *MainMemory) Write32(addr uint32, value uint32) error {
	b, err := m.access(addr, 4)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(b, value)
	return nil
}

// ReadBlock fills buf from addr.
func (m *MainMemory) ReadBlock(addr uint32, buf []byte) error {
	b, err := m.access(addr, len(buf))
	if err != nil {
		return err
	}
	copy(buf, b)
	return nil
}

// WriteBlock stores data at addr.
func (m *MainMemory) WriteBlock(addr uint32, data []byte) error {
	b, err := m.access(addr, len(data))
	if err != nil {
		return err
	}
	copy(b, data)
	return nil
}

// Peek reads a byte without recording latency.
func (m *MainMemory) Peek(addr uint32) (uint8, error) {
	if err := m.check(addr, 1); err != nil {
		return 0, err
	}
	return m.data[addr], nil
}

// LastAccessLatency returns the latency of the most recent access.
func (m *MainMemory) LastAccessLatency() uint64 {
	return m.lastLatency
}

// Latency returns the fixed access latency.
func (m *MainMemory) Latency() uint64 {
	return m.latency
}

// Size returns the capacity in bytes.
func (m *MainMemory) Size() uint32 {
	return uint32(len(m.data))
}

// Tick records the current cycle.
func (m *MainMemory) Tick(now uint64) {
	m.now = now
}

// Now returns the cycle last published through Tick.
func (m *MainMemory) Now() uint64 {
	return m.now
}

// Reset zeroes the contents and the latency record.
func (m *MainMemory) Reset() {
	clear(m.data)
	m.lastLatency = 0
	m.now = 0
}
