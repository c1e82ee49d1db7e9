// Package loader turns program images into Programs ready to be placed in
// simulated memory. It reads flat little-endian binaries and ELF32 RISC-V
// executables.
package loader

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// SegmentFlags represents memory protection flags for a segment.
type SegmentFlags uint32

const (
	// SegmentFlagExecute indicates the segment is executable.
	SegmentFlagExecute SegmentFlags = 1 << iota
	// SegmentFlagWrite indicates the segment is writable.
	SegmentFlagWrite
	// SegmentFlagRead indicates the segment is readable.
	SegmentFlagRead
)

// Segment is a contiguous piece of the image.
type Segment struct {
	// Addr is where the segment is placed in its memory.
	Addr uint32
	// Data contains the segment contents from the file.
	Data []byte
	// MemSize is the size in memory (may be larger than len(Data) for BSS).
	MemSize uint32
	// Flags contains the segment protection flags.
	Flags SegmentFlags
}

// Executable reports whether the segment belongs in instruction memory.
func (s Segment) Executable() bool {
	return s.Flags&SegmentFlagExecute != 0
}

// Program is a loaded image.
type Program struct {
	// Entry is the address execution starts from.
	Entry uint32
	// Segments lists the pieces of the image.
	Segments []Segment
}

// End returns the first address past the highest executable segment.
func (p *Program) End() uint32 {
	var end uint32
	for _, seg := range p.Segments {
		if !seg.Executable() {
			continue
		}
		if e := seg.Addr + uint32(len(seg.Data)); e > end {
			end = e
		}
	}
	return end
}

// FromWords builds a flat program from instruction words placed at address 0.
func FromWords(words ...uint32) *Program {
	data := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(data[4*i:], w)
	}
	return flatProgram(data)
}

func flatProgram(data []byte) *Program {
	return &Program{
		Segments: []Segment{{
			Data:    data,
			MemSize: uint32(len(data)),
			Flags:   SegmentFlagExecute | SegmentFlagRead,
		}},
	}
}

// LoadFlat reads a flat image of little-endian instruction words. The image
// is placed at address 0 and runs from there.
func LoadFlat(r io.Reader) (*Program, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	if len(data)%4 != 0 {
		return nil, fmt.Errorf("image size %d is not a multiple of 4", len(data))
	}

	return flatProgram(data), nil
}

var elfMagic = []byte{0x7f, 'E', 'L', 'F'}

// Load reads the image at path, as ELF if it starts with the ELF magic and
// as a flat binary otherwise.
func Load(path string) (*Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer func() { _ = f.Close() }()

	magic := make([]byte, len(elfMagic))
	n, err := io.ReadFull(f, magic)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	if n == len(elfMagic) && bytes.Equal(magic, elfMagic) {
		return LoadELF(path)
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	return LoadFlat(f)
}
