// Package ilpfile encodes program schedules for the multi-lane executor.
//
// The binary layout uses little endian 32-bit words:
//
//	tag "ILP1"
//	block count
//	lane count
//	directory, for each block ascending by start:
//		start address
//		payload offset in bytes, relative to the end of the directory
//		payload size in bytes
//	payload, for each block and each of its cycles:
//		instruction addresses
//		zero
package ilpfile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"loov.dev/rvilp/internal/slicer"
)

// Tag identifies the file format.
const Tag = "ILP1"

const (
	headerSize = 12
	entrySize  = 12
)

// ErrFormat is returned when parsing data that is not a valid schedule.
var ErrFormat = errors.New("invalid ILP file")

// Size returns the number of payload bytes needed for b.
func Size(b *slicer.Sliced) int {
	size := 0
	for _, c := range b.Cycles {
		size += (len(c) + 1) * 4
	}
	return size
}

// Marshal encodes the schedule.
func Marshal(s *slicer.Schedule) []byte {
	starts := s.Starts()

	payloadSize := 0
	for _, start := range starts {
		payloadSize += Size(s.Blocks[start])
	}

	le := binary.LittleEndian
	data := make([]byte, 0, headerSize+entrySize*len(starts)+payloadSize)
	data = append(data, Tag...)
	data = le.AppendUint32(data, uint32(len(starts)))
	data = le.AppendUint32(data, uint32(s.Lanes))

	offset := 0
	for _, start := range starts {
		size := Size(s.Blocks[start])
		data = le.AppendUint32(data, start)
		data = le.AppendUint32(data, uint32(offset))
		data = le.AppendUint32(data, uint32(size))
		offset += size
	}

	for _, start := range starts {
		for _, c := range s.Blocks[start].Cycles {
			for _, addr := range c {
				data = le.AppendUint32(data, addr)
			}
			data = le.AppendUint32(data, 0)
		}
	}
	return data
}

// Write encodes the schedule to w.
func Write(w io.Writer, s *slicer.Schedule) error {
	_, err := w.Write(Marshal(s))
	return err
}

// Read decodes a schedule from r.
func Read(r io.Reader) (*slicer.Schedule, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Unmarshal(data)
}

// Unmarshal decodes a schedule.
func Unmarshal(data []byte) (*slicer.Schedule, error) {
	le := binary.LittleEndian
	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: %d bytes is too short for a header", ErrFormat, len(data))
	}
	if !bytes.Equal(data[:4], []byte(Tag)) {
		return nil, fmt.Errorf("%w: unexpected tag %q", ErrFormat, data[:4])
	}
	count := le.Uint32(data[4:])
	lanes := le.Uint32(data[8:])

	dirEnd := uint64(headerSize) + uint64(count)*entrySize
	if dirEnd > uint64(len(data)) {
		return nil, fmt.Errorf("%w: directory of %d blocks exceeds %d bytes", ErrFormat, count, len(data))
	}
	payload := data[dirEnd:]

	s := &slicer.Schedule{
		Blocks: make(map[uint32]*slicer.Sliced, count),
		Lanes:  int(lanes),
	}

	var previous uint32
	for i := uint32(0); i < count; i++ {
		entry := data[headerSize+i*entrySize:]
		start, offset, size := le.Uint32(entry), le.Uint32(entry[4:]), le.Uint32(entry[8:])
		if i > 0 && start <= previous {
			return nil, fmt.Errorf("%w: block %#08x is not in ascending order", ErrFormat, start)
		}
		previous = start

		if offset%4 != 0 || size%4 != 0 || uint64(offset)+uint64(size) > uint64(len(payload)) {
			return nil, fmt.Errorf("%w: block %#08x payload %#x+%#x out of range", ErrFormat, start, offset, size)
		}

		b, err := decodeCycles(start, payload[offset:offset+size])
		if err != nil {
			return nil, err
		}
		if b.Width() > s.Lanes {
			return nil, fmt.Errorf("%w: block %#08x is wider than %d lanes", ErrFormat, start, lanes)
		}
		s.Blocks[start] = b
	}
	return s, nil
}

func decodeCycles(start uint32, data []byte) (*slicer.Sliced, error) {
	b := &slicer.Sliced{Start: start}
	var current slicer.Cycle
	for len(data) > 0 {
		addr := binary.LittleEndian.Uint32(data)
		data = data[4:]
		if addr != 0 {
			current = append(current, addr)
			continue
		}
		if len(current) == 0 {
			return nil, fmt.Errorf("%w: block %#08x has an empty cycle", ErrFormat, start)
		}
		b.Cycles = append(b.Cycles, current)
		current = nil
	}
	if len(current) > 0 {
		return nil, fmt.Errorf("%w: block %#08x is missing a cycle terminator", ErrFormat, start)
	}
	if len(b.Cycles) == 0 {
		return nil, fmt.Errorf("%w: block %#08x has no cycles", ErrFormat, start)
	}
	return b, nil
}
