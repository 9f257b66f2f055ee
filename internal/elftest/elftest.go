// Package elftest builds small ELF32 RISC-V files for tests.
package elftest

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
)

const (
	headerSize  = 52
	sectionSize = 40
)

// Section describes one section of the generated file.
type Section struct {
	Name  string
	Type  elf.SectionType
	Flags elf.SectionFlag
	Addr  uint32
	Data  []byte
}

// Symbol describes one entry of the generated symbol table.
type Symbol struct {
	Name  string
	Value uint32
	Size  uint32
	Type  elf.SymType
}

// File describes a whole ELF32 little endian file.
type File struct {
	Machine  elf.Machine
	Class    elf.Class
	Entry    uint32
	Sections []Section
	Symbols  []Symbol
}

// Text returns an executable section at addr holding the instruction words.
func Text(addr uint32, words ...uint32) Section {
	return Section{
		Name:  ".text",
		Type:  elf.SHT_PROGBITS,
		Flags: elf.SHF_ALLOC | elf.SHF_EXECINSTR,
		Addr:  addr,
		Data:  Words(words...),
	}
}

// Data returns a writable data section at addr.
func Data(addr uint32, data []byte) Section {
	return Section{
		Name:  ".data",
		Type:  elf.SHT_PROGBITS,
		Flags: elf.SHF_ALLOC | elf.SHF_WRITE,
		Addr:  addr,
		Data:  data,
	}
}

// Words encodes instruction words in little endian order.
func Words(words ...uint32) []byte {
	data := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(data[4*i:], w)
	}
	return data
}

// Bytes renders the file.
//
// The layout is: header, section contents, string table, symbol table
// and finally the section header table.
func (f *File) Bytes() []byte {
	machine := f.Machine
	if machine == 0 {
		machine = elf.EM_RISCV
	}
	class := f.Class
	if class == 0 {
		class = elf.ELFCLASS32
	}

	type header struct {
		name, typ, flags, addr, offset, size, link, info, align, entsize uint32
	}

	var body bytes.Buffer
	var strtab bytes.Buffer
	strtab.WriteByte(0)
	addString := func(s string) uint32 {
		if s == "" {
			return 0
		}
		at := uint32(strtab.Len())
		strtab.WriteString(s)
		strtab.WriteByte(0)
		return at
	}

	headers := []header{{}}
	for _, sec := range f.Sections {
		headers = append(headers, header{
			name:   addString(sec.Name),
			typ:    uint32(sec.Type),
			flags:  uint32(sec.Flags),
			addr:   sec.Addr,
			offset: uint32(headerSize + body.Len()),
			size:   uint32(len(sec.Data)),
			align:  4,
		})
		body.Write(sec.Data)
		for body.Len()%4 != 0 {
			body.WriteByte(0)
		}
	}

	var symtab bytes.Buffer
	if len(f.Symbols) > 0 {
		symtab.Write(make([]byte, 16))
		for _, sym := range f.Symbols {
			var entry [16]byte
			binary.LittleEndian.PutUint32(entry[0:], addString(sym.Name))
			binary.LittleEndian.PutUint32(entry[4:], sym.Value)
			binary.LittleEndian.PutUint32(entry[8:], sym.Size)
			entry[12] = byte(elf.STB_GLOBAL)<<4 | byte(sym.Type)
			binary.LittleEndian.PutUint16(entry[14:], 1)
			symtab.Write(entry[:])
		}
	}

	symtabName := addString(".symtab")
	strtabName := addString(".strtab")

	strtabIndex := uint32(len(headers))
	headers = append(headers, header{
		name:   strtabName,
		typ:    uint32(elf.SHT_STRTAB),
		offset: uint32(headerSize + body.Len()),
		size:   uint32(strtab.Len()),
		align:  1,
	})
	body.Write(strtab.Bytes())
	for body.Len()%4 != 0 {
		body.WriteByte(0)
	}

	if symtab.Len() > 0 {
		headers = append(headers, header{
			name:    symtabName,
			typ:     uint32(elf.SHT_SYMTAB),
			offset:  uint32(headerSize + body.Len()),
			size:    uint32(symtab.Len()),
			link:    strtabIndex,
			info:    1,
			align:   4,
			entsize: 16,
		})
		body.Write(symtab.Bytes())
	}

	shoff := uint32(headerSize + body.Len())

	var out bytes.Buffer
	out.Write([]byte{0x7F, 'E', 'L', 'F', byte(class), byte(elf.ELFDATA2LSB), byte(elf.EV_CURRENT), 0})
	out.Write(make([]byte, 8))
	le := binary.LittleEndian
	_ = binary.Write(&out, le, uint16(elf.ET_EXEC))
	_ = binary.Write(&out, le, uint16(machine))
	_ = binary.Write(&out, le, uint32(elf.EV_CURRENT))
	_ = binary.Write(&out, le, f.Entry)
	_ = binary.Write(&out, le, uint32(0)) // phoff
	_ = binary.Write(&out, le, shoff)
	_ = binary.Write(&out, le, uint32(0)) // flags
	_ = binary.Write(&out, le, uint16(headerSize))
	_ = binary.Write(&out, le, uint16(0)) // phentsize
	_ = binary.Write(&out, le, uint16(0)) // phnum
	_ = binary.Write(&out, le, uint16(sectionSize))
	_ = binary.Write(&out, le, uint16(len(headers)))
	_ = binary.Write(&out, le, uint16(strtabIndex))

	out.Write(body.Bytes())
	for _, h := range headers {
		_ = binary.Write(&out, le, [10]uint32{h.name, h.typ, h.flags, h.addr, h.offset, h.size, h.link, h.info, h.align, h.entsize})
	}
	return out.Bytes()
}
