package image

import (
	"bytes"
	"debug/elf"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrMalformedImage is returned when the object file cannot be loaded.
var ErrMalformedImage = errors.New("malformed image")

// Open loads the ELF file at path.
func Open(path string, win Window) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	img, err := Load(data, win)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// Load parses an RV32 ELF file and copies every program data section
// inside win into a new image.
func Load(data []byte, win Window) (*Image, error) {
	f, err := elf.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedImage, err)
	}
	defer f.Close()

	if f.Class != elf.ELFCLASS32 {
		return nil, fmt.Errorf("%w: expected ELFCLASS32, got %v", ErrMalformedImage, f.Class)
	}
	if f.Machine != elf.EM_RISCV {
		return nil, fmt.Errorf("%w: expected EM_RISCV, got %v", ErrMalformedImage, f.Machine)
	}

	img := New(win)
	img.Entry = uint32(f.Entry)

	for _, sec := range f.Sections {
		if sec.Type != elf.SHT_PROGBITS || sec.Addr > 0xFFFFFFFF || !win.Contains(uint32(sec.Addr)) {
			continue
		}
		addr := uint32(sec.Addr)
		if sec.Addr+sec.Size > win.End() {
			return nil, fmt.Errorf("%w: section %q %#08x+%#x exceeds image window", ErrMalformedImage, sec.Name, addr, sec.Size)
		}

		content := make([]byte, sec.Size)
		if _, err := io.ReadFull(sec.Open(), content); err != nil {
			return nil, fmt.Errorf("%w: section %q: %v", ErrMalformedImage, sec.Name, err)
		}
		if err := img.Write(addr, content); err != nil {
			return nil, fmt.Errorf("%w: section %q: %v", ErrMalformedImage, sec.Name, err)
		}

		exec := sec.Flags&elf.SHF_EXECINSTR != 0
		if exec {
			if end := addr + uint32(sec.Size); end > img.Bounds.Limit {
				img.Bounds.Limit = end
			}
		}
		img.Sections = append(img.Sections, Section{
			Name: sec.Name,
			Addr: addr,
			Size: uint32(sec.Size),
			Exec: exec,
		})
	}

	loadSymbols(f, img)

	return img, nil
}

// loadSymbols collects function and object symbols inside the image.
func loadSymbols(f *elf.File, img *Image) {
	syms, err := f.Symbols()
	if err != nil {
		return
	}
	for _, sym := range syms {
		switch elf.ST_TYPE(sym.Info) {
		case elf.STT_FUNC, elf.STT_OBJECT, elf.STT_NOTYPE:
		default:
			continue
		}
		if sym.Name == "" || sym.Value > 0xFFFFFFFF || !img.Contains(uint32(sym.Value)) {
			continue
		}
		addr := uint32(sym.Value)
		// prefer the first name seen for an address
		if _, ok := img.Symbols[addr]; !ok {
			img.Symbols[addr] = sym.Name
		}
	}
}
