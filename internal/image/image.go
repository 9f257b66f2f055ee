// Package image loads RV32 ELF programs into a flat memory image.
package image

import (
	"encoding/binary"
	"fmt"

	"loov.dev/rvilp/internal/rv32"
)

// Window is the address range covered by the memory image.
type Window struct {
	Base uint32
	Size uint32
}

// Contains checks whether addr is inside the window.
func (win Window) Contains(addr uint32) bool {
	return win.Base <= addr && uint64(addr) < win.End()
}

// End returns the first address past the window.
func (win Window) End() uint64 { return uint64(win.Base) + uint64(win.Size) }

// Bounds describes the part of the image that contains code.
type Bounds struct {
	// Base is the first address of the image.
	Base uint32
	// Limit is the end of the highest executable section, never below Base.
	Limit uint32
}

// Image is the memory contents of a loaded program.
type Image struct {
	Window
	Bounds Bounds
	// Entry is the ELF entry point.
	Entry uint32
	// Symbols maps addresses inside the window to symbol names.
	Symbols map[uint32]string
	// Sections lists the sections copied into the image.
	Sections []Section

	data []byte
}

// Section describes a loaded section.
type Section struct {
	Name string
	Addr uint32
	Size uint32
	Exec bool
}

// New returns an empty image for win.
func New(win Window) *Image {
	return &Image{
		Window:  win,
		Bounds:  Bounds{Base: win.Base, Limit: win.Base},
		Symbols: map[uint32]string{},
		data:    make([]byte, win.Size),
	}
}

// Write copies data into the image at addr.
func (img *Image) Write(addr uint32, data []byte) error {
	if !img.Contains(addr) || uint64(addr)+uint64(len(data)) > img.End() {
		return fmt.Errorf("write %#08x+%#x outside image %#08x+%#x", addr, len(data), img.Base, img.Size)
	}
	copy(img.data[addr-img.Base:], data)
	return nil
}

// Word fetches the little endian word at addr.
func (img *Image) Word(addr uint32) (uint32, error) {
	if !img.Contains(addr) || uint64(addr)+4 > img.End() {
		return 0, rv32.ErrInvalidAddress
	}
	return binary.LittleEndian.Uint32(img.data[addr-img.Base:]), nil
}
