package image

import (
	"debug/elf"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"loov.dev/rvilp/internal/elftest"
	"loov.dev/rvilp/internal/rv32"
)

var testWindow = Window{Base: 0x08000000, Size: 0x1000}

func TestLoad(t *testing.T) {
	file := &elftest.File{
		Entry: 0x08000000,
		Sections: []elftest.Section{
			elftest.Text(0x08000000, 0x00000013, 0x00100093),
			elftest.Data(0x08000100, []byte{1, 2, 3, 4}),
			// outside of the window
			elftest.Text(0x20000000, 0x00000013),
			{Name: ".bss", Type: elf.SHT_NOBITS, Flags: elf.SHF_ALLOC | elf.SHF_WRITE, Addr: 0x08000200},
		},
		Symbols: []elftest.Symbol{
			{Name: "_start", Value: 0x08000000, Type: elf.STT_FUNC},
			{Name: "table", Value: 0x08000100, Size: 4, Type: elf.STT_OBJECT},
			{Name: "far", Value: 0x20000000, Type: elf.STT_FUNC},
		},
	}

	img, err := Load(file.Bytes(), testWindow)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if img.Bounds != (Bounds{Base: 0x08000000, Limit: 0x08000008}) {
		t.Errorf("unexpected bounds %#v", img.Bounds)
	}
	if img.Entry != 0x08000000 {
		t.Errorf("unexpected entry %#08x", img.Entry)
	}

	for _, tc := range []struct {
		addr uint32
		want uint32
	}{
		{0x08000000, 0x00000013},
		{0x08000004, 0x00100093},
		{0x08000100, 0x04030201},
		{0x08000008, 0},
	} {
		got, err := img.Word(tc.addr)
		if err != nil {
			t.Errorf("Word(%#08x) failed: %v", tc.addr, err)
			continue
		}
		if got != tc.want {
			t.Errorf("Word(%#08x) = %#08x, want %#08x", tc.addr, got, tc.want)
		}
	}

	wantSymbols := map[uint32]string{
		0x08000000: "_start",
		0x08000100: "table",
	}
	if diff := cmp.Diff(wantSymbols, img.Symbols); diff != "" {
		t.Errorf("symbols mismatch (-want +got):\n%s", diff)
	}

	wantSections := []Section{
		{Name: ".text", Addr: 0x08000000, Size: 8, Exec: true},
		{Name: ".data", Addr: 0x08000100, Size: 4},
	}
	if diff := cmp.Diff(wantSections, img.Sections); diff != "" {
		t.Errorf("sections mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadLimitNeverBelowBase(t *testing.T) {
	file := &elftest.File{
		Sections: []elftest.Section{elftest.Data(0x08000010, []byte{1, 2, 3, 4})},
	}
	img, err := Load(file.Bytes(), testWindow)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if img.Bounds.Limit != img.Bounds.Base {
		t.Errorf("expected empty code range, got %#v", img.Bounds)
	}
}

func TestLoadMalformed(t *testing.T) {
	valid := (&elftest.File{Sections: []elftest.Section{elftest.Text(0x08000000, 0x13)}}).Bytes()

	tests := map[string][]byte{
		"empty":     nil,
		"garbage":   []byte("definitely not an elf file at all, but long enough to be read"),
		"truncated": valid[:60],
		"machine": (&elftest.File{
			Machine:  elf.EM_ARM,
			Sections: []elftest.Section{elftest.Text(0x08000000, 0x13)},
		}).Bytes(),
		"overflow": (&elftest.File{
			Sections: []elftest.Section{elftest.Text(0x08000FFC, 0x13, 0x13)},
		}).Bytes(),
	}

	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(data, testWindow)
			if !errors.Is(err, ErrMalformedImage) {
				t.Fatalf("expected ErrMalformedImage, got %v", err)
			}
		})
	}
}

func TestWordOutsideImage(t *testing.T) {
	img := New(testWindow)
	for _, addr := range []uint32{0x07FFFFFC, 0x08000FFD, 0x08001000, 0xFFFFFFFF} {
		if _, err := img.Word(addr); !errors.Is(err, rv32.ErrInvalidAddress) {
			t.Errorf("Word(%#08x): expected ErrInvalidAddress, got %v", addr, err)
		}
	}
	if _, err := img.Word(0x08000FFC); err != nil {
		t.Errorf("last word should be readable: %v", err)
	}
}
