package slicer

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"

	"loov.dev/rvilp/internal/blocks"
	"loov.dev/rvilp/internal/elftest"
	"loov.dev/rvilp/internal/rv32"
)

const base = 0x08000000

// block decodes words as consecutive instructions starting at base.
func block(t testing.TB, words ...uint32) *blocks.Block {
	t.Helper()
	b := &blocks.Block{Start: base}
	for i, w := range words {
		inst, err := rv32.DecodeWord(base+uint32(4*i), w)
		if err != nil {
			t.Fatalf("decode %#08x: %v", w, err)
		}
		b.Insts = append(b.Insts, inst)
	}
	return b
}

// at returns the address of the i-th instruction.
func at(i int) uint32 { return base + uint32(4*i) }

func TestSlice(t *testing.T) {
	ret := elftest.JALR(0, 1, 0)

	tests := []struct {
		name  string
		width int
		words []uint32
		want  []Cycle
	}{
		{
			name:  "independent",
			width: 8,
			words: []uint32{elftest.ADDI(1, 0, 1), elftest.ADDI(2, 0, 2), elftest.ADDI(3, 0, 3), ret},
			want:  []Cycle{{at(0), at(1), at(2)}, {at(3)}},
		},
		{
			name:  "read after write",
			width: 8,
			words: []uint32{elftest.ADDI(1, 0, 1), elftest.ADDI(2, 1, 1), ret},
			want:  []Cycle{{at(0)}, {at(1)}, {at(2)}},
		},
		{
			name:  "write after read",
			width: 8,
			words: []uint32{elftest.ADD(3, 1, 2), elftest.ADDI(1, 0, 5), ret},
			want:  []Cycle{{at(0)}, {at(1)}, {at(2)}},
		},
		{
			name:  "write after write",
			width: 8,
			words: []uint32{elftest.ADDI(1, 0, 1), elftest.ADDI(1, 0, 2), ret},
			want:  []Cycle{{at(0)}, {at(1)}, {at(2)}},
		},
		{
			name:  "read after read",
			width: 8,
			words: []uint32{elftest.ADD(3, 1, 2), elftest.ADD(4, 1, 2), ret},
			want:  []Cycle{{at(0), at(1)}, {at(2)}},
		},
		{
			name:  "stores with different bases",
			width: 8,
			words: []uint32{elftest.SW(1, 5, 0), elftest.SW(2, 6, 0), ret},
			want:  []Cycle{{at(0)}, {at(1)}, {at(2)}},
		},
		{
			name:  "stores with different bases and offsets",
			width: 8,
			words: []uint32{elftest.SW(1, 5, 0), elftest.SW(2, 6, 64), ret},
			want:  []Cycle{{at(0)}, {at(1)}, {at(2)}},
		},
		{
			name:  "stores with different offsets",
			width: 8,
			words: []uint32{elftest.SW(1, 5, 0), elftest.SW(2, 5, 4), ret},
			want:  []Cycle{{at(0), at(1)}, {at(2)}},
		},
		{
			name:  "overlapping stores",
			width: 8,
			words: []uint32{elftest.SW(1, 5, 0), elftest.SH(2, 5, 2), elftest.SB(3, 5, 4), ret},
			want:  []Cycle{{at(0), at(2)}, {at(1)}, {at(3)}},
		},
		{
			name:  "load after store with other base",
			width: 8,
			words: []uint32{elftest.SW(1, 5, 0), elftest.LW(2, 6, 8), ret},
			want:  []Cycle{{at(0)}, {at(1)}, {at(2)}},
		},
		{
			name:  "load after store with same base",
			width: 8,
			words: []uint32{elftest.SW(1, 5, 0), elftest.LW(2, 5, 8), ret},
			want:  []Cycle{{at(0), at(1)}, {at(2)}},
		},
		{
			name:  "loads never conflict with each other",
			width: 8,
			words: []uint32{elftest.LW(1, 5, 0), elftest.LW(2, 6, 0), elftest.LBU(3, 5, 0), ret},
			want:  []Cycle{{at(0), at(1), at(2)}, {at(3)}},
		},
		{
			name:  "load depends on base register",
			width: 8,
			words: []uint32{elftest.ADDI(5, 5, 4), elftest.LW(2, 5, 0), ret},
			want:  []Cycle{{at(0)}, {at(1)}, {at(2)}},
		},
		{
			name:  "backfill earlier cycle",
			width: 8,
			words: []uint32{elftest.ADDI(1, 0, 1), elftest.ADDI(2, 1, 1), elftest.ADDI(3, 0, 3), elftest.ADDI(4, 2, 0), ret},
			want:  []Cycle{{at(0), at(2)}, {at(1)}, {at(3)}, {at(4)}},
		},
		{
			name:  "full cycle spills forward",
			width: 2,
			words: []uint32{elftest.ADDI(1, 0, 1), elftest.ADDI(2, 0, 2), elftest.ADDI(3, 0, 3), elftest.ADDI(4, 0, 4), elftest.ADDI(5, 0, 5), ret},
			want:  []Cycle{{at(0), at(1)}, {at(2), at(3)}, {at(4)}, {at(5)}},
		},
		{
			name:  "spill skips to existing cycle with room",
			width: 2,
			words: []uint32{elftest.ADDI(1, 0, 1), elftest.ADDI(2, 1, 0), elftest.ADDI(3, 0, 3), elftest.ADDI(4, 0, 4), ret},
			want:  []Cycle{{at(0), at(2)}, {at(1), at(3)}, {at(4)}},
		},
		{
			name:  "width one keeps program order",
			width: 1,
			words: []uint32{elftest.ADDI(1, 0, 1), elftest.ADDI(2, 0, 2), elftest.ADDI(3, 0, 3), ret},
			want:  []Cycle{{at(0)}, {at(1)}, {at(2)}, {at(3)}},
		},
		{
			name:  "x0 is not a dependency",
			width: 8,
			words: []uint32{elftest.ADD(0, 1, 2), elftest.ADD(3, 0, 0), elftest.ADDI(0, 0, 0), ret},
			want:  []Cycle{{at(0), at(1), at(2)}, {at(3)}},
		},
		{
			name:  "auipc reads pc",
			width: 8,
			words: []uint32{elftest.AUIPC(1, 0), elftest.AUIPC(2, 0), elftest.LUI(3, 1), elftest.BEQ(1, 2, 8)},
			want:  []Cycle{{at(0), at(1), at(2)}, {at(3)}},
		},
		{
			name:  "terminator alone",
			width: 8,
			words: []uint32{ret},
			want:  []Cycle{{at(0)}},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			b := block(t, test.words...)
			got, err := Slice(b, test.width)
			if err != nil {
				t.Fatalf("Slice failed: %v", err)
			}
			if got.Start != base {
				t.Errorf("unexpected start %#08x", got.Start)
			}
			if diff := cmp.Diff(test.want, got.Cycles); diff != "" {
				t.Errorf("cycles mismatch (-want +got):\n%s", diff)
			}
			if err := Verify(b, got, test.width); err != nil {
				t.Error(err)
			}
		})
	}
}

func TestSliceErrors(t *testing.T) {
	_, err := Slice(&blocks.Block{Start: base}, 8)
	if !errors.Is(err, ErrEmptyBlock) {
		t.Errorf("expected ErrEmptyBlock, got %v", err)
	}

	_, err = Slice(block(t, elftest.JALR(0, 1, 0)), 0)
	if !errors.Is(err, ErrWidth) {
		t.Errorf("expected ErrWidth, got %v", err)
	}
}

func TestConflicts(t *testing.T) {
	tests := []struct {
		a, b rv32.Operand
		want bool
	}{
		{rv32.Reg(1), rv32.Reg(1), true},
		{rv32.Reg(1), rv32.Reg(2), false},
		{rv32.Reg(rv32.PC), rv32.Reg(rv32.PC), true},
		{rv32.Reg(5), rv32.Mem(5, 0), false},
		{rv32.Mem(5, 0), rv32.Mem(5, 0), true},
		{rv32.Mem(5, 0), rv32.Mem(5, 4), false},
		{rv32.Mem(5, 0), rv32.Mem(6, 0), true},
		{rv32.Mem(5, 0), rv32.Mem(6, 100), true},
		{rv32.Mem(0, 16), rv32.Mem(2, -4), true},
	}
	for _, test := range tests {
		if got := Conflicts(test.a, test.b); got != test.want {
			t.Errorf("Conflicts(%v, %v) = %v, want %v", test.a, test.b, got, test.want)
		}
		if got := Conflicts(test.b, test.a); got != test.want {
			t.Errorf("Conflicts(%v, %v) = %v, want %v", test.b, test.a, got, test.want)
		}
	}

	// (x5,0) ~ (x6,0) and (x6,0) ~ (x5,4), but (x5,0) and (x5,4) are distinct.
	if !Conflicts(rv32.Mem(5, 0), rv32.Mem(6, 0)) || !Conflicts(rv32.Mem(6, 0), rv32.Mem(5, 4)) || Conflicts(rv32.Mem(5, 0), rv32.Mem(5, 4)) {
		t.Error("aliasing must not be treated as an equivalence relation")
	}
}

func randomInst(rng *rand.Rand) uint32 {
	reg := func() uint32 { return uint32(rng.Intn(8)) }
	offset := func() int32 { return int32(rng.Intn(4) * 4) }
	switch rng.Intn(7) {
	case 0:
		return elftest.ADD(reg(), reg(), reg())
	case 1:
		return elftest.ADDI(reg(), reg(), int32(rng.Intn(100)))
	case 2:
		return elftest.SW(reg(), 1+uint32(rng.Intn(3)), offset())
	case 3:
		return elftest.SB(reg(), 1+uint32(rng.Intn(3)), offset()+int32(rng.Intn(4)))
	case 4:
		return elftest.LW(reg(), 1+uint32(rng.Intn(3)), offset())
	case 5:
		return elftest.LUI(reg(), uint32(rng.Intn(1000)))
	default:
		return elftest.AUIPC(reg(), 0)
	}
}

func TestSliceRandom(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for iter := 0; iter < 300; iter++ {
		words := make([]uint32, 1+rng.Intn(24))
		for i := range words[:len(words)-1] {
			words[i] = randomInst(rng)
		}
		words[len(words)-1] = elftest.BNE(1, 2, -8)
		b := block(t, words...)

		for width := 1; width <= 5; width++ {
			s, err := Slice(b, width)
			if err != nil {
				t.Fatalf("Slice failed: %v", err)
			}
			if err := Verify(b, s, width); err != nil {
				t.Fatalf("width %d: %v\nwords: %x", width, err, words)
			}
			if width == 1 {
				for i, c := range s.Cycles {
					if len(c) != 1 || c[0] != at(i) {
						t.Fatalf("width 1 must keep program order, got %x", s.Cycles)
					}
				}
			}
		}
	}
}

func TestVerifyRejects(t *testing.T) {
	b := block(t, elftest.ADDI(1, 0, 1), elftest.ADDI(2, 1, 1), elftest.JALR(0, 1, 0))

	tests := map[string][]Cycle{
		"dependent in one cycle": {{at(0), at(1)}, {at(2)}},
		"reordered dependency":   {{at(1)}, {at(0)}, {at(2)}},
		"missing":                {{at(0)}, {at(2)}},
		"duplicate":              {{at(0)}, {at(0), at(1)}, {at(2)}},
		"terminator shared":      {{at(0)}, {at(1), at(2)}},
		"too wide":               {{at(0), at(0)}, {at(2)}},
	}
	for name, cycles := range tests {
		if err := Verify(b, &Sliced{Start: base, Cycles: cycles}, 1); err == nil {
			t.Errorf("%s: expected Verify to fail", name)
		}
	}
}
