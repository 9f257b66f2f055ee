// Package disasm builds a disassembly listing of a program schedule.
package disasm

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"golang.org/x/arch/riscv64/riscv64asm"

	"loov.dev/rvilp/internal/blocks"
	"loov.dev/rvilp/internal/rv32"
	"loov.dev/rvilp/internal/slicer"
)

// Listing is the disassembly of all scheduled blocks.
type Listing struct {
	Codes []*Code
	// Covered lists the address ranges that belong to some block.
	Covered []AddrRange
}

// Build disassembles every block in schedule order. The symbols are used to
// name blocks and jump targets.
func Build(bbs blocks.Blocks, s *slicer.Schedule, symbols map[uint32]string) (*Listing, error) {
	listing := &Listing{}
	var covered AddrSet

	for _, start := range s.Starts() {
		b, ok := bbs[start]
		if !ok {
			return nil, fmt.Errorf("schedule block %#08x has no basic block", start)
		}
		insts := map[uint32]*rv32.Inst{}
		for i := range b.Insts {
			inst := &b.Insts[i]
			insts[inst.Addr] = inst
			covered.Add(inst.Addr)
		}

		sliced := s.Blocks[start]
		code := &Code{
			Name:   blockName(start, symbols),
			Start:  start,
			End:    b.End(),
			Cycles: len(sliced.Cycles),
		}
		for ci, c := range sliced.Cycles {
			for lane, addr := range c {
				inst, ok := insts[addr]
				if !ok {
					return nil, fmt.Errorf("block %#08x: scheduled address %#08x is not part of the block", start, addr)
				}
				code.Insts = append(code.Insts, toInst(inst, ci, lane, symbols))
			}
		}
		listing.Codes = append(listing.Codes, code)
	}

	listing.Covered = covered.Ranges()
	return listing, nil
}

func blockName(start uint32, symbols map[uint32]string) string {
	if name, ok := symbols[start]; ok {
		return name
	}
	return fmt.Sprintf("block_%08x", start)
}

func toInst(inst *rv32.Inst, cycle, lane int, symbols map[uint32]string) Inst {
	ix := Inst{
		PC:    inst.Addr,
		Raw:   inst.Raw,
		Text:  Text(inst.Raw),
		Cycle: cycle,
		Lane:  lane,
	}
	if inst.HasNext && (inst.Branch || !inst.FallsThrough()) {
		ix.RefPC = inst.Next
		ix.Call = symbols[inst.Next]
	}
	return ix
}

// Text disassembles a single instruction word.
func Text(raw uint32) string {
	var src [4]byte
	binary.LittleEndian.PutUint32(src[:], raw)
	inst, err := riscv64asm.Decode(src[:])
	if err != nil {
		return fmt.Sprintf("WORD %#08x", raw)
	}
	return riscv64asm.GNUSyntax(inst)
}

// Write renders the listing.
func (listing *Listing) Write(w io.Writer) error {
	out := bufio.NewWriter(w)

	var ranges []string
	for _, r := range listing.Covered {
		ranges = append(ranges, fmt.Sprintf("%#08x-%#08x", r.From, r.To))
	}
	fmt.Fprintf(out, "; %d blocks covering %s\n", len(listing.Codes), strings.Join(ranges, " "))

	for _, code := range listing.Codes {
		fmt.Fprintf(out, "\n%s: ; %#08x-%#08x, %d cycles\n", code.Name, code.Start, code.End, code.Cycles)
		for _, ix := range code.Insts {
			fmt.Fprintf(out, "  c%-3d l%-2d %08x  %08x  %s", ix.Cycle, ix.Lane, ix.PC, ix.Raw, ix.Text)
			if ix.RefPC != 0 {
				fmt.Fprintf(out, " ; -> %#08x", ix.RefPC)
				if ix.Call != "" {
					fmt.Fprintf(out, " <%s>", ix.Call)
				}
				if !AddrRangesContain(listing.Covered, ix.RefPC) {
					out.WriteString(" (outside code)")
				}
			}
			out.WriteByte('\n')
		}
	}

	return out.Flush()
}
