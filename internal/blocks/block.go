// Package blocks partitions a program image into basic blocks.
package blocks

import (
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"loov.dev/rvilp/internal/image"
	"loov.dev/rvilp/internal/rv32"
)

// Block is a straight line sequence of instructions.
type Block struct {
	Start uint32
	Insts []rv32.Inst
	// Succs are the potential successor block starts inside the code range.
	Succs []uint32
}

// Last returns the instruction that terminates the block.
func (b *Block) Last() *rv32.Inst { return &b.Insts[len(b.Insts)-1] }

// End returns the address following the last instruction.
func (b *Block) End() uint32 { return b.Last().Addr + 4 }

// Blocks maps block start addresses to blocks.
type Blocks map[uint32]*Block

// Starts returns the block start addresses in ascending order.
func (blocks Blocks) Starts() []uint32 {
	starts := maps.Keys(blocks)
	slices.Sort(starts)
	return starts
}

// Grow decodes the block starting at start.
//
// The block ends with the first branch (conditional or JALR), with the first
// instruction whose successor is not the following word (JAL) or when the
// next address leaves the code range.
func Grow(mem rv32.Memory, bounds image.Bounds, start uint32) (*Block, error) {
	b := &Block{Start: start}
	visited := map[uint32]struct{}{}

	pc := start
	for {
		inst, err := rv32.Decode(mem, pc)
		if err != nil {
			return nil, err
		}
		b.Insts = append(b.Insts, inst)
		visited[pc] = struct{}{}

		if inst.Branch || !inst.FallsThrough() {
			b.addSucc(bounds, pc+4)
			if inst.HasNext {
				b.addSucc(bounds, inst.Next)
			}
			break
		}

		next := inst.Next
		if next >= bounds.Limit {
			break
		}
		if _, ok := visited[next]; ok {
			break
		}
		pc = next
	}

	slices.Sort(b.Succs)
	return b, nil
}

func (b *Block) addSucc(bounds image.Bounds, addr uint32) {
	if addr < bounds.Base || addr >= bounds.Limit {
		return
	}
	if !slices.Contains(b.Succs, addr) {
		b.Succs = append(b.Succs, addr)
	}
}
