// Package slicer schedules basic blocks into cycles of independent
// instructions.
package slicer

import (
	"errors"
	"fmt"

	"loov.dev/rvilp/internal/blocks"
	"loov.dev/rvilp/internal/rv32"
)

var (
	// ErrEmptyBlock is returned when slicing a block without instructions.
	ErrEmptyBlock = errors.New("empty block")
	// ErrWidth is returned for a cycle width below one.
	ErrWidth = errors.New("invalid cycle width")
)

// Cycle lists the addresses of instructions that execute together, in the
// order they were scheduled.
type Cycle []uint32

// Sliced is the schedule of a single block.
//
// The last cycle always contains only the terminating instruction.
type Sliced struct {
	Start  uint32
	Cycles []Cycle
}

// Width returns the length of the longest cycle.
func (s *Sliced) Width() int {
	width := 0
	for _, c := range s.Cycles {
		if len(c) > width {
			width = len(c)
		}
	}
	return width
}

type cycle struct {
	addrs  Cycle
	reads  []rv32.Operand
	writes []rv32.Operand
}

func (c *cycle) hazards(inst *rv32.Inst) bool {
	return Hazard(inst.Reads, inst.Writes, c.reads, c.writes)
}

func (c *cycle) add(inst *rv32.Inst) {
	c.addrs = append(c.addrs, inst.Addr)
	c.reads = append(c.reads, inst.Reads...)
	c.writes = append(c.writes, inst.Writes...)
}

// Slice greedily assigns the instructions of b to cycles of at most width
// instructions.
//
// Each instruction goes into the first cycle with free capacity after the
// latest cycle it depends on. The terminating instruction gets a cycle of
// its own at the end.
func Slice(b *blocks.Block, width int) (*Sliced, error) {
	if len(b.Insts) == 0 {
		return nil, fmt.Errorf("block %#08x: %w", b.Start, ErrEmptyBlock)
	}
	if width < 1 {
		return nil, fmt.Errorf("%w: %d", ErrWidth, width)
	}

	var cycles []*cycle
	body := b.Insts[:len(b.Insts)-1]
	for i := range body {
		inst := &body[i]

		floor := 0
		for k := len(cycles) - 1; k >= 0; k-- {
			if cycles[k].hazards(inst) {
				floor = k + 1
				break
			}
		}

		var target *cycle
		for _, c := range cycles[floor:] {
			if len(c.addrs) < width {
				target = c
				break
			}
		}
		if target == nil {
			target = &cycle{}
			cycles = append(cycles, target)
		}
		target.add(inst)
	}

	sliced := &Sliced{
		Start:  b.Start,
		Cycles: make([]Cycle, 0, len(cycles)+1),
	}
	for _, c := range cycles {
		sliced.Cycles = append(sliced.Cycles, c.addrs)
	}
	sliced.Cycles = append(sliced.Cycles, Cycle{b.Last().Addr})
	return sliced, nil
}
