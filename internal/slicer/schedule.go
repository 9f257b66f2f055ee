package slicer

import (
	"context"
	"fmt"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"golang.org/x/sync/errgroup"

	"loov.dev/rvilp/internal/blocks"
)

// Schedule contains the sliced blocks of a whole program.
type Schedule struct {
	Blocks map[uint32]*Sliced
	// Lanes is the length of the longest cycle over all blocks.
	Lanes int
}

// NewSchedule creates a schedule from sliced blocks.
func NewSchedule(sliced ...*Sliced) *Schedule {
	s := &Schedule{Blocks: make(map[uint32]*Sliced, len(sliced))}
	for _, b := range sliced {
		s.Blocks[b.Start] = b
		if w := b.Width(); w > s.Lanes {
			s.Lanes = w
		}
	}
	return s
}

// Starts returns the block starts in ascending order.
func (s *Schedule) Starts() []uint32 {
	starts := maps.Keys(s.Blocks)
	slices.Sort(starts)
	return starts
}

// Build slices every block using at most workers goroutines.
func Build(ctx context.Context, bbs blocks.Blocks, width, workers int) (*Schedule, error) {
	if width < 1 {
		return nil, fmt.Errorf("%w: %d", ErrWidth, width)
	}

	starts := bbs.Starts()
	sliced := make([]*Sliced, len(starts))

	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, start := range starts {
		i, b := i, bbs[start]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			s, err := Slice(b, width)
			if err != nil {
				return err
			}
			sliced[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return NewSchedule(sliced...), nil
}

// Verify checks that s is a legal schedule of b: every instruction is
// scheduled exactly once, cycles are at most width long, the terminator is
// alone in the last cycle and every instruction is scheduled after all the
// earlier instructions it depends on.
func Verify(b *blocks.Block, s *Sliced, width int) error {
	if len(s.Cycles) == 0 {
		return fmt.Errorf("block %#08x: no cycles", b.Start)
	}
	last := s.Cycles[len(s.Cycles)-1]
	if len(last) != 1 || last[0] != b.Last().Addr {
		return fmt.Errorf("block %#08x: last cycle %x does not hold only the terminator %#08x", b.Start, last, b.Last().Addr)
	}

	cycleOf := map[uint32]int{}
	for ci, c := range s.Cycles {
		if len(c) > width {
			return fmt.Errorf("block %#08x: cycle %d has %d instructions, limit %d", b.Start, ci, len(c), width)
		}
		for _, addr := range c {
			if _, ok := cycleOf[addr]; ok {
				return fmt.Errorf("block %#08x: address %#08x scheduled twice", b.Start, addr)
			}
			cycleOf[addr] = ci
		}
	}

	for i := range b.Insts {
		later := &b.Insts[i]
		if _, ok := cycleOf[later.Addr]; !ok {
			return fmt.Errorf("block %#08x: instruction %#08x not scheduled", b.Start, later.Addr)
		}
		for k := range b.Insts[:i] {
			earlier := &b.Insts[k]
			if !Hazard(later.Reads, later.Writes, earlier.Reads, earlier.Writes) {
				continue
			}
			if cycleOf[later.Addr] <= cycleOf[earlier.Addr] {
				return fmt.Errorf("block %#08x: %#08x in cycle %d depends on %#08x in cycle %d",
					b.Start, later.Addr, cycleOf[later.Addr], earlier.Addr, cycleOf[earlier.Addr])
			}
		}
	}
	if len(cycleOf) != len(b.Insts) {
		return fmt.Errorf("block %#08x: schedule has %d addresses for %d instructions", b.Start, len(cycleOf), len(b.Insts))
	}
	return nil
}
