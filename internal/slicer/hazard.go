package slicer

import "loov.dev/rvilp/internal/rv32"

// Conflicts reports whether operands a and b may refer to the same location.
//
// Memory locations relative to the same base register are compared by
// offset. Locations relative to different base registers are assumed to
// alias, since nothing proves that they don't. The relation is not
// transitive, which is why sets of operands are always compared pairwise.
func Conflicts(a, b rv32.Operand) bool {
	if a.Kind != b.Kind {
		return false
	}
	if a.Kind == rv32.Register {
		return a.Reg == b.Reg
	}
	if a.Reg != b.Reg {
		return true
	}
	return a.Offset == b.Offset
}

// overlaps checks every operand of xs against every operand of ys.
func overlaps(xs, ys []rv32.Operand) bool {
	for _, x := range xs {
		for _, y := range ys {
			if Conflicts(x, y) {
				return true
			}
		}
	}
	return false
}

// Hazard reports whether a later instruction with reads and writes depends on
// earlier accesses with prevReads and prevWrites: write after read, read
// after write or write after write.
func Hazard(reads, writes, prevReads, prevWrites []rv32.Operand) bool {
	return overlaps(writes, prevReads) ||
		overlaps(reads, prevWrites) ||
		overlaps(writes, prevWrites)
}
