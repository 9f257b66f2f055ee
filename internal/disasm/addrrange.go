package disasm

// AddrRange represents addresses From <= addr < To.
type AddrRange struct{ From, To uint32 }

// AddrRangesContain checks whether addr is contained in the ranges.
func AddrRangesContain(ranges []AddrRange, addr uint32) bool {
	for _, r := range ranges {
		if r.From <= addr && addr < r.To {
			return true
		}
	}
	return false
}
