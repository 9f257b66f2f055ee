package disasm

import (
	"sort"

	"golang.org/x/exp/slices"
)

// AddrSet represents a set of instruction addresses.
type AddrSet struct {
	list []uint32
}

// Add adds addr to the set.
func (set *AddrSet) Add(addr uint32) {
	if len(set.list) == 0 {
		set.list = append(set.list, addr)
		return
	}
	at := sort.Search(len(set.list), func(i int) bool { return set.list[i] >= addr })
	if at >= len(set.list) {
		set.list = append(set.list, addr)
	} else if set.list[at] != addr {
		set.list = slices.Insert(set.list, at, addr)
	}
}

// Len returns the number of addresses in the set.
func (set *AddrSet) Len() int { return len(set.list) }

// Ranges converts the set of instruction words into contiguous ranges.
func (set *AddrSet) Ranges() []AddrRange {
	if len(set.list) == 0 {
		return nil
	}

	var all []AddrRange

	current := AddrRange{From: set.list[0], To: set.list[0] + 4}
	for _, addr := range set.list {
		if addr <= current.To {
			current.To = addr + 4
		} else {
			all = append(all, current)
			current = AddrRange{From: addr, To: addr + 4}
		}
	}
	all = append(all, current)

	return all
}
