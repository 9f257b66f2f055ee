package disasm

// Code is the listing of a single scheduled block.
type Code struct {
	Name  string
	Start uint32
	// End is the address after the terminating instruction.
	End uint32

	// Insts are in schedule order.
	Insts  []Inst
	Cycles int
}

// Inst represents a single instruction.
type Inst struct {
	PC   uint32
	Raw  uint32
	Text string

	Cycle int
	Lane  int

	// RefPC is the static jump target, zero when there is none.
	RefPC uint32
	// Call is the symbol at RefPC.
	Call string
}
