package rv32

import "fmt"

// PC is the register id used for program counter dependencies.
const PC = 32

// Kind distinguishes register and memory operands.
type Kind uint8

const (
	Register Kind = iota
	Location
)

// Operand is a value read or written by an instruction.
//
// Location operands refer to a single memory byte at Base+Offset.
type Operand struct {
	Kind   Kind
	Reg    uint8
	Offset int32
}

// Reg returns a register operand.
func Reg(id uint8) Operand { return Operand{Kind: Register, Reg: id} }

// Mem returns a byte memory operand at base+offset.
func Mem(base uint8, offset int32) Operand {
	return Operand{Kind: Location, Reg: base, Offset: offset}
}

// IsZero reports whether op is the hard-wired zero register.
func (op Operand) IsZero() bool { return op.Kind == Register && op.Reg == 0 }

func (op Operand) String() string {
	switch {
	case op.Kind == Location:
		return fmt.Sprintf("%d(x%d)", op.Offset, op.Reg)
	case op.Reg == PC:
		return "pc"
	default:
		return fmt.Sprintf("x%d", op.Reg)
	}
}

// operands accumulates a dependency set without x0 and without duplicates.
type operands []Operand

func (ops *operands) add(list ...Operand) {
next:
	for _, op := range list {
		if op.IsZero() {
			continue
		}
		for _, have := range *ops {
			if have == op {
				continue next
			}
		}
		*ops = append(*ops, op)
	}
}

// bytes adds n consecutive memory byte operands starting at base+offset.
func (ops *operands) bytes(base uint8, offset int32, n int) {
	for i := 0; i < n; i++ {
		ops.add(Mem(base, offset+int32(i)))
	}
}
