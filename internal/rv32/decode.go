// Package rv32 decodes RV32I instructions into their data dependencies.
package rv32

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidAddress is returned when fetching outside of the memory image.
	ErrInvalidAddress = errors.New("invalid address")
	// ErrUnknownOpcode is returned for opcodes outside of the supported subset.
	ErrUnknownOpcode = errors.New("unknown opcode")
	// ErrUnknownFunct is returned for unsupported funct fields of a known opcode.
	ErrUnknownFunct = errors.New("unknown funct")
)

// Error describes a decoding failure.
type Error struct {
	Addr uint32
	Raw  uint32
	Err  error
	// Detail names the offending field.
	Detail string
}

func (err *Error) Error() string {
	if err.Err == ErrInvalidAddress {
		return fmt.Sprintf("decode %#08x: %v", err.Addr, err.Err)
	}
	if err.Detail != "" {
		return fmt.Sprintf("decode %#08x: %v %s (inst %#08x)", err.Addr, err.Err, err.Detail, err.Raw)
	}
	return fmt.Sprintf("decode %#08x: %v (inst %#08x)", err.Addr, err.Err, err.Raw)
}

func (err *Error) Unwrap() error { return err.Err }

// Class is the instruction format that determines dependencies.
type Class uint8

const (
	RegReg Class = iota
	RegImm
	Store
	Load
	Branch
	JAL
	JALR
	LUI
	AUIPC
	System
)

var classNames = [...]string{
	RegReg: "reg-reg",
	RegImm: "reg-imm",
	Store:  "store",
	Load:   "load",
	Branch: "branch",
	JAL:    "jal",
	JALR:   "jalr",
	LUI:    "lui",
	AUIPC:  "auipc",
	System: "system",
}

func (c Class) String() string {
	if int(c) < len(classNames) {
		return classNames[c]
	}
	return fmt.Sprintf("Class(%d)", c)
}

// Opcodes of the supported instruction classes.
const (
	opRegReg = 0b0110011
	opRegImm = 0b0010011
	opStore  = 0b0100011
	opLoad   = 0b0000011
	opBranch = 0b1100011
	opJAL    = 0b1101111
	opJALR   = 0b1100111
	opLUI    = 0b0110111
	opAUIPC  = 0b0010111
	opSystem = 0b1110011
)

// Access widths in bytes indexed by funct3, zero marks unsupported encodings.
var (
	storeSizes = [8]int{0b000: 1, 0b001: 2, 0b010: 4}
	loadSizes  = [8]int{0b000: 1, 0b001: 2, 0b010: 4, 0b100: 1, 0b101: 2}
)

// Inst is a decoded instruction.
type Inst struct {
	Addr  uint32
	Raw   uint32
	Class Class

	Reads  []Operand
	Writes []Operand

	// Branch marks instructions that end a block: conditional branches and JALR.
	Branch bool
	// Next is the statically known successor, valid when HasNext is set.
	Next    uint32
	HasNext bool
}

// FallsThrough reports whether execution continues at Addr+4.
func (inst *Inst) FallsThrough() bool {
	return inst.HasNext && inst.Next == inst.Addr+4
}

// Memory is the source of instruction words.
type Memory interface {
	Word(addr uint32) (uint32, error)
}

// Decode fetches and decodes the instruction at pc.
func Decode(mem Memory, pc uint32) (Inst, error) {
	raw, err := mem.Word(pc)
	if err != nil {
		if errors.Is(err, ErrInvalidAddress) {
			return Inst{}, &Error{Addr: pc, Err: ErrInvalidAddress}
		}
		return Inst{}, err
	}
	return DecodeWord(pc, raw)
}

// DecodeWord decodes raw as the instruction located at pc.
func DecodeWord(pc, raw uint32) (Inst, error) {
	inst := Inst{
		Addr:    pc,
		Raw:     raw,
		Next:    pc + 4,
		HasNext: true,
	}

	var reads, writes operands

	rd := Reg(uint8(raw >> 7 & 0x1F))
	rs1 := Reg(uint8(raw >> 15 & 0x1F))
	rs2 := Reg(uint8(raw >> 20 & 0x1F))
	funct3 := raw >> 12 & 0b111
	funct7 := raw >> 25

	fail := func(kind error, detail string) (Inst, error) {
		return Inst{}, &Error{Addr: pc, Raw: raw, Err: kind, Detail: detail}
	}

	switch opcode := raw & 0x7F; opcode {
	case opRegReg:
		inst.Class = RegReg
		switch {
		case funct7 == 0x00:
		case funct7 == 0x20 && (funct3 == 0b000 || funct3 == 0b101):
		case funct7 == 0x01:
			// RV32M shares the reg-reg shape.
		default:
			return fail(ErrUnknownFunct, fmt.Sprintf("funct7=%#02x funct3=%d", funct7, funct3))
		}
		reads.add(rs1, rs2)
		writes.add(rd)

	case opRegImm:
		inst.Class = RegImm
		switch {
		case funct3 == 0b001 && funct7 != 0x00:
			return fail(ErrUnknownFunct, fmt.Sprintf("slli funct7=%#02x", funct7))
		case funct3 == 0b101 && funct7 != 0x00 && funct7 != 0x20:
			return fail(ErrUnknownFunct, fmt.Sprintf("srli/srai funct7=%#02x", funct7))
		}
		reads.add(rs1)
		writes.add(rd)

	case opStore:
		inst.Class = Store
		imm := signExtend(raw>>7&0x1F|(raw>>25)<<5, 12)
		size := storeSizes[funct3]
		if size == 0 {
			return fail(ErrUnknownFunct, fmt.Sprintf("store funct3=%d", funct3))
		}
		reads.add(rs1, rs2)
		writes.bytes(rs1.Reg, imm, size)

	case opLoad:
		inst.Class = Load
		imm := signExtend(raw>>20, 12)
		size := loadSizes[funct3]
		if size == 0 {
			return fail(ErrUnknownFunct, fmt.Sprintf("load funct3=%d", funct3))
		}
		reads.add(rs1)
		reads.bytes(rs1.Reg, imm, size)
		writes.add(rd)

	case opBranch:
		inst.Class = Branch
		if funct3 == 0b010 || funct3 == 0b011 {
			return fail(ErrUnknownFunct, fmt.Sprintf("branch funct3=%d", funct3))
		}
		imm := signExtend(
			(raw>>8&0xF)<<1|
				(raw>>25&0x3F)<<5|
				(raw>>7&1)<<11|
				(raw>>31)<<12, 13)
		inst.Branch = true
		inst.Next = pc + uint32(imm)
		reads.add(rs1, rs2, Reg(PC))
		writes.add(Reg(PC))

	case opJAL:
		inst.Class = JAL
		imm := signExtend(
			(raw>>21&0x3FF)<<1|
				(raw>>20&1)<<11|
				(raw>>12&0xFF)<<12|
				(raw>>31)<<20, 21)
		inst.Next = pc + uint32(imm)
		reads.add(Reg(PC))
		writes.add(Reg(PC), rd)

	case opJALR:
		inst.Class = JALR
		if funct3 != 0 {
			return fail(ErrUnknownFunct, fmt.Sprintf("jalr funct3=%d", funct3))
		}
		inst.Branch = true
		inst.Next = 0
		inst.HasNext = false
		reads.add(Reg(PC), rs1)
		writes.add(Reg(PC), rd)

	case opLUI:
		inst.Class = LUI
		writes.add(rd)

	case opAUIPC:
		inst.Class = AUIPC
		reads.add(Reg(PC))
		writes.add(rd)

	case opSystem:
		inst.Class = System
		if funct3 != 0 || raw>>20 > 1 || raw>>7&0x1F != 0 || raw>>15&0x1F != 0 {
			return fail(ErrUnknownFunct, fmt.Sprintf("system funct3=%d imm=%#x", funct3, raw>>20))
		}

	default:
		return fail(ErrUnknownOpcode, fmt.Sprintf("%#02x", opcode))
	}

	inst.Reads = reads
	inst.Writes = writes
	return inst, nil
}

// signExtend interprets the low bits of v as a two's complement number.
func signExtend(v uint32, bits uint) int32 {
	shift := 32 - bits
	return int32(v<<shift) >> shift
}
