package elftest

// Instruction encoders for building test programs.

func rtype(opcode, funct3, funct7, rd, rs1, rs2 uint32) uint32 {
	return funct7<<25 | rs2<<20 | rs1<<15 | funct3<<12 | rd<<7 | opcode
}

func itype(opcode, funct3, rd, rs1 uint32, imm int32) uint32 {
	return uint32(imm)&0xFFF<<20 | rs1<<15 | funct3<<12 | rd<<7 | opcode
}

func stype(funct3, rs1, rs2 uint32, imm int32) uint32 {
	u := uint32(imm)
	return u>>5&0x7F<<25 | rs2<<20 | rs1<<15 | funct3<<12 | u&0x1F<<7 | 0b0100011
}

func btype(funct3, rs1, rs2 uint32, imm int32) uint32 {
	u := uint32(imm)
	return u>>12&1<<31 | u>>5&0x3F<<25 | rs2<<20 | rs1<<15 | funct3<<12 | u>>1&0xF<<8 | u>>11&1<<7 | 0b1100011
}

func ADD(rd, rs1, rs2 uint32) uint32 { return rtype(0b0110011, 0, 0, rd, rs1, rs2) }
func SUB(rd, rs1, rs2 uint32) uint32 { return rtype(0b0110011, 0, 0x20, rd, rs1, rs2) }
func MUL(rd, rs1, rs2 uint32) uint32 { return rtype(0b0110011, 0, 0x01, rd, rs1, rs2) }

func ADDI(rd, rs1 uint32, imm int32) uint32 { return itype(0b0010011, 0, rd, rs1, imm) }
func SRAI(rd, rs1, shamt uint32) uint32 {
	return itype(0b0010011, 0b101, rd, rs1, int32(0x400|shamt&0x1F))
}

func NOP() uint32 { return ADDI(0, 0, 0) }

func SB(rs2, rs1 uint32, imm int32) uint32 { return stype(0b000, rs1, rs2, imm) }
func SH(rs2, rs1 uint32, imm int32) uint32 { return stype(0b001, rs1, rs2, imm) }
func SW(rs2, rs1 uint32, imm int32) uint32 { return stype(0b010, rs1, rs2, imm) }

func LB(rd, rs1 uint32, imm int32) uint32  { return itype(0b0000011, 0b000, rd, rs1, imm) }
func LH(rd, rs1 uint32, imm int32) uint32  { return itype(0b0000011, 0b001, rd, rs1, imm) }
func LW(rd, rs1 uint32, imm int32) uint32  { return itype(0b0000011, 0b010, rd, rs1, imm) }
func LBU(rd, rs1 uint32, imm int32) uint32 { return itype(0b0000011, 0b100, rd, rs1, imm) }
func LHU(rd, rs1 uint32, imm int32) uint32 { return itype(0b0000011, 0b101, rd, rs1, imm) }

func BEQ(rs1, rs2 uint32, imm int32) uint32 { return btype(0b000, rs1, rs2, imm) }
func BNE(rs1, rs2 uint32, imm int32) uint32 { return btype(0b001, rs1, rs2, imm) }
func BLT(rs1, rs2 uint32, imm int32) uint32 { return btype(0b100, rs1, rs2, imm) }

func JAL(rd uint32, imm int32) uint32 {
	u := uint32(imm)
	return u>>20&1<<31 | u>>1&0x3FF<<21 | u>>11&1<<20 | u>>12&0xFF<<12 | rd<<7 | 0b1101111
}

func JALR(rd, rs1 uint32, imm int32) uint32 { return itype(0b1100111, 0, rd, rs1, imm) }

func LUI(rd, imm uint32) uint32   { return imm<<12 | rd<<7 | 0b0110111 }
func AUIPC(rd, imm uint32) uint32 { return imm<<12 | rd<<7 | 0b0010111 }

func ECALL() uint32  { return 0x00000073 }
func EBREAK() uint32 { return 0x00100073 }
