package insts

// Encoders assemble raw instruction words. They are used to build programs
// directly in Go.

// EncodeR encodes a SPECIAL register-form instruction.
func EncodeR(funct, rs, rt, rd, shamt uint8) uint32 {
	return uint32(rs&0x1F)<<21 | uint32(rt&0x1F)<<16 | uint32(rd&0x1F)<<11 |
		uint32(shamt&0x1F)<<6 | uint32(funct&0x3F)
}

// EncodeI encodes an immediate-form instruction.
func EncodeI(opcode, rs, rt uint8, imm uint16) uint32 {
	return uint32(opcode&0x3F)<<26 | uint32(rs&0x1F)<<21 | uint32(rt&0x1F)<<16 | uint32(imm)
}

// EncodeJ encodes a jump with a byte target address. Only bits [27:2] are kept.
func EncodeJ(opcode uint8, target uint32) uint32 {
	return uint32(opcode&0x3F)<<26 | (target>>2)&0x03FFFFFF
}

// NOP is SLL $0, $0, 0.
const NOP uint32 = 0

func SLL(rd, rt, sa uint8) uint32  { return EncodeR(FunctSLL, 0, rt, rd, sa) }
func SRL(rd, rt, sa uint8) uint32  { return EncodeR(FunctSRL, 0, rt, rd, sa) }
func SRA(rd, rt, sa uint8) uint32  { return EncodeR(FunctSRA, 0, rt, rd, sa) }
func SLLV(rd, rt, rs uint8) uint32 { return EncodeR(FunctSLLV, rs, rt, rd, 0) }
func SRLV(rd, rt, rs uint8) uint32 { return EncodeR(FunctSRLV, rs, rt, rd, 0) }
func SRAV(rd, rt, rs uint8) uint32 { return EncodeR(FunctSRAV, rs, rt, rd, 0) }
func JR(rs uint8) uint32           { return EncodeR(FunctJR, rs, 0, 0, 0) }
func JALR(rd, rs uint8) uint32     { return EncodeR(FunctJALR, rs, 0, rd, 0) }
func SYSCALL() uint32              { return EncodeR(FunctSYSCALL, 0, 0, 0, 0) }
func BREAK() uint32                { return EncodeR(FunctBREAK, 0, 0, 0, 0) }
func MFHI(rd uint8) uint32         { return EncodeR(FunctMFHI, 0, 0, rd, 0) }
func MTHI(rs uint8) uint32         { return EncodeR(FunctMTHI, rs, 0, 0, 0) }
func MFLO(rd uint8) uint32         { return EncodeR(FunctMFLO, 0, 0, rd, 0) }
func MTLO(rs uint8) uint32         { return EncodeR(FunctMTLO, rs, 0, 0, 0) }
func MULT(rs, rt uint8) uint32     { return EncodeR(FunctMULT, rs, rt, 0, 0) }
func MULTU(rs, rt uint8) uint32    { return EncodeR(FunctMULTU, rs, rt, 0, 0) }
func DIV(rs, rt uint8) uint32      { return EncodeR(FunctDIV, rs, rt, 0, 0) }
func DIVU(rs, rt uint8) uint32     { return EncodeR(FunctDIVU, rs, rt, 0, 0) }
func ADD(rd, rs, rt uint8) uint32  { return EncodeR(FunctADD, rs, rt, rd, 0) }
func ADDU(rd, rs, rt uint8) uint32 { return EncodeR(FunctADDU, rs, rt, rd, 0) }
func SUB(rd, rs, rt uint8) uint32  { return EncodeR(FunctSUB, rs, rt, rd, 0) }
func SUBU(rd, rs, rt uint8) uint32 { return EncodeR(FunctSUBU, rs, rt, rd, 0) }
func AND(rd, rs, rt uint8) uint32  { return EncodeR(FunctAND, rs, rt, rd, 0) }
func OR(rd, rs, rt uint8) uint32   { return EncodeR(FunctOR, rs, rt, rd, 0) }
func XOR(rd, rs, rt uint8) uint32  { return EncodeR(FunctXOR, rs, rt, rd, 0) }
func NOR(rd, rs, rt uint8) uint32  { return EncodeR(FunctNOR, rs, rt, rd, 0) }
func SLT(rd, rs, rt uint8) uint32  { return EncodeR(FunctSLT, rs, rt, rd, 0) }
func SLTU(rd, rs, rt uint8) uint32 { return EncodeR(FunctSLTU, rs, rt, rd, 0) }
func ADDI(rt, rs uint8, imm int16) uint32 {
	return EncodeI(OpcodeADDI, rs, rt, uint16(imm))
}

func ADDIU(rt, rs uint8, imm int16) uint32 {
	return EncodeI(OpcodeADDIU, rs, rt, uint16(imm))
}

func SLTI(rt, rs uint8, imm int16) uint32 {
	return EncodeI(OpcodeSLTI, rs, rt, uint16(imm))
}

func SLTIU(rt, rs uint8, imm int16) uint32 {
	return EncodeI(OpcodeSLTIU, rs, rt, uint16(imm))
}

func ANDI(rt, rs uint8, imm uint16) uint32 { return EncodeI(OpcodeANDI, rs, rt, imm) }
func ORI(rt, rs uint8, imm uint16) uint32  { return EncodeI(OpcodeORI, rs, rt, imm) }
func XORI(rt, rs uint8, imm uint16) uint32 { return EncodeI(OpcodeXORI, rs, rt, imm) }
func LUI(rt uint8, imm uint16) uint32      { return EncodeI(OpcodeLUI, 0, rt, imm) }

// Branch offsets are in instructions, relative to the instruction after the
// branch.

func BEQ(rs, rt uint8, off int16) uint32 { return EncodeI(OpcodeBEQ, rs, rt, uint16(off)) }
func BNE(rs, rt uint8, off int16) uint32 { return EncodeI(OpcodeBNE, rs, rt, uint16(off)) }
func BLEZ(rs uint8, off int16) uint32    { return EncodeI(OpcodeBLEZ, rs, 0, uint16(off)) }
func BGTZ(rs uint8, off int16) uint32    { return EncodeI(OpcodeBGTZ, rs, 0, uint16(off)) }
func BLTZ(rs uint8, off int16) uint32 {
	return EncodeI(OpcodeBCOND, rs, BcondBLTZ, uint16(off))
}

func BGEZ(rs uint8, off int16) uint32 {
	return EncodeI(OpcodeBCOND, rs, BcondBGEZ, uint16(off))
}

func BLTZAL(rs uint8, off int16) uint32 {
	return EncodeI(OpcodeBCOND, rs, BcondBLTZAL, uint16(off))
}

func BGEZAL(rs uint8, off int16) uint32 {
	return EncodeI(OpcodeBCOND, rs, BcondBGEZAL, uint16(off))
}

func J(target uint32) uint32   { return EncodeJ(OpcodeJ, target) }
func JAL(target uint32) uint32 { return EncodeJ(OpcodeJAL, target) }

// Loads and stores address base+off.

func LB(rt, base uint8, off int16) uint32  { return EncodeI(OpcodeLB, base, rt, uint16(off)) }
func LBU(rt, base uint8, off int16) uint32 { return EncodeI(OpcodeLBU, base, rt, uint16(off)) }
func LH(rt, base uint8, off int16) uint32  { return EncodeI(OpcodeLH, base, rt, uint16(off)) }
func LHU(rt, base uint8, off int16) uint32 { return EncodeI(OpcodeLHU, base, rt, uint16(off)) }
func LW(rt, base uint8, off int16) uint32  { return EncodeI(OpcodeLW, base, rt, uint16(off)) }
func LWL(rt, base uint8, off int16) uint32 { return EncodeI(OpcodeLWL, base, rt, uint16(off)) }
func LWR(rt, base uint8, off int16) uint32 { return EncodeI(OpcodeLWR, base, rt, uint16(off)) }
func SB(rt, base uint8, off int16) uint32  { return EncodeI(OpcodeSB, base, rt, uint16(off)) }
func SH(rt, base uint8, off int16) uint32  { return EncodeI(OpcodeSH, base, rt, uint16(off)) }
func SW(rt, base uint8, off int16) uint32  { return EncodeI(OpcodeSW, base, rt, uint16(off)) }
func SWL(rt, base uint8, off int16) uint32 { return EncodeI(OpcodeSWL, base, rt, uint16(off)) }
func SWR(rt, base uint8, off int16) uint32 { return EncodeI(OpcodeSWR, base, rt, uint16(off)) }

// CACHE encodes a cache-maintenance instruction for base+off.
func CACHE(op, base uint8, off int16) uint32 {
	return EncodeI(OpcodeCACHE, base, op, uint16(off))
}

// MFC0 moves CP0 register rd into rt.
func MFC0(rt, rd uint8) uint32 {
	return uint32(OpcodeCOP0)<<26 | uint32(CopMF)<<21 | uint32(rt&0x1F)<<16 | uint32(rd&0x1F)<<11
}

// MTC0 moves rt into CP0 register rd.
func MTC0(rt, rd uint8) uint32 {
	return uint32(OpcodeCOP0)<<26 | uint32(CopMT)<<21 | uint32(rt&0x1F)<<16 | uint32(rd&0x1F)<<11
}

// RFE restores the previous kernel/user and interrupt-enable bits.
func RFE() uint32 {
	return uint32(OpcodeCOP0)<<26 | uint32(CopCO)<<21 | Cop0RFE
}
