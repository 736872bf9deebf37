// Package insts provides MIPS R3000 instruction definitions and decoding.
//
// This package decodes 32-bit MIPS-I machine words into structured
// instruction representations. Decoding is table driven: one 64-entry table
// keyed by the primary opcode, a 64-entry table for the SPECIAL family keyed
// by the funct field, and a 32-entry table for the BCOND family keyed by the
// rt field. It supports:
//   - ALU register and immediate forms, shifts, SLT/SLTU
//   - MULT/DIV and the HI/LO moves
//   - Branches and jumps, including the linking forms
//   - Loads and stores, including the unaligned LWL/LWR/SWL/SWR
//   - Coprocessor 0 moves, RFE, TLB operations and the CACHE instruction
//
// Usage:
//
//	decoder := insts.NewDecoder()
//	inst := decoder.Decode(0x00430821) // ADDU $1, $2, $3
//	fmt.Printf("Op: %v, Dst: %d, SrcA: %d, SrcB: %d\n", inst.Op, inst.Dst, inst.SrcA, inst.SrcB)
package insts

// Primary opcodes.
const (
	OpcodeSPECIAL = 0
	OpcodeBCOND   = 1
	OpcodeJ       = 2
	OpcodeJAL     = 3
	OpcodeBEQ     = 4
	OpcodeBNE     = 5
	OpcodeBLEZ    = 6
	OpcodeBGTZ    = 7
	OpcodeADDI    = 8
	OpcodeADDIU   = 9
	OpcodeSLTI    = 10
	OpcodeSLTIU   = 11
	OpcodeANDI    = 12
	OpcodeORI     = 13
	OpcodeXORI    = 14
	OpcodeLUI     = 15
	OpcodeCOP0    = 16
	OpcodeCOP1    = 17
	OpcodeCOP2    = 18
	OpcodeCOP3    = 19
	OpcodeLB      = 32
	OpcodeLH      = 33
	OpcodeLWL     = 34
	OpcodeLW      = 35
	OpcodeLBU     = 36
	OpcodeLHU     = 37
	OpcodeLWR     = 38
	OpcodeSB      = 40
	OpcodeSH      = 41
	OpcodeSWL     = 42
	OpcodeSW      = 43
	OpcodeSWR     = 46
	OpcodeCACHE   = 47
	OpcodeLWC0    = 48
	OpcodeLWC1    = 49
	OpcodeLWC2    = 50
	OpcodeLWC3    = 51
	OpcodeSWC0    = 56
	OpcodeSWC1    = 57
	OpcodeSWC2    = 58
	OpcodeSWC3    = 59
)

// SPECIAL funct codes.
const (
	FunctSLL     = 0
	FunctSRL     = 2
	FunctSRA     = 3
	FunctSLLV    = 4
	FunctSRLV    = 6
	FunctSRAV    = 7
	FunctJR      = 8
	FunctJALR    = 9
	FunctSYSCALL = 12
	FunctBREAK   = 13
	FunctMFHI    = 16
	FunctMTHI    = 17
	FunctMFLO    = 18
	FunctMTLO    = 19
	FunctMULT    = 24
	FunctMULTU   = 25
	FunctDIV     = 26
	FunctDIVU    = 27
	FunctADD     = 32
	FunctADDU    = 33
	FunctSUB     = 34
	FunctSUBU    = 35
	FunctAND     = 36
	FunctOR      = 37
	FunctXOR     = 38
	FunctNOR     = 39
	FunctSLT     = 42
	FunctSLTU    = 43
)

// BCOND rt codes.
const (
	BcondBLTZ   = 0
	BcondBGEZ   = 1
	BcondBLTZAL = 16
	BcondBGEZAL = 17
)

// Coprocessor rs codes and COP0 CO-form funct codes.
const (
	CopMF = 0
	CopMT = 4
	CopBC = 8
	CopCO = 16

	Cop0TLBR  = 1
	Cop0TLBWI = 2
	Cop0TLBWR = 6
	Cop0TLBP  = 8
	Cop0RFE   = 16
)

// Cache-operation codes carried in the rt field of the CACHE instruction.
// Codes below CacheOpDCacheStart target the instruction cache.
const (
	CacheOpICacheIndexInvalidate = 0x01
	CacheOpICacheIndexLoadTag    = 0x04
	CacheOpICacheIndexStoreTag   = 0x05
	CacheOpICacheHitInvalidate   = 0x09

	CacheOpDCacheStart                         = 0x10
	CacheOpDCacheIndexInvalidate               = 0x11
	CacheOpDCacheIndexWriteback                = 0x12
	CacheOpDCacheIndexWritebackInvalidate      = 0x13
	CacheOpDCacheIndexLoadTag                  = 0x14
	CacheOpDCacheIndexStoreTag                 = 0x15
	CacheOpDCacheIndexForceWriteback           = 0x16
	CacheOpDCacheIndexForceWritebackInvalidate = 0x17
	CacheOpDCacheSetLine                       = 0x18
	CacheOpDCacheHitInvalidate                 = 0x19
	CacheOpDCacheHitWriteback                  = 0x1A
	CacheOpDCacheHitWritebackInvalidate        = 0x1B
	CacheOpDCacheChange                        = 0x1C
	CacheOpDCacheReverseChange                 = 0x1D
	CacheOpDCacheHitForceWriteback             = 0x1E
	CacheOpDCacheHitForceWritebackInvalidate   = 0x1F
)

// IsValidCacheOp reports whether code names a defined cache operation.
func IsValidCacheOp(code uint8) bool {
	switch code {
	case CacheOpICacheIndexInvalidate, CacheOpICacheIndexLoadTag,
		CacheOpICacheIndexStoreTag, CacheOpICacheHitInvalidate:
		return true
	}
	return code > CacheOpDCacheStart && code <= 0x1F
}

// Field extractors.

// Opcode returns bits [31:26].
func Opcode(word uint32) uint8 { return uint8(word >> 26) }

// Rs returns bits [25:21].
func Rs(word uint32) uint8 { return uint8(word>>21) & 0x1F }

// Rt returns bits [20:16].
func Rt(word uint32) uint8 { return uint8(word>>16) & 0x1F }

// Rd returns bits [15:11].
func Rd(word uint32) uint8 { return uint8(word>>11) & 0x1F }

// Shamt returns bits [10:6].
func Shamt(word uint32) uint8 { return uint8(word>>6) & 0x1F }

// Funct returns bits [5:0].
func Funct(word uint32) uint8 { return uint8(word) & 0x3F }

// Immediate returns the raw 16-bit immediate.
func Immediate(word uint32) uint16 { return uint16(word) }

// JumpTarget returns the 26-bit jump target field.
func JumpTarget(word uint32) uint32 { return word & 0x03FFFFFF }

// SignExtend16 sign-extends a 16-bit value to 32 bits.
func SignExtend16(v uint16) uint32 { return uint32(int32(int16(v))) }
