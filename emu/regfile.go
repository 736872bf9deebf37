// Package emu provides the MIPS R3000 architectural state and the pure
// arithmetic shared by the timing pipeline.
package emu

import "github.com/sarchlab/r3ksim/insts"

// RegFile represents the MIPS register file.
// It contains 32 general-purpose registers and the HI/LO pair written by
// multiply and divide.
type RegFile struct {
	// R holds the general-purpose registers. R[0] always reads as 0.
	R [32]uint32

	// HI holds the high word of a product or the remainder of a division.
	HI uint32

	// LO holds the low word of a product or the quotient of a division.
	LO uint32
}

// ReadReg reads a register selector. Register 0 returns 0, as does
// insts.RegNone.
func (r *RegFile) ReadReg(reg insts.Reg) uint32 {
	switch {
	case reg == insts.RegZero:
		return 0
	case reg < 32:
		return r.R[reg]
	case reg == insts.RegHI:
		return r.HI
	case reg == insts.RegLO:
		return r.LO
	}
	return 0
}

// WriteReg writes a value to a register selector. Writes to register 0 and
// to insts.RegNone are ignored. insts.RegHILO is written with WriteHILO.
func (r *RegFile) WriteReg(reg insts.Reg, value uint32) {
	switch {
	case reg == insts.RegZero:
		return
	case reg < 32:
		r.R[reg] = value
	case reg == insts.RegHI:
		r.HI = value
	case reg == insts.RegLO:
		r.LO = value
	}
}

// WriteHILO writes both halves of the multiply/divide result.
func (r *RegFile) WriteHILO(hi, lo uint32) {
	r.HI = hi
	r.LO = lo
}

// Reset clears every register.
func (r *RegFile) Reset() {
	*r = RegFile{}
}
