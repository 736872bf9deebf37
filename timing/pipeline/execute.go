package pipeline

import (
	"github.com/sarchlab/r3ksim/emu"
	"github.com/sarchlab/r3ksim/exc"
	"github.com/sarchlab/r3ksim/insts"
)

type execFunc func(p *Pipeline, s *Snapshot)

// executeTable maps each operation to its EX-stage behavior. Control
// transfers resolve in ID and have no entry.
var executeTable = [insts.NumOps]execFunc{
	insts.OpSLL:  binary(emu.ShiftLeft),
	insts.OpSRL:  binary(emu.ShiftRightLogical),
	insts.OpSRA:  binary(emu.ShiftRightArithmetic),
	insts.OpSLLV: binary(emu.ShiftLeft),
	insts.OpSRLV: binary(emu.ShiftRightLogical),
	insts.OpSRAV: binary(emu.ShiftRightArithmetic),

	insts.OpADD:  trapping(emu.Add),
	insts.OpADDI: trapping(emu.Add),
	insts.OpSUB:  trapping(emu.Sub),

	insts.OpADDU:  binary(func(a, b uint32) uint32 { return a + b }),
	insts.OpADDIU: binary(func(a, b uint32) uint32 { return a + b }),
	insts.OpSUBU:  binary(func(a, b uint32) uint32 { return a - b }),
	insts.OpAND:   binary(func(a, b uint32) uint32 { return a & b }),
	insts.OpANDI:  binary(func(a, b uint32) uint32 { return a & b }),
	insts.OpOR:    binary(func(a, b uint32) uint32 { return a | b }),
	insts.OpORI:   binary(func(a, b uint32) uint32 { return a | b }),
	insts.OpXOR:   binary(func(a, b uint32) uint32 { return a ^ b }),
	insts.OpXORI:  binary(func(a, b uint32) uint32 { return a ^ b }),
	insts.OpNOR:   binary(func(a, b uint32) uint32 { return ^(a | b) }),
	insts.OpSLT:   binary(emu.SetLessThan),
	insts.OpSLTI:  binary(emu.SetLessThan),
	insts.OpSLTU:  binary(emu.SetLessThanUnsigned),
	insts.OpSLTIU: binary(emu.SetLessThanUnsigned),
	insts.OpLUI:   binary(func(_, b uint32) uint32 { return b << 16 }),

	insts.OpMFHI: move,
	insts.OpMFLO: move,
	insts.OpMTHI: move,
	insts.OpMTLO: move,

	insts.OpMULT:  hilo(emu.Mult),
	insts.OpMULTU: hilo(emu.MultU),
	insts.OpDIV:   hilo(emu.Div),
	insts.OpDIVU:  hilo(emu.DivU),

	insts.OpSYSCALL: raise(exc.Sys),
	insts.OpBREAK:   raise(exc.Bp),

	insts.OpMFC0: execMFC0,
	insts.OpMTC0: execMTC0,
	insts.OpRFE:  execRFE,
	insts.OpTLB:  requireCoprocessor,
	insts.OpCOP:  requireCoprocessor,
	insts.OpLWC:  requireCoprocessor,
	insts.OpSWC:  requireCoprocessor,

	insts.OpLB:    address,
	insts.OpLH:    address,
	insts.OpLWL:   address,
	insts.OpLW:    address,
	insts.OpLBU:   address,
	insts.OpLHU:   address,
	insts.OpLWR:   address,
	insts.OpSB:    address,
	insts.OpSH:    address,
	insts.OpSWL:   address,
	insts.OpSW:    address,
	insts.OpSWR:   address,
	insts.OpCACHE: address,
}

func binary(f func(a, b uint32) uint32) execFunc {
	return func(p *Pipeline, s *Snapshot) {
		s.Result = f(p.read(s.A), p.read(s.B))
	}
}

// trapping wraps an operation that raises Ov on signed overflow. The
// destination is left unwritten when it does.
func trapping(f func(a, b uint32) (uint32, bool)) execFunc {
	return func(p *Pipeline, s *Snapshot) {
		v, overflow := f(p.read(s.A), p.read(s.B))
		if overflow {
			s.AddException(exc.NewRecord(exc.Ov, exc.Any))
			return
		}
		s.Result = v
	}
}

func hilo(f func(a, b uint32) (uint32, uint32)) execFunc {
	return func(p *Pipeline, s *Snapshot) {
		s.HI, s.LO = f(p.read(s.A), p.read(s.B))
	}
}

func move(p *Pipeline, s *Snapshot) {
	s.Result = p.read(s.A)
}

func address(p *Pipeline, s *Snapshot) {
	s.Addr = p.read(s.A) + p.read(s.B)
}

func raise(code exc.Code) execFunc {
	return func(_ *Pipeline, s *Snapshot) {
		s.AddException(exc.NewRecord(code, exc.Any))
	}
}

// usable raises CpU when the instruction's coprocessor is disabled.
func usable(p *Pipeline, s *Snapshot) bool {
	n := s.Inst.Coproc
	if n < 0 {
		n = 0
	}
	if p.cp0.Usable(n) {
		return true
	}
	r := exc.NewRecord(exc.CpU, exc.Any)
	r.Coproc = n
	s.AddException(r)
	return false
}

func requireCoprocessor(p *Pipeline, s *Snapshot) {
	usable(p, s)
}

func execMFC0(p *Pipeline, s *Snapshot) {
	if usable(p, s) {
		s.Result = p.cp0.Read(s.Inst.Rd)
	}
}

// execMTC0 reads its source now but defers the write to writeback, so a
// flushed MTC0 never changes CP0 state.
func execMTC0(p *Pipeline, s *Snapshot) {
	if usable(p, s) {
		s.cp0Write = true
		s.cp0Reg = s.Inst.Rd
		s.cp0Value = p.read(s.A)
	}
}

func execRFE(p *Pipeline, s *Snapshot) {
	if usable(p, s) {
		s.rfe = true
	}
}
