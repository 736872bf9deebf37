package pipeline

import "github.com/sarchlab/r3ksim/insts"

// ForwardingUnit picks the source of each register operand at decode.
type ForwardingUnit struct{}

// NewForwardingUnit creates a new forwarding unit.
func NewForwardingUnit() *ForwardingUnit {
	return &ForwardingUnit{}
}

// Resolve returns the operand for reg given the instructions currently in
// EX, MEM and WB. The youngest producer wins. loadUse is set when that
// producer is a load still in EX, whose data only exists after MEM.
func (f *ForwardingUnit) Resolve(reg insts.Reg, ex, mem, wb *Snapshot) (op Operand, loadUse bool) {
	if reg == insts.RegNone {
		return Operand{}, false
	}
	if reg == insts.RegZero {
		return Architectural(reg), false
	}

	switch {
	case ex.Writes(reg):
		return Forwarded(StageEX, ex.Seq, reg), ex.MemRead()
	case mem.Writes(reg):
		return Forwarded(StageMEM, mem.Seq, reg), false
	case wb.Writes(reg):
		return Forwarded(StageWB, wb.Seq, reg), false
	}
	return Architectural(reg), false
}
