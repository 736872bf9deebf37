package pipeline

import (
	"fmt"

	"github.com/sarchlab/r3ksim/insts"
)

// SourceKind says where an operand value comes from.
type SourceKind uint8

// Operand sources.
const (
	SourceNone SourceKind = iota
	// SourceArchitectural reads the register file.
	SourceArchitectural
	// SourceForwarded reads the result of an older in-flight instruction.
	SourceForwarded
	SourceImmediate
	SourceShiftAmount
)

// Operand describes how to obtain one instruction input. Forwarded operands
// are resolved lazily, when the consumer needs the value, so a producer that
// completes later in the same cycle is still seen.
type Operand struct {
	Kind  SourceKind
	Reg   insts.Reg
	Stage Stage
	Seq   uint64
	Value uint32
}

// Architectural returns an operand read from the register file.
func Architectural(reg insts.Reg) Operand {
	return Operand{Kind: SourceArchitectural, Reg: reg}
}

// Forwarded returns an operand produced by the instruction with sequence
// number seq, found in stage when the operand was decoded.
func Forwarded(stage Stage, seq uint64, reg insts.Reg) Operand {
	return Operand{Kind: SourceForwarded, Reg: reg, Stage: stage, Seq: seq}
}

// Immediate returns a constant operand.
func Immediate(v uint32) Operand {
	return Operand{Kind: SourceImmediate, Value: v}
}

// ShiftAmount returns a constant shift-amount operand.
func ShiftAmount(v uint32) Operand {
	return Operand{Kind: SourceShiftAmount, Value: v}
}

func (o Operand) String() string {
	switch o.Kind {
	case SourceArchitectural:
		return fmt.Sprintf("$%d", o.Reg)
	case SourceForwarded:
		return fmt.Sprintf("$%d<-%s#%d", o.Reg, o.Stage, o.Seq)
	case SourceImmediate:
		return fmt.Sprintf("imm:0x%x", o.Value)
	case SourceShiftAmount:
		return fmt.Sprintf("sa:%d", o.Value)
	}
	return "-"
}
