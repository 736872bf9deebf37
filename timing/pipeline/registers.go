// Package pipeline provides the 5-stage R3000 pipeline model for
// cycle-accurate timing simulation.
package pipeline

import (
	"fmt"

	"github.com/sarchlab/r3ksim/exc"
	"github.com/sarchlab/r3ksim/insts"
)

// Stage identifies a pipeline stage.
type Stage uint8

// Pipeline stages, oldest last.
const (
	StageIF Stage = iota
	StageID
	StageEX
	StageMEM
	StageWB

	numStages
)

func (s Stage) String() string {
	switch s {
	case StageIF:
		return "IF"
	case StageID:
		return "ID"
	case StageEX:
		return "EX"
	case StageMEM:
		return "MEM"
	case StageWB:
		return "WB"
	}
	return "?"
}

// Snapshot is the state of one instruction as it flows down the pipeline.
// A bubble carries no instruction and has no effect in any stage.
type Snapshot struct {
	// Seq is a per-fetch sequence number used to match forwarded operands
	// with their producers. Bubbles have Seq zero.
	Seq    uint64
	PC     uint32
	Word   uint32
	Bubble bool

	// Inst is set when the instruction is decoded.
	Inst *insts.Instruction

	// A and B are the ALU inputs. Data is the store data, or the old
	// destination value merged by LWL/LWR.
	A, B, Data Operand

	Result uint32
	HI, LO uint32

	// Addr is the effective virtual address of a memory access.
	Addr uint32

	// DelaySlot marks an instruction executing in a branch delay slot.
	DelaySlot bool

	// Exceptions raised by any stage. They are acted on at writeback.
	Exceptions []exc.Record

	cp0Write bool
	cp0Reg   uint8
	cp0Value uint32
	rfe      bool

	executed       bool
	hazardsCounted bool
}

func newBubble(pc uint32) *Snapshot {
	return &Snapshot{PC: pc, Bubble: true}
}

// AddException records an exception raised by this instruction.
func (s *Snapshot) AddException(r exc.Record) {
	s.Exceptions = append(s.Exceptions, r)
}

// Faulted reports whether the instruction has raised an exception.
func (s *Snapshot) Faulted() bool {
	return len(s.Exceptions) > 0
}

// Writes reports whether the instruction writes reg.
func (s *Snapshot) Writes(reg insts.Reg) bool {
	if s == nil || s.Bubble || s.Inst == nil || reg == insts.RegZero || reg == insts.RegNone {
		return false
	}
	dst := s.Inst.Dst
	if dst == insts.RegHILO {
		return reg == insts.RegHI || reg == insts.RegLO
	}
	return dst == reg
}

// ValueFor returns the value the instruction will write to reg.
func (s *Snapshot) ValueFor(reg insts.Reg) uint32 {
	if s.Inst.Dst == insts.RegHILO {
		if reg == insts.RegHI {
			return s.HI
		}
		return s.LO
	}
	return s.Result
}

// MemRead reports whether the instruction loads from memory.
func (s *Snapshot) MemRead() bool {
	return s != nil && !s.Bubble && s.Inst != nil && s.Inst.MemRead
}

func (s *Snapshot) String() string {
	if s == nil || s.Bubble {
		return "bubble"
	}
	if s.Inst == nil {
		return fmt.Sprintf("0x%08x:%08x", s.PC, s.Word)
	}
	return fmt.Sprintf("0x%08x:%s", s.PC, s.Inst.Op)
}
