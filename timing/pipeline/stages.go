package pipeline

import (
	"fmt"

	"github.com/sarchlab/r3ksim/exc"
	"github.com/sarchlab/r3ksim/insts"
)

// fetch fills an empty IF slot with the instruction at the fetch PC. A fetch
// that cannot complete this cycle leaves a bubble and keeps the PC.
func (p *Pipeline) fetch() {
	if s := p.slots[StageIF]; s != nil && !s.Bubble {
		return
	}

	pc := p.pc
	word, ok, err := p.fetchWord(pc)
	if err == nil && !ok {
		p.slots[StageIF] = newBubble(pc)
		p.stats.FetchStalls++
		return
	}

	p.seq++
	s := &Snapshot{Seq: p.seq, PC: pc, Word: word}
	if err != nil {
		s.Word = 0
		p.fault(s, err)
	}
	p.slots[StageIF] = s
	p.pc = pc + 4
}

func (p *Pipeline) fetchWord(pc uint32) (uint32, bool, error) {
	if pc&3 != 0 {
		return 0, false, exc.AddressError(exc.InstFetch, pc)
	}

	phys, cacheable, err := p.cp0.Translate(pc, exc.InstFetch)
	if err != nil {
		return 0, false, err
	}

	if c := p.instCache(); cacheable && c != nil {
		if f := c.PollFault(phys); f != nil {
			return 0, false, f
		}
		if !c.Ready(phys) {
			c.RequestBlock(phys, exc.InstFetch, p.client)
			return 0, false, nil
		}
		return c.FetchWord(phys), true, nil
	}

	if !p.memory.AcquireBus(p.client) {
		return 0, false, nil
	}
	if err := p.issue(&p.fetchReq, phys, exc.InstFetch); err != nil {
		p.memory.ReleaseBus(p.client)
		return 0, false, err
	}
	if !p.memory.Ready(phys, exc.InstFetch, p.client) {
		return 0, false, nil
	}

	word, err := p.memory.FetchWord(phys, exc.InstFetch, p.client)
	p.fetchReq.active = false
	p.memory.ReleaseBus(p.client)
	if err != nil {
		return 0, false, err
	}
	return word, true, nil
}

// decode runs the ID stage: decode, operand selection and control
// transfer. It returns true if ID must stall.
func (p *Pipeline) decode() bool {
	s := p.slots[StageID]
	if s == nil || s.Bubble {
		return false
	}

	if s.Inst == nil {
		s.Inst = p.decoder.Decode(s.Word)
		if s.Inst.Reserved {
			s.AddException(exc.NewRecord(exc.RI, exc.Any))
			s.Inst = p.decoder.Decode(insts.NOP)
		}
	}
	inst := s.Inst

	// With delay slots the slot instruction must be in IF before the
	// branch can leave ID.
	if p.delaySlots && inst.IsControl() {
		if next := p.slots[StageIF]; next == nil || next.Bubble {
			return true
		}
	}

	hazard := p.selectOperands(s)
	if hazard && inst.IsControl() {
		return true
	}

	if inst.IsControl() {
		p.resolveControl(s)
	}
	return false
}

// selectOperands fills in the operand sources of s. It reports whether any
// source is a load still in EX.
func (p *Pipeline) selectOperands(s *Snapshot) bool {
	inst := s.Inst
	ex, mem, wb := p.slots[StageEX], p.slots[StageMEM], p.slots[StageWB]

	// A stalled ID selects again next cycle; hazards are counted on the
	// first pass only.
	count := !s.hazardsCounted
	s.hazardsCounted = true

	var hazard bool
	resolve := func(reg insts.Reg) Operand {
		op, loadUse := p.forwarding.Resolve(reg, ex, mem, wb)
		if op.Kind == SourceForwarded && count {
			p.stats.DataHazards++
		}
		if loadUse {
			hazard = true
			if count {
				p.stats.LoadUseHazards++
				p.logger.V(1).Info("load-use hazard",
					"pc", fmt.Sprintf("0x%08x", s.PC),
					"producer", fmt.Sprintf("0x%08x", ex.PC),
					"reg", reg)
			}
		}
		return op
	}

	s.A = resolve(inst.SrcA)
	switch {
	case inst.UsesShamt:
		s.B = ShiftAmount(uint32(inst.Shamt))
	case inst.UsesImm:
		s.B = Immediate(inst.Imm)
	case inst.MemRead || inst.MemWrite || inst.Op == insts.OpCACHE:
		s.B = Immediate(inst.Imm)
		s.Data = resolve(inst.SrcB)
	default:
		s.B = resolve(inst.SrcB)
	}
	return hazard
}

// resolveControl evaluates a branch or jump and redirects fetch if taken.
// Linking instructions save the address after the delay slot.
func (p *Pipeline) resolveControl(s *Snapshot) {
	inst := s.Inst
	a, b := p.read(s.A), p.read(s.B)

	taken := false
	target := s.PC + 4 + inst.Imm<<2
	switch inst.Op {
	case insts.OpJ, insts.OpJAL:
		taken = true
		target = (s.PC+4)&0xF0000000 | inst.Target<<2
	case insts.OpJR, insts.OpJALR:
		taken = true
		target = a
	case insts.OpBEQ:
		taken = a == b
	case insts.OpBNE:
		taken = a != b
	case insts.OpBLEZ:
		taken = int32(a) <= 0
	case insts.OpBGTZ:
		taken = int32(a) > 0
	case insts.OpBLTZ, insts.OpBLTZAL:
		taken = int32(a) < 0
	case insts.OpBGEZ, insts.OpBGEZAL:
		taken = int32(a) >= 0
	case insts.OpBC0:
		// The coprocessor condition is never asserted: BC0F is taken and
		// BC0T is not.
		taken = inst.Rt&1 == 0
	}

	if inst.Dst != insts.RegNone {
		s.Result = s.PC + 8
	}

	if !taken {
		return
	}

	p.stats.BranchesTaken++
	p.cancel(&p.fetchReq)
	p.pc = target

	next := p.slots[StageIF]
	if p.delaySlots {
		next.DelaySlot = true
		return
	}
	if next != nil && !next.Bubble {
		p.slots[StageIF] = newBubble(next.PC)
		p.stats.Flushes++
	}
}

// writeback runs the WB stage. It returns true if the instruction took an
// exception, in which case the pipeline has been flushed or halted.
func (p *Pipeline) writeback() bool {
	s := p.slots[StageWB]
	if s == nil || s.Bubble {
		return false
	}

	if p.cp0.InterruptPending() {
		s.AddException(exc.NewRecord(exc.Int, exc.Any))
	}

	if d, ok := p.exceptions.Resolve(s); ok {
		p.stats.Exceptions++
		if d.Halt {
			p.halted = true
			p.haltRecord = d.Record
			return true
		}
		p.slots[StageWB] = newBubble(s.PC)
		p.flush(d.Handler)
		p.memory.ReleaseBus(p.client)
		return true
	}

	p.commit(s)
	return false
}

func (p *Pipeline) commit(s *Snapshot) {
	switch dst := s.Inst.Dst; dst {
	case insts.RegNone:
	case insts.RegHILO:
		p.regs.WriteHILO(s.HI, s.LO)
	default:
		p.regs.WriteReg(dst, s.Result)
	}

	if s.cp0Write {
		p.cp0.Write(s.cp0Reg, s.cp0Value)
	}
	if s.rfe {
		p.cp0.ReturnFromException()
	}

	p.stats.Instructions++
}
