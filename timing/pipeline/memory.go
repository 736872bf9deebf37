package pipeline

import (
	"errors"

	"github.com/sarchlab/r3ksim/emu"
	"github.com/sarchlab/r3ksim/exc"
	"github.com/sarchlab/r3ksim/insts"
	"github.com/sarchlab/r3ksim/mem"
)

// dataPort is the sized access interface shared by the cached and uncached
// data paths.
type dataPort interface {
	loadWord(addr uint32) (uint32, error)
	loadHalf(addr uint32) (uint16, error)
	loadByte(addr uint32) (uint8, error)
	storeWord(addr, v uint32) error
	storeHalf(addr uint32, v uint16) error
	storeByte(addr uint32, v uint8) error
}

type cachePort struct {
	c Cache
}

func (p cachePort) loadWord(addr uint32) (uint32, error) { return p.c.FetchWord(addr), nil }
func (p cachePort) loadHalf(addr uint32) (uint16, error) { return p.c.FetchHalfword(addr), nil }
func (p cachePort) loadByte(addr uint32) (uint8, error)  { return p.c.FetchByte(addr), nil }

func (p cachePort) storeWord(addr, v uint32) error {
	p.c.StoreWord(addr, v)
	return nil
}

func (p cachePort) storeHalf(addr uint32, v uint16) error {
	p.c.StoreHalfword(addr, v)
	return nil
}

func (p cachePort) storeByte(addr uint32, v uint8) error {
	p.c.StoreByte(addr, v)
	return nil
}

type busPort struct {
	m      Memory
	mode   exc.Mode
	client mem.ClientID
}

func (p busPort) loadWord(addr uint32) (uint32, error) {
	return p.m.FetchWord(addr, p.mode, p.client)
}

func (p busPort) loadHalf(addr uint32) (uint16, error) {
	return p.m.FetchHalfword(addr, p.mode, p.client)
}

func (p busPort) loadByte(addr uint32) (uint8, error) {
	return p.m.FetchByte(addr, p.mode, p.client)
}

func (p busPort) storeWord(addr, v uint32) error {
	return p.m.StoreWord(addr, v, p.client)
}

func (p busPort) storeHalf(addr uint32, v uint16) error {
	return p.m.StoreHalfword(addr, v, p.client)
}

func (p busPort) storeByte(addr uint32, v uint8) error {
	return p.m.StoreByte(addr, v, p.client)
}

// alignment returns the required address alignment mask of a memory
// operation. LWL/LWR/SWL/SWR access any byte.
func alignment(op insts.Op) uint32 {
	switch op {
	case insts.OpLH, insts.OpLHU, insts.OpSH:
		return 1
	case insts.OpLW, insts.OpSW:
		return 3
	}
	return 0
}

// memoryAccess runs the MEM stage. It returns true if the stage must stall.
func (p *Pipeline) memoryAccess() bool {
	s := p.slots[StageMEM]
	if s == nil || s.Bubble || s.Inst == nil || s.Faulted() {
		return false
	}

	inst := s.Inst
	switch {
	case inst.Op == insts.OpCACHE:
		return p.cacheOp(s)
	case inst.MemRead || inst.MemWrite:
		return p.dataAccess(s)
	}
	return false
}

func (p *Pipeline) dataAccess(s *Snapshot) bool {
	mode := exc.DataLoad
	if s.Inst.MemWrite {
		mode = exc.DataStore
	}

	if s.Addr&alignment(s.Inst.Op) != 0 {
		p.fault(s, exc.AddressError(mode, s.Addr))
		return false
	}

	phys, cacheable, err := p.cp0.Translate(s.Addr, mode)
	if err != nil {
		p.fault(s, err)
		return false
	}

	if c := p.dataCache(); cacheable && c != nil {
		if f := c.PollFault(phys); f != nil {
			p.fault(s, f)
			return false
		}
		if !c.Ready(phys) {
			c.RequestBlock(phys, mode, p.client)
			return true
		}
		if err := p.transfer(s, cachePort{c: c}, phys); err != nil {
			p.fault(s, err)
		}
		return false
	}

	return p.uncachedAccess(s, phys, mode)
}

// uncachedAccess performs a single-word bus transaction, holding the bus
// from request until the data moves.
func (p *Pipeline) uncachedAccess(s *Snapshot, phys uint32, mode exc.Mode) bool {
	if !p.memory.AcquireBus(p.client) {
		return true
	}
	if err := p.issue(&p.dataReq, phys, mode); err != nil {
		p.memory.ReleaseBus(p.client)
		p.fault(s, err)
		return false
	}
	if !p.memory.Ready(phys, mode, p.client) {
		return true
	}

	err := p.transfer(s, busPort{m: p.memory, mode: mode, client: p.client}, phys)
	p.dataReq.active = false
	p.memory.ReleaseBus(p.client)
	if err != nil {
		p.fault(s, err)
	}
	return false
}

// transfer moves the data of a load or store through port.
func (p *Pipeline) transfer(s *Snapshot, port dataPort, addr uint32) error {
	be := p.memory.BigEndian()
	aligned := addr &^ 3

	var err error
	switch s.Inst.Op {
	case insts.OpLB:
		var b uint8
		b, err = port.loadByte(addr)
		s.Result = emu.SignExtendByte(b)
	case insts.OpLBU:
		var b uint8
		b, err = port.loadByte(addr)
		s.Result = uint32(b)
	case insts.OpLH:
		var h uint16
		h, err = port.loadHalf(addr)
		s.Result = emu.SignExtendHalf(h)
	case insts.OpLHU:
		var h uint16
		h, err = port.loadHalf(addr)
		s.Result = uint32(h)
	case insts.OpLW:
		s.Result, err = port.loadWord(addr)
	case insts.OpLWL, insts.OpLWR:
		var w uint32
		if w, err = port.loadWord(aligned); err == nil {
			if s.Inst.Op == insts.OpLWL {
				s.Result = emu.LoadWordLeft(p.read(s.Data), w, addr, be)
			} else {
				s.Result = emu.LoadWordRight(p.read(s.Data), w, addr, be)
			}
		}
	case insts.OpSB:
		err = port.storeByte(addr, uint8(p.read(s.Data)))
	case insts.OpSH:
		err = port.storeHalf(addr, uint16(p.read(s.Data)))
	case insts.OpSW:
		err = port.storeWord(addr, p.read(s.Data))
	case insts.OpSWL, insts.OpSWR:
		var w uint32
		if w, err = port.loadWord(aligned); err == nil {
			if s.Inst.Op == insts.OpSWL {
				w = emu.StoreWordLeft(p.read(s.Data), w, addr, be)
			} else {
				w = emu.StoreWordRight(p.read(s.Data), w, addr, be)
			}
			err = port.storeWord(aligned, w)
		}
	}
	return err
}

// cacheOp runs a CACHE instruction against the cache its operation code
// selects.
func (p *Pipeline) cacheOp(s *Snapshot) bool {
	phys, _, err := p.cp0.Translate(s.Addr, exc.DataLoad)
	if err != nil {
		p.fault(s, err)
		return false
	}

	c := p.dcache
	if s.Inst.CacheOp < insts.CacheOpDCacheStart {
		c = p.icache
	}
	if c == nil {
		return false
	}
	return !c.ExecCacheOp(s.Inst.CacheOp, phys, p.client)
}

// fault records an exception carried by err on s.
func (p *Pipeline) fault(s *Snapshot, err error) {
	var f *exc.Fault
	if !errors.As(err, &f) {
		p.logger.Error(err, "unexpected memory error", "pc", s.PC)
		f = exc.BusError(exc.DataLoad, s.Addr)
	}
	s.AddException(f.Record)
}

// dataCache returns the cache serving data accesses, honoring the CP0 swap
// bit.
func (p *Pipeline) dataCache() Cache {
	if p.cp0.CachesSwapped() {
		return p.icache
	}
	return p.dcache
}

// instCache returns the cache serving instruction fetches.
func (p *Pipeline) instCache() Cache {
	if p.cp0.CachesSwapped() {
		return p.dcache
	}
	return p.icache
}
