package pipeline

import (
	"fmt"

	"github.com/go-logr/logr"

	"github.com/sarchlab/r3ksim/emu"
	"github.com/sarchlab/r3ksim/exc"
	"github.com/sarchlab/r3ksim/insts"
	"github.com/sarchlab/r3ksim/mem"
	"github.com/sarchlab/r3ksim/timing/clock"
	"github.com/sarchlab/r3ksim/timing/latency"
)

// Coprocessor0 is the system control coprocessor as used by the pipeline.
type Coprocessor0 interface {
	Translate(vaddr uint32, mode exc.Mode) (phys uint32, cacheable bool, err error)
	EnterException(epc uint32, r exc.Record, delaySlot bool)
	ReturnFromException()
	UseBootVectors() bool
	TLBMissUser() bool
	CachesIsolated() bool
	CachesSwapped() bool
	InterruptPending() bool
	Usable(n int) bool
	Read(reg uint8) uint32
	Write(reg uint8, value uint32)
}

// Memory is the bus used for uncached accesses.
type Memory interface {
	AcquireBus(client mem.ClientID) bool
	ReleaseBus(client mem.ClientID)
	RequestWord(addr uint32, mode exc.Mode, client mem.ClientID) error
	Ready(addr uint32, mode exc.Mode, client mem.ClientID) bool
	CancelRequest(addr uint32, mode exc.Mode, client mem.ClientID)
	FetchWord(addr uint32, mode exc.Mode, client mem.ClientID) (uint32, error)
	FetchHalfword(addr uint32, mode exc.Mode, client mem.ClientID) (uint16, error)
	FetchByte(addr uint32, mode exc.Mode, client mem.ClientID) (uint8, error)
	StoreWord(addr, data uint32, client mem.ClientID) error
	StoreHalfword(addr uint32, data uint16, client mem.ClientID) error
	StoreByte(addr uint32, data uint8, client mem.ClientID) error
	BigEndian() bool
}

// Cache is an instruction or data cache as used by the pipeline.
type Cache interface {
	Ready(addr uint32) bool
	RequestBlock(addr uint32, mode exc.Mode, client mem.ClientID) bool
	PollFault(addr uint32) *exc.Fault
	FetchWord(addr uint32) uint32
	FetchHalfword(addr uint32) uint16
	FetchByte(addr uint32) uint8
	StoreWord(addr, data uint32)
	StoreHalfword(addr uint32, data uint16)
	StoreByte(addr uint32, data uint8)
	ExecCacheOp(op uint8, addr uint32, client mem.ClientID) bool
	SetIsolated(isolated bool)
}

// Statistics holds pipeline performance statistics.
type Statistics struct {
	// Cycles is the total number of cycles simulated.
	Cycles uint64
	// Instructions is the number of instructions retired.
	Instructions uint64
	// Stalls is the number of cycles in which the pipeline did not advance.
	Stalls uint64
	// MemStalls counts cycles stalled on a MEM-stage access.
	MemStalls uint64
	// ExecStalls counts cycles stalled on the multiply/divide interlock.
	ExecStalls uint64
	// DecodeStalls counts cycles a control transfer waited in ID.
	DecodeStalls uint64
	// FetchStalls counts cycles IF produced a bubble.
	FetchStalls uint64
	// DataHazards is the number of operands satisfied by forwarding. Each
	// operand of an instruction is counted once, however long ID stalls.
	DataHazards uint64
	// LoadUseHazards counts operands that depended on a load still in EX,
	// once per operand.
	LoadUseHazards uint64
	// BranchesTaken counts taken branches and jumps.
	BranchesTaken uint64
	// Flushes counts wrong-path instructions squashed by a taken branch or
	// an exception.
	Flushes uint64
	// Exceptions counts exceptions taken at writeback.
	Exceptions uint64
}

// CPI returns the cycles per instruction.
func (s Statistics) CPI() float64 {
	if s.Instructions == 0 {
		return 0
	}
	return float64(s.Cycles) / float64(s.Instructions)
}

// PipelineOption is a functional option for configuring the Pipeline.
type PipelineOption func(*Pipeline)

// WithLogger sets the logger. Exceptions and hazards are logged at V(1).
func WithLogger(logger logr.Logger) PipelineOption {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithLatencyTable sets the latency table for multiply/divide timing.
func WithLatencyTable(table *latency.Table) PipelineOption {
	return func(p *Pipeline) {
		p.latencyTable = table
	}
}

// WithICache routes cacheable instruction fetches through c.
func WithICache(c Cache) PipelineOption {
	return func(p *Pipeline) {
		p.icache = c
	}
}

// WithDCache routes cacheable data accesses through c.
func WithDCache(c Cache) PipelineOption {
	return func(p *Pipeline) {
		p.dcache = c
	}
}

// WithBranchDelaySlot executes the instruction after a taken branch instead
// of squashing it.
func WithBranchDelaySlot(enabled bool) PipelineOption {
	return func(p *Pipeline) {
		p.delaySlots = enabled
	}
}

// WithHaltOnBreak stops the pipeline when a BREAK reaches writeback instead
// of vectoring to the handler.
func WithHaltOnBreak(enabled bool) PipelineOption {
	return func(p *Pipeline) {
		p.exceptions.haltOnBreak = enabled
	}
}

// WithHaltOnIBE stops the pipeline on an instruction bus error.
func WithHaltOnIBE(enabled bool) PipelineOption {
	return func(p *Pipeline) {
		p.exceptions.haltOnIBE = enabled
	}
}

// WithClientID sets the identity the CPU uses on the bus.
func WithClientID(id mem.ClientID) PipelineOption {
	return func(p *Pipeline) {
		p.client = id
	}
}

// Pipeline implements the R3000 5-stage pipeline:
// Fetch (IF) -> Decode (ID) -> Execute (EX) -> Memory (MEM) -> Writeback (WB).
type Pipeline struct {
	slots [numStages]*Snapshot
	pc    uint32
	seq   uint64
	clock *clock.Clock

	// fetchReq and dataReq are the uncached bus requests the CPU has
	// issued and not yet transferred.
	fetchReq busRequest
	dataReq  busRequest

	// mulDivReady is the first cycle in which a HI/LO instruction may
	// enter EX.
	mulDivReady uint64

	decoder      *insts.Decoder
	forwarding   *ForwardingUnit
	exceptions   *ExceptionController
	latencyTable *latency.Table

	regs   *emu.RegFile
	cp0    Coprocessor0
	memory Memory
	icache Cache
	dcache Cache
	client mem.ClientID

	delaySlots bool

	stats  Statistics
	logger logr.Logger

	halted     bool
	haltRecord exc.Record
}

// NewPipeline creates a pipeline with every stage empty and the fetch PC
// at zero. clk is the machine clock; the pipeline reads it but never
// advances it.
func NewPipeline(
	regs *emu.RegFile,
	cp0 Coprocessor0,
	memory Memory,
	clk *clock.Clock,
	opts ...PipelineOption,
) *Pipeline {
	p := &Pipeline{
		clock:        clk,
		decoder:      insts.NewDecoder(),
		forwarding:   NewForwardingUnit(),
		exceptions:   NewExceptionController(cp0, logr.Discard()),
		latencyTable: latency.NewTable(),
		regs:         regs,
		cp0:          cp0,
		memory:       memory,
		client:       mem.NewClientID("cpu"),
		logger:       logr.Discard(),
	}

	for _, opt := range opts {
		opt(p)
	}
	p.exceptions.logger = p.logger

	p.flush(0)
	return p
}

// PC returns the fetch program counter.
func (p *Pipeline) PC() uint32 {
	return p.pc
}

// SetPC empties the pipeline and restarts fetch at pc.
func (p *Pipeline) SetPC(pc uint32) {
	p.flush(pc)
}

// Reg returns a register value. HI and LO are selected with insts.RegHI and
// insts.RegLO.
func (p *Pipeline) Reg(reg insts.Reg) uint32 {
	return p.regs.ReadReg(reg)
}

// SetReg writes a register value.
func (p *Pipeline) SetReg(reg insts.Reg, value uint32) {
	p.regs.WriteReg(reg, value)
}

// RegFile returns the architectural register file.
func (p *Pipeline) RegFile() *emu.RegFile {
	return p.regs
}

// Slot returns the snapshot in stage. Empty stages hold a bubble.
func (p *Pipeline) Slot(stage Stage) *Snapshot {
	return p.slots[stage]
}

// PendingException returns the exception the instruction in WB will take
// on the next cycle, if any.
func (p *Pipeline) PendingException() (exc.Record, bool) {
	s := p.slots[StageWB]
	if s == nil || s.Bubble {
		return exc.Record{}, false
	}
	return exc.Select(s.Exceptions)
}

// ClientID returns the identity the CPU uses on the bus.
func (p *Pipeline) ClientID() mem.ClientID {
	return p.client
}

// Stats returns pipeline statistics.
func (p *Pipeline) Stats() Statistics {
	return p.stats
}

// Halted returns true if the pipeline has halted.
func (p *Pipeline) Halted() bool {
	return p.halted
}

// HaltRecord returns the exception that halted the pipeline.
func (p *Pipeline) HaltRecord() (exc.Record, bool) {
	return p.haltRecord, p.halted
}

// RunCycles executes the pipeline for the specified number of cycles.
// Returns true if still running, false if halted.
func (p *Pipeline) RunCycles(cycles uint64) bool {
	for i := uint64(0); i < cycles && !p.halted; i++ {
		p.Tick()
	}
	return !p.halted
}

// Tick executes one pipeline cycle.
//
// Stages are evaluated oldest first (WB, MEM, EX, ID, IF) so that a value
// produced by an older instruction is visible to a younger one in the same
// cycle. A stalled stage holds itself and every younger stage; older stages
// drain and a bubble is inserted behind them.
func (p *Pipeline) Tick() {
	if p.halted {
		return
	}

	p.stats.Cycles++

	isolated := p.cp0.CachesIsolated()
	if c := p.dataCache(); c != nil {
		c.SetIsolated(isolated)
	}

	if p.writeback() {
		return
	}

	if p.memoryAccess() {
		p.stats.Stalls++
		p.stats.MemStalls++
		p.slots[StageWB] = newBubble(p.slots[StageMEM].PC)
		p.fetch()
		return
	}

	if p.execute() {
		p.stats.Stalls++
		p.stats.ExecStalls++
		p.slots[StageWB] = p.slots[StageMEM]
		p.slots[StageMEM] = newBubble(p.slots[StageEX].PC)
		p.fetch()
		return
	}

	if p.decode() {
		p.stats.Stalls++
		p.stats.DecodeStalls++
		p.slots[StageWB] = p.slots[StageMEM]
		p.slots[StageMEM] = p.slots[StageEX]
		p.slots[StageEX] = newBubble(p.slots[StageID].PC)
		p.fetch()
		return
	}

	p.advance()
	p.fetch()
}

// execute runs the EX stage. It returns true if EX must stall on the
// multiply/divide interlock.
func (p *Pipeline) execute() bool {
	s := p.slots[StageEX]
	if s == nil || s.Bubble || s.executed || s.Faulted() {
		return false
	}

	inst := s.Inst
	now := p.clock.Now()
	if inst.IsMultDiv() && now < p.mulDivReady {
		return true
	}

	if f := executeTable[inst.Op]; f != nil {
		f(p, s)
	}
	s.executed = true

	if n := p.latencyTable.InterlockCycles(inst); n > 0 {
		p.mulDivReady = now + n + 1
	}
	return false
}

func (p *Pipeline) advance() {
	for st := StageWB; st > StageIF; st-- {
		p.slots[st] = p.slots[st-1]
	}
	p.slots[StageIF] = newBubble(p.pc)
}

// flush replaces every stage with a bubble and restarts fetch at pc.
// Uncached requests of squashed instructions are abandoned; cache
// transactions already in flight run to completion.
func (p *Pipeline) flush(pc uint32) {
	p.cancel(&p.fetchReq)
	p.cancel(&p.dataReq)
	for st := range p.slots {
		if s := p.slots[st]; s != nil && !s.Bubble {
			p.stats.Flushes++
		}
		p.slots[st] = newBubble(pc)
	}
	p.pc = pc
}

// read returns the current value of an operand.
func (p *Pipeline) read(o Operand) uint32 {
	switch o.Kind {
	case SourceArchitectural:
		return p.regs.ReadReg(o.Reg)
	case SourceForwarded:
		for st := StageEX; st <= StageWB; st++ {
			if s := p.slots[st]; s != nil && s.Seq == o.Seq && s.Writes(o.Reg) {
				return s.ValueFor(o.Reg)
			}
		}
		return p.regs.ReadReg(o.Reg)
	case SourceImmediate, SourceShiftAmount:
		return o.Value
	}
	return 0
}

func (p *Pipeline) String() string {
	return fmt.Sprintf("pc=0x%08x IF=%s ID=%s EX=%s MEM=%s WB=%s", p.pc,
		p.slots[StageIF], p.slots[StageID], p.slots[StageEX], p.slots[StageMEM], p.slots[StageWB])
}

// busRequest is an uncached word request the CPU is waiting on.
type busRequest struct {
	addr   uint32
	mode   exc.Mode
	active bool
}

func (p *Pipeline) issue(r *busRequest, addr uint32, mode exc.Mode) error {
	if err := p.memory.RequestWord(addr, mode, p.client); err != nil {
		return err
	}
	*r = busRequest{addr: addr, mode: mode, active: true}
	return nil
}

// cancel abandons r, if active, and gives up the bus.
func (p *Pipeline) cancel(r *busRequest) {
	if !r.active {
		return
	}
	p.memory.CancelRequest(r.addr, r.mode, p.client)
	p.memory.ReleaseBus(p.client)
	r.active = false
}
