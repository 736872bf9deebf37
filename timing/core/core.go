// Package core assembles a complete R3000 machine: clock, memory map, bus
// arbiter, coprocessor 0, caches and the 5-stage pipeline. It provides the
// high-level interface used by the command-line tools and benchmarks.
package core

import (
	"errors"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/r3ksim/emu"
	"github.com/sarchlab/r3ksim/exc"
	"github.com/sarchlab/r3ksim/insts"
	"github.com/sarchlab/r3ksim/mem"
	"github.com/sarchlab/r3ksim/timing/cache"
	"github.com/sarchlab/r3ksim/timing/clock"
	"github.com/sarchlab/r3ksim/timing/cp0"
	"github.com/sarchlab/r3ksim/timing/latency"
	"github.com/sarchlab/r3ksim/timing/pipeline"
)

// ErrCycleLimit is returned by Run when the machine did not halt in time.
var ErrCycleLimit = errors.New("cycle limit reached")

// Stats holds performance statistics for the machine.
type Stats struct {
	// Cycles is the total number of cycles simulated.
	Cycles uint64
	// Instructions is the number of instructions retired.
	Instructions uint64
	// Stalls is the number of stall cycles.
	Stalls uint64
	// Flushes is the number of squashed instructions.
	Flushes uint64
	// SimulatedTime is the elapsed time in seconds at the configured clock.
	SimulatedTime float64

	Pipeline pipeline.Statistics
	ICache   cache.Statistics
	DCache   cache.Statistics
	Bus      mem.Stats
	Arbiter  mem.ArbiterStats
}

// CPI returns the cycles per instruction.
func (s Stats) CPI() float64 {
	return s.Pipeline.CPI()
}

// Option is a functional option for configuring the Machine.
type Option func(*Machine)

// WithLogger sets the logger handed to every component.
func WithLogger(logger logr.Logger) Option {
	return func(m *Machine) {
		m.logger = logger
	}
}

// Machine is a cycle-accurate R3000 system.
type Machine struct {
	// Pipeline is the underlying 5-stage pipeline.
	Pipeline *pipeline.Pipeline

	config *Config
	clock  *clock.Clock
	mapper *mem.Mapper
	cp0    *cp0.CP0
	regs   *emu.RegFile
	icache *cache.Cache
	dcache *cache.Cache
	logger logr.Logger
}

// NewMachine builds a machine from cfg. Fetch starts at cfg.ResetPC.
func NewMachine(cfg *Config, opts ...Option) (*Machine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid machine configuration: %w", err)
	}

	m := &Machine{
		config: cfg.Clone(),
		logger: logr.Discard(),
	}
	for _, opt := range opts {
		opt(m)
	}

	timing := m.config.Timing
	m.clock = clock.New(sim.Freq(m.config.FrequencyMHz) * sim.MHz)
	m.mapper = mem.NewMapper(
		mem.Config{BigEndian: m.config.BigEndian, BusLatency: timing.BusLatency},
		m.clock,
		mem.WithLogger(m.logger.WithName("bus")),
	)
	if err := m.mapRegions(); err != nil {
		return nil, err
	}

	m.cp0 = cp0.New()
	m.regs = &emu.RegFile{}

	pipeOpts := []pipeline.PipelineOption{
		pipeline.WithLogger(m.logger.WithName("pipeline")),
		pipeline.WithLatencyTable(latency.NewTableWithConfig(timing)),
		pipeline.WithBranchDelaySlot(m.config.BranchDelaySlot),
		pipeline.WithHaltOnBreak(m.config.HaltOnBreak),
		pipeline.WithHaltOnIBE(m.config.HaltOnIBE),
	}

	var err error
	if m.config.ICache.Enabled {
		m.icache, err = cache.New("icache", m.config.ICache.Geometry, m.mapper, m.clock,
			cache.WithLogger(m.logger.WithName("icache")))
		if err != nil {
			return nil, err
		}
		pipeOpts = append(pipeOpts, pipeline.WithICache(m.icache))
	}
	if m.config.DCache.Enabled {
		m.dcache, err = cache.New("dcache", m.config.DCache.Geometry, m.mapper, m.clock,
			cache.WithLogger(m.logger.WithName("dcache")))
		if err != nil {
			return nil, err
		}
		pipeOpts = append(pipeOpts, pipeline.WithDCache(m.dcache))
	}

	m.Pipeline = pipeline.NewPipeline(m.regs, m.cp0, m.mapper, m.clock, pipeOpts...)
	m.Pipeline.SetPC(m.config.ResetPC)

	return m, nil
}

func (m *Machine) mapRegions() error {
	ram := m.config.Timing.RAMLatency
	for _, r := range m.config.Regions {
		var err error
		if r.ReadOnly {
			_, err = m.mapper.MapROM(r.Base, make([]byte, r.Size), ram+r.ExtraLatency)
		} else {
			_, err = m.mapper.MapRAM(r.Base, r.Size, ram+r.ExtraLatency)
		}
		if err != nil {
			return fmt.Errorf("failed to map region %q: %w", r.Name, err)
		}
	}
	return nil
}

// Config returns a copy of the machine configuration.
func (m *Machine) Config() *Config {
	return m.config.Clone()
}

// Clock returns the machine clock.
func (m *Machine) Clock() *clock.Clock {
	return m.clock
}

// Mapper returns the physical memory map.
func (m *Machine) Mapper() *mem.Mapper {
	return m.mapper
}

// CP0 returns the system control coprocessor.
func (m *Machine) CP0() *cp0.CP0 {
	return m.cp0
}

// ICache returns the instruction cache, or nil if it is disabled.
func (m *Machine) ICache() *cache.Cache {
	return m.icache
}

// DCache returns the data cache, or nil if it is disabled.
func (m *Machine) DCache() *cache.Cache {
	return m.dcache
}

// Tick advances the machine by one cycle. The pipeline runs first, then
// each cache controller is stepped MemBandwidth times, data cache first.
func (m *Machine) Tick() {
	m.Pipeline.Tick()

	for i := uint64(0); i < m.config.Timing.MemBandwidth; i++ {
		if m.dcache != nil {
			m.dcache.Step()
		}
		if m.icache != nil {
			m.icache.Step()
		}
	}

	m.clock.Tick()
}

// Halted returns true if the machine has halted.
func (m *Machine) Halted() bool {
	return m.Pipeline.Halted()
}

// HaltRecord returns the exception that halted the machine.
func (m *Machine) HaltRecord() (exc.Record, bool) {
	return m.Pipeline.HaltRecord()
}

// Run ticks the machine until it halts. A zero maxCycles means no limit.
// It returns ErrCycleLimit if the machine is still running after maxCycles.
func (m *Machine) Run(maxCycles uint64) error {
	for n := uint64(0); !m.Halted(); n++ {
		if maxCycles > 0 && n >= maxCycles {
			return fmt.Errorf("%w after %d cycles at pc 0x%08x", ErrCycleLimit, n, m.PC())
		}
		m.Tick()
	}

	rec, _ := m.HaltRecord()
	m.logger.V(1).Info("machine halted", "cause", rec, "cycles", m.clock.Now())
	return nil
}

// RunCycles ticks the machine for up to cycles cycles.
// Returns true if still running, false if halted.
func (m *Machine) RunCycles(cycles uint64) bool {
	for i := uint64(0); i < cycles && !m.Halted(); i++ {
		m.Tick()
	}
	return !m.Halted()
}

// Reg returns a register value.
func (m *Machine) Reg(reg insts.Reg) uint32 {
	return m.Pipeline.Reg(reg)
}

// SetReg writes a register value.
func (m *Machine) SetReg(reg insts.Reg, value uint32) {
	m.Pipeline.SetReg(reg, value)
}

// PC returns the fetch program counter.
func (m *Machine) PC() uint32 {
	return m.Pipeline.PC()
}

// SetPC empties the pipeline and restarts fetch at pc.
func (m *Machine) SetPC(pc uint32) {
	m.Pipeline.SetPC(pc)
}

// PendingException returns the exception the instruction in writeback
// will take on the next cycle, if any.
func (m *Machine) PendingException() (exc.Record, bool) {
	return m.Pipeline.PendingException()
}

// ExitCode returns $v0, where programs leave their result before halting.
func (m *Machine) ExitCode() uint32 {
	return m.Reg(insts.RegV0)
}

// LoadProgram writes words at the virtual address addr, bypassing the
// caches and write protection.
func (m *Machine) LoadProgram(addr uint32, words []uint32) error {
	phys, _, err := m.cp0.Translate(addr, exc.DataStore)
	if err != nil {
		return fmt.Errorf("failed to translate load address 0x%08x: %w", addr, err)
	}
	if err := m.mapper.LoadWords(phys, words); err != nil {
		return fmt.Errorf("failed to load program at 0x%08x: %w", addr, err)
	}
	return nil
}

// LoadImage writes raw bytes at the virtual address addr, bypassing the
// caches and write protection.
func (m *Machine) LoadImage(addr uint32, data []byte) error {
	phys, _, err := m.cp0.Translate(addr, exc.DataStore)
	if err != nil {
		return fmt.Errorf("failed to translate load address 0x%08x: %w", addr, err)
	}
	if err := m.mapper.LoadImage(phys, data); err != nil {
		return fmt.Errorf("failed to load image at 0x%08x: %w", addr, err)
	}
	return nil
}

// SimulatedTime returns the elapsed simulated time in seconds.
func (m *Machine) SimulatedTime() float64 {
	return m.clock.Seconds()
}

// Stats returns performance statistics for the machine.
func (m *Machine) Stats() Stats {
	p := m.Pipeline.Stats()
	s := Stats{
		Cycles:        p.Cycles,
		Instructions:  p.Instructions,
		Stalls:        p.Stalls,
		Flushes:       p.Flushes,
		SimulatedTime: m.SimulatedTime(),
		Pipeline:      p,
		Bus:           m.mapper.Stats(),
		Arbiter:       m.mapper.Arbiter().Stats(),
	}
	if m.icache != nil {
		s.ICache = m.icache.Stats()
	}
	if m.dcache != nil {
		s.DCache = m.dcache.Stats()
	}
	return s
}
