package core_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/r3ksim/exc"
	"github.com/sarchlab/r3ksim/insts"
	"github.com/sarchlab/r3ksim/mem"
	"github.com/sarchlab/r3ksim/timing/cache"
	"github.com/sarchlab/r3ksim/timing/core"
)

const (
	cachedBase = 0x80001000
	cachedData = 0x80002000
)

var _ = Describe("Machine", func() {
	var cfg *core.Config

	newMachine := func() *core.Machine {
		m, err := core.NewMachine(cfg, core.WithLogger(GinkgoLogr))
		Expect(err).NotTo(HaveOccurred())
		return m
	}

	BeforeEach(func() {
		cfg = core.DefaultConfig()
	})

	It("should start fetching at the reset vector", func() {
		m := newMachine()

		Expect(m.PC()).To(Equal(uint32(core.ResetVector)))
		Expect(m.Halted()).To(BeFalse())
		Expect(m.ICache()).NotTo(BeNil())
		Expect(m.DCache()).NotTo(BeNil())
	})

	It("should reject an invalid configuration", func() {
		cfg.FrequencyMHz = 0

		_, err := core.NewMachine(cfg)
		Expect(err).To(HaveOccurred())
	})

	It("should reject overlapping regions", func() {
		cfg.Regions = append(cfg.Regions, core.RegionConfig{Name: "dup", Base: 0x1000, Size: 0x1000})

		_, err := core.NewMachine(cfg)
		Expect(err).To(MatchError(ContainSubstring("dup")))
	})

	It("should run a boot ROM program to BREAK", func() {
		m := newMachine()
		Expect(m.LoadProgram(core.ResetVector, []uint32{
			insts.ADDIU(2, 0, 7),
			insts.ADDIU(3, 2, 5),
			insts.ADDU(2, 2, 3),
			insts.BREAK(),
		})).To(Succeed())

		Expect(m.Run(10000)).To(Succeed())

		rec, halted := m.HaltRecord()
		Expect(halted).To(BeTrue())
		Expect(rec.Code).To(Equal(exc.Bp))
		Expect(m.ExitCode()).To(Equal(uint32(19)))
		Expect(m.Stats().Instructions).To(Equal(uint64(3)))
	})

	It("should stop at the cycle limit", func() {
		m := newMachine()
		Expect(m.LoadProgram(core.ResetVector, []uint32{
			insts.BEQ(0, 0, -1),
		})).To(Succeed())

		err := m.Run(200)
		Expect(errors.Is(err, core.ErrCycleLimit)).To(BeTrue())
		Expect(m.Halted()).To(BeFalse())
		Expect(m.Stats().Cycles).To(Equal(uint64(200)))
	})

	It("should keep stores in the data cache", func() {
		m := newMachine()
		Expect(m.LoadProgram(cachedBase, []uint32{
			insts.LUI(9, 0x8000),
			insts.ADDIU(8, 0, 0x55),
			insts.SW(8, 9, 0x2000),
			insts.LW(10, 9, 0x2000),
			insts.BREAK(),
		})).To(Succeed())
		m.SetPC(cachedBase)

		Expect(m.Run(10000)).To(Succeed())

		Expect(m.Reg(10)).To(Equal(uint32(0x55)))
		word, err := m.Mapper().PeekWord(cachedData - 0x80000000)
		Expect(err).NotTo(HaveOccurred())
		Expect(word).To(BeZero())

		stats := m.Stats()
		Expect(stats.ICache.Misses).To(BeNumerically(">", 0))
		Expect(stats.DCache.Misses).To(Equal(uint64(1)))
		Expect(stats.DCache.Hits).To(BeNumerically(">=", 1))
		Expect(stats.Bus.Reads).To(BeNumerically(">", 0))
	})

	It("should run the same program with caches disabled", func() {
		program := []uint32{
			insts.ADDIU(8, 0, 10),
			insts.ADDIU(2, 2, 3),
			insts.ADDIU(8, 8, -1),
			insts.BNE(8, 0, -3),
			insts.BREAK(),
		}

		cached := newMachine()
		Expect(cached.LoadProgram(cachedBase, program)).To(Succeed())
		cached.SetPC(cachedBase)
		Expect(cached.Run(100000)).To(Succeed())

		cfg.ICache.Enabled = false
		cfg.DCache.Enabled = false
		uncached := newMachine()
		Expect(uncached.ICache()).To(BeNil())
		Expect(uncached.LoadProgram(cachedBase, program)).To(Succeed())
		uncached.SetPC(cachedBase)
		Expect(uncached.Run(100000)).To(Succeed())

		Expect(cached.ExitCode()).To(Equal(uint32(30)))
		Expect(uncached.ExitCode()).To(Equal(uint32(30)))
		Expect(cached.Stats().Instructions).To(Equal(uncached.Stats().Instructions))
		Expect(cached.Stats().Cycles).To(BeNumerically("<", uncached.Stats().Cycles))
	})

	It("should move more words per cycle with higher bandwidth", func() {
		program := []uint32{
			insts.ADDIU(2, 0, 1),
			insts.ADDIU(2, 2, 1),
			insts.ADDIU(2, 2, 1),
			insts.ADDIU(2, 2, 1),
			insts.BREAK(),
		}

		narrow := newMachine()
		Expect(narrow.LoadProgram(cachedBase, program)).To(Succeed())
		narrow.SetPC(cachedBase)
		Expect(narrow.Run(10000)).To(Succeed())

		cfg.Timing.MemBandwidth = 4
		wide := newMachine()
		Expect(wide.LoadProgram(cachedBase, program)).To(Succeed())
		wide.SetPC(cachedBase)
		Expect(wide.Run(10000)).To(Succeed())

		Expect(wide.ExitCode()).To(Equal(narrow.ExitCode()))
		Expect(wide.Stats().Cycles).To(BeNumerically("<", narrow.Stats().Cycles))
	})

	It("should report simulated time from the clock frequency", func() {
		cfg.FrequencyMHz = 1
		m := newMachine()
		Expect(m.LoadProgram(core.ResetVector, []uint32{insts.BEQ(0, 0, -1)})).To(Succeed())

		m.RunCycles(1000)

		Expect(m.SimulatedTime()).To(BeNumerically("~", 0.001, 1e-9))
		Expect(m.Stats().SimulatedTime).To(Equal(m.SimulatedTime()))
	})

	It("should fail to load outside mapped memory", func() {
		m := newMachine()
		Expect(m.LoadProgram(0x80F00000, []uint32{0})).NotTo(Succeed())
		Expect(m.LoadImage(0x80F00000, []byte{1})).NotTo(Succeed())
	})

	It("should load a raw big-endian image and run it", func() {
		m := newMachine()
		image := []byte{
			0x24, 0x02, 0x00, 0x2a, // addiu $v0, $zero, 42
			0x00, 0x00, 0x00, 0x0d, // break
		}
		Expect(m.LoadImage(cachedBase, image)).To(Succeed())
		m.SetPC(cachedBase)

		Expect(m.Run(10000)).To(Succeed())
		Expect(m.ExitCode()).To(Equal(uint32(42)))
	})

	It("should let an instruction fill finish across an exception flush", func() {
		m := newMachine()
		Expect(m.LoadProgram(cachedBase, []uint32{
			insts.NOP,
			insts.NOP,
			insts.NOP,
			insts.SYSCALL(), // last word of the line; the next line is being filled
		})).To(Succeed())
		Expect(m.LoadProgram(core.ResetVector+0x180, []uint32{insts.BREAK()})).To(Succeed())
		m.SetPC(cachedBase)

		for i := 0; i < 1000 && m.Stats().Pipeline.Exceptions == 0; i++ {
			m.Tick()
		}
		Expect(m.Stats().Pipeline.Exceptions).To(Equal(uint64(1)))

		next := uint32(cachedBase+16) - 0x80000000
		t, ok := m.ICache().Transaction()
		Expect(ok).To(BeTrue())
		Expect(t.Addr).To(Equal(next))
		Expect(t.Remaining).To(BeNumerically(">", 0))
		fills := m.Stats().ICache.Fills

		Expect(m.Run(10000)).To(Succeed())

		rec, _ := m.HaltRecord()
		Expect(rec.Code).To(Equal(exc.Bp))
		Expect(m.ICache().Ready(next)).To(BeTrue())
		Expect(m.Stats().ICache.Fills).To(Equal(fills + 1))
	})

	It("should give the bus to one master at a time", func() {
		m := newMachine()
		Expect(m.LoadProgram(cachedBase, []uint32{
			insts.LUI(8, 0x8000),
			insts.ORI(8, 8, 0x2000), // cached data, 2KB stride shares a set
			insts.LUI(9, 0xA000),
			insts.ORI(9, 9, 0x4000), // uncached word
			insts.ADDIU(10, 0, 4),
			insts.LW(11, 8, 0), // loop
			insts.ADDIU(11, 11, 1),
			insts.SW(11, 8, 0),
			insts.LW(12, 9, 0),
			insts.ADDU(2, 2, 12),
			insts.ADDIU(8, 8, 0x800),
			insts.ADDIU(10, 10, -1),
			insts.BGTZ(10, -8),
			insts.NOP,
			insts.BREAK(),
		})).To(Succeed())
		Expect(m.Mapper().LoadWords(0x4000, []uint32{1})).To(Succeed())
		m.SetPC(cachedBase)

		arbiter := m.Mapper().Arbiter()
		ic, dc, cpu := m.ICache(), m.DCache(), m.Pipeline.ClientID()
		seen := map[mem.ClientID]bool{}

		// A cache that has moved words of its line owns the bus.
		owns := func(c *cache.Cache, holder mem.ClientID, held bool) {
			if t, ok := c.Transaction(); ok && t.Remaining < c.Config().BlockSize/4 {
				Expect(held).To(BeTrue())
				Expect(holder).To(Equal(c.ID()))
			}
		}

		for i := 0; i < 10000 && !m.Halted(); i++ {
			m.Tick()
			holder, held := arbiter.Holder()
			if held {
				Expect(holder).To(BeElementOf(ic.ID(), dc.ID(), cpu))
				seen[holder] = true
			}
			owns(ic, holder, held)
			owns(dc, holder, held)
		}

		Expect(m.Halted()).To(BeTrue())
		Expect(m.ExitCode()).To(Equal(uint32(4)))
		Expect(m.Stats().DCache.Writebacks).To(BeNumerically(">", 0))
		Expect(seen).To(HaveLen(3))
	})

	It("should expose the pending exception in writeback", func() {
		m := newMachine()
		Expect(m.LoadProgram(core.ResetVector, []uint32{insts.SYSCALL()})).To(Succeed())

		var rec exc.Record
		found := false
		for i := 0; i < 100 && !found; i++ {
			m.Tick()
			rec, found = m.PendingException()
		}

		Expect(found).To(BeTrue())
		Expect(rec.Code).To(Equal(exc.Sys))
	})
})
