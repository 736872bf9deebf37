package cache_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/r3ksim/exc"
	"github.com/sarchlab/r3ksim/insts"
	"github.com/sarchlab/r3ksim/mem"
	"github.com/sarchlab/r3ksim/timing/cache"
	"github.com/sarchlab/r3ksim/timing/clock"
)

var _ = Describe("Cache", func() {
	var (
		clk    *clock.Clock
		mapper *mem.Mapper
		c      *cache.Cache
		cpu    mem.ClientID
	)

	// Lines 64 bytes apart share a set.
	const (
		lineA = uint32(0x1000)
		lineB = uint32(0x1040)
		lineC = uint32(0x1080)
	)

	settle := func() {
		for i := 0; i < 100 && c.Busy(); i++ {
			c.Step()
			clk.Tick()
		}
		Expect(c.Busy()).To(BeFalse())
	}

	fill := func(addr uint32, mode exc.Mode) {
		Expect(c.RequestBlock(addr, mode, cpu)).To(BeTrue())
		settle()
		Expect(c.Ready(addr)).To(BeTrue())
	}

	peek := func(addr uint32) uint32 {
		w, err := mapper.PeekWord(addr)
		Expect(err).NotTo(HaveOccurred())
		return w
	}

	BeforeEach(func() {
		clk = clock.New(0)
		mapper = mem.NewMapper(mem.DefaultConfig(), clk)
		_, err := mapper.MapRAM(0, 0x4000, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(mapper.LoadWords(lineA, []uint32{0xA0, 0xA1, 0xA2, 0xA3})).To(Succeed())
		Expect(mapper.LoadWords(lineB, []uint32{0xB0, 0xB1, 0xB2, 0xB3})).To(Succeed())
		Expect(mapper.LoadWords(lineC, []uint32{0xC0, 0xC1, 0xC2, 0xC3})).To(Succeed())

		config := cache.Config{BlockCount: 4, BlockSize: 16, Ways: 2}
		c, err = cache.New("dcache", config, mapper, clk, cache.WithLogger(GinkgoLogr))
		Expect(err).NotTo(HaveOccurred())
		cpu = mem.NewClientID("cpu")
	})

	Describe("Configuration", func() {
		It("should compute the capacity", func() {
			Expect(cache.DefaultDCacheConfig().Size()).To(Equal(4096))
		})

		DescribeTable("invalid geometry",
			func(config cache.Config) {
				Expect(config.Validate()).NotTo(Succeed())
				_, err := cache.New("bad", config, mapper, clk)
				Expect(err).To(HaveOccurred())
			},
			Entry("non power of two sets", cache.Config{BlockCount: 3, BlockSize: 16, Ways: 1}),
			Entry("line smaller than a word", cache.Config{BlockCount: 4, BlockSize: 2, Ways: 1}),
			Entry("no ways", cache.Config{BlockCount: 4, BlockSize: 16, Ways: 0}),
		)

		It("should split addresses into tag, index and offset", func() {
			Expect(c.Offset(0x1234)).To(Equal(uint32(4)))
			Expect(c.Index(0x1234)).To(Equal(3))
			Expect(c.Tag(0x1234)).To(Equal(uint32(0x48)))
			Expect(c.BlockAddr(0x1234)).To(Equal(uint32(0x1230)))
		})

		It("should take a unique bus identity from its name", func() {
			Expect(string(c.ID())).To(HavePrefix("dcache-"))
			Expect(c.Name()).To(Equal("dcache"))
		})
	})

	Describe("Fills", func() {
		It("should miss on a cold cache and fill the line", func() {
			Expect(c.Ready(lineA)).To(BeFalse())
			Expect(c.RequestBlock(lineA+8, exc.DataLoad, cpu)).To(BeTrue())
			Expect(c.State()).To(Equal(cache.StateFetch))

			t, ok := c.Transaction()
			Expect(ok).To(BeTrue())
			Expect(t.Addr).To(Equal(lineA))
			Expect(t.Remaining).To(Equal(4))

			settle()

			Expect(c.FetchWord(lineA + 8)).To(Equal(uint32(0xA2)))
			stats := c.Stats()
			Expect(stats.Misses).To(Equal(uint64(1)))
			Expect(stats.Fills).To(Equal(uint64(1)))
			Expect(stats.Hits).To(Equal(uint64(1)))
		})

		It("should take one word per cycle after the bus latency", func() {
			Expect(c.RequestBlock(lineA, exc.DataLoad, cpu)).To(BeTrue())

			cycles := 0
			for c.Busy() {
				c.Step()
				clk.Tick()
				cycles++
			}
			Expect(cycles).To(Equal(5))
		})

		It("should refuse a second transaction while busy", func() {
			Expect(c.RequestBlock(lineA, exc.DataLoad, cpu)).To(BeTrue())
			Expect(c.RequestBlock(lineB, exc.DataLoad, cpu)).To(BeFalse())
			Expect(c.Stats().Misses).To(Equal(uint64(1)))
		})

		It("should not request a line already present", func() {
			fill(lineA, exc.DataLoad)
			Expect(c.RequestBlock(lineA, exc.DataLoad, cpu)).To(BeFalse())
		})

		It("should return all ones for a missing line", func() {
			Expect(c.FetchWord(lineA)).To(Equal(uint32(0xFFFFFFFF)))
			Expect(c.Stats().BusyDrops).To(Equal(uint64(1)))
		})

		It("should wait for the bus", func() {
			other := mem.NewClientID("icache")
			Expect(mapper.AcquireBus(other)).To(BeTrue())

			Expect(c.RequestBlock(lineA, exc.DataLoad, cpu)).To(BeTrue())
			for i := 0; i < 10; i++ {
				c.Step()
				clk.Tick()
			}
			Expect(c.Busy()).To(BeTrue())
			Expect(mapper.Arbiter().Stats().Denials).To(BeNumerically(">=", 10))

			mapper.ReleaseBus(other)
			clk.Tick()
			settle()
			Expect(c.Ready(lineA)).To(BeTrue())
		})

		It("should keep a bus error for the requester", func() {
			Expect(c.RequestBlock(0x8000, exc.DataLoad, cpu)).To(BeTrue())
			settle()

			Expect(c.Ready(0x8000)).To(BeFalse())
			f := c.PollFault(0x8004)
			Expect(f).NotTo(BeNil())
			Expect(f.Code).To(Equal(exc.DBE))
			Expect(c.PollFault(0x8004)).To(BeNil())
		})
	})

	Describe("Stores", func() {
		BeforeEach(func() {
			fill(lineA, exc.DataStore)
		})

		It("should keep stores in the cache", func() {
			c.StoreWord(lineA, 0x55)

			Expect(c.FetchWord(lineA)).To(Equal(uint32(0x55)))
			Expect(c.Line(0, c.Index(lineA)).Dirty).To(BeTrue())
			Expect(peek(lineA)).To(Equal(uint32(0xA0)))
		})

		It("should merge sub-word stores big-endian", func() {
			c.StoreWord(lineA, 0x11223344)
			c.StoreByte(lineA+3, 0xAA)
			c.StoreHalfword(lineA, 0xBBCC)

			Expect(c.FetchWord(lineA)).To(Equal(uint32(0xBBCC33AA)))
			Expect(c.FetchByte(lineA + 1)).To(Equal(uint8(0xCC)))
			Expect(c.FetchHalfword(lineA + 2)).To(Equal(uint16(0x33AA)))
		})

		It("should write back a dirty victim before refilling", func() {
			c.StoreWord(lineA+4, 0x55)
			clk.Tick()
			fill(lineB, exc.DataLoad)

			Expect(c.RequestBlock(lineC, exc.DataLoad, cpu)).To(BeTrue())
			Expect(c.State()).To(Equal(cache.StateWriteback))
			settle()

			Expect(peek(lineA + 4)).To(Equal(uint32(0x55)))
			Expect(c.Ready(lineA)).To(BeFalse())
			Expect(c.Ready(lineB)).To(BeTrue())
			Expect(c.FetchWord(lineC + 12)).To(Equal(uint32(0xC3)))

			stats := c.Stats()
			Expect(stats.Writebacks).To(Equal(uint64(1)))
			Expect(stats.Evictions).To(Equal(uint64(1)))
		})

		It("should release the bus between the victim writeback and the refill", func() {
			c.StoreWord(lineA+4, 0x55)
			clk.Tick()
			fill(lineB, exc.DataLoad)
			grants := mapper.Arbiter().Stats().Grants

			Expect(c.RequestBlock(lineC, exc.DataLoad, cpu)).To(BeTrue())
			for i := 0; i < 100 && c.State() == cache.StateWriteback; i++ {
				c.Step()
				clk.Tick()
			}

			Expect(c.State()).To(Equal(cache.StateFetch))
			_, held := mapper.Arbiter().Holder()
			Expect(held).To(BeFalse())
			t, ok := c.Transaction()
			Expect(ok).To(BeTrue())
			Expect(t.Addr).To(Equal(lineC))

			c.Step()
			holder, held := mapper.Arbiter().Holder()
			Expect(held).To(BeTrue())
			Expect(holder).To(Equal(c.ID()))

			settle()
			Expect(mapper.Arbiter().Stats().Grants - grants).To(Equal(uint64(2)))
			Expect(c.FetchWord(lineC)).To(Equal(uint32(0xC0)))
		})

		It("should drop dirty victims while isolated", func() {
			c.StoreWord(lineA, 0x55)
			clk.Tick()
			fill(lineB, exc.DataLoad)

			c.SetIsolated(true)
			Expect(c.RequestBlock(lineC, exc.DataLoad, cpu)).To(BeTrue())
			Expect(c.State()).To(Equal(cache.StateFetch))
			settle()

			Expect(peek(lineA)).To(Equal(uint32(0xA0)))
			Expect(c.Stats().Writebacks).To(BeZero())
		})

		It("should not write back victims of instruction fetches", func() {
			c.StoreWord(lineA, 0x55)
			clk.Tick()
			fill(lineB, exc.DataLoad)

			Expect(c.RequestBlock(lineC, exc.InstFetch, cpu)).To(BeTrue())
			Expect(c.State()).To(Equal(cache.StateFetch))
		})

		It("should drop everything on invalidate", func() {
			c.StoreWord(lineA, 0x55)
			c.Invalidate()

			Expect(c.Ready(lineA)).To(BeFalse())
			Expect(peek(lineA)).To(Equal(uint32(0xA0)))
		})
	})

	Describe("Cache operations", func() {
		BeforeEach(func() {
			fill(lineA, exc.DataLoad)
			c.StoreWord(lineA, 0x55)
		})

		It("should write back a dirty line on hit writeback", func() {
			Expect(c.ExecCacheOp(insts.CacheOpDCacheHitWriteback, lineA, cpu)).To(BeFalse())
			Expect(c.State()).To(Equal(cache.StateOpWriteback))
			settle()

			Expect(c.ExecCacheOp(insts.CacheOpDCacheHitWriteback, lineA, cpu)).To(BeTrue())
			Expect(peek(lineA)).To(Equal(uint32(0x55)))
			Expect(c.Ready(lineA)).To(BeTrue())
			Expect(c.Line(0, c.Index(lineA)).Dirty).To(BeFalse())
		})

		It("should invalidate after hit writeback invalidate", func() {
			Expect(c.ExecCacheOp(insts.CacheOpDCacheHitWritebackInvalidate, lineA, cpu)).To(BeFalse())
			settle()

			Expect(peek(lineA)).To(Equal(uint32(0x55)))
			Expect(c.Ready(lineA)).To(BeFalse())
		})

		It("should discard dirty data on hit invalidate", func() {
			Expect(c.ExecCacheOp(insts.CacheOpDCacheHitInvalidate, lineA, cpu)).To(BeTrue())

			Expect(c.Ready(lineA)).To(BeFalse())
			Expect(peek(lineA)).To(Equal(uint32(0xA0)))
		})

		It("should complete at once on a miss", func() {
			Expect(c.ExecCacheOp(insts.CacheOpDCacheHitWriteback, lineC, cpu)).To(BeTrue())
		})

		It("should treat index operations as no-ops", func() {
			Expect(c.ExecCacheOp(insts.CacheOpDCacheIndexWritebackInvalidate, lineA, cpu)).To(BeTrue())
			Expect(c.Ready(lineA)).To(BeTrue())
		})

		It("should wait while a transaction is in flight", func() {
			Expect(c.RequestBlock(lineB, exc.DataLoad, cpu)).To(BeTrue())
			Expect(c.ExecCacheOp(insts.CacheOpDCacheHitInvalidate, lineA, cpu)).To(BeFalse())
		})
	})
})
