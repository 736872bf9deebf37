package mem_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/r3ksim/exc"
	"github.com/sarchlab/r3ksim/mem"
	"github.com/sarchlab/r3ksim/timing/clock"
)

var _ = Describe("Mapper", func() {
	var (
		clk    *clock.Clock
		mapper *mem.Mapper
		cpu    mem.ClientID
	)

	BeforeEach(func() {
		clk = clock.New(0)
		mapper = mem.NewMapper(mem.DefaultConfig(), clk, mem.WithLogger(GinkgoLogr))
		cpu = mem.NewClientID("cpu")

		_, err := mapper.MapRAM(0, 0x1000, 2)
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("Regions", func() {
		It("should find the region containing an address", func() {
			r := mapper.Region(0xFFF)
			Expect(r).NotTo(BeNil())
			Expect(r.Base).To(BeZero())
			Expect(mapper.Region(0x1000)).To(BeNil())
		})

		It("should reject overlapping regions", func() {
			_, err := mapper.MapRAM(0x800, 0x1000, 0)
			Expect(err).To(MatchError(ContainSubstring("overlaps")))
		})

		It("should reject a region enclosing another", func() {
			_, err := mapper.MapRAM(0, 0x10000, 0)
			Expect(err).To(HaveOccurred())
		})

		It("should reject zero-size regions", func() {
			_, err := mapper.MapRAM(0x4000, 0, 0)
			Expect(err).To(HaveOccurred())
		})

		It("should reject regions past the end of the address space", func() {
			_, err := mapper.MapRAM(0xFFFFF000, 0x2000, 0)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Request/ready timing", func() {
		It("should be ready after the bus and region latency", func() {
			Expect(mapper.RequestWord(0x100, exc.DataLoad, cpu)).To(Succeed())

			for i := 0; i < 3; i++ {
				Expect(mapper.Ready(0x100, exc.DataLoad, cpu)).To(BeFalse())
				clk.Tick()
			}
			Expect(mapper.Ready(0x100, exc.DataLoad, cpu)).To(BeTrue())
		})

		It("should keep the original issue cycle on repeated requests", func() {
			Expect(mapper.RequestWord(0x100, exc.DataLoad, cpu)).To(Succeed())
			clk.Tick()
			clk.Tick()
			Expect(mapper.RequestWord(0x100, exc.DataLoad, cpu)).To(Succeed())
			clk.Tick()

			Expect(mapper.Ready(0x100, exc.DataLoad, cpu)).To(BeTrue())
			Expect(mapper.Stats().Requests).To(Equal(uint64(1)))
		})

		It("should not be ready without a request", func() {
			Expect(mapper.Ready(0x100, exc.DataLoad, cpu)).To(BeFalse())
		})

		It("should complete the request on transfer", func() {
			Expect(mapper.RequestWord(0x100, exc.DataLoad, cpu)).To(Succeed())
			clk.Tick()
			clk.Tick()
			clk.Tick()

			_, err := mapper.FetchWord(0x100, exc.DataLoad, cpu)
			Expect(err).NotTo(HaveOccurred())
			Expect(mapper.Ready(0x100, exc.DataLoad, cpu)).To(BeFalse())
		})

		It("should restart the latency after a cancelled request", func() {
			Expect(mapper.RequestWord(0x100, exc.InstFetch, cpu)).To(Succeed())
			clk.Tick()
			clk.Tick()
			clk.Tick()
			mapper.CancelRequest(0x100, exc.InstFetch, cpu)
			Expect(mapper.Ready(0x100, exc.InstFetch, cpu)).To(BeFalse())

			Expect(mapper.RequestWord(0x100, exc.InstFetch, cpu)).To(Succeed())
			for i := 0; i < 3; i++ {
				Expect(mapper.Ready(0x100, exc.InstFetch, cpu)).To(BeFalse())
				clk.Tick()
			}
			Expect(mapper.Ready(0x100, exc.InstFetch, cpu)).To(BeTrue())
			Expect(mapper.Stats().Requests).To(Equal(uint64(2)))
		})

		It("should return a bus error for unmapped requests", func() {
			err := mapper.RequestWord(0x8000, exc.InstFetch, cpu)

			var f *exc.Fault
			Expect(errors.As(err, &f)).To(BeTrue())
			Expect(f.Code).To(Equal(exc.IBE))
			Expect(mapper.Stats().BusErrors).To(Equal(uint64(1)))
		})
	})

	Describe("Data transfer", func() {
		It("should store and fetch words", func() {
			Expect(mapper.StoreWord(0x10, 0xDEADBEEF, cpu)).To(Succeed())

			w, err := mapper.FetchWord(0x10, exc.DataLoad, cpu)
			Expect(err).NotTo(HaveOccurred())
			Expect(w).To(Equal(uint32(0xDEADBEEF)))
		})

		It("should place sub-word data big-endian", func() {
			Expect(mapper.StoreWord(0x10, 0x11223344, cpu)).To(Succeed())

			b, err := mapper.FetchByte(0x10, exc.DataLoad, cpu)
			Expect(err).NotTo(HaveOccurred())
			Expect(b).To(Equal(uint8(0x11)))

			h, err := mapper.FetchHalfword(0x12, exc.DataLoad, cpu)
			Expect(err).NotTo(HaveOccurred())
			Expect(h).To(Equal(uint16(0x3344)))

			Expect(mapper.StoreByte(0x13, 0xAA, cpu)).To(Succeed())
			Expect(mapper.StoreHalfword(0x10, 0xBBCC, cpu)).To(Succeed())
			Expect(mapper.PeekWord(0x10)).To(Equal(uint32(0xBBCC33AA)))
		})

		It("should place sub-word data little-endian", func() {
			le := mem.NewMapper(mem.Config{BusLatency: 1}, clk)
			_, err := le.MapRAM(0, 0x100, 0)
			Expect(err).NotTo(HaveOccurred())

			Expect(le.StoreWord(0x10, 0x11223344, cpu)).To(Succeed())
			b, err := le.FetchByte(0x10, exc.DataLoad, cpu)
			Expect(err).NotTo(HaveOccurred())
			Expect(b).To(Equal(uint8(0x44)))
		})

		It("should reject misaligned words and halfwords", func() {
			_, err := mapper.FetchWord(0x11, exc.DataLoad, cpu)
			Expect(err).To(MatchError(exc.AddressError(exc.DataLoad, 0x11)))

			err = mapper.StoreHalfword(0x11, 0, cpu)
			var f *exc.Fault
			Expect(errors.As(err, &f)).To(BeTrue())
			Expect(f.Code).To(Equal(exc.AdES))
		})

		It("should return a data bus error outside every region", func() {
			_, err := mapper.FetchWord(0x2000, exc.DataLoad, cpu)

			var f *exc.Fault
			Expect(errors.As(err, &f)).To(BeTrue())
			Expect(f.Code).To(Equal(exc.DBE))
		})

		It("should ignore writes to ROM", func() {
			_, err := mapper.MapROM(0x4000, []byte{1, 2, 3, 4}, 0)
			Expect(err).NotTo(HaveOccurred())

			Expect(mapper.StoreWord(0x4000, 0, cpu)).To(Succeed())
			Expect(mapper.PeekWord(0x4000)).To(Equal(uint32(0x01020304)))
		})

		It("should load images regardless of write protection", func() {
			_, err := mapper.MapROM(0x4000, make([]byte, 8), 0)
			Expect(err).NotTo(HaveOccurred())

			Expect(mapper.LoadWords(0x4000, []uint32{0xCAFEF00D, 7})).To(Succeed())
			Expect(mapper.PeekWord(0x4004)).To(Equal(uint32(7)))
			Expect(mapper.PeekWord(0x4000)).To(Equal(uint32(0xCAFEF00D)))
		})

		It("should fail to load an image into unmapped memory", func() {
			Expect(mapper.LoadWords(0xFFC, []uint32{1, 2})).NotTo(Succeed())
		})
	})

	It("should hand bus ownership to the arbiter", func() {
		Expect(mapper.AcquireBus(cpu)).To(BeTrue())
		holder, _ := mapper.Arbiter().Holder()
		Expect(holder).To(Equal(cpu))

		mapper.ReleaseBus(cpu)
		_, held := mapper.Arbiter().Holder()
		Expect(held).To(BeFalse())
	})
})
