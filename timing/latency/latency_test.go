package latency_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/r3ksim/insts"
	"github.com/sarchlab/r3ksim/timing/latency"
)

var _ = Describe("Latency", func() {
	var (
		table   *latency.Table
		decoder *insts.Decoder
	)

	BeforeEach(func() {
		table = latency.NewTable()
		decoder = insts.NewDecoder()
	})

	Describe("Default Timing Values", func() {
		It("should have correct multiply latency", func() {
			Expect(table.Config().MultiplyLatency).To(Equal(uint64(1)))
		})

		It("should have correct divide latency", func() {
			Expect(table.Config().DivideLatency).To(Equal(uint64(1)))
		})

		It("should have correct bus and RAM latency", func() {
			Expect(table.Config().BusLatency).To(Equal(uint64(1)))
			Expect(table.Config().RAMLatency).To(Equal(uint64(4)))
		})

		It("should move one word per cycle", func() {
			Expect(table.Config().MemBandwidth).To(Equal(uint64(1)))
		})
	})

	Describe("ALU Instruction Latencies", func() {
		It("should return 1 cycle for ADDIU", func() {
			inst := decoder.Decode(insts.ADDIU(1, 0, 42))
			Expect(table.GetLatency(inst)).To(Equal(uint64(1)))
			Expect(table.InterlockCycles(inst)).To(BeZero())
		})

		It("should return 1 cycle for SUBU", func() {
			inst := decoder.Decode(insts.SUBU(1, 2, 3))
			Expect(table.GetLatency(inst)).To(Equal(uint64(1)))
		})

		It("should not interlock MFHI itself", func() {
			inst := decoder.Decode(insts.MFHI(4))
			Expect(table.InterlockCycles(inst)).To(BeZero())
		})
	})

	Describe("Multiply and Divide Latencies", func() {
		BeforeEach(func() {
			config := latency.DefaultTimingConfig()
			config.MultiplyLatency = 12
			config.DivideLatency = 35
			table = latency.NewTableWithConfig(config)
		})

		It("should return MultiplyLatency for MULT and MULTU", func() {
			Expect(table.GetLatency(decoder.Decode(insts.MULT(1, 2)))).To(Equal(uint64(12)))
			Expect(table.InterlockCycles(decoder.Decode(insts.MULTU(1, 2)))).To(Equal(uint64(12)))
		})

		It("should return DivideLatency for DIV and DIVU", func() {
			Expect(table.GetLatency(decoder.Decode(insts.DIV(1, 2)))).To(Equal(uint64(35)))
			Expect(table.InterlockCycles(decoder.Decode(insts.DIVU(1, 2)))).To(Equal(uint64(35)))
		})
	})

	Describe("Instruction Type Detection", func() {
		It("should detect memory operations", func() {
			Expect(table.IsMemoryOp(decoder.Decode(insts.LW(1, 2, 0)))).To(BeTrue())
			Expect(table.IsMemoryOp(decoder.Decode(insts.SB(1, 2, 0)))).To(BeTrue())
			Expect(table.IsMemoryOp(decoder.Decode(insts.ADDU(1, 2, 3)))).To(BeFalse())
			Expect(table.IsMemoryOp(decoder.Decode(insts.BEQ(1, 2, 4)))).To(BeFalse())
		})
	})

	Describe("Nil Instruction Handling", func() {
		It("should return 1 for nil instruction", func() {
			Expect(table.GetLatency(nil)).To(Equal(uint64(1)))
		})

		It("should not interlock a nil instruction", func() {
			Expect(table.InterlockCycles(nil)).To(BeZero())
		})

		It("should return false for nil instruction memory check", func() {
			Expect(table.IsMemoryOp(nil)).To(BeFalse())
		})
	})
})

var _ = Describe("TimingConfig", func() {
	Describe("Default Config", func() {
		It("should create valid default config", func() {
			config := latency.DefaultTimingConfig()
			Expect(config.Validate()).To(Succeed())
		})
	})

	Describe("Validation", func() {
		It("should reject zero bus latency", func() {
			config := latency.DefaultTimingConfig()
			config.BusLatency = 0
			Expect(config.Validate()).To(HaveOccurred())
		})

		It("should reject zero memory bandwidth", func() {
			config := latency.DefaultTimingConfig()
			config.MemBandwidth = 0
			Expect(config.Validate()).To(HaveOccurred())
		})

		It("should accept zero RAM latency", func() {
			config := latency.DefaultTimingConfig()
			config.RAMLatency = 0
			Expect(config.Validate()).To(Succeed())
		})
	})

	Describe("Clone", func() {
		It("should create independent copy", func() {
			original := latency.DefaultTimingConfig()
			clone := original.Clone()

			clone.MultiplyLatency = 100

			Expect(original.MultiplyLatency).To(Equal(uint64(1)))
			Expect(clone.MultiplyLatency).To(Equal(uint64(100)))
		})
	})

	Describe("File Operations", func() {
		var tempDir string

		BeforeEach(func() {
			var err error
			tempDir, err = os.MkdirTemp("", "latency-test")
			Expect(err).NotTo(HaveOccurred())
		})

		AfterEach(func() {
			_ = os.RemoveAll(tempDir)
		})

		It("should save and load config", func() {
			original := latency.DefaultTimingConfig()
			original.MultiplyLatency = 5
			original.RAMLatency = 10

			path := filepath.Join(tempDir, "timing.json")
			Expect(original.SaveConfig(path)).To(Succeed())

			loaded, err := latency.LoadConfig(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.MultiplyLatency).To(Equal(uint64(5)))
			Expect(loaded.RAMLatency).To(Equal(uint64(10)))
		})

		It("should return error for non-existent file", func() {
			_, err := latency.LoadConfig("/nonexistent/path/timing.json")
			Expect(err).To(HaveOccurred())
		})

		It("should return error for invalid JSON", func() {
			path := filepath.Join(tempDir, "invalid.json")
			err := os.WriteFile(path, []byte("not valid json"), 0644)
			Expect(err).NotTo(HaveOccurred())

			_, err = latency.LoadConfig(path)
			Expect(err).To(HaveOccurred())
		})

		It("should keep defaults for missing fields", func() {
			path := filepath.Join(tempDir, "partial.json")
			err := os.WriteFile(path, []byte(`{"divide_latency": 35}`), 0644)
			Expect(err).NotTo(HaveOccurred())

			loaded, err := latency.LoadConfig(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.DivideLatency).To(Equal(uint64(35)))
			Expect(loaded.BusLatency).To(Equal(uint64(1)))
		})
	})
})
