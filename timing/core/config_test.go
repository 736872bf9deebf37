package core_test

import (
	"os"
	"path/filepath"

	"github.com/google/go-cmp/cmp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/r3ksim/timing/core"
)

var _ = Describe("Config", func() {
	It("should validate the defaults", func() {
		Expect(core.DefaultConfig().Validate()).To(Succeed())
	})

	DescribeTable("Validate errors",
		func(mutate func(*core.Config), msg string) {
			cfg := core.DefaultConfig()
			mutate(cfg)
			Expect(cfg.Validate()).To(MatchError(ContainSubstring(msg)))
		},
		Entry("no regions", func(c *core.Config) { c.Regions = nil }, "region"),
		Entry("empty region", func(c *core.Config) { c.Regions[0].Size = 0 }, "zero size"),
		Entry("bad icache", func(c *core.Config) { c.ICache.Geometry.BlockCount = 3 }, "icache"),
		Entry("bad dcache", func(c *core.Config) { c.DCache.Geometry.Ways = 0 }, "dcache"),
		Entry("no frequency", func(c *core.Config) { c.FrequencyMHz = 0 }, "frequency_mhz"),
		Entry("no timing", func(c *core.Config) { c.Timing = nil }, "timing"),
	)

	It("should ignore the geometry of a disabled cache", func() {
		cfg := core.DefaultConfig()
		cfg.DCache.Enabled = false
		cfg.DCache.Geometry.BlockSize = 3

		Expect(cfg.Validate()).To(Succeed())
	})

	It("should clone deeply", func() {
		cfg := core.DefaultConfig()
		clone := cfg.Clone()

		clone.Regions[0].Size = 1
		clone.Timing.BusLatency = 9

		Expect(cfg.Regions[0].Size).To(Equal(uint32(8 << 20)))
		Expect(cfg.Timing.BusLatency).To(Equal(uint64(1)))
	})

	DescribeTable("SaveConfig / LoadConfig round trip",
		func(name string) {
			cfg := core.DefaultConfig()
			cfg.BranchDelaySlot = true
			cfg.Timing.DivideLatency = 35
			cfg.ICache.Geometry.Ways = 4

			path := filepath.Join(GinkgoT().TempDir(), name)
			Expect(cfg.SaveConfig(path)).To(Succeed())

			loaded, err := core.LoadConfig(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(cmp.Diff(cfg, loaded)).To(BeEmpty())
		},
		Entry("json", "machine.json"),
		Entry("yaml", "machine.yaml"),
		Entry("yml", "machine.yml"),
	)

	It("should keep defaults for fields missing from a YAML file", func() {
		path := filepath.Join(GinkgoT().TempDir(), "partial.yaml")
		Expect(os.WriteFile(path, []byte("frequency_mhz: 33\ntiming:\n  multiply_latency: 12\n"), 0644)).To(Succeed())

		cfg, err := core.LoadConfig(path)
		Expect(err).NotTo(HaveOccurred())

		Expect(cfg.FrequencyMHz).To(Equal(33.0))
		Expect(cfg.Timing.MultiplyLatency).To(Equal(uint64(12)))
		Expect(cfg.Timing.RAMLatency).To(Equal(uint64(4)))
		Expect(cfg.ICache.Enabled).To(BeTrue())
		Expect(cfg.Regions).To(HaveLen(2))
	})

	It("should fail on a missing file", func() {
		_, err := core.LoadConfig(filepath.Join(GinkgoT().TempDir(), "missing.json"))
		Expect(err).To(HaveOccurred())
	})

	It("should fail on malformed JSON", func() {
		path := filepath.Join(GinkgoT().TempDir(), "bad.json")
		Expect(os.WriteFile(path, []byte("{"), 0644)).To(Succeed())

		_, err := core.LoadConfig(path)
		Expect(err).To(MatchError(ContainSubstring("failed to parse")))
	})
})
