package report_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/r3ksim/insts"
	"github.com/sarchlab/r3ksim/report"
	"github.com/sarchlab/r3ksim/timing/cache"
	"github.com/sarchlab/r3ksim/timing/core"
)

const programBase = 0x80001000

var _ = Describe("Sampler", func() {
	newMachine := func(program ...uint32) *core.Machine {
		m, err := core.NewMachine(core.DefaultConfig(), core.WithLogger(GinkgoLogr))
		Expect(err).NotTo(HaveOccurred())
		Expect(m.LoadProgram(programBase, program)).To(Succeed())
		m.SetPC(programBase)
		return m
	}

	It("should treat a zero interval as one cycle", func() {
		Expect(report.NewSampler(0).Interval()).To(Equal(uint64(1)))
	})

	It("should compute rates over each window", func() {
		s := report.NewSampler(100)

		s.Observe(core.Stats{
			Cycles:       100,
			Instructions: 50,
			DCache:       cache.Statistics{Hits: 3, Misses: 1},
		})
		s.Observe(core.Stats{
			Cycles:       200,
			Instructions: 150,
			DCache:       cache.Statistics{Hits: 3, Misses: 1},
		})

		samples := s.Samples()
		Expect(samples).To(HaveLen(2))
		Expect(samples[0].CPI).To(BeNumerically("~", 2.0))
		Expect(samples[0].DCacheMissRate).To(BeNumerically("~", 0.25))
		Expect(samples[1].Cycle).To(Equal(uint64(200)))
		Expect(samples[1].Instructions).To(Equal(uint64(100)))
		Expect(samples[1].CPI).To(BeNumerically("~", 1.0))
		Expect(samples[1].DCacheMissRate).To(BeZero())
	})

	It("should ignore observations that cover no cycles", func() {
		s := report.NewSampler(10)
		s.Observe(core.Stats{})
		Expect(s.Samples()).To(BeEmpty())
	})

	It("should sample a run until the machine halts", func() {
		m := newMachine(
			insts.ADDIU(8, 0, 20),
			insts.ADDIU(2, 2, 1),
			insts.ADDIU(8, 8, -1),
			insts.BNE(8, 0, -3),
			insts.BREAK(),
		)

		s := report.NewSampler(16)
		Expect(s.Run(m, 100000)).To(Succeed())
		Expect(m.ExitCode()).To(Equal(uint32(20)))

		samples := s.Samples()
		Expect(samples).NotTo(BeEmpty())
		Expect(samples[len(samples)-1].Cycle).To(Equal(m.Stats().Cycles))

		var total uint64
		for i, x := range samples {
			total += x.Instructions
			if i < len(samples)-1 {
				Expect(x.Cycle).To(Equal(uint64(16 * (i + 1))))
			}
		}
		Expect(total).To(Equal(m.Stats().Instructions))
	})

	It("should stop at the cycle limit", func() {
		m := newMachine(insts.BEQ(0, 0, -1))

		s := report.NewSampler(10)
		err := s.Run(m, 95)

		Expect(errors.Is(err, core.ErrCycleLimit)).To(BeTrue())
		Expect(m.Stats().Cycles).To(Equal(uint64(95)))
		Expect(s.Samples()).To(HaveLen(10))
		Expect(s.Samples()[9].Cycle).To(Equal(uint64(95)))
	})

	It("should write one CSV row per sample", func() {
		s := report.NewSampler(10)
		s.Observe(core.Stats{Cycles: 10, Instructions: 5})
		s.Observe(core.Stats{Cycles: 20, Instructions: 12})

		var buf bytes.Buffer
		Expect(s.WriteCSV(&buf)).To(Succeed())

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		Expect(lines).To(HaveLen(3))
		Expect(lines[0]).To(HavePrefix("cycle,instructions,cpi"))
		Expect(lines[1]).To(HavePrefix("10,5,2.000,"))
		Expect(lines[2]).To(HavePrefix("20,7,1.429,"))
	})

	Context("plots", func() {
		var s *report.Sampler

		BeforeEach(func() {
			s = report.NewSampler(10)
			for i := uint64(1); i <= 5; i++ {
				s.Observe(core.Stats{
					Cycles:       10 * i,
					Instructions: 7 * i,
					ICache:       cache.Statistics{Hits: 9 * i, Misses: i},
				})
			}
		})

		DescribeTable("should save in the format named by the extension",
			func(name string) {
				path := filepath.Join(GinkgoT().TempDir(), name)
				Expect(s.SavePlot(path, "loop")).To(Succeed())

				info, err := os.Stat(path)
				Expect(err).NotTo(HaveOccurred())
				Expect(info.Size()).To(BeNumerically(">", 0))
			},
			Entry("png", "cpi.png"),
			Entry("svg", "cpi.svg"),
		)

		It("should reject an unknown format", func() {
			path := filepath.Join(GinkgoT().TempDir(), "cpi.unknown")
			Expect(s.SavePlot(path, "loop")).To(MatchError(ContainSubstring("failed to save plot")))
		})

		It("should refuse to plot nothing", func() {
			Expect(report.NewSampler(10).SavePlot("unused.png", "")).To(MatchError("no samples to plot"))
		})
	})
})
