// Package report records how a machine's performance evolves over a run
// and renders it as CSV or as a plot.
package report

import (
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/sarchlab/r3ksim/timing/core"
)

// Sample describes one window of execution. Rates are computed over the
// window only, not cumulatively.
type Sample struct {
	// Cycle is the machine cycle at the end of the window.
	Cycle        uint64
	Instructions uint64
	CPI          float64

	ICacheMissRate float64
	DCacheMissRate float64

	BusReads  uint64
	BusWrites uint64
}

// Sampler takes a Sample every Interval cycles.
type Sampler struct {
	interval uint64
	samples  []Sample
	last     core.Stats
}

// NewSampler creates a sampler with the given window length in cycles.
// A zero interval is treated as 1.
func NewSampler(interval uint64) *Sampler {
	if interval == 0 {
		interval = 1
	}
	return &Sampler{interval: interval}
}

// Interval returns the window length in cycles.
func (s *Sampler) Interval() uint64 {
	return s.interval
}

// Samples returns the samples taken so far.
func (s *Sampler) Samples() []Sample {
	return s.samples
}

// Observe records the window between the previous observation and stats.
// Observations that cover no cycles are ignored.
func (s *Sampler) Observe(stats core.Stats) {
	cycles := stats.Cycles - s.last.Cycles
	if cycles == 0 {
		return
	}

	insts := stats.Instructions - s.last.Instructions
	sample := Sample{
		Cycle:          stats.Cycles,
		Instructions:   insts,
		ICacheMissRate: missRate(stats.ICache.Hits-s.last.ICache.Hits, stats.ICache.Misses-s.last.ICache.Misses),
		DCacheMissRate: missRate(stats.DCache.Hits-s.last.DCache.Hits, stats.DCache.Misses-s.last.DCache.Misses),
		BusReads:       stats.Bus.Reads - s.last.Bus.Reads,
		BusWrites:      stats.Bus.Writes - s.last.Bus.Writes,
	}
	if insts > 0 {
		sample.CPI = float64(cycles) / float64(insts)
	}

	s.samples = append(s.samples, sample)
	s.last = stats
}

func missRate(hits, misses uint64) float64 {
	if hits+misses == 0 {
		return 0
	}
	return float64(misses) / float64(hits+misses)
}

// Run drives m until it halts, sampling every interval. A zero maxCycles
// means no limit. It returns an error wrapping core.ErrCycleLimit if m is
// still running after maxCycles.
func (s *Sampler) Run(m *core.Machine, maxCycles uint64) error {
	s.last = m.Stats()

	var ran uint64
	for !m.Halted() {
		if maxCycles > 0 && ran >= maxCycles {
			return fmt.Errorf("%w after %d cycles at pc 0x%08x", core.ErrCycleLimit, ran, m.PC())
		}

		n := s.interval
		if maxCycles > 0 && maxCycles-ran < n {
			n = maxCycles - ran
		}

		before := m.Clock().Now()
		m.RunCycles(n)
		ran += m.Clock().Now() - before

		s.Observe(m.Stats())
	}
	return nil
}

// WriteCSV writes one row per sample.
func (s *Sampler) WriteCSV(w io.Writer) error {
	if _, err := fmt.Fprintln(w, "cycle,instructions,cpi,icache_miss_rate,dcache_miss_rate,bus_reads,bus_writes"); err != nil {
		return err
	}
	for _, x := range s.samples {
		_, err := fmt.Fprintf(w, "%d,%d,%.3f,%.4f,%.4f,%d,%d\n",
			x.Cycle, x.Instructions, x.CPI, x.ICacheMissRate, x.DCacheMissRate, x.BusReads, x.BusWrites)
		if err != nil {
			return err
		}
	}
	return nil
}

// SavePlot renders CPI and cache miss rates against cycles. The image
// format follows the file extension (png, svg, pdf, eps, jpg, tif).
func (s *Sampler) SavePlot(path, title string) error {
	if len(s.samples) == 0 {
		return fmt.Errorf("no samples to plot")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "cycle"
	p.Y.Label.Text = "CPI / miss rate"
	p.Add(plotter.NewGrid())

	series := []struct {
		name  string
		color color.Color
		value func(Sample) float64
	}{
		{"CPI", color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}, func(x Sample) float64 { return x.CPI }},
		{"I-cache miss rate", color.RGBA{R: 0x2c, G: 0xa0, B: 0x2c, A: 0xff}, func(x Sample) float64 { return x.ICacheMissRate }},
		{"D-cache miss rate", color.RGBA{R: 0xd6, G: 0x27, B: 0x28, A: 0xff}, func(x Sample) float64 { return x.DCacheMissRate }},
	}

	for _, ser := range series {
		xys := make(plotter.XYs, len(s.samples))
		for i, x := range s.samples {
			xys[i].X = float64(x.Cycle)
			xys[i].Y = ser.value(x)
		}

		line, err := plotter.NewLine(xys)
		if err != nil {
			return fmt.Errorf("failed to plot %s: %w", ser.name, err)
		}
		line.Color = ser.color
		line.Width = vg.Points(1.5)

		p.Add(line)
		p.Legend.Add(ser.name, line)
	}
	p.Legend.Top = true

	if err := p.Save(8*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save plot %s: %w", path, err)
	}
	return nil
}
