// Command r3ksim runs one workload on the cycle-accurate R3000 model and
// prints a timing report.
//
// Usage:
//
//	r3ksim [flags] <image.bin>
//	r3ksim [flags] -bench <name>
//
// An image is raw target-endian machine code loaded at -load and entered at
// -entry. Programs end by executing BREAK; the process exit status is the
// low byte of $v0.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/go-echarts/statsview"
	"github.com/go-echarts/statsview/viewer"
	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"

	"github.com/sarchlab/r3ksim/benchmarks"
	"github.com/sarchlab/r3ksim/report"
	"github.com/sarchlab/r3ksim/timing/core"
)

const statsviewAddr = "localhost:12600"

type options struct {
	configPath string
	dumpConfig string
	bench      string
	loadAddr   uint32
	entry      uint32
	maxCycles  uint64
	verbosity  int
	sample     uint64
	plotPath   string
	csvPath    string
	statsview  bool
	image      string
}

// addrFlag parses a 32-bit address written in any base strconv accepts.
type addrFlag struct {
	value *uint32
	set   bool
}

func (a *addrFlag) String() string {
	if a.value == nil {
		return ""
	}
	return fmt.Sprintf("0x%08x", *a.value)
}

func (a *addrFlag) Set(s string) error {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return err
	}
	*a.value = uint32(v)
	a.set = true
	return nil
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	opts := &options{loadAddr: benchmarks.ProgramBase}
	load := &addrFlag{value: &opts.loadAddr}
	entry := &addrFlag{value: &opts.entry}

	fs := flag.NewFlagSet("r3ksim", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configPath, "config", "", "Path to machine configuration (YAML or JSON)")
	fs.StringVar(&opts.dumpConfig, "dump-config", "", "Write the effective configuration to this file and exit")
	fs.StringVar(&opts.bench, "bench", "", "Run a built-in microbenchmark instead of an image")
	fs.Var(load, "load", "Virtual address the image is loaded at")
	fs.Var(entry, "entry", "Virtual address execution starts at (default: -load)")
	fs.Uint64Var(&opts.maxCycles, "max-cycles", 10_000_000, "Cycle limit (0 = unlimited)")
	fs.IntVar(&opts.verbosity, "v", 0, "Log verbosity (1: exceptions and hazards, 2: cache and bus traffic)")
	fs.Uint64Var(&opts.sample, "sample", 1000, "Sampling window in cycles for -plot and -csv")
	fs.StringVar(&opts.plotPath, "plot", "", "Save a CPI and miss-rate plot (png, svg, pdf)")
	fs.StringVar(&opts.csvPath, "csv", "", "Save sampled statistics as CSV")
	fs.BoolVar(&opts.statsview, "statsview", false, "Serve live runtime statistics at "+statsviewAddr)
	fs.Usage = func() {
		_, _ = fmt.Fprintf(stderr, "Usage: r3ksim [options] <image.bin>\n")
		_, _ = fmt.Fprintf(stderr, "       r3ksim [options] -bench <name>\n")
		_, _ = fmt.Fprintf(stderr, "\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if !entry.set {
		opts.entry = opts.loadAddr
	}

	switch {
	case opts.dumpConfig != "":
	case opts.bench != "" && fs.NArg() == 0:
	case opts.bench == "" && fs.NArg() == 1:
		opts.image = fs.Arg(0)
	default:
		fs.Usage()
		return nil, fmt.Errorf("exactly one of -bench or an image path is required")
	}

	return opts, nil
}

func newLogger(w io.Writer, verbosity int) logr.Logger {
	return funcr.New(func(prefix, args string) {
		if prefix != "" {
			_, _ = fmt.Fprintf(w, "%s: %s\n", prefix, args)
			return
		}
		_, _ = fmt.Fprintln(w, args)
	}, funcr.Options{Verbosity: verbosity})
}

func loadConfig(path string) (*core.Config, error) {
	if path == "" {
		return core.DefaultConfig(), nil
	}
	return core.LoadConfig(path)
}

// run executes the command and returns the process exit status.
func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	logger := newLogger(stderr, opts.verbosity)

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error loading machine config: %v\n", err)
		return 1
	}
	if err := cfg.Validate(); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: invalid machine config: %v\n", err)
		return 1
	}

	if opts.dumpConfig != "" {
		if err := cfg.SaveConfig(opts.dumpConfig); err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintf(stdout, "Wrote %s\n", opts.dumpConfig)
		return 0
	}

	if opts.statsview {
		stop := startStatsview(stdout)
		defer stop()
	}

	m, err := core.NewMachine(cfg, core.WithLogger(logger))
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	name, err := prepare(m, opts)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error loading program: %v\n", err)
		return 1
	}
	logger.V(1).Info("program loaded", "program", name, "entry", fmt.Sprintf("0x%08x", m.PC()))

	sampler := report.NewSampler(opts.sample)
	runErr := sampler.Run(m, opts.maxCycles)
	logger.V(1).Info("run finished", "cycles", m.Stats().Cycles, "samples", len(sampler.Samples()))

	printReport(stdout, name, m)

	if opts.csvPath != "" {
		if err := writeCSV(opts.csvPath, sampler); err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
	}
	if opts.plotPath != "" {
		if err := sampler.SavePlot(opts.plotPath, name); err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
	}

	if runErr != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", runErr)
		return 1
	}

	return int(m.ExitCode() & 0xFF)
}

func prepare(m *core.Machine, opts *options) (string, error) {
	if opts.bench != "" {
		b, ok := benchmarks.Find(opts.bench)
		if !ok {
			return "", fmt.Errorf("unknown benchmark %q", opts.bench)
		}
		return b.Name, b.Prepare(m)
	}

	data, err := os.ReadFile(opts.image)
	if err != nil {
		return "", err
	}
	if err := m.LoadImage(opts.loadAddr, data); err != nil {
		return "", err
	}
	m.SetPC(opts.entry)
	return opts.image, nil
}

func writeCSV(path string, s *report.Sampler) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := s.WriteCSV(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

func startStatsview(w io.Writer) func() {
	viewer.SetConfiguration(viewer.WithAddr(statsviewAddr))
	mgr := statsview.New()
	go mgr.Start()

	_, _ = fmt.Fprintf(w, "stats server available at http://%s/debug/statsview\n", statsviewAddr)
	return mgr.Stop
}

func percent(part, total uint64) float64 {
	if total == 0 {
		return 0
	}
	return 100.0 * float64(part) / float64(total)
}

func printReport(w io.Writer, name string, m *core.Machine) {
	stats := m.Stats()
	p := stats.Pipeline

	_, _ = fmt.Fprintf(w, "\n")
	_, _ = fmt.Fprintf(w, "Program: %s\n", name)
	if rec, ok := m.HaltRecord(); ok {
		_, _ = fmt.Fprintf(w, "Halted on: %v\n", rec)
	}
	_, _ = fmt.Fprintf(w, "Exit code ($v0): %d\n", m.ExitCode())
	_, _ = fmt.Fprintf(w, "Total Instructions: %d\n", stats.Instructions)
	_, _ = fmt.Fprintf(w, "Total Cycles: %d\n", stats.Cycles)
	_, _ = fmt.Fprintf(w, "CPI: %.2f\n", stats.CPI())
	_, _ = fmt.Fprintf(w, "Simulated time: %.6fs\n", stats.SimulatedTime)
	_, _ = fmt.Fprintf(w, "\n")
	_, _ = fmt.Fprintf(w, "Stall breakdown:\n")
	_, _ = fmt.Fprintf(w, "  Fetch stalls:   %6d cycles (%5.1f%%)\n", p.FetchStalls, percent(p.FetchStalls, stats.Cycles))
	_, _ = fmt.Fprintf(w, "  Decode stalls:  %6d cycles (%5.1f%%)\n", p.DecodeStalls, percent(p.DecodeStalls, stats.Cycles))
	_, _ = fmt.Fprintf(w, "  Execute stalls: %6d cycles (%5.1f%%)\n", p.ExecStalls, percent(p.ExecStalls, stats.Cycles))
	_, _ = fmt.Fprintf(w, "  Memory stalls:  %6d cycles (%5.1f%%)\n", p.MemStalls, percent(p.MemStalls, stats.Cycles))
	_, _ = fmt.Fprintf(w, "\n")
	_, _ = fmt.Fprintf(w, "Pipeline Events:\n")
	_, _ = fmt.Fprintf(w, "  Forwarded operands: %d\n", p.DataHazards)
	_, _ = fmt.Fprintf(w, "  Load-use hazards:   %d\n", p.LoadUseHazards)
	_, _ = fmt.Fprintf(w, "  Branches taken:     %d\n", p.BranchesTaken)
	_, _ = fmt.Fprintf(w, "  Flushes:            %d\n", p.Flushes)
	_, _ = fmt.Fprintf(w, "  Exceptions:         %d\n", p.Exceptions)

	if m.ICache() != nil {
		_, _ = fmt.Fprintf(w, "\nI-Cache: %d hits, %d misses (%.1f%% miss)\n",
			stats.ICache.Hits, stats.ICache.Misses, 100*stats.ICache.MissRate())
	}
	if m.DCache() != nil {
		_, _ = fmt.Fprintf(w, "D-Cache: %d hits, %d misses, %d writebacks (%.1f%% miss)\n",
			stats.DCache.Hits, stats.DCache.Misses, stats.DCache.Writebacks, 100*stats.DCache.MissRate())
	}
	_, _ = fmt.Fprintf(w, "Bus: %d reads, %d writes, %d errors\n",
		stats.Bus.Reads, stats.Bus.Writes, stats.Bus.BusErrors)
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}
