// Package benchmarks provides timing benchmark infrastructure for the R3000
// simulator.
package benchmarks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"

	"github.com/sarchlab/r3ksim/exc"
	"github.com/sarchlab/r3ksim/timing/core"
)

// ProgramBase is the cached kseg0 address benchmark programs are loaded at.
const ProgramBase uint32 = 0x80001000

// DataBase is a cached kseg0 scratch area benchmarks may use for data.
const DataBase uint32 = 0x80002000

// DefaultMaxCycles bounds every benchmark run.
const DefaultMaxCycles = 1_000_000

// BenchmarkResult holds the timing results for a single benchmark run.
type BenchmarkResult struct {
	// Name identifies the benchmark
	Name string `json:"name"`

	// Description explains what the benchmark measures
	Description string `json:"description"`

	// SimulatedCycles is the total cycle count from the timing simulator
	SimulatedCycles uint64 `json:"simulated_cycles"`

	// InstructionsRetired is the number of completed instructions
	InstructionsRetired uint64 `json:"instructions_retired"`

	// CPI is cycles per instruction
	CPI float64 `json:"cpi"`

	// StallCycles is the number of stall cycles
	StallCycles uint64 `json:"stall_cycles"`

	// ExecStalls is stalls waiting on the multiply/divide unit
	ExecStalls uint64 `json:"exec_stalls"`

	// MemStalls is stalls due to memory latency
	MemStalls uint64 `json:"mem_stalls"`

	// DecodeStalls is cycles a branch waited in ID for a load result
	DecodeStalls uint64 `json:"decode_stalls"`

	// DataHazards is the number of operands resolved via forwarding
	DataHazards uint64 `json:"data_hazards"`

	// LoadUseHazards is the number of operands that depended on a load in EX
	LoadUseHazards uint64 `json:"load_use_hazards"`

	// PipelineFlushes is the number of squashed instructions
	PipelineFlushes uint64 `json:"pipeline_flushes"`

	// BranchesTaken counts taken branches and jumps
	BranchesTaken uint64 `json:"branches_taken"`

	// Exceptions counts exceptions taken at writeback
	Exceptions uint64 `json:"exceptions"`

	// ICacheHits/Misses (if cache enabled)
	ICacheHits   uint64 `json:"icache_hits,omitempty"`
	ICacheMisses uint64 `json:"icache_misses,omitempty"`

	// DCacheHits/Misses (if cache enabled)
	DCacheHits   uint64 `json:"dcache_hits,omitempty"`
	DCacheMisses uint64 `json:"dcache_misses,omitempty"`

	// BusReads/Writes count completed word transfers on the system bus
	BusReads  uint64 `json:"bus_reads"`
	BusWrites uint64 `json:"bus_writes"`

	// SimulatedTime is the run length in seconds at the machine clock
	SimulatedTime float64 `json:"simulated_time_s"`

	// ExitCode is the value left in $v0
	ExitCode uint32 `json:"exit_code"`

	// Error is set when the benchmark could not run to completion
	Error string `json:"error,omitempty"`

	// WallTime is the actual time taken to run the simulation
	WallTime time.Duration `json:"wall_time_ns"`
}

// Passed reports whether the run halted cleanly with the expected exit code.
func (r BenchmarkResult) Passed(b Benchmark) bool {
	return r.Error == "" && r.ExitCode == b.ExpectedExit
}

// Benchmark defines a single benchmark program.
type Benchmark struct {
	// Name identifies the benchmark
	Name string

	// Description explains what the benchmark measures
	Description string

	// Setup prepares the machine state (e.g., initialize registers, memory)
	Setup func(m *core.Machine) error

	// Program is the MIPS I machine code to execute, loaded at ProgramBase.
	// It must end by executing BREAK.
	Program []uint32

	// ExpectedExit is the expected $v0 at halt (for validation)
	ExpectedExit uint32
}

// Prepare runs the benchmark setup, loads the program at ProgramBase and
// points the machine at it.
func (b Benchmark) Prepare(m *core.Machine) error {
	if b.Setup != nil {
		if err := b.Setup(m); err != nil {
			return fmt.Errorf("setup: %w", err)
		}
	}

	if err := m.LoadProgram(ProgramBase, b.Program); err != nil {
		return err
	}
	m.SetPC(ProgramBase)
	return nil
}

// HarnessConfig configures the benchmark harness.
type HarnessConfig struct {
	// Machine is the machine configuration each benchmark starts from.
	// Nil means core.DefaultConfig().
	Machine *core.Config

	// EnableICache enables instruction cache simulation
	EnableICache bool

	// EnableDCache enables data cache simulation
	EnableDCache bool

	// MaxCycles bounds each run. Zero means DefaultMaxCycles.
	MaxCycles uint64

	// Output is where to write results (default: os.Stdout)
	Output io.Writer

	// Verbose enables detailed output
	Verbose bool

	// Logger is handed to every machine the harness builds.
	Logger logr.Logger
}

// DefaultConfig returns a default harness configuration.
func DefaultConfig() HarnessConfig {
	return HarnessConfig{
		Machine:      core.DefaultConfig(),
		EnableICache: true,
		EnableDCache: true,
		MaxCycles:    DefaultMaxCycles,
		Output:       os.Stdout,
		Verbose:      false,
		Logger:       logr.Discard(),
	}
}

// Harness runs timing benchmarks and reports results.
type Harness struct {
	config     HarnessConfig
	benchmarks []Benchmark

	// outMu serializes verbose progress lines from parallel runs.
	outMu sync.Mutex
}

// NewHarness creates a new benchmark harness.
func NewHarness(config HarnessConfig) *Harness {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	if config.Machine == nil {
		config.Machine = core.DefaultConfig()
	}
	if config.MaxCycles == 0 {
		config.MaxCycles = DefaultMaxCycles
	}
	if config.Logger.GetSink() == nil {
		config.Logger = logr.Discard()
	}
	return &Harness{
		config:     config,
		benchmarks: []Benchmark{},
	}
}

// AddBenchmark adds a benchmark to the harness.
func (h *Harness) AddBenchmark(b Benchmark) {
	h.benchmarks = append(h.benchmarks, b)
}

// AddBenchmarks adds multiple benchmarks to the harness.
func (h *Harness) AddBenchmarks(benchmarks []Benchmark) {
	h.benchmarks = append(h.benchmarks, benchmarks...)
}

// Benchmarks returns the registered benchmarks in run order.
func (h *Harness) Benchmarks() []Benchmark {
	return h.benchmarks
}

// RunAll executes all benchmarks and returns results.
func (h *Harness) RunAll() []BenchmarkResult {
	results := make([]BenchmarkResult, 0, len(h.benchmarks))

	for _, bench := range h.benchmarks {
		result := h.runBenchmark(bench)
		results = append(results, result)
	}

	return results
}

// RunParallel executes the benchmarks on up to workers goroutines. Each
// benchmark gets its own machine, so results match RunAll. Results keep the
// order the benchmarks were added in. A workers value below one means one
// goroutine per benchmark.
func (h *Harness) RunParallel(ctx context.Context, workers int) ([]BenchmarkResult, error) {
	results := make([]BenchmarkResult, len(h.benchmarks))

	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}

	for i, bench := range h.benchmarks {
		i, bench := i, bench
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = h.runBenchmark(bench)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (h *Harness) machineConfig() *core.Config {
	cfg := h.config.Machine.Clone()
	cfg.ICache.Enabled = cfg.ICache.Enabled && h.config.EnableICache
	cfg.DCache.Enabled = cfg.DCache.Enabled && h.config.EnableDCache
	return cfg
}

// runBenchmark executes a single benchmark.
func (h *Harness) runBenchmark(bench Benchmark) BenchmarkResult {
	result := BenchmarkResult{
		Name:        bench.Name,
		Description: bench.Description,
	}
	logger := h.config.Logger.WithValues("benchmark", bench.Name)

	m, err := core.NewMachine(h.machineConfig(), core.WithLogger(logger))
	if err != nil {
		result.Error = err.Error()
		return result
	}

	if err := bench.Prepare(m); err != nil {
		result.Error = err.Error()
		return result
	}

	// Run simulation and measure time
	start := time.Now()
	runErr := m.Run(h.config.MaxCycles)
	result.WallTime = time.Since(start)

	if runErr != nil {
		result.Error = runErr.Error()
	} else if rec, _ := m.HaltRecord(); rec.Code != exc.Bp {
		result.Error = fmt.Sprintf("halted on %s", rec)
	}

	stats := m.Stats()
	result.SimulatedCycles = stats.Cycles
	result.InstructionsRetired = stats.Instructions
	result.CPI = stats.CPI()
	result.StallCycles = stats.Stalls
	result.ExecStalls = stats.Pipeline.ExecStalls
	result.MemStalls = stats.Pipeline.MemStalls
	result.DecodeStalls = stats.Pipeline.DecodeStalls
	result.DataHazards = stats.Pipeline.DataHazards
	result.LoadUseHazards = stats.Pipeline.LoadUseHazards
	result.PipelineFlushes = stats.Flushes
	result.BranchesTaken = stats.Pipeline.BranchesTaken
	result.Exceptions = stats.Pipeline.Exceptions
	result.ICacheHits = stats.ICache.Hits
	result.ICacheMisses = stats.ICache.Misses
	result.DCacheHits = stats.DCache.Hits
	result.DCacheMisses = stats.DCache.Misses
	result.BusReads = stats.Bus.Reads
	result.BusWrites = stats.Bus.Writes
	result.SimulatedTime = stats.SimulatedTime
	result.ExitCode = m.ExitCode()

	if h.config.Verbose {
		h.outMu.Lock()
		defer h.outMu.Unlock()
		_, _ = fmt.Fprintf(h.config.Output, "ran %s: %d cycles, exit %d\n",
			bench.Name, result.SimulatedCycles, result.ExitCode)
	}

	return result
}

// PrintResults outputs benchmark results in a human-readable format.
func (h *Harness) PrintResults(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output, "=== R3000 Timing Benchmark Results ===")
	_, _ = fmt.Fprintln(h.config.Output, "")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "Benchmark: %s\n", r.Name)
		_, _ = fmt.Fprintf(h.config.Output, "  Description: %s\n", r.Description)
		_, _ = fmt.Fprintf(h.config.Output, "  Exit Code: %d\n", r.ExitCode)
		if r.Error != "" {
			_, _ = fmt.Fprintf(h.config.Output, "  Error: %s\n", r.Error)
		}
		_, _ = fmt.Fprintln(h.config.Output, "  --- Timing ---")
		_, _ = fmt.Fprintf(h.config.Output, "  Simulated Cycles:     %d\n", r.SimulatedCycles)
		_, _ = fmt.Fprintf(h.config.Output, "  Instructions Retired: %d\n", r.InstructionsRetired)
		_, _ = fmt.Fprintf(h.config.Output, "  CPI:                  %.3f\n", r.CPI)
		_, _ = fmt.Fprintf(h.config.Output, "  Stall Cycles:         %d\n", r.StallCycles)
		_, _ = fmt.Fprintf(h.config.Output, "  Exec Stalls:          %d\n", r.ExecStalls)
		_, _ = fmt.Fprintf(h.config.Output, "  Mem Stalls:           %d\n", r.MemStalls)
		_, _ = fmt.Fprintf(h.config.Output, "  Decode Stalls:        %d\n", r.DecodeStalls)
		_, _ = fmt.Fprintf(h.config.Output, "  Data Hazards:         %d\n", r.DataHazards)
		_, _ = fmt.Fprintf(h.config.Output, "  Load-Use Hazards:     %d\n", r.LoadUseHazards)
		_, _ = fmt.Fprintf(h.config.Output, "  Pipeline Flushes:     %d\n", r.PipelineFlushes)
		_, _ = fmt.Fprintf(h.config.Output, "  Branches Taken:       %d\n", r.BranchesTaken)
		if r.Exceptions > 0 {
			_, _ = fmt.Fprintf(h.config.Output, "  Exceptions:           %d\n", r.Exceptions)
		}

		if r.ICacheHits > 0 || r.ICacheMisses > 0 {
			_, _ = fmt.Fprintln(h.config.Output, "  --- I-Cache ---")
			_, _ = fmt.Fprintf(h.config.Output, "  Hits:   %d\n", r.ICacheHits)
			_, _ = fmt.Fprintf(h.config.Output, "  Misses: %d\n", r.ICacheMisses)
		}

		if r.DCacheHits > 0 || r.DCacheMisses > 0 {
			_, _ = fmt.Fprintln(h.config.Output, "  --- D-Cache ---")
			_, _ = fmt.Fprintf(h.config.Output, "  Hits:   %d\n", r.DCacheHits)
			_, _ = fmt.Fprintf(h.config.Output, "  Misses: %d\n", r.DCacheMisses)
		}

		_, _ = fmt.Fprintln(h.config.Output, "  --- Bus ---")
		_, _ = fmt.Fprintf(h.config.Output, "  Reads:  %d\n", r.BusReads)
		_, _ = fmt.Fprintf(h.config.Output, "  Writes: %d\n", r.BusWrites)

		_, _ = fmt.Fprintf(h.config.Output, "  Simulated Time: %.6fs\n", r.SimulatedTime)
		_, _ = fmt.Fprintf(h.config.Output, "  Wall Time: %v\n", r.WallTime)
		_, _ = fmt.Fprintln(h.config.Output, "")
	}
}

// PrintCSV outputs benchmark results in CSV format for easy comparison.
func (h *Harness) PrintCSV(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output,
		"name,cycles,instructions,cpi,stalls,exec_stalls,mem_stalls,data_hazards,load_use_hazards,flushes,icache_hits,icache_misses,dcache_hits,dcache_misses,bus_reads,bus_writes,exit_code")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "%s,%d,%d,%.3f,%d,%d,%d,%d,%d,%d,%d,%d,%d,%d,%d,%d,%d\n",
			r.Name,
			r.SimulatedCycles,
			r.InstructionsRetired,
			r.CPI,
			r.StallCycles,
			r.ExecStalls,
			r.MemStalls,
			r.DataHazards,
			r.LoadUseHazards,
			r.PipelineFlushes,
			r.ICacheHits,
			r.ICacheMisses,
			r.DCacheHits,
			r.DCacheMisses,
			r.BusReads,
			r.BusWrites,
			r.ExitCode,
		)
	}
}

// BenchmarkReport is the JSON document written by PrintJSON.
type BenchmarkReport struct {
	Metadata ReportMetadata    `json:"metadata"`
	Results  []BenchmarkResult `json:"results"`
	Summary  ReportSummary     `json:"summary"`
}

// ReportMetadata contains information about the benchmark run.
type ReportMetadata struct {
	// Timestamp when the benchmark was run
	Timestamp string `json:"timestamp"`

	// Version of the simulator
	Version string `json:"version"`

	// Config describes the benchmark configuration
	Config BenchmarkConfig `json:"config"`
}

// BenchmarkConfig describes the harness configuration used.
type BenchmarkConfig struct {
	ICacheEnabled   bool    `json:"icache_enabled"`
	DCacheEnabled   bool    `json:"dcache_enabled"`
	BranchDelaySlot bool    `json:"branch_delay_slot"`
	FrequencyMHz    float64 `json:"frequency_mhz"`
	BusLatency      uint64  `json:"bus_latency"`
	MemBandwidth    uint64  `json:"mem_bandwidth"`
}

// ReportSummary contains aggregate statistics across all benchmarks.
type ReportSummary struct {
	// TotalBenchmarks is the number of benchmarks run
	TotalBenchmarks int `json:"total_benchmarks"`

	// Failed is the number of runs that reported an error
	Failed int `json:"failed"`

	// TotalCycles is the sum of all simulated cycles
	TotalCycles uint64 `json:"total_cycles"`

	// TotalInstructions is the sum of all instructions retired
	TotalInstructions uint64 `json:"total_instructions"`

	// AverageCPI is the average cycles per instruction
	AverageCPI float64 `json:"average_cpi"`

	// TotalWallTime is the total wall clock time for all benchmarks
	TotalWallTime time.Duration `json:"total_wall_time_ns"`
}

// Version is reported in JSON benchmark reports.
const Version = "0.1.0"

// PrintJSON outputs benchmark results in JSON format for automated comparison.
func (h *Harness) PrintJSON(results []BenchmarkResult) error {
	var totalCycles, totalInstructions uint64
	var totalWallTime time.Duration
	failed := 0
	for _, r := range results {
		totalCycles += r.SimulatedCycles
		totalInstructions += r.InstructionsRetired
		totalWallTime += r.WallTime
		if r.Error != "" {
			failed++
		}
	}

	avgCPI := float64(0)
	if totalInstructions > 0 {
		avgCPI = float64(totalCycles) / float64(totalInstructions)
	}

	cfg := h.machineConfig()
	report := BenchmarkReport{
		Metadata: ReportMetadata{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   Version,
			Config: BenchmarkConfig{
				ICacheEnabled:   cfg.ICache.Enabled,
				DCacheEnabled:   cfg.DCache.Enabled,
				BranchDelaySlot: cfg.BranchDelaySlot,
				FrequencyMHz:    cfg.FrequencyMHz,
				BusLatency:      cfg.Timing.BusLatency,
				MemBandwidth:    cfg.Timing.MemBandwidth,
			},
		},
		Results: results,
		Summary: ReportSummary{
			TotalBenchmarks:   len(results),
			Failed:            failed,
			TotalCycles:       totalCycles,
			TotalInstructions: totalInstructions,
			AverageCPI:        avgCPI,
			TotalWallTime:     totalWallTime,
		},
	}

	encoder := json.NewEncoder(h.config.Output)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}
