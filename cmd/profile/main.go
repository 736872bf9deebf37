// Package main provides a profiling wrapper for the R3000 model to identify
// simulator performance bottlenecks.
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime/pprof"
	"time"

	"github.com/sarchlab/r3ksim/benchmarks"
	"github.com/sarchlab/r3ksim/timing/core"
)

var (
	bench      = flag.String("bench", "matrix_multiply_2x2", "microbenchmark to run repeatedly")
	configPath = flag.String("config", "", "Path to machine configuration (YAML or JSON)")
	cpuProfile = flag.String("cpuprofile", "", "write cpu profile to file")
	memProfile = flag.String("memprofile", "", "write memory profile to file")
	duration   = flag.Duration("duration", 30*time.Second, "max duration to run (for profiling)")
	iterations = flag.Int("n", 1000, "number of runs")
)

func main() {
	flag.Parse()

	b, ok := benchmarks.Find(*bench)
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown benchmark %q\n", *bench)
		os.Exit(1)
	}

	cfg := core.DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = core.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading machine config: %v\n", err)
			os.Exit(1)
		}
	}

	// Start CPU profiling if requested
	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = f.Close() }()

		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Error starting CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer pprof.StopCPUProfile()
	}

	fmt.Printf("Profiling: %s x %d\n", b.Name, *iterations)

	start := time.Now()
	deadline := start.Add(*duration)

	var runs int
	var cycles, instrCount uint64
	for runs < *iterations && time.Now().Before(deadline) {
		stats, err := runOnce(cfg, b)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		cycles += stats.Cycles
		instrCount += stats.Instructions
		runs++
	}

	elapsed := time.Since(start)

	// Write memory profile if requested
	if *memProfile != "" {
		f, err := os.Create(*memProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating memory profile: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = f.Close() }()

		if err := pprof.WriteHeapProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing memory profile: %v\n", err)
		}
	}

	fmt.Printf("\nProfiling Results:\n")
	fmt.Printf("Runs: %d\n", runs)
	fmt.Printf("Simulated cycles: %d\n", cycles)
	fmt.Printf("Instructions retired: %d\n", instrCount)
	fmt.Printf("Elapsed time: %v\n", elapsed)
	if elapsed > 0 {
		fmt.Printf("Cycles/second: %.0f\n", float64(cycles)/elapsed.Seconds())
		fmt.Printf("Instructions/second: %.0f\n", float64(instrCount)/elapsed.Seconds())
	}
}

// runOnce builds a fresh machine and runs the benchmark to completion.
func runOnce(cfg *core.Config, b benchmarks.Benchmark) (core.Stats, error) {
	m, err := core.NewMachine(cfg)
	if err != nil {
		return core.Stats{}, err
	}
	if err := b.Prepare(m); err != nil {
		return core.Stats{}, err
	}
	if err := m.Run(benchmarks.DefaultMaxCycles); err != nil {
		return core.Stats{}, err
	}
	return m.Stats(), nil
}
