// Package main checks that timing parameters never change architectural
// results: every microbenchmark must retire the same instructions and leave
// the same $v0 under every memory-system configuration.
package main

import (
	"fmt"
	"os"

	"github.com/sarchlab/r3ksim/benchmarks"
	"github.com/sarchlab/r3ksim/timing/core"
)

type variant struct {
	name   string
	mutate func(*core.Config)
}

var variants = []variant{
	{"no caches", func(c *core.Config) {
		c.ICache.Enabled = false
		c.DCache.Enabled = false
	}},
	{"icache only", func(c *core.Config) { c.DCache.Enabled = false }},
	{"wide bus", func(c *core.Config) { c.Timing.MemBandwidth = 4 }},
	{"slow bus", func(c *core.Config) { c.Timing.BusLatency = 3 }},
	{"slow RAM", func(c *core.Config) { c.Timing.RAMLatency = 20 }},
	{"slow multiplier", func(c *core.Config) {
		c.Timing.MultiplyLatency = 12
		c.Timing.DivideLatency = 35
	}},
	{"one-way caches", func(c *core.Config) {
		c.ICache.Geometry.Ways = 1
		c.DCache.Geometry.Ways = 1
	}},
}

func runWith(cfg *core.Config) ([]benchmarks.BenchmarkResult, error) {
	config := benchmarks.DefaultConfig()
	config.Machine = cfg
	config.Output = os.Stderr

	harness := benchmarks.NewHarness(config)
	harness.AddBenchmarks(benchmarks.GetMicrobenchmarks())
	results := harness.RunAll()

	for _, r := range results {
		if r.Error != "" {
			return nil, fmt.Errorf("%s: %s", r.Name, r.Error)
		}
	}
	return results, nil
}

func main() {
	fmt.Println("R3000 Accuracy Validation - Timing Independence")
	fmt.Println("===============================================")

	baseline, err := runWith(core.DefaultConfig())
	if err != nil {
		fmt.Printf("❌ Baseline failed: %v\n", err)
		os.Exit(1)
	}

	allPassed := true
	for _, v := range variants {
		cfg := core.DefaultConfig()
		v.mutate(cfg)

		results, err := runWith(cfg)
		if err != nil {
			fmt.Printf("❌ %s: %v\n", v.name, err)
			allPassed = false
			continue
		}

		ok := true
		for i, r := range results {
			base := baseline[i]
			if r.ExitCode != base.ExitCode || r.InstructionsRetired != base.InstructionsRetired {
				fmt.Printf("❌ %s / %s: exit %d, %d insts (baseline exit %d, %d insts)\n",
					v.name, r.Name, r.ExitCode, r.InstructionsRetired, base.ExitCode, base.InstructionsRetired)
				ok = false
			}
		}
		if ok {
			fmt.Printf("✅ %s: all %d benchmarks match\n", v.name, len(results))
		} else {
			allPassed = false
		}
	}

	fmt.Println("\n===============================================")
	if allPassed {
		fmt.Println("🎉 ALL ACCURACY TESTS PASSED")
		os.Exit(0)
	}
	fmt.Println("❌ ACCURACY TESTS FAILED")
	os.Exit(1)
}
