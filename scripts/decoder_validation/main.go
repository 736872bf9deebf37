// Measures decoder throughput and allocations over the instruction mix of
// the microbenchmarks.
package main

import (
	"fmt"
	"runtime"
	"time"

	"github.com/sarchlab/r3ksim/benchmarks"
	"github.com/sarchlab/r3ksim/insts"
)

func main() {
	decoder := insts.NewDecoder()

	var words []uint32
	for _, b := range benchmarks.GetMicrobenchmarks() {
		words = append(words, b.Program...)
	}

	reserved := 0
	for _, w := range words {
		if decoder.Decode(w).Reserved {
			reserved++
		}
	}

	// Warm up
	for i := 0; i < 1000; i++ {
		decoder.Decode(words[i%len(words)])
	}

	runtime.GC()
	var m1, m2 runtime.MemStats
	runtime.ReadMemStats(&m1)

	start := time.Now()
	iterations := 10000

	for i := 0; i < iterations; i++ {
		for _, w := range words {
			decoder.Decode(w)
		}
	}

	elapsed := time.Since(start)
	runtime.ReadMemStats(&m2)

	totalDecodes := iterations * len(words)
	allocations := m2.Mallocs - m1.Mallocs
	allocatedBytes := m2.TotalAlloc - m1.TotalAlloc

	fmt.Printf("Decoder Validation Results:\n")
	fmt.Printf("===========================\n")
	fmt.Printf("Program words: %d (%d reserved)\n", len(words), reserved)
	fmt.Printf("Total decode operations: %d\n", totalDecodes)
	fmt.Printf("Time elapsed: %v\n", elapsed)
	fmt.Printf("Decodes per second: %.0f\n", float64(totalDecodes)/elapsed.Seconds())
	fmt.Printf("Allocations: %d\n", allocations)
	fmt.Printf("Allocated bytes: %d\n", allocatedBytes)
	fmt.Printf("Allocations per decode: %.3f\n", float64(allocations)/float64(totalDecodes))
	fmt.Printf("Bytes per decode: %.1f\n", float64(allocatedBytes)/float64(totalDecodes))

	if reserved > 0 {
		fmt.Printf("\n⚠️  WARNING: benchmark programs contain reserved encodings\n")
	}
}
