package benchmarks

import (
	"github.com/sarchlab/r3ksim/insts"
	"github.com/sarchlab/r3ksim/timing/core"
)

// Registers used by the benchmark programs.
const (
	rV0   = uint8(insts.RegV0)
	rBase = 8
	rCnt  = 9
	rTmp  = 10
	rTmp2 = 11
	rTmp3 = 12
	rRA   = uint8(insts.RegRA)
)

// GetMicrobenchmarks returns the standard set of microbenchmarks.
// Each benchmark targets a specific pipeline or memory-system characteristic.
func GetMicrobenchmarks() []Benchmark {
	return []Benchmark{
		arithmeticSequential(),
		dependencyChain(),
		memorySequential(),
		uncachedSequential(),
		functionCalls(),
		branchTaken(),
		mixedOperations(),
		matrixMultiply2x2(),
		loopSimulation(),
		cacheConflict(),
	}
}

// GetCoreBenchmarks returns a minimal set of 3 core benchmarks for quick
// validation: a loop, a matrix multiply and branch-heavy code.
func GetCoreBenchmarks() []Benchmark {
	return []Benchmark{
		loopSimulation(),
		matrixMultiply2x2(),
		branchTaken(),
	}
}

// Find returns the microbenchmark with the given name.
func Find(name string) (Benchmark, bool) {
	for _, b := range GetMicrobenchmarks() {
		if b.Name == name {
			return b, true
		}
	}
	return Benchmark{}, false
}

// instAddr returns the address of the i-th word of a benchmark program.
func instAddr(i int) uint32 {
	return ProgramBase + uint32(i)*4
}

// loadBase sets rBase to addr.
func loadBase(addr uint32) []uint32 {
	return []uint32{
		insts.LUI(rBase, uint16(addr>>16)),
		insts.ORI(rBase, rBase, uint16(addr)),
	}
}

// 1. Arithmetic Sequential - Tests ALU throughput with independent operations
func arithmeticSequential() Benchmark {
	program := make([]uint32, 0, 21)
	for i := 0; i < 4; i++ {
		for r := uint8(2); r <= 6; r++ {
			program = append(program, insts.ADDIU(r, r, 1))
		}
	}
	program = append(program, insts.BREAK())

	return Benchmark{
		Name:         "arithmetic_sequential",
		Description:  "20 ADDIUs rotating over 5 registers - measures ALU throughput",
		Program:      program,
		ExpectedExit: 4,
	}
}

// 2. Dependency Chain - Tests instruction latency with RAW hazards
func dependencyChain() Benchmark {
	return Benchmark{
		Name:        "dependency_chain",
		Description: "20 dependent ADDIUs ($v0 = $v0 + 1) - measures forwarding",
		Setup: func(m *core.Machine) error {
			m.SetReg(insts.RegV0, 0)
			return nil
		},
		Program:      buildDependencyChain(20),
		ExpectedExit: 20,
	}
}

func buildDependencyChain(n int) []uint32 {
	program := make([]uint32, 0, n+1)
	for i := 0; i < n; i++ {
		program = append(program, insts.ADDIU(rV0, rV0, 1))
	}
	return append(program, insts.BREAK())
}

// 3. Memory Sequential - Tests store and load-use behaviour on cached memory
func memorySequential() Benchmark {
	return Benchmark{
		Name:         "memory_sequential",
		Description:  "8 stores then 8 dependent loads through kseg0 - measures the data cache",
		Program:      buildStoreLoadSum(DataBase, 8),
		ExpectedExit: 36,
	}
}

// 4. Uncached Sequential - the same access pattern through kseg1
func uncachedSequential() Benchmark {
	return Benchmark{
		Name:         "uncached_sequential",
		Description:  "8 stores then 8 dependent loads through kseg1 - measures raw bus latency",
		Program:      buildStoreLoadSum(DataBase+0x20000000, 8),
		ExpectedExit: 36,
	}
}

// buildStoreLoadSum stores 1..n at base, then loads them back and sums them
// into $v0.
func buildStoreLoadSum(base uint32, n int) []uint32 {
	program := loadBase(base)
	for i := 0; i < n; i++ {
		program = append(program,
			insts.ADDIU(rTmp, 0, int16(i+1)),
			insts.SW(rTmp, rBase, int16(i*4)),
		)
	}
	for i := 0; i < n; i++ {
		program = append(program,
			insts.LW(rTmp, rBase, int16(i*4)),
			insts.ADDU(rV0, rV0, rTmp),
		)
	}
	return append(program, insts.BREAK())
}

// 5. Function Calls - Tests JAL/JR overhead
func functionCalls() Benchmark {
	const calls = 5

	// Each call is followed by a NOP because the link address skips the
	// word after the JAL.
	fn := calls*2 + 1
	program := make([]uint32, 0, fn+2)
	for i := 0; i < calls; i++ {
		program = append(program, insts.JAL(instAddr(fn)), insts.NOP)
	}
	program = append(program,
		insts.BREAK(),
		insts.ADDIU(rV0, rV0, 1), // fn
		insts.JR(rRA),
	)

	return Benchmark{
		Name:         "function_calls",
		Description:  "5 calls to a leaf function - measures call/return flushes",
		Program:      program,
		ExpectedExit: calls,
	}
}

// 6. Branch Taken - Tests forward taken branches
func branchTaken() Benchmark {
	program := make([]uint32, 0, 16)
	for i := 0; i < 5; i++ {
		program = append(program,
			insts.BEQ(0, 0, 1),
			insts.ADDIU(rV0, rV0, 100), // skipped
			insts.ADDIU(rV0, rV0, 1),
		)
	}
	program = append(program, insts.BREAK())

	return Benchmark{
		Name:         "branch_taken",
		Description:  "5 always-taken forward branches - measures branch squash cost",
		Program:      program,
		ExpectedExit: 5,
	}
}

// 7. Mixed Operations - multiply, divide, logic and shifts
func mixedOperations() Benchmark {
	return Benchmark{
		Name:        "mixed_operations",
		Description: "MULT/DIV with HI/LO interlocks mixed with logic and shifts",
		Program: []uint32{
			insts.ADDIU(rBase, 0, 6),
			insts.ADDIU(rCnt, 0, 7),
			insts.MULT(rBase, rCnt),
			insts.MFLO(rV0), // 42
			insts.ADDIU(rTmp, 0, 2),
			insts.DIV(rV0, rTmp),
			insts.MFLO(rV0),               // 21
			insts.ORI(rV0, rV0, 0x100),    // 0x115
			insts.ANDI(rV0, rV0, 0xFF),    // 0x15
			insts.SLL(rTmp2, rV0, 2),      // 84
			insts.SRL(rTmp2, rTmp2, 2),    // 21
			insts.SLTI(rTmp3, rTmp2, 100), // 1
			insts.ADDU(rV0, rTmp2, rTmp3),
			insts.BREAK(),
		},
		ExpectedExit: 22,
	}
}

// 8. Matrix Multiply 2x2 - loads, multiplies and stores
func matrixMultiply2x2() Benchmark {
	return Benchmark{
		Name:        "matrix_multiply_2x2",
		Description: "C = A x B for 2x2 word matrices, $v0 = sum(C)",
		Setup: func(m *core.Machine) error {
			// A = [1 2; 3 4], B = [5 6; 7 8]
			return m.LoadProgram(DataBase, []uint32{1, 2, 3, 4, 5, 6, 7, 8})
		},
		Program:      buildMatrixMultiply2x2(),
		ExpectedExit: 19 + 22 + 43 + 50,
	}
}

func buildMatrixMultiply2x2() []uint32 {
	const (
		a = 0
		b = 16
		c = 32
	)

	program := loadBase(DataBase)
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			program = append(program,
				insts.LW(rCnt, rBase, int16(a+(i*2)*4)),
				insts.LW(rTmp, rBase, int16(b+j*4)),
				insts.MULT(rCnt, rTmp),
				insts.MFLO(rTmp2),
				insts.LW(rCnt, rBase, int16(a+(i*2+1)*4)),
				insts.LW(rTmp, rBase, int16(b+(2+j)*4)),
				insts.MULT(rCnt, rTmp),
				insts.MFLO(rTmp3),
				insts.ADDU(rTmp2, rTmp2, rTmp3),
				insts.SW(rTmp2, rBase, int16(c+(i*2+j)*4)),
				insts.ADDU(rV0, rV0, rTmp2),
			)
		}
	}
	return append(program, insts.BREAK())
}

// 9. Loop Simulation - a counted loop closed by a backward branch
func loopSimulation() Benchmark {
	return Benchmark{
		Name:        "loop_simulation",
		Description: "10-iteration counted loop - measures loop-closing branch cost",
		Program: []uint32{
			insts.ADDIU(rCnt, 0, 10),
			insts.ADDIU(rV0, rV0, 1), // loop
			insts.ADDIU(rCnt, rCnt, -1),
			insts.BNE(rCnt, 0, -3),
			insts.BREAK(),
		},
		ExpectedExit: 10,
	}
}

// 10. Cache Conflict - three lines competing for one two-way set
func cacheConflict() Benchmark {
	// With the default 128-set, 16-byte-line data cache, addresses 2KB
	// apart share a set.
	const stride = 0x800

	program := loadBase(DataBase)
	program = append(program, insts.ADDIU(rCnt, 0, 4))
	loop := len(program)
	for k := 0; k < 3; k++ {
		program = append(program,
			insts.LW(rTmp, rBase, int16(k*stride)),
			insts.ADDU(rV0, rV0, rTmp),
		)
	}
	program = append(program, insts.ADDIU(rCnt, rCnt, -1))
	program = append(program, insts.BNE(rCnt, 0, int16(loop-(len(program)+1))))
	program = append(program, insts.BREAK())

	return Benchmark{
		Name:        "cache_conflict",
		Description: "round-robin loads from 3 lines in one 2-way set - measures miss cost",
		Setup: func(m *core.Machine) error {
			for k := uint32(0); k < 3; k++ {
				if err := m.LoadProgram(DataBase+k*stride, []uint32{k + 1}); err != nil {
					return err
				}
			}
			return nil
		},
		Program:      program,
		ExpectedExit: 4 * (1 + 2 + 3),
	}
}
