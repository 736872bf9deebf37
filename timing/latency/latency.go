// Package latency provides the timing parameters of the multi-cycle
// operations of the R3000 model.
//
// The values can be configured via TimingConfig.
package latency

import (
	"github.com/sarchlab/r3ksim/insts"
)

// Table provides instruction latency lookups.
type Table struct {
	config *TimingConfig
}

// NewTable creates a new latency table with default timing values.
func NewTable() *Table {
	return &Table{
		config: DefaultTimingConfig(),
	}
}

// NewTableWithConfig creates a new latency table with custom timing configuration.
func NewTableWithConfig(config *TimingConfig) *Table {
	return &Table{
		config: config,
	}
}

// GetLatency returns the number of cycles the instruction occupies its
// functional unit.
func (t *Table) GetLatency(inst *insts.Instruction) uint64 {
	if inst == nil {
		return 1
	}

	switch inst.Op {
	case insts.OpMULT, insts.OpMULTU:
		return t.config.MultiplyLatency

	case insts.OpDIV, insts.OpDIVU:
		return t.config.DivideLatency

	default:
		return 1
	}
}

// InterlockCycles returns how long the HI/LO pair stays busy after the
// instruction executes. Only multiplies and divides occupy it.
func (t *Table) InterlockCycles(inst *insts.Instruction) uint64 {
	if inst == nil {
		return 0
	}

	switch inst.Op {
	case insts.OpMULT, insts.OpMULTU, insts.OpDIV, insts.OpDIVU:
		return t.GetLatency(inst)
	}
	return 0
}

// IsMemoryOp returns true if the instruction accesses memory.
func (t *Table) IsMemoryOp(inst *insts.Instruction) bool {
	if inst == nil {
		return false
	}
	return inst.MemRead || inst.MemWrite
}

// Config returns the timing configuration.
func (t *Table) Config() *TimingConfig {
	return t.config
}
