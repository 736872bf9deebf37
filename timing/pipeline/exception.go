package pipeline

import (
	"fmt"

	"github.com/go-logr/logr"

	"github.com/sarchlab/r3ksim/exc"
)

// Exception vector addresses.
const (
	NormalVectorBase = 0x80000000
	BootVectorBase   = 0xBFC00100

	UTLBMissOffset = 0x000
	GeneralOffset  = 0x080
)

// Decision is the outcome of an exception taken at writeback.
type Decision struct {
	Record exc.Record
	// EPC is the restart address saved in CP0.
	EPC uint32
	// Handler is the address fetched next.
	Handler uint32
	// Halt stops the simulation instead of vectoring.
	Halt bool
}

// ExceptionController selects among the exceptions an instruction raised
// and enters the handler through CP0.
type ExceptionController struct {
	cp0         Coprocessor0
	logger      logr.Logger
	haltOnBreak bool
	haltOnIBE   bool
}

// NewExceptionController creates an exception controller.
func NewExceptionController(cp0 Coprocessor0, logger logr.Logger) *ExceptionController {
	return &ExceptionController{cp0: cp0, logger: logger}
}

// Resolve picks the highest-priority exception of s. It returns false if s
// raised none.
func (e *ExceptionController) Resolve(s *Snapshot) (Decision, bool) {
	r, ok := exc.Select(s.Exceptions)
	if !ok {
		return Decision{}, false
	}

	if (e.haltOnBreak && r.Code == exc.Bp) || (e.haltOnIBE && r.Code == exc.IBE) {
		e.logger.V(1).Info("halt", "pc", fmt.Sprintf("0x%08x", s.PC), "exception", r.String())
		return Decision{Record: r, EPC: s.PC, Halt: true}, true
	}

	epc := s.PC
	if s.DelaySlot {
		epc -= 4
	}
	e.cp0.EnterException(epc, r, s.DelaySlot)

	d := Decision{Record: r, EPC: epc, Handler: e.vector(r)}
	e.logger.V(1).Info("exception",
		"pc", fmt.Sprintf("0x%08x", s.PC),
		"exception", r.String(),
		"epc", fmt.Sprintf("0x%08x", epc),
		"handler", fmt.Sprintf("0x%08x", d.Handler),
		"delaySlot", s.DelaySlot)

	return d, true
}

func (e *ExceptionController) vector(r exc.Record) uint32 {
	base := uint32(NormalVectorBase)
	if e.cp0.UseBootVectors() {
		base = BootVectorBase
	}

	offset := uint32(GeneralOffset)
	if (r.Code == exc.TLBL || r.Code == exc.TLBS) && e.cp0.TLBMissUser() {
		offset = UTLBMissOffset
	}
	return base + offset
}
