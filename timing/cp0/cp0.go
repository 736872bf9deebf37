// Package cp0 implements the R3000 system control coprocessor as seen by the
// pipeline: the Status, Cause, EPC, BadVAddr and PRId registers, fixed
// segment address translation, and interrupt lines.
//
// There is no TLB. Mapped segments (kuseg and kseg2) translate one to one and
// are cacheable.
package cp0

import "github.com/sarchlab/r3ksim/exc"

// Register numbers.
const (
	RegBadVAddr = 8
	RegStatus   = 12
	RegCause    = 13
	RegEPC      = 14
	RegPRId     = 15
)

// Status register bits.
const (
	StatusIEc = 1 << 0
	StatusKUc = 1 << 1
	StatusIM  = 0xFF << 8
	StatusIsC = 1 << 16
	StatusSwC = 1 << 17
	StatusBEV = 1 << 22
	StatusCU0 = 1 << 28
)

// Cause register fields.
const (
	CauseExcCodeShift = 2
	CauseExcCodeMask  = 0x1F << CauseExcCodeShift
	CauseIPShift      = 8
	CauseIPMask       = 0xFF << CauseIPShift
	CauseSWMask       = 0x3 << CauseIPShift
	CauseCEShift      = 28
	CauseBD           = 1 << 31
)

// PRIdR3000A is the implementation/revision of an R3000A.
const PRIdR3000A = 0x00000230

// Segment boundaries.
const (
	KSeg0Base = 0x80000000
	KSeg1Base = 0xA0000000
	KSeg2Base = 0xC0000000
)

// CP0 holds the coprocessor 0 registers.
type CP0 struct {
	status   uint32
	cause    uint32
	epc      uint32
	badVAddr uint32
}

// New creates a CP0 in its reset state.
func New() *CP0 {
	c := &CP0{}
	c.Reset()
	return c
}

// Reset puts the processor in kernel mode with interrupts disabled and boot
// exception vectors selected.
func (c *CP0) Reset() {
	c.status = StatusBEV
	c.cause = 0
	c.epc = 0
	c.badVAddr = 0
}

// UserMode reports whether the processor runs in user mode.
func (c *CP0) UserMode() bool {
	return c.status&StatusKUc != 0
}

// Translate maps a virtual address to a physical one and reports whether
// the access may be cached.
func (c *CP0) Translate(vaddr uint32, mode exc.Mode) (uint32, bool, error) {
	if vaddr >= KSeg0Base && c.UserMode() {
		return 0, false, exc.AddressError(mode, vaddr)
	}

	switch {
	case vaddr < KSeg0Base:
		return vaddr, true, nil
	case vaddr < KSeg1Base:
		return vaddr - KSeg0Base, true, nil
	case vaddr < KSeg2Base:
		return vaddr - KSeg1Base, false, nil
	}
	return vaddr, true, nil
}

// EnterException saves the faulting PC, records the cause, and pushes the
// kernel/user and interrupt-enable stack so the handler runs in kernel mode
// with interrupts disabled.
func (c *CP0) EnterException(epc uint32, r exc.Record, delaySlot bool) {
	c.status = c.status&^0x3F | (c.status<<2)&0x3C

	c.cause &= CauseIPMask
	c.cause |= uint32(r.Code) << CauseExcCodeShift
	if r.Coproc >= 0 {
		c.cause |= uint32(r.Coproc&0x3) << CauseCEShift
	}
	if delaySlot {
		c.cause |= CauseBD
	}

	c.epc = epc
	switch r.Code {
	case exc.AdEL, exc.AdES, exc.TLBL, exc.TLBS, exc.Mod:
		c.badVAddr = r.BadAddr
	}
}

// ReturnFromException pops the kernel/user and interrupt-enable stack.
func (c *CP0) ReturnFromException() {
	c.status = c.status&^0x0F | (c.status>>2)&0x0F
}

// UseBootVectors reports whether exceptions vector to the boot ROM.
func (c *CP0) UseBootVectors() bool {
	return c.status&StatusBEV != 0
}

// TLBMissUser reports whether the last TLB miss came from a user segment.
// Without a TLB it is always false.
func (c *CP0) TLBMissUser() bool {
	return false
}

// CachesIsolated reports whether the data cache is isolated from memory.
func (c *CP0) CachesIsolated() bool {
	return c.status&StatusIsC != 0
}

// CachesSwapped reports whether the instruction and data caches are swapped.
func (c *CP0) CachesSwapped() bool {
	return c.status&StatusSwC != 0
}

// Usable reports whether coprocessor n may be used. Coprocessor 0 is
// always usable in kernel mode.
func (c *CP0) Usable(n int) bool {
	if n == 0 && !c.UserMode() {
		return true
	}
	return c.status&(StatusCU0<<uint(n&0x3)) != 0
}

// InterruptPending reports whether an enabled interrupt is asserted.
func (c *CP0) InterruptPending() bool {
	if c.status&StatusIEc == 0 {
		return false
	}
	return c.cause&c.status&CauseIPMask != 0
}

// RaiseInterrupt asserts hardware interrupt line 0-5.
func (c *CP0) RaiseInterrupt(line int) {
	c.cause |= 1 << (CauseIPShift + 2 + uint(line))
}

// ClearInterrupt deasserts hardware interrupt line 0-5.
func (c *CP0) ClearInterrupt(line int) {
	c.cause &^= 1 << (CauseIPShift + 2 + uint(line))
}

// Read returns the value of a CP0 register for MFC0.
func (c *CP0) Read(reg uint8) uint32 {
	switch reg {
	case RegBadVAddr:
		return c.badVAddr
	case RegStatus:
		return c.status
	case RegCause:
		return c.cause
	case RegEPC:
		return c.epc
	case RegPRId:
		return PRIdR3000A
	}
	return 0
}

// Write sets a CP0 register for MTC0. Only the software interrupt bits of
// Cause are writable; BadVAddr and PRId are read-only.
func (c *CP0) Write(reg uint8, value uint32) {
	switch reg {
	case RegStatus:
		c.status = value
	case RegCause:
		c.cause = c.cause&^CauseSWMask | value&CauseSWMask
	case RegEPC:
		c.epc = value
	}
}
