package emu

// ALU operations work on resolved 32-bit operand values. Register reads
// and writes are the caller's concern.

// Add returns a+b and whether the signed addition overflowed.
func Add(a, b uint32) (uint32, bool) {
	sum := a + b
	overflow := (a^b)&0x80000000 == 0 && (a^sum)&0x80000000 != 0
	return sum, overflow
}

// Sub returns a-b and whether the signed subtraction overflowed.
func Sub(a, b uint32) (uint32, bool) {
	diff := a - b
	overflow := (a^b)&0x80000000 != 0 && (a^diff)&0x80000000 != 0
	return diff, overflow
}

// SetLessThan returns 1 if a < b as signed integers, else 0.
func SetLessThan(a, b uint32) uint32 {
	if int32(a) < int32(b) {
		return 1
	}
	return 0
}

// SetLessThanUnsigned returns 1 if a < b as unsigned integers, else 0.
func SetLessThanUnsigned(a, b uint32) uint32 {
	if a < b {
		return 1
	}
	return 0
}

// ShiftLeft shifts v left by the low five bits of amount.
func ShiftLeft(v, amount uint32) uint32 {
	return v << (amount & 0x1F)
}

// ShiftRightLogical shifts v right by the low five bits of amount.
func ShiftRightLogical(v, amount uint32) uint32 {
	return v >> (amount & 0x1F)
}

// ShiftRightArithmetic shifts v right by the low five bits of amount,
// replicating the sign bit.
func ShiftRightArithmetic(v, amount uint32) uint32 {
	return uint32(int32(v) >> (amount & 0x1F))
}

// Mult returns the signed 64-bit product of a and b split into HI and LO.
func Mult(a, b uint32) (hi, lo uint32) {
	p := int64(int32(a)) * int64(int32(b))
	return uint32(uint64(p) >> 32), uint32(p)
}

// MultU returns the unsigned 64-bit product of a and b split into HI and LO.
func MultU(a, b uint32) (hi, lo uint32) {
	p := uint64(a) * uint64(b)
	return uint32(p >> 32), uint32(p)
}

// Div returns the signed remainder in HI and quotient in LO. Division by
// zero leaves HI = a and LO = -1 for a non-negative dividend or 1 otherwise,
// which is what the R3000 divider produces.
func Div(a, b uint32) (hi, lo uint32) {
	if b == 0 {
		if int32(a) >= 0 {
			return a, 0xFFFFFFFF
		}
		return a, 1
	}
	n, d := int32(a), int32(b)
	return uint32(n % d), uint32(n / d)
}

// DivU returns the unsigned remainder in HI and quotient in LO. Division by
// zero leaves HI = a and LO = all ones.
func DivU(a, b uint32) (hi, lo uint32) {
	if b == 0 {
		return a, 0xFFFFFFFF
	}
	return a % b, a / b
}
