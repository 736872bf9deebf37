package emu

// Byte order helpers. A word value is the number an aligned LW returns; the
// position of a byte or halfword inside that number depends on the target
// endianness.

// ByteShift returns the bit position of the byte at offset (0-3) within an
// aligned word.
func ByteShift(offset uint32, bigEndian bool) uint32 {
	offset &= 3
	if bigEndian {
		return 8 * (3 - offset)
	}
	return 8 * offset
}

// HalfShift returns the bit position of the halfword at offset (0 or 2)
// within an aligned word.
func HalfShift(offset uint32, bigEndian bool) uint32 {
	offset &= 2
	if bigEndian {
		return 8 * (2 - offset)
	}
	return 8 * offset
}

// ExtractByte returns the byte at addr from the aligned word containing it.
func ExtractByte(word, addr uint32, bigEndian bool) uint8 {
	return uint8(word >> ByteShift(addr, bigEndian))
}

// ExtractHalf returns the halfword at addr from the aligned word containing it.
func ExtractHalf(word, addr uint32, bigEndian bool) uint16 {
	return uint16(word >> HalfShift(addr, bigEndian))
}

// InsertByte returns word with the byte at addr replaced by b.
func InsertByte(word, addr uint32, b uint8, bigEndian bool) uint32 {
	s := ByteShift(addr, bigEndian)
	return word&^(0xFF<<s) | uint32(b)<<s
}

// InsertHalf returns word with the halfword at addr replaced by h.
func InsertHalf(word, addr uint32, h uint16, bigEndian bool) uint32 {
	s := HalfShift(addr, bigEndian)
	return word&^(0xFFFF<<s) | uint32(h)<<s
}

// SignExtendByte widens a loaded byte for LB.
func SignExtendByte(b uint8) uint32 { return uint32(int32(int8(b))) }

// SignExtendHalf widens a loaded halfword for LH.
func SignExtendHalf(h uint16) uint32 { return uint32(int32(int16(h))) }

// LoadWordLeft merges the aligned memory word mem into reg for LWL at the
// given byte address.
func LoadWordLeft(reg, mem, addr uint32, bigEndian bool) uint32 {
	k := addr & 3
	if !bigEndian {
		k = 3 - k
	}
	s := 8 * k
	return mem<<s | reg&(1<<s-1)
}

// LoadWordRight merges the aligned memory word mem into reg for LWR at the
// given byte address.
func LoadWordRight(reg, mem, addr uint32, bigEndian bool) uint32 {
	k := addr & 3
	if bigEndian {
		k = 3 - k
	}
	s := 8 * k
	return mem>>s | reg&^(0xFFFFFFFF>>s)
}

// StoreWordLeft returns the aligned memory word after SWL of reg at the given
// byte address.
func StoreWordLeft(reg, mem, addr uint32, bigEndian bool) uint32 {
	k := addr & 3
	if !bigEndian {
		k = 3 - k
	}
	s := 8 * k
	return reg>>s | mem&^(0xFFFFFFFF>>s)
}

// StoreWordRight returns the aligned memory word after SWR of reg at the
// given byte address.
func StoreWordRight(reg, mem, addr uint32, bigEndian bool) uint32 {
	k := addr & 3
	if bigEndian {
		k = 3 - k
	}
	s := 8 * k
	return reg<<s | mem&(1<<s-1)
}
