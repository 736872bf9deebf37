package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/r3ksim/emu"
)

var _ = Describe("Load/store helpers", func() {
	const word = uint32(0xAABBCCDD)

	Describe("Sub-word extraction", func() {
		It("should number bytes from the most significant end when big-endian", func() {
			Expect(emu.ExtractByte(word, 0, true)).To(Equal(uint8(0xAA)))
			Expect(emu.ExtractByte(word, 3, true)).To(Equal(uint8(0xDD)))
			Expect(emu.ExtractHalf(word, 2, true)).To(Equal(uint16(0xCCDD)))
		})

		It("should number bytes from the least significant end when little-endian", func() {
			Expect(emu.ExtractByte(word, 0, false)).To(Equal(uint8(0xDD)))
			Expect(emu.ExtractByte(word, 3, false)).To(Equal(uint8(0xAA)))
			Expect(emu.ExtractHalf(word, 2, false)).To(Equal(uint16(0xAABB)))
		})

		It("should insert bytes and halfwords", func() {
			Expect(emu.InsertByte(word, 1, 0x11, true)).To(Equal(uint32(0xAA11CCDD)))
			Expect(emu.InsertByte(word, 1, 0x11, false)).To(Equal(uint32(0xAABB11DD)))
			Expect(emu.InsertHalf(word, 0, 0x1234, true)).To(Equal(uint32(0x1234CCDD)))
		})

		It("should sign-extend loaded values", func() {
			Expect(emu.SignExtendByte(0x80)).To(Equal(uint32(0xFFFFFF80)))
			Expect(emu.SignExtendHalf(0x7FFF)).To(Equal(uint32(0x7FFF)))
		})
	})

	Describe("Unaligned word merges", func() {
		const reg = uint32(0x11223344)

		DescribeTable("big-endian",
			func(addr, lwl, lwr, swl, swr uint32) {
				Expect(emu.LoadWordLeft(reg, word, addr, true)).To(Equal(lwl))
				Expect(emu.LoadWordRight(reg, word, addr, true)).To(Equal(lwr))
				Expect(emu.StoreWordLeft(reg, word, addr, true)).To(Equal(swl))
				Expect(emu.StoreWordRight(reg, word, addr, true)).To(Equal(swr))
			},
			Entry("offset 0", uint32(0), uint32(0xAABBCCDD), uint32(0x112233AA), uint32(0x11223344), uint32(0x44BBCCDD)),
			Entry("offset 1", uint32(1), uint32(0xBBCCDD44), uint32(0x1122AABB), uint32(0xAA112233), uint32(0x3344CCDD)),
			Entry("offset 3", uint32(3), uint32(0xDD223344), uint32(0xAABBCCDD), uint32(0xAABBCC11), uint32(0x11223344)),
		)

		It("should mirror the merges when little-endian", func() {
			Expect(emu.LoadWordLeft(reg, word, 3, false)).To(Equal(word))
			Expect(emu.LoadWordRight(reg, word, 0, false)).To(Equal(word))
			Expect(emu.LoadWordLeft(reg, word, 2, false)).To(Equal(uint32(0xBBCCDD44)))
			Expect(emu.StoreWordRight(reg, word, 0, false)).To(Equal(reg))
		})
	})
})
