package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/r3ksim/emu"
)

var _ = Describe("ALU", func() {
	Describe("Add", func() {
		It("should add without overflow", func() {
			sum, ov := emu.Add(40, 2)
			Expect(sum).To(Equal(uint32(42)))
			Expect(ov).To(BeFalse())
		})

		It("should detect positive overflow", func() {
			sum, ov := emu.Add(0x7FFFFFFF, 1)
			Expect(sum).To(Equal(uint32(0x80000000)))
			Expect(ov).To(BeTrue())
		})

		It("should detect negative overflow", func() {
			_, ov := emu.Add(0x80000000, 0xFFFFFFFF)
			Expect(ov).To(BeTrue())
		})

		It("should not flag mixed-sign wraparound", func() {
			sum, ov := emu.Add(0xFFFFFFFF, 1)
			Expect(sum).To(BeZero())
			Expect(ov).To(BeFalse())
		})
	})

	Describe("Sub", func() {
		It("should subtract", func() {
			diff, ov := emu.Sub(2, 5)
			Expect(diff).To(Equal(uint32(0xFFFFFFFD)))
			Expect(ov).To(BeFalse())
		})

		It("should detect overflow", func() {
			_, ov := emu.Sub(0x80000000, 1)
			Expect(ov).To(BeTrue())
		})
	})

	Describe("Set less than", func() {
		It("should compare signed", func() {
			Expect(emu.SetLessThan(0xFFFFFFFF, 1)).To(Equal(uint32(1)))
			Expect(emu.SetLessThan(1, 0xFFFFFFFF)).To(BeZero())
		})

		It("should compare unsigned", func() {
			Expect(emu.SetLessThanUnsigned(0xFFFFFFFF, 1)).To(BeZero())
			Expect(emu.SetLessThanUnsigned(1, 0xFFFFFFFF)).To(Equal(uint32(1)))
		})
	})

	Describe("Shifts", func() {
		It("should use only the low five bits of the amount", func() {
			Expect(emu.ShiftLeft(1, 33)).To(Equal(uint32(2)))
			Expect(emu.ShiftRightLogical(0x80000000, 31)).To(Equal(uint32(1)))
		})

		It("should replicate the sign bit", func() {
			Expect(emu.ShiftRightArithmetic(0x80000000, 4)).To(Equal(uint32(0xF8000000)))
			Expect(emu.ShiftRightArithmetic(0x40000000, 4)).To(Equal(uint32(0x04000000)))
		})
	})

	Describe("Multiply", func() {
		It("should produce a signed 64-bit product", func() {
			hi, lo := emu.Mult(0xFFFFFFFF, 2)
			Expect(hi).To(Equal(uint32(0xFFFFFFFF)))
			Expect(lo).To(Equal(uint32(0xFFFFFFFE)))
		})

		It("should produce an unsigned 64-bit product", func() {
			hi, lo := emu.MultU(0xFFFFFFFF, 2)
			Expect(hi).To(Equal(uint32(1)))
			Expect(lo).To(Equal(uint32(0xFFFFFFFE)))
		})
	})

	Describe("Divide", func() {
		It("should truncate toward zero", func() {
			hi, lo := emu.Div(uint32(0xFFFFFFF9), 2) // -7 / 2
			Expect(int32(lo)).To(Equal(int32(-3)))
			Expect(int32(hi)).To(Equal(int32(-1)))
		})

		It("should divide unsigned", func() {
			hi, lo := emu.DivU(7, 2)
			Expect(lo).To(Equal(uint32(3)))
			Expect(hi).To(Equal(uint32(1)))
		})

		DescribeTable("division by zero",
			func(div func(a, b uint32) (uint32, uint32), a, wantLO uint32) {
				hi, lo := div(a, 0)
				Expect(hi).To(Equal(a))
				Expect(lo).To(Equal(wantLO))
			},
			Entry("signed non-negative", emu.Div, uint32(5), uint32(0xFFFFFFFF)),
			Entry("signed negative", emu.Div, uint32(0xFFFFFFFB), uint32(1)),
			Entry("unsigned", emu.DivU, uint32(5), uint32(0xFFFFFFFF)),
		)
	})
})
