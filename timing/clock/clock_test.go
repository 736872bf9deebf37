package clock_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/r3ksim/timing/clock"
)

var _ = Describe("Clock", func() {
	It("should default to the reference frequency", func() {
		Expect(clock.New(0).Freq()).To(Equal(clock.DefaultFreq))
	})

	It("should count cycles", func() {
		c := clock.New(10 * sim.MHz)
		for i := 0; i < 5; i++ {
			c.Tick()
		}
		Expect(c.Now()).To(Equal(uint64(5)))

		c.Reset()
		Expect(c.Now()).To(BeZero())
	})

	It("should convert cycles to seconds", func() {
		c := clock.New(10 * sim.MHz)
		for i := 0; i < 1000; i++ {
			c.Tick()
		}
		Expect(c.Seconds()).To(BeNumerically("~", 100e-6, 1e-12))
	})
})
