// Package tsc drives the STM32L0 touch sensing controller.
//
// The controller measures the capacitance of a touch electrode by counting
// how many charge transfer cycles it takes to charge a sampling capacitor.
// Each acquisition group pairs one sampling pin with the channel pins of
// the same group; the count for a group is read back after the end of
// acquisition flag is raised. The Controller keeps no shadow state: every
// call goes straight to the registers.
package tsc

// Controller owns the TSC register block.
//
// It does no locking. Code sharing a Controller with an interrupt handler
// must wrap accesses in a critical section.
type Controller struct {
	regs RegisterBlock
}

// New enables and resets the TSC through clk, then programs the
// acquisition timing from cfg (nil for defaults), turns on spread
// spectrum, enables the peripheral and clears both event flags.
func New(regs RegisterBlock, clk ClockDomain, cfg *Config) *Controller {
	clk.EnableTSC()
	clk.ResetTSC()

	var c Config
	if cfg != nil {
		c = *cfg
	}
	regs.Store(CR, c.controlWord())
	regs.Store(ICR, flagEOA|flagMCE)

	return &Controller{regs: regs}
}

// Free releases the register block. Registers keep their current values.
func (c *Controller) Free() RegisterBlock {
	regs := c.block()
	c.regs = nil
	return regs
}

func (c *Controller) block() RegisterBlock {
	if c.regs == nil {
		panic(ErrReleased)
	}
	return c.regs
}

// SetupSampleGroup makes p the sampling capacitor I/O of its group and
// enables the group. Groups registered earlier stay enabled.
func (c *Controller) SetupSampleGroup(p Pin) {
	regs := c.block()
	p.Setup()
	bit := uint32(1) << BitPos(p)

	// Schmitt trigger hysteresis on the sampling I/O
	setBits(regs, IOHCR, bit)
	setBits(regs, IOSCR, bit)
	setBits(regs, IOGCSR, uint32(1)<<GroupPos(p))
}

// EnableChannel arms p as a channel I/O. Only one channel per group is
// meaningful in an acquisition; that is left to the caller.
func (c *Controller) EnableChannel(p Pin) {
	regs := c.block()
	p.Setup()
	setBits(regs, IOCCR, uint32(1)<<BitPos(p))
}

// DisableChannel disarms p.
func (c *Controller) DisableChannel(p Pin) {
	clearBits(c.block(), IOCCR, uint32(1)<<BitPos(p))
}

// ChannelMask returns the armed channel bits of IOCCR.
func (c *Controller) ChannelMask() uint32 {
	return c.block().Load(IOCCR)
}

// ControlWord returns the raw CR value.
func (c *Controller) ControlWord() uint32 {
	return c.block().Load(CR)
}
