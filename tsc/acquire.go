package tsc

// Event is a TSC interrupt source.
type Event uint8

const (
	NoEvent Event = iota
	EndOfAcquisition
	MaxCountError
)

func (e Event) flag() uint32 {
	switch e {
	case EndOfAcquisition:
		return flagEOA
	case MaxCountError:
		return flagMCE
	}
	return 0
}

func (e Event) String() string {
	switch e {
	case EndOfAcquisition:
		return "end-of-acquisition"
	case MaxCountError:
		return "max-count-error"
	}
	return "none"
}

// AcquisitionState is the acquisition phase as seen in CR and ISR.
type AcquisitionState uint8

const (
	Idle AcquisitionState = iota
	InProgress
	Complete
	Errored
)

func (s AcquisitionState) String() string {
	switch s {
	case InProgress:
		return "in-progress"
	case Complete:
		return "complete"
	case Errored:
		return "errored"
	}
	return "idle"
}

// Clear acknowledges e. ICR is write-one-to-clear, so other flags are
// not affected.
func (c *Controller) Clear(e Event) {
	c.block().Store(ICR, e.flag())
}

// Listen enables the interrupt for e.
func (c *Controller) Listen(e Event) {
	setBits(c.block(), IER, e.flag())
}

// Unlisten disables the interrupt for e.
func (c *Controller) Unlisten(e Event) {
	clearBits(c.block(), IER, e.flag())
}

// Start clears pending events, releases the I/Os from their discharged
// default state and starts an acquisition.
func (c *Controller) Start() {
	regs := c.block()
	c.Clear(EndOfAcquisition)
	c.Clear(MaxCountError)

	clearBits(regs, CR, crIODEF)
	setBits(regs, CR, crSTART)
}

// InProgress reports whether the hardware is still acquiring.
func (c *Controller) InProgress() bool {
	return hasBits(c.block(), CR, crSTART)
}

// CheckEvent samples ISR once. End of acquisition takes precedence when
// both flags are set.
func (c *Controller) CheckEvent() Event {
	isr := c.block().Load(ISR)
	switch {
	case isr&flagEOA != 0:
		return EndOfAcquisition
	case isr&flagMCE != 0:
		return MaxCountError
	}
	return NoEvent
}

// State derives the acquisition phase from a single ISR sample and CR.
func (c *Controller) State() AcquisitionState {
	switch c.CheckEvent() {
	case EndOfAcquisition:
		return Complete
	case MaxCountError:
		return Errored
	}
	if c.InProgress() {
		return InProgress
	}
	return Idle
}

// Acquire starts an acquisition and busy-waits for its outcome. There is
// no timeout: if the hardware never raises a flag, Acquire never returns.
// Use Start with Listen or CheckEvent where the caller must stay
// responsive.
func (c *Controller) Acquire() error {
	c.Start()

	for {
		switch c.CheckEvent() {
		case MaxCountError:
			c.Clear(MaxCountError)
			return ErrMaxCount
		case EndOfAcquisition:
			c.Clear(EndOfAcquisition)
			return nil
		}
	}
}

// ReadUnchecked returns the counter of group 1..8 without checking that
// any channel of the group is armed. Other group numbers read as 0.
func (c *Controller) ReadUnchecked(group uint8) uint16 {
	r, ok := GroupCounter(group)
	if !ok {
		return 0
	}
	return uint16(c.block().Load(r) & countMask)
}

// Read returns the count of p's group, or ErrInvalidPin if p is not an
// armed channel.
func (c *Controller) Read(p Pin) (uint16, error) {
	if !hasBits(c.block(), IOCCR, uint32(1)<<BitPos(p)) {
		return 0, ErrInvalidPin
	}
	return c.ReadUnchecked(p.Group()), nil
}
