package tsc

// SimRegisters is an in-memory TSC register file for host builds and
// tests. It models the parts of the hardware the driver relies on:
//
//   - ISR and the group counters are read-only,
//   - ICR is write-one-to-clear against ISR,
//   - setting CR.START calls OnStart, which plays the analog front end,
//   - raised flags may be delayed by a number of ISR reads to model an
//     acquisition that takes time,
//   - raising either flag ends the acquisition (CR.START drops).
//
// It is not safe for concurrent use.
type SimRegisters struct {
	words [numWords]uint32

	// OnStart runs after CR.START is set.
	OnStart func(s *SimRegisters)

	pending uint32
	delay   int

	loads  int
	stores int
}

// NewSimRegisters returns a register file at reset values.
func NewSimRegisters() *SimRegisters {
	s := &SimRegisters{}
	s.Reset()
	return s
}

// Reset restores the reset values. IOHCR resets to all ones.
func (s *SimRegisters) Reset() {
	s.words = [numWords]uint32{}
	s.words[IOHCR/4] = 0xFFFFFFFF
	s.pending = 0
	s.delay = 0
}

func (s *SimRegisters) Load(r Register) uint32 {
	s.loads++
	if r == ISR && s.pending != 0 {
		if s.delay > 0 {
			s.delay--
		} else {
			s.words[ISR/4] |= s.pending
			s.words[CR/4] &^= crSTART
			s.pending = 0
		}
	}
	if r == ICR {
		return 0
	}
	return s.words[r/4]
}

func (s *SimRegisters) Store(r Register, value uint32) {
	s.stores++
	switch {
	case r == ISR:
		return
	case r == ICR:
		s.words[ISR/4] &^= value & (flagEOA | flagMCE)
		s.pending &^= value & (flagEOA | flagMCE)
		return
	case r >= IOG1CR:
		return
	}

	prev := s.words[r/4]
	s.words[r/4] = value
	if r == CR && value&crSTART != 0 && prev&crSTART == 0 && s.OnStart != nil {
		s.OnStart(s)
	}
}

// Word returns a register without counting the access or side effects.
func (s *SimRegisters) Word(r Register) uint32 {
	return s.words[r/4]
}

// SetCount loads a group counter.
func (s *SimRegisters) SetCount(group uint8, count uint16) {
	if r, ok := GroupCounter(group); ok {
		s.words[r/4] = uint32(count) & countMask
	}
}

// Raise ends the current acquisition with e. The flag becomes visible
// after afterReads further ISR reads.
func (s *SimRegisters) Raise(e Event, afterReads int) {
	if afterReads <= 0 {
		s.words[ISR/4] |= e.flag()
		s.words[CR/4] &^= crSTART
		return
	}
	s.pending |= e.flag()
	s.delay = afterReads
}

// Accesses returns the number of register loads and stores so far.
func (s *SimRegisters) Accesses() (loads, stores int) {
	return s.loads, s.stores
}

// SimClock is a ClockDomain that records what was asked of it. A reset
// also resets Target when set.
type SimClock struct {
	Target  *SimRegisters
	Enabled bool
	Resets  int
}

func (c *SimClock) EnableTSC() { c.Enabled = true }

func (c *SimClock) ResetTSC() {
	c.Resets++
	if c.Target != nil {
		c.Target.Reset()
	}
}
