package tsc

import "testing"

// fakePin is a Pin with an arbitrary position that counts Setup calls.
type fakePin struct {
	group, offset uint8
	setups        int
}

func (p *fakePin) Group() uint8             { return p.group }
func (p *fakePin) Offset() uint8            { return p.offset }
func (p *fakePin) ReducedSensitivity() bool { return false }
func (p *fakePin) Setup()                   { p.setups++ }

func newTestController(t *testing.T) (*Controller, *SimRegisters) {
	t.Helper()
	regs := NewSimRegisters()
	clk := &SimClock{Target: regs}
	return New(regs, clk, nil), regs
}

func field(word uint32, pos, mask uint32) uint32 {
	return (word >> pos) & mask
}

func TestNewDefaults(t *testing.T) {
	regs := NewSimRegisters()
	clk := &SimClock{}
	New(regs, clk, nil)

	if !clk.Enabled {
		t.Error("Expected TSC clock to be enabled")
	}
	if clk.Resets != 1 {
		t.Errorf("Expected 1 reset pulse, got %d", clk.Resets)
	}

	cr := regs.Word(CR)
	tests := []struct {
		name      string
		pos, mask uint32
		want      uint32
	}{
		{"CTPH", crCTPHPos, crCTPHMask, 0b0001},
		{"CTPL", crCTPLPos, crCTPLMask, 0b0001},
		{"SSD", crSSDPos, crSSDMask, 16},
		{"PGPSC", crPGPSCPos, crPGPSCMsk, 0b100},
		{"MCV", crMCVPos, crMCVMask, 0b101},
	}
	for _, tc := range tests {
		if got := field(cr, tc.pos, tc.mask); got != tc.want {
			t.Errorf("%s: expected %#b, got %#b", tc.name, tc.want, got)
		}
	}
	if cr&crSSE == 0 {
		t.Error("Expected spread spectrum to be enabled")
	}
	if cr&crTSCE == 0 {
		t.Error("Expected TSC to be enabled")
	}
	if cr&crSTART != 0 {
		t.Error("Expected no acquisition to be started")
	}
}

func TestNewEmptyConfigMatchesNil(t *testing.T) {
	a := NewSimRegisters()
	b := NewSimRegisters()
	New(a, &SimClock{}, nil)
	New(b, &SimClock{}, &Config{})

	if a.Word(CR) != b.Word(CR) {
		t.Errorf("Expected CR %#x for empty config, got %#x", a.Word(CR), b.Word(CR))
	}
}

func TestNewCustomConfig(t *testing.T) {
	regs := NewSimRegisters()
	New(regs, &SimClock{}, &Config{
		ClockPrescale:      Hclk,
		MaxCount:           U16383,
		ChargeTransferHigh: C16,
		ChargeTransferLow:  C1,
	})

	cr := regs.Word(CR)
	if got := field(cr, crCTPHPos, crCTPHMask); got != 0b1111 {
		t.Errorf("CTPH: expected 0b1111, got %#b", got)
	}
	if got := field(cr, crCTPLPos, crCTPLMask); got != 0 {
		t.Errorf("CTPL: expected 0, got %#b", got)
	}
	if got := field(cr, crPGPSCPos, crPGPSCMsk); got != 0 {
		t.Errorf("PGPSC: expected 0, got %#b", got)
	}
	if got := field(cr, crMCVPos, crMCVMask); got != 0b110 {
		t.Errorf("MCV: expected 0b110, got %#b", got)
	}

	cfg := DecodeConfig(cr)
	if cfg.ClockPrescale != Hclk || cfg.MaxCount != U16383 ||
		cfg.ChargeTransferHigh != C16 || cfg.ChargeTransferLow != C1 {
		t.Errorf("DecodeConfig returned %+v", cfg)
	}
}

func TestNewClearsPendingFlags(t *testing.T) {
	regs := NewSimRegisters()
	regs.Raise(EndOfAcquisition, 0)
	regs.Raise(MaxCountError, 0)

	c := New(regs, &SimClock{}, nil)
	if ev := c.CheckEvent(); ev != NoEvent {
		t.Errorf("Expected no pending event after New, got %v", ev)
	}
}

func TestMaxCountLimit(t *testing.T) {
	tests := []struct {
		m    MaxCount
		want uint16
	}{
		{U255, 255},
		{U511, 511},
		{U1023, 1023},
		{U2047, 2047},
		{U4095, 4095},
		{U8191, 8191},
		{U16383, 16383},
		{MaxCountDefault, 8191},
	}
	for _, tc := range tests {
		if got := tc.m.Limit(); got != tc.want {
			t.Errorf("MaxCount(%d).Limit(): expected %d, got %d", tc.m, tc.want, got)
		}
	}
}

func TestSetupSampleGroup(t *testing.T) {
	c, regs := newTestController(t)
	regs.Store(IOHCR, 0) // start from a known hysteresis state

	sample := &fakePin{group: 6, offset: 3}
	c.SetupSampleGroup(sample)

	if sample.setups != 1 {
		t.Errorf("Expected Setup to be called once, got %d", sample.setups)
	}
	bit := uint32(1) << 22
	if regs.Word(IOHCR) != bit {
		t.Errorf("IOHCR: expected %#x, got %#x", bit, regs.Word(IOHCR))
	}
	if regs.Word(IOSCR) != bit {
		t.Errorf("IOSCR: expected %#x, got %#x", bit, regs.Word(IOSCR))
	}
	if regs.Word(IOGCSR) != 1<<5 {
		t.Errorf("IOGCSR: expected %#x, got %#x", 1<<5, regs.Word(IOGCSR))
	}
}

func TestRegistrationIsAdditive(t *testing.T) {
	c, regs := newTestController(t)

	a := &fakePin{group: 1, offset: 1}
	b := &fakePin{group: 8, offset: 4}
	c.SetupSampleGroup(a)
	c.SetupSampleGroup(b)

	wantIO := uint32(1)<<0 | uint32(1)<<31
	if regs.Word(IOSCR) != wantIO {
		t.Errorf("IOSCR: expected %#x, got %#x", wantIO, regs.Word(IOSCR))
	}
	if regs.Word(IOGCSR) != 1<<0|1<<7 {
		t.Errorf("IOGCSR: expected %#x, got %#x", 1<<0|1<<7, regs.Word(IOGCSR))
	}

	chA := &fakePin{group: 1, offset: 2}
	chB := &fakePin{group: 8, offset: 3}
	c.EnableChannel(chA)
	c.EnableChannel(chB)

	wantCh := uint32(1)<<1 | uint32(1)<<30
	if c.ChannelMask() != wantCh {
		t.Errorf("IOCCR: expected %#x, got %#x", wantCh, c.ChannelMask())
	}

	c.DisableChannel(chA)
	if c.ChannelMask() != uint32(1)<<30 {
		t.Errorf("IOCCR after disable: expected %#x, got %#x", uint32(1)<<30, c.ChannelMask())
	}
	if chA.setups != 1 {
		t.Errorf("Expected DisableChannel not to call Setup, got %d calls", chA.setups)
	}
}

func TestFreeReturnsRegistersUntouched(t *testing.T) {
	c, regs := newTestController(t)
	c.EnableChannel(&fakePin{group: 2, offset: 2})
	before := regs.Word(IOCCR)

	got := c.Free()
	if got != RegisterBlock(regs) {
		t.Fatal("Free returned a different register block")
	}
	if regs.Word(IOCCR) != before {
		t.Errorf("Expected IOCCR %#x after Free, got %#x", before, regs.Word(IOCCR))
	}

	defer func() {
		if r := recover(); r != ErrReleased {
			t.Errorf("Expected panic %v, got %v", ErrReleased, r)
		}
	}()
	c.Start()
}
