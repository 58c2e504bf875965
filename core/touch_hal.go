package core

import "touchsense/tsc"

// TouchHardware is what a target provides to run the touch service.
type TouchHardware interface {
	// Registers returns the TSC register block. It is asked for once,
	// when the controller is first created.
	Registers() tsc.RegisterBlock

	// Clock returns the TSC clock and reset control.
	Clock() tsc.ClockDomain

	// PinMux returns the GPIO alternate function selector used by pin
	// descriptors. May return nil when pins are muxed elsewhere.
	PinMux() tsc.AltFuncSelector
}

// Global singleton used by core code.
var touchHardware TouchHardware

// SetTouchHardware is called by target-specific code to register its hardware.
func SetTouchHardware(hw TouchHardware) {
	touchHardware = hw
}

// MustTouch returns the configured hardware or panics if missing.
func MustTouch() TouchHardware {
	if touchHardware == nil {
		panic("touch hardware not configured")
	}
	return touchHardware
}

// SimTouchHardware runs the touch service on simulated registers, for
// host builds and tests.
type SimTouchHardware struct {
	Regs *tsc.SimRegisters
	Clk  *tsc.SimClock
	Mux  tsc.AltFuncSelector
}

// NewSimTouchHardware returns simulated hardware at reset values.
func NewSimTouchHardware() *SimTouchHardware {
	regs := tsc.NewSimRegisters()
	return &SimTouchHardware{
		Regs: regs,
		Clk:  &tsc.SimClock{Target: regs},
	}
}

func (h *SimTouchHardware) Registers() tsc.RegisterBlock { return h.Regs }
func (h *SimTouchHardware) Clock() tsc.ClockDomain       { return h.Clk }
func (h *SimTouchHardware) PinMux() tsc.AltFuncSelector  { return h.Mux }
