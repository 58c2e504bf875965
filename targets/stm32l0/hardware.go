//go:build stm32l0

package main

import (
	"device/stm32"
	"runtime/interrupt"

	"touchsense/core"
	"touchsense/tsc"
)

// touchHardware is the on-chip TSC.
type touchHardware struct{}

func newTouchHardware() touchHardware { return touchHardware{} }

func (touchHardware) Registers() tsc.RegisterBlock { return tsc.MMIO{} }
func (touchHardware) Clock() tsc.ClockDomain       { return tsc.RCC{} }
func (touchHardware) PinMux() tsc.AltFuncSelector  { return tsc.GPIOMux{} }

// Sampling capacitor pins of this board. They must be open drain; the
// channel pins stay push-pull.
var samplePins = []tsc.PinID{tsc.PB13}

func configureBoardPins() {
	// IOPAEN | IOPBEN | IOPCEN
	stm32.RCC.IOPENR.SetBits(0x7)

	for _, id := range samplePins {
		var port *stm32.GPIO_Type
		switch id.Port() {
		case 0:
			port = stm32.GPIOA
		case 1:
			port = stm32.GPIOB
		case 2:
			port = stm32.GPIOC
		default:
			continue
		}
		port.OTYPER.SetBits(1 << id.Num())
	}
}

func enableTouchInterrupt() {
	intr := interrupt.New(stm32.IRQ_TSC, func(interrupt.Interrupt) {
		core.HandleTouchInterrupt()
	})
	intr.Enable()
}
