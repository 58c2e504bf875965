//go:build stm32l0

package tsc

import (
	"device/stm32"
	"runtime/volatile"
	"unsafe"
)

const (
	tscBase = 0x40024000

	// RCC AHBENR.TSCEN / AHBRSTR.TSCRST
	rccTSC = 1 << 16
)

// MMIO is the memory mapped TSC of the running chip.
type MMIO struct{}

func (MMIO) reg(r Register) *volatile.Register32 {
	return (*volatile.Register32)(unsafe.Pointer(uintptr(tscBase) + uintptr(r)))
}

func (m MMIO) Load(r Register) uint32 {
	return m.reg(r).Get()
}

func (m MMIO) Store(r Register, value uint32) {
	m.reg(r).Set(value)
}

// RCC is the STM32L0 reset and clock controller as a ClockDomain.
type RCC struct{}

func (RCC) EnableTSC() {
	stm32.RCC.AHBENR.SetBits(rccTSC)
}

func (RCC) ResetTSC() {
	stm32.RCC.AHBRSTR.SetBits(rccTSC)
	stm32.RCC.AHBRSTR.ClearBits(rccTSC)
}

// GPIOMux selects alternate functions through the GPIO port registers.
type GPIOMux struct{}

func (GPIOMux) SetAltFunc(id PinID, af uint8) {
	var port *stm32.GPIO_Type
	switch id.Port() {
	case 0:
		port = stm32.GPIOA
	case 1:
		port = stm32.GPIOB
	case 2:
		port = stm32.GPIOC
	default:
		return
	}

	n := uint32(id.Num())
	if n < 8 {
		port.AFRL.ReplaceBits(uint32(af), 0xF, uint8(n*4))
	} else {
		port.AFRH.ReplaceBits(uint32(af), 0xF, uint8((n-8)*4))
	}
	// MODER 0b10: alternate function
	port.MODER.ReplaceBits(0x2, 0x3, uint8(n*2))
}
