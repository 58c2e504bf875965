package tsc

// Register identifies a TSC register by its byte offset from the
// peripheral base address.
type Register uint8

// STM32L0 TSC register map (RM0367 §15.6)
const (
	CR     Register = 0x00 // control
	IER    Register = 0x04 // interrupt enable
	ICR    Register = 0x08 // interrupt clear
	ISR    Register = 0x0C // interrupt status
	IOHCR  Register = 0x10 // I/O hysteresis control
	IOASCR Register = 0x18 // I/O analog switch control
	IOSCR  Register = 0x20 // I/O sampling control
	IOCCR  Register = 0x28 // I/O channel control
	IOGCSR Register = 0x30 // I/O group control status
	IOG1CR Register = 0x34 // group 1 counter, groups 2..8 follow every 4 bytes
	IOG8CR Register = 0x50

	// numWords is the size of the register block in 32-bit words.
	numWords = int(IOG8CR/4) + 1
)

// CR bit fields
const (
	crTSCE    = 1 << 0
	crSTART   = 1 << 1
	crAM      = 1 << 2
	crSYNCPOL = 1 << 3
	crIODEF   = 1 << 4
	crSSE     = 1 << 16

	crMCVPos   = 5
	crMCVMask  = 0x7
	crPGPSCPos = 12
	crPGPSCMsk = 0x7
	crSSDPos   = 17
	crSSDMask  = 0x7F
	crCTPLPos  = 24
	crCTPLMask = 0xF
	crCTPHPos  = 28
	crCTPHMask = 0xF
)

// IER / ICR / ISR share the same layout.
const (
	flagEOA = 1 << 0 // end of acquisition
	flagMCE = 1 << 1 // max count error
)

const (
	// countMask selects the 14-bit CNT field of IOGxCR.
	countMask = 0x3FFF

	// spreadSpectrumDeviation is the fixed SSD value written at construction.
	spreadSpectrumDeviation = 16

	// NumGroups is the number of acquisition groups.
	NumGroups = 8
)

// GroupCounter returns the counter register of group 1..8.
func GroupCounter(group uint8) (Register, bool) {
	if group < 1 || group > NumGroups {
		return 0, false
	}
	return IOG1CR + Register(group-1)*4, true
}

// RegisterBlock is read/write access to the TSC register file. The
// hardware implementation maps it onto the peripheral's memory mapped
// registers; SimRegisters backs it with plain memory for host builds.
type RegisterBlock interface {
	Load(r Register) uint32
	Store(r Register, value uint32)
}

func setBits(regs RegisterBlock, r Register, mask uint32) {
	regs.Store(r, regs.Load(r)|mask)
}

func clearBits(regs RegisterBlock, r Register, mask uint32) {
	regs.Store(r, regs.Load(r)&^mask)
}

func hasBits(regs RegisterBlock, r Register, mask uint32) bool {
	return regs.Load(r)&mask != 0
}

// ClockDomain is the reset and clock control the TSC hangs off.
type ClockDomain interface {
	// EnableTSC turns on the TSC peripheral clock.
	EnableTSC()

	// ResetTSC pulses the TSC reset line: asserted, then released.
	ResetTSC()
}
