package tsc

// ClockPrescaler divides HCLK down to the pulse generator clock.
// The zero value selects the default, HclkDiv16.
type ClockPrescaler uint8

const (
	PrescalerDefault ClockPrescaler = iota
	Hclk
	HclkDiv2
	HclkDiv4
	HclkDiv8
	HclkDiv16
	HclkDiv32
	HclkDiv64
	HclkDiv128
)

func (p ClockPrescaler) code() uint32 {
	if p == PrescalerDefault || p > HclkDiv128 {
		p = HclkDiv16
	}
	return uint32(p - 1)
}

// MaxCount is the charge transfer count after which an acquisition is
// aborted with a max count error. The zero value selects U8191.
type MaxCount uint8

const (
	MaxCountDefault MaxCount = iota
	U255
	U511
	U1023
	U2047
	U4095
	U8191
	U16383
)

func (m MaxCount) code() uint32 {
	if m == MaxCountDefault || m > U16383 {
		m = U8191
	}
	return uint32(m - 1)
}

// Limit returns the ceiling in charge transfer cycles.
func (m MaxCount) Limit() uint16 {
	return uint16(256<<m.code()) - 1
}

// ChargeDischargeTime is the number of pulse generator cycles spent in the
// charge (high) or transfer (low) phase. The zero value selects C2.
type ChargeDischargeTime uint8

const (
	ChargeDefault ChargeDischargeTime = iota
	C1
	C2
	C3
	C4
	C5
	C6
	C7
	C8
	C9
	C10
	C11
	C12
	C13
	C14
	C15
	C16
)

func (t ChargeDischargeTime) code() uint32 {
	if t == ChargeDefault || t > C16 {
		t = C2
	}
	return uint32(t - 1)
}

// Config holds the acquisition timing applied by New. Zero fields take
// their defaults, so a nil or empty Config configures CTPH=CTPL=C2,
// HCLK/16 and a max count of 8191.
type Config struct {
	ClockPrescale      ClockPrescaler
	MaxCount           MaxCount
	ChargeTransferHigh ChargeDischargeTime
	ChargeTransferLow  ChargeDischargeTime
}

// controlWord encodes the CR value written at construction.
func (cfg Config) controlWord() uint32 {
	return cfg.ChargeTransferHigh.code()<<crCTPHPos |
		cfg.ChargeTransferLow.code()<<crCTPLPos |
		spreadSpectrumDeviation<<crSSDPos |
		crSSE |
		cfg.ClockPrescale.code()<<crPGPSCPos |
		cfg.MaxCount.code()<<crMCVPos |
		crTSCE
}

// DecodeConfig recovers the acquisition timing from a CR value.
func DecodeConfig(cr uint32) Config {
	return Config{
		ClockPrescale:      ClockPrescaler((cr>>crPGPSCPos)&crPGPSCMsk) + 1,
		MaxCount:           MaxCount((cr>>crMCVPos)&crMCVMask) + 1,
		ChargeTransferHigh: ChargeDischargeTime((cr>>crCTPHPos)&crCTPHMask) + 1,
		ChargeTransferLow:  ChargeDischargeTime((cr>>crCTPLPos)&crCTPLMask) + 1,
	}
}
