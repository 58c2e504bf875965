package tsc

// AltFuncTSC is the alternate function number of the TSC on STM32L0 GPIOs.
const AltFuncTSC = 3

// Pin is a GPIO with a fixed position in the TSC: its acquisition group
// (1..8) and its offset (1..4) inside that group.
type Pin interface {
	Group() uint8
	Offset() uint8
	ReducedSensitivity() bool

	// Setup switches the pin to the TSC alternate function. It is
	// idempotent and cannot fail.
	Setup()
}

// BitPos is the pin's bit index in the I/O control registers.
func BitPos(p Pin) uint8 {
	return p.Offset() - 1 + 4*(p.Group()-1)
}

// GroupPos is the pin's group index in IOGCSR.
func GroupPos(p Pin) uint8 {
	return p.Group() - 1
}

// PinID identifies a physical GPIO, numbered like TinyGo's machine.Pin on
// STM32: port*16 + pin.
type PinID uint8

const (
	portA PinID = 0 * 16
	portB PinID = 1 * 16
	portC PinID = 2 * 16
)

// GPIOs that carry a TSC function.
const (
	PA0  = portA + 0
	PA1  = portA + 1
	PA2  = portA + 2
	PA3  = portA + 3
	PA4  = portA + 4
	PA5  = portA + 5
	PA6  = portA + 6
	PA7  = portA + 7
	PA9  = portA + 9
	PA10 = portA + 10
	PA11 = portA + 11
	PA12 = portA + 12
	PB0  = portB + 0
	PB1  = portB + 1
	PB2  = portB + 2
	PB3  = portB + 3
	PB4  = portB + 4
	PB6  = portB + 6
	PB7  = portB + 7
	PB11 = portB + 11
	PB12 = portB + 12
	PB13 = portB + 13
	PB14 = portB + 14
	PC0  = portC + 0
	PC1  = portC + 1
	PC2  = portC + 2
	PC3  = portC + 3
	PC5  = portC + 5
	PC6  = portC + 6
	PC7  = portC + 7
	PC8  = portC + 8
	PC9  = portC + 9
)

// Port returns the port index, 0 for GPIOA.
func (id PinID) Port() uint8 {
	return uint8(id / 16)
}

// Num returns the pin number within its port.
func (id PinID) Num() uint8 {
	return uint8(id % 16)
}

func (id PinID) String() string {
	num := id.Num()
	s := []byte{'P', 'A' + id.Port()}
	if num >= 10 {
		s = append(s, '1')
		num -= 10
	}
	return string(append(s, '0'+num))
}

// ParsePin parses a pin name such as "PB13". Any GPIO name is accepted;
// whether it has a TSC function is checked by LookupPin.
func ParsePin(name string) (PinID, error) {
	if len(name) < 3 || len(name) > 4 || (name[0] != 'P' && name[0] != 'p') {
		return 0, ErrBadPinName
	}
	port := name[1] | 0x20
	if port < 'a' || port > 'h' {
		return 0, ErrBadPinName
	}
	num := 0
	for _, c := range name[2:] {
		if c < '0' || c > '9' {
			return 0, ErrBadPinName
		}
		num = num*10 + int(c-'0')
	}
	if num > 15 || (len(name) == 4 && name[2] == '0') {
		return 0, ErrBadPinName
	}
	return PinID(port-'a')*16 + PinID(num), nil
}

// AltFuncSelector switches a GPIO into an alternate function. The pin's
// electrical mode (open drain for sampling pins, push-pull for channels)
// is configured by the caller beforehand.
type AltFuncSelector interface {
	SetAltFunc(id PinID, af uint8)
}

// Descriptor is a Pin backed by the STM32L0 pin table.
type Descriptor struct {
	id      PinID
	mapping PinMapping
	mux     AltFuncSelector
}

// NewDescriptor returns the descriptor for id, or ErrNoMapping if the
// GPIO has no TSC function.
func NewDescriptor(id PinID, mux AltFuncSelector) (*Descriptor, error) {
	m, ok := LookupPin(id)
	if !ok {
		return nil, ErrNoMapping
	}
	return &Descriptor{id: id, mapping: m, mux: mux}, nil
}

// ID returns the GPIO the descriptor was built for.
func (d *Descriptor) ID() PinID { return d.id }

// Group returns the analog I/O group, 1..8.
func (d *Descriptor) Group() uint8 { return d.mapping.Group }

// Offset returns the I/O position within the group, 1..4.
func (d *Descriptor) Offset() uint8 { return d.mapping.Offset }

// ReducedSensitivity reports whether the I/O has reduced sensitivity
// (PA4 on STM32L0).
func (d *Descriptor) ReducedSensitivity() bool { return d.mapping.ReducedSensitivity }

// Setup selects the TSC alternate function. Calling it again is harmless.
func (d *Descriptor) Setup() {
	if d.mux != nil {
		d.mux.SetAltFunc(d.id, AltFuncTSC)
	}
}
