package tsc

// PinMapping is the fixed TSC position of a GPIO.
type PinMapping struct {
	Group              uint8
	Offset             uint8
	ReducedSensitivity bool
}

// STM32L0x2/x3 TSC I/O table.
var pinTable = map[PinID]PinMapping{
	PA0: {1, 1, false},
	PA1: {1, 2, false},
	PA2: {1, 3, false},
	PA3: {1, 4, false},

	PA4: {2, 1, true},
	PA5: {2, 2, false},
	PA6: {2, 3, false},
	PA7: {2, 4, false},

	PC5: {3, 1, false},
	PB0: {3, 2, false},
	PB1: {3, 3, false},
	PB2: {3, 4, false},

	PA9:  {4, 1, false},
	PA10: {4, 2, false},
	PA11: {4, 3, false},
	PA12: {4, 4, false},

	PB3: {5, 1, false},
	PB4: {5, 2, false},
	PB6: {5, 3, false},
	PB7: {5, 4, false},

	PB11: {6, 1, false},
	PB12: {6, 2, false},
	PB13: {6, 3, false},
	PB14: {6, 4, false},

	PC0: {7, 1, false},
	PC1: {7, 2, false},
	PC2: {7, 3, false},
	PC3: {7, 4, false},

	PC6: {8, 1, false},
	PC7: {8, 2, false},
	PC8: {8, 3, false},
	PC9: {8, 4, false},
}

func init() {
	var seen uint32
	for id, m := range pinTable {
		if m.Group < 1 || m.Group > NumGroups || m.Offset < 1 || m.Offset > 4 {
			panic("tsc: pin table entry out of range: " + id.String())
		}
		bit := uint32(1) << (m.Offset - 1 + 4*(m.Group-1))
		if seen&bit != 0 {
			panic("tsc: duplicate pin table position: " + id.String())
		}
		seen |= bit
	}
}

// LookupPin returns the TSC position of id.
func LookupPin(id PinID) (PinMapping, bool) {
	m, ok := pinTable[id]
	return m, ok
}
