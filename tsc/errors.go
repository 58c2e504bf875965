package tsc

// Error is a driver error. Values are constants so they can be compared
// directly and cost nothing to return on the firmware.
type Error string

func (e Error) Error() string {
	return string(e)
}

const (
	// ErrMaxCount is returned when an acquisition hit the max count
	// ceiling before the sampling capacitor settled.
	ErrMaxCount = Error("tsc: max count error")

	// ErrInvalidPin is returned when reading a pin whose channel is not armed.
	ErrInvalidPin = Error("tsc: pin is not an enabled channel")

	// ErrNoMapping is returned for pins that have no TSC function.
	ErrNoMapping = Error("tsc: pin has no touch sensing function")

	// ErrReleased is the panic value for using a controller after Free.
	ErrReleased = Error("tsc: controller used after Free")

	// ErrBadPinName is returned by ParsePin.
	ErrBadPinName = Error("tsc: bad pin name")
)
