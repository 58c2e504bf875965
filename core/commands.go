package core

import (
	"errors"

	"touchsense/protocol"
	"touchsense/tsc"
)

// Firmware errors that are not driver errors.
const (
	ErrNotConfigured = tsc.Error("touch controller not configured")
	ErrBusy          = tsc.Error("touch sampling already running")
	ErrBadArgument   = tsc.Error("invalid command argument")
)

// PinError ties a command failure to the pin it was about.
type PinError struct {
	Pin tsc.PinID
	Err error
}

func (e *PinError) Error() string {
	return e.Pin.String() + ": " + e.Err.Error()
}

func (e *PinError) Unwrap() error {
	return e.Err
}

// ErrorCode maps a firmware error to the code carried by touch_error.
func ErrorCode(err error) uint8 {
	switch {
	case errors.Is(err, tsc.ErrMaxCount):
		return protocol.ErrCodeMaxCount
	case errors.Is(err, tsc.ErrInvalidPin):
		return protocol.ErrCodeInvalidPin
	case errors.Is(err, tsc.ErrNoMapping):
		return protocol.ErrCodeNoMapping
	case errors.Is(err, ErrNotConfigured):
		return protocol.ErrCodeNotConfigured
	case errors.Is(err, protocol.ErrUnknownCommand):
		return protocol.ErrCodeUnknownCommand
	case errors.Is(err, ErrBusy):
		return protocol.ErrCodeBusy
	}
	return protocol.ErrCodeMalformed
}

// Global transport for sending responses (set by main)
var globalTransport *protocol.Transport

// SetGlobalTransport sets the transport used for responses and hooks its
// error and reset callbacks into the touch service.
func SetGlobalTransport(transport *protocol.Transport) {
	globalTransport = transport
	if transport == nil {
		return
	}
	transport.OnError = HandleTransportError
	transport.OnReset = ResetFirmwareState
}

// SendResponse sends a response message using the global transport
func SendResponse(id uint16, args func(output protocol.OutputBuffer)) {
	if globalTransport == nil {
		return
	}
	if cmd, ok := globalRegistry.GetCommand(id); !ok || cmd.Handler != nil {
		panic("response not registered: " + utoa(uint32(id)))
	}
	globalTransport.SendResponse(id, args)
}

// canSend reports whether another response fits in the output buffer.
func canSend() bool {
	return globalTransport == nil || globalTransport.CanSend()
}

// HandleTransportError reports a failed command to the host as
// touch_error.
func HandleTransportError(cmdID uint16, err error) {
	pin := uint8(protocol.NoPin)
	var pe *PinError
	if errors.As(err, &pe) {
		pin = uint8(pe.Pin)
	}
	code := ErrorCode(err)

	DebugPrintln("[TSC] command " + utoa(uint32(cmdID)) + " failed: " + err.Error())
	sendTouchError(pin, code)
}

func sendTouchError(pin, code uint8) {
	SendResponse(protocol.RspTouchError, func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, uint32(pin))
		protocol.EncodeVLQUint(output, uint32(code))
	})
}

// ResetFirmwareState runs when the host restarts its session: sampling
// stops and queued reports are dropped. The controller configuration and
// registered pins are kept.
func ResetFirmwareState() {
	stopSampler()

	state := disableInterrupts()
	touch.reports.reset()
	touch.wake = false
	restoreInterrupts(state)
}
