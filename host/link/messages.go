package link

import (
	"fmt"

	"touchsense/protocol"
	"touchsense/tsc"
)

// Response is a decoded firmware message: TouchState, TouchError or
// TouchConfig.
type Response interface {
	MessageID() uint16
}

// TouchState is one channel reading (touch_state).
type TouchState struct {
	Pin   tsc.PinID
	Group uint8
	Count uint16
	Clock uint32
}

func (TouchState) MessageID() uint16 { return protocol.RspTouchState }

// TouchError is a failure reported by the firmware (touch_error). Pin is
// protocol.NoPin when the error is not about a pin.
type TouchError struct {
	Pin  tsc.PinID
	Code uint8
}

func (TouchError) MessageID() uint16 { return protocol.RspTouchError }

var errorCodeNames = map[uint8]string{
	protocol.ErrCodeMaxCount:       "max count error",
	protocol.ErrCodeInvalidPin:     "pin is not an enabled channel",
	protocol.ErrCodeNoMapping:      "pin has no touch sensing function",
	protocol.ErrCodeNotConfigured:  "controller not configured",
	protocol.ErrCodeUnknownCommand: "unknown command",
	protocol.ErrCodeMalformed:      "malformed command",
	protocol.ErrCodeBusy:           "sampling already running",
}

func (e TouchError) Error() string {
	msg, ok := errorCodeNames[e.Code]
	if !ok {
		msg = fmt.Sprintf("error code %d", e.Code)
	}
	if e.Pin == protocol.NoPin {
		return "firmware: " + msg
	}
	return fmt.Sprintf("firmware: %s: %s", e.Pin, msg)
}

// TouchConfig is the controller state reported after config_tsc.
type TouchConfig struct {
	Version  uint8
	CR       uint32
	Channels uint32
}

func (TouchConfig) MessageID() uint16 { return protocol.RspTouchConfig }

// Config decodes the acquisition timing from CR.
func (c TouchConfig) Config() tsc.Config {
	return tsc.DecodeConfig(c.CR)
}

// IdentifyChunk is one piece of the firmware's data dictionary
// (identify_response).
type IdentifyChunk struct {
	Offset uint32
	Data   []byte
}

func (IdentifyChunk) MessageID() uint16 { return protocol.RspIdentify }

// Decode parses a frame payload holding one response.
func Decode(payload []byte) (Response, error) {
	id, err := protocol.DecodeVLQUint(&payload)
	if err != nil {
		return nil, err
	}
	if uint16(id) == protocol.RspIdentify {
		return decodeIdentify(payload)
	}

	var args [4]uint32
	want := 0
	switch uint16(id) {
	case protocol.RspTouchState:
		want = 4
	case protocol.RspTouchError:
		want = 2
	case protocol.RspTouchConfig:
		want = 3
	default:
		return nil, fmt.Errorf("response %d: %w", id, protocol.ErrUnknownCommand)
	}
	for i := 0; i < want; i++ {
		if args[i], err = protocol.DecodeVLQUint(&payload); err != nil {
			return nil, fmt.Errorf("%s: %w", protocol.MessageName(uint16(id)), err)
		}
	}

	switch uint16(id) {
	case protocol.RspTouchState:
		return TouchState{Pin: tsc.PinID(args[0]), Group: uint8(args[1]), Count: uint16(args[2]), Clock: args[3]}, nil
	case protocol.RspTouchError:
		return TouchError{Pin: tsc.PinID(args[0]), Code: uint8(args[1])}, nil
	}
	return TouchConfig{Version: uint8(args[0]), CR: args[1], Channels: args[2]}, nil
}

func decodeIdentify(payload []byte) (Response, error) {
	off, err := protocol.DecodeVLQUint(&payload)
	if err != nil {
		return nil, fmt.Errorf("identify_response: %w", err)
	}
	data, err := protocol.DecodeVLQBytes(&payload)
	if err != nil {
		return nil, fmt.Errorf("identify_response: %w", err)
	}
	return IdentifyChunk{Offset: off, Data: append([]byte(nil), data...)}, nil
}
