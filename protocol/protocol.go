// Package protocol implements the framed link between the touch firmware
// and its host: Klipper style VLQ encoded messages inside CRC16 checked
// frames.
package protocol

// Version is the link protocol version reported in touch_config.
const Version = 1

// Frame layout: len | seq | payload... | crc16 hi | crc16 lo | sync
const (
	MessageMax         = 256 // scratch output size
	MessageHeaderSize  = 2
	MessageTrailerSize = 3
	MessageLengthMin   = MessageHeaderSize + MessageTrailerSize
	MessageLengthMax   = 64
	MessagePayloadMax  = MessageLengthMax - MessageLengthMin
	MessageValueSync   = 0x7E
	MessageDest        = 0x10
	MessageSeqMask     = 0x0F
)

// Commands, host to firmware.
const (
	CmdConfigTSC      uint16 = 1 // prescaler=%c max_count=%c ctph=%c ctpl=%c
	CmdConfigSample   uint16 = 2 // pin=%c
	CmdConfigChannel  uint16 = 3 // pin=%c
	CmdDisableChannel uint16 = 4 // pin=%c
	CmdQueryTouch     uint16 = 5 // rest_ticks=%u poll_ticks=%u
	CmdAcquireTouch   uint16 = 6
	CmdStopTouch      uint16 = 7
	CmdListenTouch    uint16 = 8 // event=%c enable=%c
	CmdIdentify       uint16 = 9 // offset=%u count=%c
)

// Responses, firmware to host.
const (
	RspTouchState  uint16 = 0x40 // pin=%c group=%c count=%hu clock=%u
	RspTouchError  uint16 = 0x41 // pin=%c code=%c
	RspTouchConfig uint16 = 0x42 // version=%c cr=%u channels=%u
	RspIdentify    uint16 = 0x43 // offset=%u data=%*s
)

// IdentifyChunkMax is the largest dictionary chunk that fits one
// identify_response frame.
const IdentifyChunkMax = 40

// Error codes carried by touch_error.
const (
	ErrCodeMaxCount       = 1
	ErrCodeInvalidPin     = 2
	ErrCodeNoMapping      = 3
	ErrCodeNotConfigured  = 4
	ErrCodeUnknownCommand = 5
	ErrCodeMalformed      = 6
	ErrCodeBusy           = 7
)

// NoPin is the pin field of a touch_error not tied to a pin.
const NoPin = 0xFF

var messageNames = map[uint16]string{
	CmdConfigTSC:      "config_tsc",
	CmdConfigSample:   "config_sample",
	CmdConfigChannel:  "config_channel",
	CmdDisableChannel: "disable_channel",
	CmdQueryTouch:     "query_touch",
	CmdAcquireTouch:   "acquire_touch",
	CmdStopTouch:      "stop_touch",
	CmdListenTouch:    "listen_touch",
	CmdIdentify:       "identify",
	RspTouchState:     "touch_state",
	RspTouchError:     "touch_error",
	RspTouchConfig:    "touch_config",
	RspIdentify:       "identify_response",
}

// MessageName returns the name of a message ID, or "" if unknown.
func MessageName(id uint16) string {
	return messageNames[id]
}
