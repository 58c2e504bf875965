package protocol

import "errors"

var (
	ErrFrameTooLong   = errors.New("frame exceeds maximum length")
	ErrUnknownCommand = errors.New("unknown command")
	ErrHandlerPanic   = errors.New("command handler panicked")
)

// Frame is a decoded frame. Payload aliases the input buffer.
type Frame struct {
	Seq     uint8
	Payload []byte
}

// IsAck reports whether f is an ACK/NAK, i.e. carries no message.
func (f Frame) IsAck() bool {
	return len(f.Payload) == 0
}

// EncodeFrame writes a frame with sequence seq whose payload is produced
// by body (nil for an ACK). A frame is only started when output has room
// for the largest frame of its kind; otherwise nothing is written and
// EncodeFrame returns false.
func EncodeFrame(output OutputBuffer, seq uint8, body func(output OutputBuffer)) bool {
	need := MessageLengthMax
	if body == nil {
		need = MessageLengthMin
	}
	if output.Free() < need {
		return false
	}

	cursor := output.CurPosition()
	output.Output([]byte{0, seq})
	if body != nil {
		body(output)
	}

	n := len(output.DataSince(cursor))
	output.Update(cursor, uint8(n+MessageTrailerSize))

	crc := CRC16(output.DataSince(cursor))
	output.Output([]byte{uint8(crc >> 8), uint8(crc), MessageValueSync})
	return true
}

// EncodeMessage writes a frame holding a single message.
func EncodeMessage(output OutputBuffer, seq uint8, id uint16, args func(output OutputBuffer)) bool {
	return EncodeFrame(output, seq, func(output OutputBuffer) {
		EncodeVLQUint(output, uint32(id))
		if args != nil {
			args(output)
		}
	})
}

// ParseFrame looks for a frame at the start of data. It returns the
// number of bytes the caller should drop and whether a frame was found.
// Leading sync bytes and corrupt frames are skipped; an incomplete frame
// consumes nothing so the caller can wait for more data.
func ParseFrame(data []byte) (f Frame, consumed int, ok bool) {
	if len(data) == 0 {
		return Frame{}, 0, false
	}
	if data[0] == MessageValueSync {
		return Frame{}, 1, false
	}
	if len(data) < MessageLengthMin {
		return Frame{}, 0, false
	}

	n := int(data[0])
	seq := data[1]
	if n < MessageLengthMin || n > MessageLengthMax || seq&^MessageSeqMask != MessageDest {
		return Frame{}, resync(data), false
	}
	if len(data) < n {
		return Frame{}, 0, false
	}
	if data[n-1] != MessageValueSync {
		return Frame{}, resync(data), false
	}

	crc := uint16(data[n-3])<<8 | uint16(data[n-2])
	if crc != CRC16(data[:n-MessageTrailerSize]) {
		return Frame{}, resync(data), false
	}

	return Frame{Seq: seq, Payload: data[MessageHeaderSize : n-MessageTrailerSize]}, n, true
}

// resync returns how many bytes to drop to land just past the next sync
// byte after the start of data.
func resync(data []byte) int {
	for i := 1; i < len(data); i++ {
		if data[i] == MessageValueSync {
			return i + 1
		}
	}
	return len(data)
}

// NextSeq returns the sequence number following seq.
func NextSeq(seq uint8) uint8 {
	return (seq+1)&MessageSeqMask | MessageDest
}
