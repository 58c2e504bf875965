package protocol

// CommandHandler handles one decoded command. It reads its own arguments
// from data, leaving the rest of the frame for the next command.
type CommandHandler func(cmdID uint16, data *[]byte) error

// Transport is the firmware end of the link. The host numbers its frames
// 0x10..0x1F; every frame is answered with an ACK carrying the next
// expected sequence, and responses go out under that same sequence.
type Transport struct {
	nextSeq uint8
	output  OutputBuffer
	handler CommandHandler

	// OnReset runs when the host restarts its sequence numbering.
	OnReset func()
	// OnError runs when a handler fails or a frame is malformed.
	OnError func(cmdID uint16, err error)

	rejected uint32
	overflow uint32
}

func NewTransport(output OutputBuffer, handler CommandHandler) *Transport {
	return &Transport{
		nextSeq: MessageDest,
		output:  output,
		handler: handler,
	}
}

// Receive consumes every complete frame in input.
func (t *Transport) Receive(input InputBuffer) {
	for input.Available() > 0 {
		frame, consumed, ok := ParseFrame(input.Data())
		if consumed == 0 {
			return
		}
		input.Pop(consumed)
		if !ok {
			if consumed > 1 {
				t.rejected++
			}
			continue
		}

		if frame.Seq == MessageDest && t.nextSeq != MessageDest {
			t.nextSeq = MessageDest
			if t.OnReset != nil {
				t.OnReset()
			}
		}
		if frame.Seq == t.nextSeq {
			t.nextSeq = NextSeq(frame.Seq)
			t.dispatch(frame.Payload)
		}
		// a mismatched sequence is answered too; the ACK acts as a NAK
		if !EncodeFrame(t.output, t.nextSeq, nil) {
			t.overflow++
		}
	}
}

func (t *Transport) dispatch(payload []byte) {
	for len(payload) > 0 {
		id, err := DecodeVLQUint(&payload)
		if err != nil {
			t.fail(0, err)
			return
		}
		if t.handler == nil {
			return
		}
		if err := t.invoke(uint16(id), &payload); err != nil {
			t.fail(uint16(id), err)
			return
		}
	}
}

func (t *Transport) invoke(id uint16, payload *[]byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
			} else {
				err = ErrHandlerPanic
			}
		}
	}()
	return t.handler(id, payload)
}

func (t *Transport) fail(id uint16, err error) {
	if t.OnError != nil {
		t.OnError(id, err)
	}
}

// SendResponse queues a response frame. It returns false, and counts an
// overflow, when the output has no room for another frame.
func (t *Transport) SendResponse(id uint16, args func(output OutputBuffer)) bool {
	if !EncodeMessage(t.output, t.nextSeq, id, args) {
		t.overflow++
		return false
	}
	return true
}

// CanSend reports whether the output has room for one more response.
func (t *Transport) CanSend() bool {
	return t.output.Free() >= MessageLengthMax
}

// Reset forgets the host's sequence, e.g. after the serial line dropped.
func (t *Transport) Reset() {
	t.nextSeq = MessageDest
}

// Rejected returns the number of corrupt frames dropped so far.
func (t *Transport) Rejected() uint32 {
	return t.rejected
}

// Overflowed returns the number of frames not sent for lack of output space.
func (t *Transport) Overflowed() uint32 {
	return t.overflow
}
