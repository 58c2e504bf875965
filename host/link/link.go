// Package link is the host end of the touch firmware protocol.
package link

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"touchsense/protocol"
	"touchsense/tsc"
)

var (
	ErrClosed     = errors.New("link closed")
	ErrAckTimeout = errors.New("ACK timeout")
)

// DefaultAckTimeout is how long Send waits for the firmware's ACK.
const DefaultAckTimeout = 2 * time.Second

// sendRetries bounds how often a frame is resent after a NAK.
const sendRetries = 3

// Link sends commands to the firmware and delivers its responses.
// Commands are sent one at a time: each waits for its ACK.
type Link struct {
	port io.ReadWriteCloser

	// AckTimeout overrides DefaultAckTimeout when set.
	AckTimeout time.Duration

	sendMu sync.Mutex
	seq    uint8

	acks      chan uint8
	responses chan Response
	identify  chan IdentifyChunk

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	dropped  atomic.Uint32
	rejected atomic.Uint32
}

// New starts a link over port. The link owns port and closes it on Close.
func New(port io.ReadWriteCloser) *Link {
	l := &Link{
		port:      port,
		seq:       protocol.MessageDest,
		acks:      make(chan uint8, 4),
		responses: make(chan Response, 64),
		identify:  make(chan IdentifyChunk, 1),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go l.readLoop()
	return l
}

// Responses delivers every decoded response except identify chunks,
// which Identify consumes. The channel is closed when the link stops.
// Responses are dropped when nobody keeps up.
func (l *Link) Responses() <-chan Response {
	return l.responses
}

// Dropped returns the number of responses dropped on a full channel.
func (l *Link) Dropped() uint32 {
	return l.dropped.Load()
}

// Rejected returns the number of corrupt frames skipped.
func (l *Link) Rejected() uint32 {
	return l.rejected.Load()
}

// Close stops the reader and closes the port.
func (l *Link) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.stop)
		err = l.port.Close()
		<-l.done
	})
	return err
}

// Send sends one command and waits for its ACK. When the firmware
// answers with a different sequence (a NAK, e.g. after it restarted),
// the link adopts that sequence and resends.
func (l *Link) Send(id uint16, args ...uint32) error {
	l.sendMu.Lock()
	defer l.sendMu.Unlock()

	timeout := l.AckTimeout
	if timeout == 0 {
		timeout = DefaultAckTimeout
	}

	l.drainAcks()
	for attempt := 0; attempt <= sendRetries; attempt++ {
		frame, err := encodeCommand(l.seq, id, args)
		if err != nil {
			return err
		}
		if _, err := l.port.Write(frame); err != nil {
			return fmt.Errorf("write %s: %w", protocol.MessageName(id), err)
		}

		ack, err := l.waitAck(timeout)
		if err != nil {
			return fmt.Errorf("%s: %w", protocol.MessageName(id), err)
		}
		if ack == protocol.NextSeq(l.seq) {
			l.seq = ack
			return nil
		}
		l.seq = ack
	}
	return fmt.Errorf("%s: no ACK after %d retries", protocol.MessageName(id), sendRetries)
}

func encodeCommand(seq uint8, id uint16, args []uint32) ([]byte, error) {
	out := protocol.NewScratchOutput()
	protocol.EncodeMessage(out, seq, id, func(o protocol.OutputBuffer) {
		for _, a := range args {
			protocol.EncodeVLQUint(o, a)
		}
	})
	frame := out.Result()
	if len(frame) > protocol.MessageLengthMax {
		return nil, fmt.Errorf("%s: %w", protocol.MessageName(id), protocol.ErrFrameTooLong)
	}
	return append([]byte(nil), frame...), nil
}

// drainAcks drops ACKs that arrived after an earlier Send gave up.
func (l *Link) drainAcks() {
	for {
		select {
		case <-l.acks:
		default:
			return
		}
	}
}

func (l *Link) waitAck(timeout time.Duration) (uint8, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case seq := <-l.acks:
		return seq, nil
	case <-timer.C:
		return 0, ErrAckTimeout
	case <-l.done:
		return 0, ErrClosed
	}
}

func (l *Link) readLoop() {
	defer close(l.done)
	defer close(l.responses)

	var pending []byte
	buf := make([]byte, 256)
	for {
		n, err := l.port.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			pending = l.process(pending)
		}
		if err != nil {
			select {
			case <-l.stop:
				return
			default:
			}
			if !errors.Is(err, io.EOF) {
				return
			}
			// serial read timeouts surface as EOF
			time.Sleep(10 * time.Millisecond)
		}
	}
}

// process handles every complete frame in data and returns the rest.
func (l *Link) process(data []byte) []byte {
	for len(data) > 0 {
		frame, consumed, ok := protocol.ParseFrame(data)
		if consumed == 0 {
			break
		}
		data = data[consumed:]
		if !ok {
			if consumed > 1 {
				l.rejected.Add(1)
			}
			continue
		}

		if frame.IsAck() {
			select {
			case l.acks <- frame.Seq:
			default:
			}
			continue
		}
		resp, err := Decode(frame.Payload)
		if err != nil {
			l.rejected.Add(1)
			continue
		}
		if chunk, ok := resp.(IdentifyChunk); ok {
			select {
			case l.identify <- chunk:
			default:
				l.dropped.Add(1)
			}
			continue
		}
		select {
		case l.responses <- resp:
		default:
			l.dropped.Add(1)
		}
	}
	return append([]byte(nil), data...)
}

// ConfigTSC (re)creates the firmware's controller with cfg.
func (l *Link) ConfigTSC(cfg tsc.Config) error {
	return l.Send(protocol.CmdConfigTSC,
		uint32(cfg.ClockPrescale), uint32(cfg.MaxCount),
		uint32(cfg.ChargeTransferHigh), uint32(cfg.ChargeTransferLow))
}

// ConfigSample registers pin as its group's sampling capacitor I/O.
func (l *Link) ConfigSample(pin tsc.PinID) error {
	return l.Send(protocol.CmdConfigSample, uint32(pin))
}

// ConfigChannel arms pin as a channel.
func (l *Link) ConfigChannel(pin tsc.PinID) error {
	return l.Send(protocol.CmdConfigChannel, uint32(pin))
}

// DisableChannel disarms pin.
func (l *Link) DisableChannel(pin tsc.PinID) error {
	return l.Send(protocol.CmdDisableChannel, uint32(pin))
}

// Query starts periodic sampling every rest ticks, polling for the end
// of each acquisition every poll ticks (0 for the firmware default).
func (l *Link) Query(rest, poll uint32) error {
	return l.Send(protocol.CmdQueryTouch, rest, poll)
}

// Acquire runs one blocking acquisition on the firmware.
func (l *Link) Acquire() error {
	return l.Send(protocol.CmdAcquireTouch)
}

// Stop stops periodic sampling.
func (l *Link) Stop() error {
	return l.Send(protocol.CmdStopTouch)
}

// Listen enables or disables the firmware interrupt for e.
func (l *Link) Listen(e tsc.Event, enable bool) error {
	var on uint32
	if enable {
		on = 1
	}
	return l.Send(protocol.CmdListenTouch, uint32(e), on)
}
