// Package sim runs the touch firmware in-process on simulated registers,
// so the host tool and tests work without a board.
package sim

import (
	"errors"
	"net"
	"os"
	"sync"
	"time"

	"touchsense/core"
	"touchsense/protocol"
)

// loopPeriod is how long the firmware loop waits for host bytes.
const loopPeriod = 200 * time.Microsecond

// Firmware is a running simulated firmware. The firmware core keeps
// global state, so only one Firmware may run per process.
type Firmware struct {
	HW    *core.SimTouchHardware
	Front *Front

	host net.Conn
	dev  net.Conn

	input     *protocol.FifoBuffer
	output    *protocol.ScratchOutput
	transport *protocol.Transport
	started   time.Time

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// Start boots a firmware with fresh registers. seed feeds the analog
// noise.
func Start(seed int64) *Firmware {
	host, dev := net.Pipe()
	f := &Firmware{
		HW:      core.NewSimTouchHardware(),
		Front:   newFront(seed),
		host:    host,
		dev:     dev,
		input:   protocol.NewFifoBuffer(512),
		output:  protocol.NewScratchOutput(),
		started: time.Now(),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	f.HW.Regs.OnStart = f.Front.onStart

	f.updateTime()
	core.TimerInit()
	core.ResetTouchService()
	core.InitTouchCommands()
	core.InitIdentifyCommands()
	core.RegisterConstant("MCU", "sim")
	core.SetTouchHardware(f.HW)
	f.transport = protocol.NewTransport(f.output, core.DispatchCommand)
	core.SetGlobalTransport(f.transport)

	go f.loop()
	return f
}

// Port is the host end of the simulated serial line.
func (f *Firmware) Port() net.Conn {
	return f.host
}

// Close stops the firmware and closes both ends of the line.
func (f *Firmware) Close() error {
	f.closeOnce.Do(func() {
		close(f.stop)
		f.dev.Close()
		<-f.done
		f.host.Close()
		core.SetGlobalTransport(nil)
	})
	return nil
}

func (f *Firmware) updateTime() {
	core.SetTime(uint32(time.Since(f.started) / time.Microsecond))
}

// loop is the firmware main loop.
func (f *Firmware) loop() {
	defer close(f.done)

	buf := make([]byte, 256)
	for {
		select {
		case <-f.stop:
			return
		default:
		}

		f.dev.SetReadDeadline(time.Now().Add(loopPeriod))
		n, err := f.dev.Read(buf)
		if n > 0 {
			f.input.Write(buf[:n])
		}
		if err != nil && !errors.Is(err, os.ErrDeadlineExceeded) {
			return
		}

		f.updateTime()
		if f.input.Available() > 0 {
			f.transport.Receive(f.input)
		}
		core.ProcessTimers()
		core.TouchTask()

		if out := f.output.Result(); len(out) > 0 {
			_, err := f.dev.Write(out)
			f.output.Reset()
			if err != nil {
				return
			}
		}
	}
}
