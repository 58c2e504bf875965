//go:build stm32l0

package main

import (
	"machine"
	"time"

	"touchsense/core"
	"touchsense/protocol"
	"touchsense/tsc"
)

var (
	// Buffers for communication
	inputBuffer  *protocol.FifoBuffer
	outputBuffer *protocol.ScratchOutput
	transport    *protocol.Transport

	// Debug counters
	messagesReceived uint32
	msgerrors        uint32
)

func main() {
	InitClock()
	core.TimerInit()

	led := machine.LED
	led.Configure(machine.PinConfig{Mode: machine.PinOutput})

	InitUART()
	InitDisplay()
	core.SetDebugWriter(displayStatus)
	core.SetDebugEnabled(true)

	configureBoardPins()
	core.SetTouchHardware(newTouchHardware())
	enableTouchInterrupt()

	core.InitTouchCommands()
	core.InitIdentifyCommands()
	core.RegisterConstant("MCU", "stm32l0")
	core.SetReportHook(func(pin tsc.PinID, group uint8, count uint16) {
		led.Set(!led.Get())
		displayReading(pin, group, count)
	})

	inputBuffer = protocol.NewFifoBuffer(256)
	outputBuffer = protocol.NewScratchOutput()
	transport = protocol.NewTransport(outputBuffer, core.DispatchCommand)
	core.SetGlobalTransport(transport)

	// The core hooks reset handling into the transport; buffers are ours
	// to clear as well.
	onReset := transport.OnReset
	transport.OnReset = func() {
		outputBuffer.Reset()
		onReset()
	}

	go uartReaderLoop()

	for {
		// Recover from panics in the main loop to prevent a firmware crash
		func() {
			defer func() {
				if r := recover(); r != nil {
					msgerrors++
					core.DumpEventRing()
					core.DumpTouchState()
					inputBuffer.Reset()
					outputBuffer.Reset()
				}
			}()

			UpdateSystemTime()

			if inputBuffer.Available() > 0 {
				transport.Receive(inputBuffer)
				messagesReceived++
			}

			core.ProcessTimers()
			core.TouchTask()

			writeUART()
			refreshDisplay()
		}()

		// Yield to the reader goroutine
		time.Sleep(50 * time.Microsecond)
	}
}
