//go:build stm32l0

package main

import (
	"machine"
	"time"
)

// LinkBaudRate is the host link speed.
const LinkBaudRate = 250000

var uart *machine.UART

// InitUART configures the host link on the board's default UART (the
// ST-LINK virtual COM port on Nucleo boards).
func InitUART() {
	uart = machine.DefaultUART
	uart.Configure(machine.UARTConfig{BaudRate: LinkBaudRate})
}

// uartReaderLoop moves received bytes into the input FIFO.
func uartReaderLoop() {
	defer func() {
		if r := recover(); r != nil {
			msgerrors++
			time.Sleep(100 * time.Millisecond)
			go uartReaderLoop()
		}
	}()

	var buf [32]byte
	for {
		n := uart.Buffered()
		if n == 0 {
			time.Sleep(100 * time.Microsecond)
			continue
		}
		if n > len(buf) {
			n = len(buf)
		}
		for i := 0; i < n; i++ {
			b, err := uart.ReadByte()
			if err != nil {
				n = i
				break
			}
			buf[i] = b
		}
		if inputBuffer.Write(buf[:n]) < n {
			// Buffer full - error condition
			msgerrors++
		}
	}
}

// writeUART sends and clears the output buffer.
func writeUART() {
	result := outputBuffer.Result()
	if len(result) == 0 {
		return
	}
	written := 0
	for written < len(result) {
		n, err := uart.Write(result[written:])
		if err != nil {
			msgerrors++
			break
		}
		written += n
	}
	outputBuffer.Reset()
}
