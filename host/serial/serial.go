// Package serial opens the UART link to the touch firmware.
package serial

import (
	"io"
	"time"
)

// DefaultBaud matches the firmware's UART setting.
const DefaultBaud = 250000

// Port is a serial line the link can run over. Reads return io.EOF when
// ReadTimeout passes without data.
type Port interface {
	io.ReadWriteCloser

	// Flush discards bytes received but not yet read.
	Flush() error
}

// Config holds serial port configuration.
type Config struct {
	// Device path (e.g., "/dev/ttyUSB0", "COM3")
	Device string `yaml:"device"`

	Baud int `yaml:"baud"`

	// Read timeout; 0 blocks until data arrives
	ReadTimeout time.Duration `yaml:"read_timeout"`
}

// DefaultConfig returns the firmware's line settings for device.
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        DefaultBaud,
		ReadTimeout: 100 * time.Millisecond,
	}
}
