//go:build stm32l0

package main

import (
	"time"

	"touchsense/core"
)

var bootTime time.Time

// InitClock starts the 1MHz firmware clock. The STM32L0 has no free
// running 32 bit microsecond counter, so ticks come from the runtime's
// monotonic clock.
func InitClock() {
	bootTime = time.Now()
}

// GetHardwareTime returns the low 32 bits of the microseconds since boot.
func GetHardwareTime() uint32 {
	return uint32(time.Since(bootTime) / time.Microsecond)
}

// UpdateSystemTime updates the core timer with hardware time
func UpdateSystemTime() {
	core.SetTime(GetHardwareTime())
}
