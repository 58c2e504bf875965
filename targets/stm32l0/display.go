//go:build stm32l0

package main

import (
	"image/color"
	"machine"
	"time"

	"tinygo.org/x/drivers/ssd1306"
	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"

	"touchsense/tsc"
)

const (
	displayWidth  = 128
	displayHeight = 64
	lineHeight    = 9
	maxLines      = displayHeight/lineHeight - 1
)

var (
	display      ssd1306.Device
	displayReady bool
	displayDirty bool
	white        = color.RGBA{255, 255, 255, 255}

	// last reading per group, index 0 unused
	lastCount [tsc.NumGroups + 1]uint16
	lastPin   [tsc.NumGroups + 1]tsc.PinID
	seen      [tsc.NumGroups + 1]bool
	status    string
)

// InitDisplay brings up the optional SSD1306 on I2C0. The firmware runs
// without it when the bus does not configure.
func InitDisplay() {
	err := machine.I2C0.Configure(machine.I2CConfig{Frequency: 400 * machine.KHz})
	if err != nil {
		return
	}
	// the panel needs time after a cold start
	time.Sleep(100 * time.Millisecond)

	display = ssd1306.NewI2C(machine.I2C0)
	display.Configure(ssd1306.Config{Width: displayWidth, Height: displayHeight, Address: 0x3C, VccState: ssd1306.SWITCHCAPVCC})
	display.ClearDisplay()
	displayReady = true
	displayStatus("touchsense")
}

func displayReading(pin tsc.PinID, group uint8, count uint16) {
	if group == 0 || int(group) > tsc.NumGroups {
		return
	}
	lastCount[group] = count
	lastPin[group] = pin
	seen[group] = true
	displayDirty = true
}

// displayStatus shows a debug line at the bottom of the panel.
func displayStatus(s string) {
	status = s
	displayDirty = true
}

// refreshDisplay redraws the panel when something changed.
func refreshDisplay() {
	if !displayReady || !displayDirty {
		return
	}
	displayDirty = false

	display.ClearBuffer()
	y := int16(lineHeight)
	lines := 0
	for g := 1; g <= tsc.NumGroups && lines < maxLines; g++ {
		if !seen[g] {
			continue
		}
		tinyfont.WriteLine(&display, &proggy.TinySZ8pt7b, 0, y, lastPin[g].String()+" "+utoa(uint32(lastCount[g])), white)
		y += lineHeight
		lines++
	}
	tinyfont.WriteLine(&display, &proggy.TinySZ8pt7b, 0, displayHeight-1, status, white)
	display.Display()
}

func utoa(n uint32) string {
	if n == 0 {
		return "0"
	}
	var buf [10]byte
	pos := len(buf)
	for n > 0 {
		pos--
		buf[pos] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[pos:])
}
