package core

// TimerFreq is the tick rate of the firmware clock: 1 tick per
// microsecond on every target.
const TimerFreq = 1000000

var systemTicks uint32

// GetTime returns the current system time in timer ticks
func GetTime() uint32 {
	return getSystemTicks()
}

// SetTime sets the current system time. Targets call it from the main
// loop; host builds and tests drive the clock with it.
func SetTime(ticks uint32) {
	setSystemTicks(ticks)
}

// TimerFromUS converts microseconds to timer ticks
func TimerFromUS(us uint32) uint32 {
	return uint32(uint64(us) * TimerFreq / 1000000)
}

// TimerToUS converts timer ticks to microseconds
func TimerToUS(ticks uint32) uint32 {
	return uint32(uint64(ticks) * 1000000 / TimerFreq)
}

// TimerInit starts the clock at zero with no timers queued.
func TimerInit() {
	SetTime(0)
	resetTimers()
}

// ProcessTimers runs every timer that is due.
func ProcessTimers() {
	currentTime = GetTime()
	TimerDispatch()
}

// timerBefore compares tick values across the 32 bit wrap.
func timerBefore(a, b uint32) bool {
	return int32(a-b) < 0
}
