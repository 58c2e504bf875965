//go:build !tinygo

package core

// State is a placeholder for interrupt state on regular Go
type State uintptr

// criticalDepth counts nested critical sections so host tests can check
// that shared state is only touched with "interrupts" masked.
var criticalDepth int

// disableInterrupts enters a critical section (no real interrupts on regular Go)
func disableInterrupts() State {
	criticalDepth++
	return State(criticalDepth - 1)
}

// restoreInterrupts leaves the critical section entered by disableInterrupts
func restoreInterrupts(state State) {
	criticalDepth = int(state)
}

// inCritical reports whether a critical section is open.
func inCritical() bool {
	return criticalDepth > 0
}
