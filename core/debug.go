package core

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// TouchEvent captures an acquisition event for post-mortem analysis
type TouchEvent struct {
	EventType uint8  // Event type code
	Pin       uint8  // TSC pin, or NoPin
	Clock     uint32 // System clock at event
	Value     uint32 // Count, error code or control word
}

// Event type codes
const (
	EvtConfig       = 1 // controller (re)created
	EvtAcquireStart = 2 // acquisition started
	EvtAcquireDone  = 3 // end of acquisition
	EvtMaxCount     = 4 // max count error
	EvtInvalidRead  = 5 // read of a channel that is not armed
	EvtReportDrop   = 6 // report queue full
)

// EventRingSize is the number of events kept for post-mortem dumps.
const EventRingSize = 32

var (
	// debugPrintln is the global debug print function (can be set by platform code)
	debugPrintln DebugWriter = func(s string) {}

	// debugEnabled controls whether debug output is active
	debugEnabled bool

	eventRing     [EventRingSize]TouchEvent
	eventRingHead uint8

	// Async debug output channel
	debugChan chan string
)

// SetDebugWriter sets the platform-specific debug output function
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// IsDebugEnabled returns whether debug output is enabled
func IsDebugEnabled() bool {
	return debugEnabled
}

// InitAsyncDebug starts the async debug output goroutine.
// Call this from main() after SetDebugWriter.
func InitAsyncDebug() {
	debugChan = make(chan string, 16)
	go debugOutputWorker()
}

func debugOutputWorker() {
	for msg := range debugChan {
		if debugPrintln != nil {
			debugPrintln(msg)
		}
	}
}

// DebugPrintln writes a debug message using the platform-specific writer.
// Blocks if debug is enabled (use DebugAsync for non-blocking).
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// DebugAsync queues a debug message for async output. The message is
// dropped when the channel is full.
func DebugAsync(msg string) {
	if !debugEnabled || debugChan == nil {
		return
	}
	select {
	case debugChan <- msg:
	default:
	}
}

// RecordEvent stores an event in the ring buffer. Safe to call from the
// timer dispatcher and the TSC interrupt.
func RecordEvent(eventType, pin uint8, clock, value uint32) {
	state := disableInterrupts()
	idx := eventRingHead
	eventRing[idx] = TouchEvent{
		EventType: eventType,
		Pin:       pin,
		Clock:     clock,
		Value:     value,
	}
	eventRingHead = (idx + 1) % EventRingSize
	restoreInterrupts(state)
}

// Events returns the recorded events, oldest first.
func Events() []TouchEvent {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	var out []TouchEvent
	for i := uint8(0); i < EventRingSize; i++ {
		evt := eventRing[(eventRingHead+i)%EventRingSize]
		if evt.EventType != 0 {
			out = append(out, evt)
		}
	}
	return out
}

func eventName(t uint8) string {
	switch t {
	case EvtConfig:
		return "CONFIG"
	case EvtAcquireStart:
		return "START"
	case EvtAcquireDone:
		return "EOA"
	case EvtMaxCount:
		return "MCE!"
	case EvtInvalidRead:
		return "INVALID_READ"
	case EvtReportDrop:
		return "DROP"
	}
	return "UNKNOWN"
}

// DumpEventRing writes the event ring to the debug writer regardless of
// the debug enable flag (call on shutdown/error).
func DumpEventRing() {
	if debugPrintln == nil {
		return
	}

	debugPrintln("[TSC] === Event Ring Dump ===")
	for _, evt := range Events() {
		debugPrintln("[TSC] " + eventName(evt.EventType) +
			" pin=" + utoa(uint32(evt.Pin)) +
			" clock=" + utoa(evt.Clock) +
			" value=" + utoa(evt.Value))
	}
	debugPrintln("[TSC] === End Dump ===")
}

// ClearEventRing clears the event buffer
func ClearEventRing() {
	state := disableInterrupts()
	for i := range eventRing {
		eventRing[i] = TouchEvent{}
	}
	eventRingHead = 0
	restoreInterrupts(state)
}
