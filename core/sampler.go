package core

import (
	"touchsense/protocol"
	"touchsense/tsc"
)

// DefaultPollTicks is the acquisition poll interval when query_touch
// passes 0.
var DefaultPollTicks = TimerFromUS(500)

// sampler runs acquisitions from the timer without blocking: a cycle
// starts the hardware, later wakes poll the event flags, and the
// completed cycle queues one report per armed channel. The next cycle
// starts rest ticks after the previous one started.
type sampler struct {
	timer     Timer
	active    bool
	acquiring bool

	restTicks uint32
	pollTicks uint32
	next      uint32
	cycles    uint32
}

func samplerActive() bool {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	return touch.sampler.active
}

func startSampler(rest, poll uint32) error {
	if poll == 0 {
		poll = DefaultPollTicks
	}

	state := disableInterrupts()
	defer restoreInterrupts(state)

	if touch.ctrl == nil {
		return ErrNotConfigured
	}
	s := &touch.sampler
	removeTimer(&s.timer)
	s.active = true
	s.acquiring = false
	s.restTicks = rest
	s.pollTicks = poll
	s.next = GetTime()
	s.timer.WakeTime = s.next
	s.timer.Handler = samplerEvent
	insertTimer(&s.timer)
	return nil
}

// stopSampler cancels the sampler. An acquisition already running is
// left to finish; its flags are cleared by the next Start.
func stopSampler() {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	s := &touch.sampler
	removeTimer(&s.timer)
	s.active = false
	s.acquiring = false
}

// samplerEvent is the sampler timer handler. It runs with interrupts
// masked by TimerDispatch.
func samplerEvent(t *Timer) uint8 {
	s := &touch.sampler
	if !s.active || touch.ctrl == nil {
		s.active = false
		return SF_DONE
	}

	now := GetTime()
	if s.acquiring && !finishCycle(now) {
		t.WakeTime = now + s.pollTicks
		return SF_RESCHEDULE
	}
	if timerBefore(now, s.next) {
		t.WakeTime = s.next
		return SF_RESCHEDULE
	}

	// Start the next cycle. A cycle that overran its rest period
	// restarts immediately.
	s.next = t.WakeTime + s.restTicks
	if timerBefore(s.next, now) {
		s.next = now + s.restTicks
	}
	s.acquiring = true
	s.cycles++
	touch.ctrl.Start()
	RecordEvent(EvtAcquireStart, protocol.NoPin, now, s.cycles)

	t.WakeTime = now + s.pollTicks
	return SF_RESCHEDULE
}

// finishCycle checks the event flags once. On an event it queues the
// cycle's reports, acknowledges the flags and returns true.
func finishCycle(now uint32) bool {
	c := touch.ctrl
	ev := c.CheckEvent()
	switch ev {
	case tsc.NoEvent:
		return false
	case tsc.MaxCountError:
		RecordEvent(EvtMaxCount, protocol.NoPin, now, 0)
		queueReport(touchReport{
			id:   protocol.RspTouchError,
			pin:  protocol.NoPin,
			code: protocol.ErrCodeMaxCount,
		}, now)
	case tsc.EndOfAcquisition:
		RecordEvent(EvtAcquireDone, protocol.NoPin, now, c.ChannelMask())
		for _, p := range touch.channels {
			queueReport(readChannel(c, p, now), now)
		}
	}

	c.Clear(tsc.EndOfAcquisition)
	c.Clear(tsc.MaxCountError)
	touch.sampler.acquiring = false
	touch.wake = true
	return true
}

func queueReport(r touchReport, now uint32) {
	if !touch.reports.push(r) {
		RecordEvent(EvtReportDrop, r.pin, now, touch.reports.dropped)
	}
}

// HandleTouchInterrupt is the TSC interrupt handler. With listen_touch
// enabled it completes sampler cycles without waiting for the next poll.
func HandleTouchInterrupt() {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	if touch.ctrl == nil {
		return
	}
	if touch.sampler.active && touch.sampler.acquiring {
		finishCycle(GetTime())
		return
	}
	// not ours; acknowledge so the line drops
	touch.ctrl.Clear(tsc.EndOfAcquisition)
	touch.ctrl.Clear(tsc.MaxCountError)
}

// touchReport is a queued touch_state or touch_error.
type touchReport struct {
	id    uint16
	pin   uint8
	group uint8
	count uint16
	clock uint32
	code  uint8
}

const reportQueueSize = 32

// reportQueue is a fixed ring between the sampler and TouchTask. When
// full, new reports are dropped and counted.
type reportQueue struct {
	buf     [reportQueueSize]touchReport
	head    uint8
	n       uint8
	dropped uint32
}

func (q *reportQueue) push(r touchReport) bool {
	if q.n == reportQueueSize {
		q.dropped++
		return false
	}
	q.buf[(q.head+q.n)%reportQueueSize] = r
	q.n++
	return true
}

func (q *reportQueue) pop() (touchReport, bool) {
	if q.n == 0 {
		return touchReport{}, false
	}
	r := q.buf[q.head]
	q.head = (q.head + 1) % reportQueueSize
	q.n--
	return r, true
}

func (q *reportQueue) reset() {
	q.head = 0
	q.n = 0
}
